package reports

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/analysis"
	apperrors "github.com/ZanzyTHEbar/fairplate-analytics/internal/errors"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/monitoring"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/types"
)

// 2026-03-01 17:30 UTC is 2026-03-02 01:30 in Kuala Lumpur
var testNow = time.Date(2026, 3, 1, 17, 30, 0, 0, time.UTC)

type memoryStore struct {
	mu      sync.Mutex
	docs    map[string]types.StoredReport
	saveErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: make(map[string]types.StoredReport)}
}

func (m *memoryStore) SaveReport(_ context.Context, collection, historyID string, at time.Time, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return apperrors.NewPersistenceError(collection, m.saveErr)
	}
	for _, id := range []string{LatestDocID, historyID} {
		m.docs[collection+"/"+id] = types.StoredReport{Collection: collection, DocID: id, CalculatedAt: at, Payload: payload}
	}
	return nil
}

func (m *memoryStore) GetReport(_ context.Context, collection, docID string) (*types.StoredReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[collection+"/"+docID]
	if !ok {
		return nil, apperrors.NewNotFoundError("report", collection+"/"+docID)
	}
	return &doc, nil
}

func (m *memoryStore) ListReports(_ context.Context, collection string, limit int) ([]types.ReportRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	refs := make([]types.ReportRef, 0)
	for _, doc := range m.docs {
		if doc.Collection == collection && doc.DocID != LatestDocID {
			refs = append(refs, types.ReportRef{DocID: doc.DocID, CalculatedAt: doc.CalculatedAt})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].CalculatedAt.After(refs[j].CalculatedAt) })
	if len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

func (m *memoryStore) PruneReports(_ context.Context, collection string, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key, doc := range m.docs {
		if doc.Collection == collection && doc.DocID != LatestDocID && doc.CalculatedAt.Before(olderThan) {
			delete(m.docs, key)
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) Ping(context.Context) error { return nil }

type fakeSource struct {
	vendors []types.VendorRecord
	items   []types.MenuItemRecord
	window  []types.RecommendationLogEntry
	err     error

	since     time.Time
	limit     int
	itemCalls [][]string
}

func (f *fakeSource) ListVendors(context.Context) ([]types.VendorRecord, error) {
	return f.vendors, f.err
}

func (f *fakeSource) ListCatalogItems(context.Context) ([]types.MenuItemRecord, error) {
	return f.items, nil
}

func (f *fakeSource) RecentRecommendations(_ context.Context, since time.Time, limit int) ([]types.RecommendationLogEntry, error) {
	f.since, f.limit = since, limit
	return f.window, f.err
}

func (f *fakeSource) ItemsByID(_ context.Context, ids []string) (map[string]types.MenuItemRecord, error) {
	f.itemCalls = append(f.itemCalls, ids)
	out := make(map[string]types.MenuItemRecord)
	for _, it := range f.items {
		for _, id := range ids {
			if it.ID == id {
				out[id] = it
			}
		}
	}
	return out, nil
}

func (f *fakeSource) VendorsByID(_ context.Context, ids []string) (map[string]types.VendorRecord, error) {
	out := make(map[string]types.VendorRecord)
	for _, v := range f.vendors {
		for _, id := range ids {
			if v.ID == id {
				out[id] = v
			}
		}
	}
	return out, nil
}

type countingInvalidator struct{ collections []string }

func (c *countingInvalidator) InvalidateCollection(collection string) int {
	c.collections = append(c.collections, collection)
	return 1
}

func klTime(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kuala_Lumpur")
	require.NoError(t, err)
	return loc
}

func TestQualityRunnerStoresLatestAndDatedCopy(t *testing.T) {
	updated := testNow.AddDate(0, 0, -1)
	source := &fakeSource{
		vendors: []types.VendorRecord{
			{ID: "v1", Name: "Stall", UpdatedAt: &updated},
			{ID: "v2", Name: "Other"},
		},
	}
	store := newMemoryStore()
	inv := &countingInvalidator{}

	runner := NewQualityRunner(source, store, inv, analysis.DefaultQualityConfig(), "data_quality", klTime(t), nil)
	runner.now = func() time.Time { return testNow }

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.False(t, summary.Skipped)
	assert.Equal(t, 2, summary.TotalVendors)
	assert.Equal(t, "2026-03-02", summary.HistoryID)
	assert.Greater(t, summary.CriticalIssuesCount, 0)
	assert.Equal(t, []string{"data_quality"}, inv.collections)

	latest, err := store.GetReport(context.Background(), "data_quality", LatestDocID)
	require.NoError(t, err)
	var report analysis.QualityReport
	require.NoError(t, json.Unmarshal(latest.Payload, &report))
	assert.Equal(t, 2, report.TotalVendors)
	assert.Equal(t, summary.OverallQualityScore, report.OverallQualityScore)

	dated, err := store.GetReport(context.Background(), "data_quality", "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, latest.Payload, dated.Payload)

	assert.Equal(t, report.OverallQualityScore, testutil.ToFloat64(monitoring.QualityScore))
}

func TestQualityRunnerSkipsEmptyVendorSet(t *testing.T) {
	store := newMemoryStore()
	runner := NewQualityRunner(&fakeSource{}, store, nil, analysis.DefaultQualityConfig(), "data_quality", nil, nil)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Skipped)
	assert.Empty(t, store.docs)
}

func TestQualityRunnerFailures(t *testing.T) {
	t.Run("fetch error aborts without writing", func(t *testing.T) {
		store := newMemoryStore()
		source := &fakeSource{err: errors.New("connection reset")}
		runner := NewQualityRunner(source, store, nil, analysis.DefaultQualityConfig(), "data_quality", nil, nil)

		_, err := runner.Run(context.Background())
		require.Error(t, err)
		assert.Equal(t, apperrors.CategoryUpstreamFetch, apperrors.CategoryOf(err))
		assert.Empty(t, store.docs)
	})

	t.Run("persistence error propagates", func(t *testing.T) {
		store := newMemoryStore()
		store.saveErr = errors.New("disk full")
		source := &fakeSource{vendors: []types.VendorRecord{{ID: "v1", Name: "A"}}}
		inv := &countingInvalidator{}
		runner := NewQualityRunner(source, store, inv, analysis.DefaultQualityConfig(), "data_quality", nil, nil)

		_, err := runner.Run(context.Background())
		require.Error(t, err)
		assert.Equal(t, apperrors.CategoryPersistence, apperrors.CategoryOf(err))
		assert.Empty(t, inv.collections)
	})
}

func fairnessSource() *fakeSource {
	score := 0.9
	return &fakeSource{
		vendors: []types.VendorRecord{
			{ID: "big", TotalOrders: 5000},
			{ID: "small", TotalOrders: 10},
		},
		items: []types.MenuItemRecord{
			{ID: "i1", VendorID: "big", CuisineType: "malay", Location: types.Location{State: "Selangor"}},
			{ID: "i2", VendorID: "small", CuisineType: "chinese", Location: types.Location{State: "Penang"}},
		},
		window: []types.RecommendationLogEntry{
			{ID: "r1", ItemID: "i1", Score: &score, GeneratedAt: testNow.Add(-time.Hour)},
			{ID: "r2", ItemID: "i2", GeneratedAt: testNow.Add(-2 * time.Hour)},
			{ID: "r3", ItemID: "i1", GeneratedAt: testNow.Add(-3 * time.Hour)},
			{ID: "r4", ItemID: "gone", GeneratedAt: testNow.Add(-4 * time.Hour)},
		},
	}
}

func TestFairnessRunnerAppendsTimestampedHistory(t *testing.T) {
	source := fairnessSource()
	store := newMemoryStore()
	runner := NewFairnessRunner(source, store, nil, analysis.DefaultFairnessConfig(),
		WindowConfig{Days: 7, Limit: 1000}, "fairness_metrics", nil)
	runner.now = func() time.Time { return testNow }

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, 4, summary.TotalRecommendations)
	assert.Equal(t, "2026-03-01T17:30:00Z", summary.HistoryID)

	assert.True(t, source.since.Equal(testNow.AddDate(0, 0, -7)))
	assert.Equal(t, 1000, source.limit)
	require.Len(t, source.itemCalls, 1)
	assert.Equal(t, []string{"gone", "i1", "i2"}, source.itemCalls[0])

	doc, err := store.GetReport(context.Background(), "fairness_metrics", summary.HistoryID)
	require.NoError(t, err)
	var report analysis.FairnessReport
	require.NoError(t, json.Unmarshal(doc.Payload, &report))
	assert.Equal(t, 3, report.ResolvedRecommendations)
	assert.InDelta(t, 66.67, report.CuisineDistribution["malay"], 0.01)
	assert.Equal(t, summary.BiasAlertsCount, len(report.BiasAlerts))

	runner.now = func() time.Time { return testNow.Add(time.Minute) }
	_, err = runner.Run(context.Background())
	require.NoError(t, err)
	refs, err := store.ListReports(context.Background(), "fairness_metrics", 10)
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestFairnessRunnerSkips(t *testing.T) {
	t.Run("empty window", func(t *testing.T) {
		store := newMemoryStore()
		runner := NewFairnessRunner(&fakeSource{}, store, nil, analysis.DefaultFairnessConfig(),
			WindowConfig{Days: 7, Limit: 1000}, "fairness_metrics", nil)
		summary, err := runner.Run(context.Background())
		require.NoError(t, err)
		assert.True(t, summary.Skipped)
		assert.Empty(t, store.docs)
	})

	t.Run("nothing resolves", func(t *testing.T) {
		source := fairnessSource()
		source.items = nil
		store := newMemoryStore()
		runner := NewFairnessRunner(source, store, nil, analysis.DefaultFairnessConfig(),
			WindowConfig{Days: 7, Limit: 1000}, "fairness_metrics", nil)
		summary, err := runner.Run(context.Background())
		require.NoError(t, err)
		assert.True(t, summary.Skipped)
		assert.Equal(t, 4, summary.TotalRecommendations)
		assert.Empty(t, store.docs)
	})
}

func TestFairnessRunnerFetchError(t *testing.T) {
	source := &fakeSource{err: errors.New("timeout")}
	runner := NewFairnessRunner(source, newMemoryStore(), nil, analysis.DefaultFairnessConfig(),
		WindowConfig{Days: 7, Limit: 1000}, "fairness_metrics", nil)

	_, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryableError(err))
}
