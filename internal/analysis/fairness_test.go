package analysis

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/types"
)

// fairnessFixture builds a catalog where every item belongs to its own vendor
type fairnessFixture struct {
	items   map[string]types.MenuItemRecord
	vendors map[string]types.VendorRecord
	window  []types.RecommendationLogEntry
}

func newFairnessFixture() *fairnessFixture {
	return &fairnessFixture{
		items:   make(map[string]types.MenuItemRecord),
		vendors: make(map[string]types.VendorRecord),
	}
}

// recommend appends n log entries for a fresh item with the given attributes
func (f *fairnessFixture) recommend(n int, cuisine, state string, vendorOrders int) {
	id := fmt.Sprintf("item-%d", len(f.items))
	vendorID := "vendor-" + id
	f.items[id] = types.MenuItemRecord{
		ID:          id,
		VendorID:    vendorID,
		CuisineType: cuisine,
		Location:    types.Location{State: state},
	}
	f.vendors[vendorID] = types.VendorRecord{ID: vendorID, TotalOrders: vendorOrders, TotalFoodItems: 5}
	for i := 0; i < n; i++ {
		f.window = append(f.window, types.RecommendationLogEntry{
			ID:          fmt.Sprintf("%s-rec-%d", id, i),
			ItemID:      id,
			UserID:      "user-1",
			GeneratedAt: testNow.Add(-time.Duration(len(f.window)) * time.Minute),
		})
	}
}

func (f *fairnessFixture) run(cfg FairnessConfig) FairnessReport {
	start := testNow.Add(-7 * 24 * time.Hour)
	return ComputeFairnessReport(f.window, f.items, f.vendors, start, testNow, testNow, cfg)
}

func alertsOfKind(alerts []BiasAlert, kind BiasKind) []BiasAlert {
	var out []BiasAlert
	for _, a := range alerts {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

func TestComputeFairnessReport_EmptyWindow(t *testing.T) {
	f := newFairnessFixture()
	report := f.run(DefaultFairnessConfig())

	assert.Equal(t, 0, report.TotalRecommendations)
	assert.Equal(t, 0, report.ResolvedRecommendations)
	assert.Empty(t, report.CuisineDistribution)
	assert.Empty(t, report.RegionDistribution)
	assert.Equal(t, 0.0, report.DiversityScore)
	assert.Equal(t, 0.0, report.NDCGScore)
	assert.NotNil(t, report.BiasAlerts)
	assert.Empty(t, report.BiasAlerts)
	assert.Equal(t, testNow.Add(-7*24*time.Hour), report.AnalysisStartDate)
	assert.Equal(t, testNow, report.AnalysisEndDate)
}

func TestComputeFairnessReport_SingleCuisine(t *testing.T) {
	f := newFairnessFixture()
	f.recommend(3, "malay", "Selangor", 50)
	f.recommend(2, "malay", "Johor", 50)

	report := f.run(DefaultFairnessConfig())

	assert.Equal(t, map[string]float64{"malay": 100}, report.CuisineDistribution)
	assert.Equal(t, 0.0, report.DiversityScore)

	cuisine := alertsOfKind(report.BiasAlerts, BiasCuisine)
	require.Len(t, cuisine, 1)
	assert.Equal(t, 1.0, cuisine[0].Severity)
	assert.Equal(t, "malay", cuisine[0].AffectedMetric)
	assert.Equal(t, 100.0, cuisine[0].ExpectedValue)
	assert.Equal(t, "malay cuisine represents 100.0% of recommendations, exceeding the 40% threshold. Expected: 100.0%", cuisine[0].Description)

	diversity := alertsOfKind(report.BiasAlerts, BiasDiversity)
	require.Len(t, diversity, 1)
	assert.Equal(t, 1.0, diversity[0].Severity)
	assert.Equal(t, 0.7, diversity[0].ExpectedValue)
	assert.Equal(t, "Diversity score is 0.00, indicating low diversity in recommendations.", diversity[0].Description)
}

func TestComputeFairnessReport_EvenCuisines(t *testing.T) {
	f := newFairnessFixture()
	f.recommend(2, "malay", "Selangor", 50)
	f.recommend(2, "chinese", "Penang", 50)
	f.recommend(2, "indian", "Perak", 5000)
	f.recommend(2, "western", "Johor", 5000)

	report := f.run(DefaultFairnessConfig())

	assert.InDelta(t, 1.0, report.DiversityScore, 1e-12)
	assert.Equal(t, 50.0, report.SmallVendorVisibility)
	assert.Equal(t, 50.0, report.LargeVendorVisibility)
	assert.Empty(t, report.BiasAlerts)
}

func TestComputeFairnessReport_CuisineThreshold(t *testing.T) {
	tests := []struct {
		name         string
		dominant     int
		wantAlert    bool
		wantSeverity float64
	}{
		{name: "forty percent is allowed", dominant: 40, wantAlert: false},
		{name: "forty one percent alerts", dominant: 41, wantAlert: true, wantSeverity: 1.0 / 30},
		{name: "fifty five percent", dominant: 55, wantAlert: true, wantSeverity: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFairnessFixture()
			f.recommend(tt.dominant, "malay", "Selangor", 50)
			rest := 100 - tt.dominant
			f.recommend(rest/3, "chinese", "Penang", 50)
			f.recommend(rest/3, "indian", "Perak", 50)
			f.recommend(rest-2*(rest/3), "thai", "Kedah", 50)

			report := f.run(DefaultFairnessConfig())
			alerts := alertsOfKind(report.BiasAlerts, BiasCuisine)

			if !tt.wantAlert {
				assert.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			assert.Equal(t, "malay", alerts[0].AffectedMetric)
			assert.Equal(t, float64(tt.dominant), alerts[0].ActualValue)
			assert.InDelta(t, tt.wantSeverity, alerts[0].Severity, 1e-9)
			assert.Equal(t, 25.0, alerts[0].ExpectedValue)
		})
	}
}

func TestComputeFairnessReport_UnresolvedEntriesDropped(t *testing.T) {
	f := newFairnessFixture()
	f.recommend(1, "malay", "Selangor", 50)
	f.recommend(1, "chinese", "Penang", 50)
	f.window = append(f.window,
		types.RecommendationLogEntry{ID: "ghost-1", ItemID: "deleted-item", GeneratedAt: testNow},
		types.RecommendationLogEntry{ID: "ghost-2", ItemID: "deleted-item", GeneratedAt: testNow},
	)

	report := f.run(DefaultFairnessConfig())

	assert.Equal(t, 4, report.TotalRecommendations)
	assert.Equal(t, 2, report.ResolvedRecommendations)
	assert.Equal(t, map[string]float64{"malay": 50, "chinese": 50}, report.CuisineDistribution)
}

func TestComputeFairnessReport_UnknownBuckets(t *testing.T) {
	f := newFairnessFixture()
	f.recommend(1, "", "", 50)
	f.recommend(1, "malay", "Selangor", 50)

	report := f.run(DefaultFairnessConfig())

	assert.Equal(t, 50.0, report.CuisineDistribution["unknown"])
	assert.Equal(t, 50.0, report.RegionDistribution["Unknown"])
}

func TestComputeFairnessReport_VendorSize(t *testing.T) {
	t.Run("small vendors under represented", func(t *testing.T) {
		f := newFairnessFixture()
		f.recommend(1, "malay", "Selangor", 10)
		f.recommend(3, "chinese", "Penang", 5000)
		f.recommend(3, "indian", "Perak", 5000)
		f.recommend(3, "thai", "Kedah", 5000)

		report := f.run(DefaultFairnessConfig())

		assert.Equal(t, 10.0, report.SmallVendorVisibility)
		assert.Equal(t, 90.0, report.LargeVendorVisibility)

		alerts := alertsOfKind(report.BiasAlerts, BiasVendorSize)
		require.Len(t, alerts, 1)
		assert.Equal(t, "Small Vendors", alerts[0].AffectedMetric)
		assert.Equal(t, 20.0, alerts[0].ExpectedValue)
		assert.Equal(t, 1.0, alerts[0].Severity)
		assert.Equal(t, "Small vendors only represent 10.0% of recommendations. Expected at least 20% for fair representation.", alerts[0].Description)
	})

	t.Run("item count proxy", func(t *testing.T) {
		f := newFairnessFixture()
		f.recommend(1, "malay", "Selangor", 10)
		f.recommend(1, "chinese", "Penang", 5000)

		cfg := DefaultFairnessConfig()
		cfg.VendorSizeProxy = ProxyItems

		// every fixture vendor carries five items
		report := f.run(cfg)
		assert.Equal(t, 100.0, report.SmallVendorVisibility)
		assert.Empty(t, alertsOfKind(report.BiasAlerts, BiasVendorSize))
	})

	t.Run("items without a vendor are not classified", func(t *testing.T) {
		f := newFairnessFixture()
		f.recommend(2, "malay", "Selangor", 10)
		f.recommend(2, "chinese", "Penang", 10)
		for id := range f.vendors {
			delete(f.vendors, id)
		}

		report := f.run(DefaultFairnessConfig())
		assert.Equal(t, 0.0, report.SmallVendorVisibility)
		assert.Equal(t, 0.0, report.LargeVendorVisibility)
		assert.Empty(t, alertsOfKind(report.BiasAlerts, BiasVendorSize))
	})
}

func TestComputeFairnessReport_RegionAlert(t *testing.T) {
	f := newFairnessFixture()
	f.recommend(3, "malay", "Selangor", 50)
	f.recommend(3, "chinese", "Selangor", 50)
	f.recommend(2, "indian", "Penang", 50)
	f.recommend(2, "thai", "Perak", 50)

	report := f.run(DefaultFairnessConfig())

	alerts := alertsOfKind(report.BiasAlerts, BiasRegion)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Selangor", alerts[0].AffectedMetric)
	assert.Equal(t, 60.0, alerts[0].ActualValue)
	assert.InDelta(t, 0.5, alerts[0].Severity, 1e-9)
	assert.InDelta(t, 100.0/3, alerts[0].ExpectedValue, 1e-9)
}

func TestComputeFairnessReport_AlertOrder(t *testing.T) {
	f := newFairnessFixture()
	f.recommend(10, "malay", "Selangor", 5000)

	report := f.run(DefaultFairnessConfig())

	kinds := make([]BiasKind, len(report.BiasAlerts))
	for i, a := range report.BiasAlerts {
		kinds[i] = a.Kind
		assert.GreaterOrEqual(t, a.Severity, 0.0)
		assert.LessOrEqual(t, a.Severity, 1.0)
		assert.Equal(t, testNow, a.DetectedAt)
	}
	assert.Equal(t, []BiasKind{BiasCuisine, BiasVendorSize, BiasRegion, BiasDiversity}, kinds)
}

func TestComputeFairnessReport_NDCG(t *testing.T) {
	scored := func(scores ...*float64) []types.RecommendationLogEntry {
		out := make([]types.RecommendationLogEntry, len(scores))
		for i, s := range scores {
			out[i] = types.RecommendationLogEntry{ID: fmt.Sprint(i), ItemID: "missing", Score: s}
		}
		return out
	}
	cfg := DefaultFairnessConfig()

	t.Run("ranked best first", func(t *testing.T) {
		window := scored(ptrFloat(0.9), ptrFloat(0.6), ptrFloat(0.2))
		report := ComputeFairnessReport(window, nil, nil, testNow, testNow, testNow, cfg)
		assert.InDelta(t, 1.0, report.NDCGScore, 1e-12)
	})

	t.Run("ranked worst first", func(t *testing.T) {
		window := scored(ptrFloat(0.2), ptrFloat(0.6), ptrFloat(0.9))
		report := ComputeFairnessReport(window, nil, nil, testNow, testNow, testNow, cfg)
		assert.Less(t, report.NDCGScore, 1.0)
	})

	t.Run("missing scores use the default", func(t *testing.T) {
		window := scored(ptrFloat(0.9), nil, ptrFloat(0.1))
		report := ComputeFairnessReport(window, nil, nil, testNow, testNow, testNow, cfg)
		assert.InDelta(t, 1.0, report.NDCGScore, 1e-12)
		assert.Equal(t, 0, report.ResolvedRecommendations)
	})
}

func TestComputeFairnessReport_WindowBounds(t *testing.T) {
	f := newFairnessFixture()
	f.recommend(3, "malay", "Selangor", 50)

	report := f.run(DefaultFairnessConfig())

	assert.Equal(t, testNow.Add(-2*time.Minute), report.AnalysisStartDate)
	assert.Equal(t, testNow, report.AnalysisEndDate)
}
