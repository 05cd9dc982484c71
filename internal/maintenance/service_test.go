package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ZanzyTHEbar/fairplate-analytics/internal/errors"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/types"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	suspended []types.SuspendedVendor
	banned    []types.BannedUser
	vendors   []types.VendorRecord
	menus     map[string][]types.MenuEntry

	reactivated []string
	unbanned    []string
	failIDs     map[string]bool
	batches     [][]types.FoodItem
	refreshed   bool
	fetchErr    error
}

func (f *fakeStore) DueSuspensions(context.Context, time.Time) ([]types.SuspendedVendor, error) {
	return f.suspended, f.fetchErr
}

func (f *fakeStore) ReactivateVendor(_ context.Context, v types.SuspendedVendor, _ time.Time) error {
	if f.failIDs[v.ID] {
		return errors.New("locked")
	}
	f.reactivated = append(f.reactivated, v.ID)
	return nil
}

func (f *fakeStore) DueBans(context.Context, time.Time) ([]types.BannedUser, error) {
	return f.banned, f.fetchErr
}

func (f *fakeStore) UnbanUser(_ context.Context, u types.BannedUser, _ time.Time) error {
	f.unbanned = append(f.unbanned, u.ID)
	return nil
}

func (f *fakeStore) ListVendors(context.Context) ([]types.VendorRecord, error) {
	return f.vendors, f.fetchErr
}

func (f *fakeStore) ListMenus(_ context.Context, vendorID string) ([]types.MenuEntry, error) {
	if f.failIDs[vendorID] {
		return nil, errors.New("menus unavailable")
	}
	return f.menus[vendorID], nil
}

func (f *fakeStore) UpsertFoodItems(_ context.Context, items []types.FoodItem) (int, int, error) {
	f.batches = append(f.batches, append([]types.FoodItem(nil), items...))
	return len(items), 0, nil
}

func (f *fakeStore) RefreshFoodItemCounts(context.Context) error {
	f.refreshed = true
	return nil
}

type fakePruner struct{ cutoffs map[string]time.Time }

func (p *fakePruner) PruneReports(_ context.Context, collection string, olderThan time.Time) (int, error) {
	p.cutoffs[collection] = olderThan
	return 2, nil
}

func newTestService(store *fakeStore, pruner ReportPruner, cfg Config) *Service {
	s := NewService(store, pruner, cfg, nil)
	s.now = func() time.Time { return testNow }
	return s
}

func TestUnsuspend(t *testing.T) {
	store := &fakeStore{
		suspended: []types.SuspendedVendor{{ID: "v1"}, {ID: "v2"}, {ID: "v3"}},
		failIDs:   map[string]bool{"v2": true},
	}
	s := newTestService(store, nil, Config{})

	result, err := s.Unsuspend(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Due: 3, Processed: 2, Failed: 1}, result)
	assert.Equal(t, []string{"v1", "v3"}, store.reactivated)
}

func TestUnban(t *testing.T) {
	store := &fakeStore{banned: []types.BannedUser{{ID: "u1"}}}
	s := newTestService(store, nil, Config{})

	result, err := s.Unban(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, []string{"u1"}, store.unbanned)

	store.fetchErr = errors.New("down")
	_, err = s.Unban(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.CategoryUpstreamFetch, apperrors.CategoryOf(err))
}

func TestFoodItemFromMenu(t *testing.T) {
	expired := testNow.Add(-time.Hour)
	spice := 0.9
	unavailable := false

	tests := []struct {
		name   string
		vendor types.VendorRecord
		menu   types.MenuEntry
		check  func(t *testing.T, item types.FoodItem)
	}{
		{
			name:   "defaults fill blanks",
			vendor: types.VendorRecord{ID: "v1"},
			menu:   types.MenuEntry{ID: "m1"},
			check: func(t *testing.T, item types.FoodItem) {
				assert.Equal(t, "v1_m1", item.ID)
				assert.Equal(t, "Untitled Item", item.Name)
				assert.Equal(t, "general", item.CuisineType)
				assert.Equal(t, "Unknown Restaurant", item.VendorName)
				assert.Equal(t, "Malaysia", item.Location.Country)
				assert.Equal(t, 0.5, item.SpiceLevel)
				assert.True(t, item.Available)
				assert.False(t, item.IsHalal)
				assert.Empty(t, item.ImageURLs)
				assert.Empty(t, item.Categories)
			},
		},
		{
			name: "menu and vendor attributes carried over",
			vendor: types.VendorRecord{
				ID: "v2", Name: "Warung Pak Abu", CuisineType: "malay", IsHalalCertified: true,
				Location: types.Location{State: "Kelantan", City: "Kota Bharu", Country: "Malaysia"},
			},
			menu: types.MenuEntry{
				ID: "m9", Name: "Nasi Kerabu", Price: 8.5, ImageURL: "kerabu.jpg", Category: "Rice",
				SpiceLevel: &spice, IsVegetarian: true, TotalOrders: 42, Available: &unavailable,
			},
			check: func(t *testing.T, item types.FoodItem) {
				assert.Equal(t, "Nasi Kerabu", item.Name)
				assert.Equal(t, []string{"kerabu.jpg"}, item.ImageURLs)
				assert.Equal(t, []string{"rice"}, item.Categories)
				assert.Equal(t, 0.9, item.SpiceLevel)
				assert.True(t, item.IsHalal)
				assert.True(t, item.IsVegetarian)
				assert.False(t, item.Available)
				assert.Equal(t, "Kelantan", item.Location.State)
				assert.Equal(t, 42, item.TotalOrders)
				assert.Equal(t, testNow, item.UpdatedAt)
			},
		},
		{
			name:   "expired halal certificate is not halal",
			vendor: types.VendorRecord{ID: "v3", IsHalalCertified: true, HalalCertExpiresAt: &expired},
			menu:   types.MenuEntry{ID: "m1", Name: "Teh"},
			check: func(t *testing.T, item types.FoodItem) {
				assert.False(t, item.IsHalal)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, FoodItemFromMenu(tt.vendor, tt.menu, testNow))
		})
	}
}

func TestSyncCatalogBatchesAndCountsErrors(t *testing.T) {
	menus := make([]types.MenuEntry, 5)
	for i := range menus {
		menus[i] = types.MenuEntry{ID: string(rune('a' + i))}
	}
	store := &fakeStore{
		vendors: []types.VendorRecord{{ID: "v1"}, {ID: "broken"}},
		menus:   map[string][]types.MenuEntry{"v1": menus},
		failIDs: map[string]bool{"broken": true},
	}
	s := newTestService(store, nil, Config{SyncBatchSize: 2})

	result, err := s.SyncCatalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Vendors: 2, MenuItems: 5, Synced: 5, Errors: 1}, result)
	require.Len(t, store.batches, 3)
	assert.Len(t, store.batches[0], 2)
	assert.Len(t, store.batches[2], 1)
	assert.Equal(t, "v1_a", store.batches[0][0].ID)
	assert.True(t, store.refreshed)
}

func TestPruneHistory(t *testing.T) {
	pruner := &fakePruner{cutoffs: map[string]time.Time{}}
	s := newTestService(&fakeStore{}, pruner, Config{
		RetentionDays: 365,
		Collections:   []string{"data_quality", "fairness_metrics"},
	})

	result, err := s.PruneHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"data_quality": 2, "fairness_metrics": 2}, result.Deleted)
	assert.Equal(t, testNow.AddDate(-1, 0, 0), pruner.cutoffs["data_quality"])
	assert.Equal(t, 365, s.RetentionInfo()["retention_days"])
}
