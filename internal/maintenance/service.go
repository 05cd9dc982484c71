// Package maintenance holds the housekeeping jobs that keep the catalog and
// moderation state current: suspension and ban expiry, catalog sync and
// report retention.
package maintenance

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/analysis"
	apperrors "github.com/ZanzyTHEbar/fairplate-analytics/internal/errors"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/monitoring"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/types"
)

const (
	JobUnsuspend   = "unsuspend"
	JobUnban       = "unban"
	JobCatalogSync = "catalog-sync"
	JobRetention   = "retention"

	defaultItemName   = "Untitled Item"
	defaultCuisine    = "general"
	defaultCountry    = "Malaysia"
	defaultVendorName = "Unknown Restaurant"
	defaultSpiceLevel = 0.5
)

// Store is the moderation and catalog data the jobs act on
type Store interface {
	DueSuspensions(ctx context.Context, now time.Time) ([]types.SuspendedVendor, error)
	ReactivateVendor(ctx context.Context, v types.SuspendedVendor, now time.Time) error
	DueBans(ctx context.Context, now time.Time) ([]types.BannedUser, error)
	UnbanUser(ctx context.Context, u types.BannedUser, now time.Time) error

	ListVendors(ctx context.Context) ([]types.VendorRecord, error)
	ListMenus(ctx context.Context, vendorID string) ([]types.MenuEntry, error)
	UpsertFoodItems(ctx context.Context, items []types.FoodItem) (written int, failed int, err error)
	RefreshFoodItemCounts(ctx context.Context) error
}

// ReportPruner deletes old report history
type ReportPruner interface {
	PruneReports(ctx context.Context, collection string, olderThan time.Time) (int, error)
}

// Config holds the job parameters
type Config struct {
	RetentionDays int
	SyncBatchSize int
	Collections   []string
}

// SweepResult counts the entities a moderation sweep touched
type SweepResult struct {
	Due       int `json:"due"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// SyncResult summarizes one catalog sync
type SyncResult struct {
	Vendors   int `json:"vendors"`
	MenuItems int `json:"menu_items"`
	Synced    int `json:"synced"`
	Errors    int `json:"errors"`
}

// RetentionResult maps each collection to the history documents removed
type RetentionResult struct {
	Cutoff  time.Time      `json:"cutoff"`
	Deleted map[string]int `json:"deleted"`
}

// Service runs maintenance jobs
type Service struct {
	store  Store
	pruner ReportPruner
	cfg    Config
	logger *monitoring.Logger
	now    func() time.Time
}

// NewService creates a maintenance service
func NewService(store Store, pruner ReportPruner, cfg Config, logger *monitoring.Logger) *Service {
	if cfg.SyncBatchSize <= 0 || cfg.SyncBatchSize > 500 {
		cfg.SyncBatchSize = 500
	}
	if logger == nil {
		logger = monitoring.NewLoggerWithWriter(io.Discard, "error", "json")
	}
	return &Service{store: store, pruner: pruner, cfg: cfg, logger: logger, now: time.Now}
}

// Unsuspend reactivates vendors whose suspension period has ended.
// A vendor that fails is counted and left for the next sweep.
func (s *Service) Unsuspend(ctx context.Context) (SweepResult, error) {
	now := s.now().UTC()

	due, err := s.store.DueSuspensions(ctx, now)
	if err != nil {
		return SweepResult{}, apperrors.NewUpstreamFetchError("vendors", err)
	}

	result := SweepResult{Due: len(due)}
	for _, v := range due {
		if err := s.store.ReactivateVendor(ctx, v, now); err != nil {
			result.Failed++
			s.logger.Error("Failed to reactivate vendor", "vendor_id", v.ID, "error", err)
			continue
		}
		result.Processed++
		s.logger.Info("Vendor reactivated", "vendor_id", v.ID, "vendor_name", v.Name,
			"suspended_until", v.SuspendedUntil)
	}

	monitoring.MaintenanceAffected.WithLabelValues(JobUnsuspend).Add(float64(result.Processed))
	return result, nil
}

// Unban lifts user bans whose period has ended
func (s *Service) Unban(ctx context.Context) (SweepResult, error) {
	now := s.now().UTC()

	due, err := s.store.DueBans(ctx, now)
	if err != nil {
		return SweepResult{}, apperrors.NewUpstreamFetchError("users", err)
	}

	result := SweepResult{Due: len(due)}
	for _, u := range due {
		if err := s.store.UnbanUser(ctx, u, now); err != nil {
			result.Failed++
			s.logger.Error("Failed to unban user", "user_id", u.ID, "error", err)
			continue
		}
		result.Processed++
		s.logger.Info("User unbanned", "user_id", u.ID)
	}

	monitoring.MaintenanceAffected.WithLabelValues(JobUnban).Add(float64(result.Processed))
	return result, nil
}

// SyncCatalog rebuilds the denormalized food item catalog from vendor menus.
// Rows are merged, so items no longer on a menu are left in place.
func (s *Service) SyncCatalog(ctx context.Context) (SyncResult, error) {
	now := s.now().UTC()

	vendors, err := s.store.ListVendors(ctx)
	if err != nil {
		return SyncResult{}, apperrors.NewUpstreamFetchError("vendors", err)
	}

	result := SyncResult{Vendors: len(vendors)}
	for _, vendor := range vendors {
		menus, err := s.store.ListMenus(ctx, vendor.ID)
		if err != nil {
			s.logger.Error("Failed to read menus", "vendor_id", vendor.ID, "error", err)
			result.Errors++
			continue
		}
		result.MenuItems += len(menus)

		batch := make([]types.FoodItem, 0, s.cfg.SyncBatchSize)
		flush := func() {
			if len(batch) == 0 {
				return
			}
			written, failed, err := s.store.UpsertFoodItems(ctx, batch)
			if err != nil {
				s.logger.Error("Failed to write food item batch", "vendor_id", vendor.ID, "size", len(batch), "error", err)
				result.Errors += len(batch)
			} else {
				result.Synced += written
				result.Errors += failed
			}
			batch = batch[:0]
		}

		for _, menu := range menus {
			batch = append(batch, FoodItemFromMenu(vendor, menu, now))
			if len(batch) >= s.cfg.SyncBatchSize {
				flush()
			}
		}
		flush()
	}

	if err := s.store.RefreshFoodItemCounts(ctx); err != nil {
		return result, apperrors.NewPersistenceError("vendors.total_food_items", err)
	}

	monitoring.MaintenanceAffected.WithLabelValues(JobCatalogSync).Add(float64(result.Synced))
	s.logger.Info("Catalog sync finished",
		"vendors", result.Vendors,
		"menu_items", result.MenuItems,
		"synced", result.Synced,
		"errors", result.Errors)
	return result, nil
}

// FoodItemFromMenu denormalizes one menu entry with its vendor's attributes
func FoodItemFromMenu(vendor types.VendorRecord, menu types.MenuEntry, now time.Time) types.FoodItem {
	item := types.FoodItem{
		ID:           fmt.Sprintf("%s_%s", vendor.ID, menu.ID),
		VendorID:     vendor.ID,
		Name:         menu.Name,
		Description:  menu.Description,
		ImageURLs:    []string{},
		Categories:   []string{},
		CuisineType:  vendor.CuisineType,
		Price:        menu.Price,
		SpiceLevel:   defaultSpiceLevel,
		IsHalal:      analysis.HalalValid(vendor, now),
		IsVegetarian: menu.IsVegetarian,
		IsVegan:      menu.IsVegan,
		IsGlutenFree: menu.IsGlutenFree,
		Location:     vendor.Location,
		TotalOrders:  menu.TotalOrders,
		VendorName:   vendor.Name,
		Available:    menu.Available == nil || *menu.Available,
		UpdatedAt:    now,
	}

	if strings.TrimSpace(item.Name) == "" {
		item.Name = defaultItemName
	}
	if item.CuisineType == "" {
		item.CuisineType = defaultCuisine
	}
	if item.VendorName == "" {
		item.VendorName = defaultVendorName
	}
	if item.Location.Country == "" {
		item.Location.Country = defaultCountry
	}
	if menu.SpiceLevel != nil {
		item.SpiceLevel = *menu.SpiceLevel
	}
	if menu.ImageURL != "" {
		item.ImageURLs = []string{menu.ImageURL}
	}
	if menu.Category != "" {
		item.Categories = []string{strings.ToLower(menu.Category)}
	}
	return item
}

// PruneHistory deletes report history older than the retention period from
// every configured collection. The latest documents are kept.
func (s *Service) PruneHistory(ctx context.Context) (RetentionResult, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)
	result := RetentionResult{Cutoff: cutoff, Deleted: make(map[string]int, len(s.cfg.Collections))}

	for _, collection := range s.cfg.Collections {
		n, err := s.pruner.PruneReports(ctx, collection, cutoff)
		if err != nil {
			return result, err
		}
		result.Deleted[collection] = n
		monitoring.MaintenanceAffected.WithLabelValues(JobRetention).Add(float64(n))
	}

	s.logger.Info("Report retention applied", "cutoff", cutoff, "deleted", result.Deleted)
	return result, nil
}

// RetentionInfo describes the retention policy for the API
func (s *Service) RetentionInfo() map[string]interface{} {
	return map[string]interface{}{
		"retention_days": s.cfg.RetentionDays,
		"collections":    s.cfg.Collections,
		"latest_kept":    true,
	}
}
