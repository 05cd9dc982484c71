// Package reports runs the data quality and fairness scorers against the
// catalog store and persists their output as latest and history documents.
package reports

import (
	"context"
	"time"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/types"
)

// LatestDocID names the document overwritten on every run
const LatestDocID = "latest"

// Store persists report documents. Both the SQL repository and the badger
// archive implement it.
type Store interface {
	SaveReport(ctx context.Context, collection, historyID string, calculatedAt time.Time, payload []byte) error
	GetReport(ctx context.Context, collection, docID string) (*types.StoredReport, error)
	ListReports(ctx context.Context, collection string, limit int) ([]types.ReportRef, error)
	PruneReports(ctx context.Context, collection string, olderThan time.Time) (int, error)
	Ping(ctx context.Context) error
}

// QualitySource reads the inputs of a data quality run
type QualitySource interface {
	ListVendors(ctx context.Context) ([]types.VendorRecord, error)
	ListCatalogItems(ctx context.Context) ([]types.MenuItemRecord, error)
}

// FairnessSource reads the inputs of a fairness run
type FairnessSource interface {
	RecentRecommendations(ctx context.Context, since time.Time, limit int) ([]types.RecommendationLogEntry, error)
	ItemsByID(ctx context.Context, ids []string) (map[string]types.MenuItemRecord, error)
	VendorsByID(ctx context.Context, ids []string) (map[string]types.VendorRecord, error)
}

// Invalidator drops cached documents after a collection changes
type Invalidator interface {
	InvalidateCollection(collection string) int
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateCollection(string) int { return 0 }
