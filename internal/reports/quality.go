package reports

import (
	"context"
	"io"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/analysis"
	apperrors "github.com/ZanzyTHEbar/fairplate-analytics/internal/errors"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/monitoring"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/types"
)

// QualitySummary is returned to manual triggers instead of the full report
type QualitySummary struct {
	Success             bool    `json:"success"`
	Skipped             bool    `json:"skipped"`
	TotalVendors        int     `json:"total_vendors"`
	OverallQualityScore float64 `json:"overall_quality_score"`
	CriticalIssuesCount int     `json:"critical_issues_count"`
	HistoryID           string  `json:"history_id,omitempty"`
}

func (s QualitySummary) IsSkipped() bool { return s.Skipped }

// QualityRunner computes and stores the daily data quality report
type QualityRunner struct {
	source     QualitySource
	store      Store
	cache      Invalidator
	cfg        analysis.QualityConfig
	collection string
	loc        *time.Location
	logger     *monitoring.Logger
	now        func() time.Time
}

// NewQualityRunner wires a quality runner. History documents are keyed by
// the calendar date in loc, so a same-day rerun overwrites that day's slot.
func NewQualityRunner(source QualitySource, store Store, cache Invalidator, cfg analysis.QualityConfig,
	collection string, loc *time.Location, logger *monitoring.Logger) *QualityRunner {
	if cache == nil {
		cache = noopInvalidator{}
	}
	if logger == nil {
		logger = monitoring.NewLoggerWithWriter(io.Discard, "error", "json")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &QualityRunner{
		source:     source,
		store:      store,
		cache:      cache,
		cfg:        cfg,
		collection: collection,
		loc:        loc,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one quality pass
func (r *QualityRunner) Run(ctx context.Context) (QualitySummary, error) {
	now := r.now().UTC()

	var (
		vendors []types.VendorRecord
		items   []types.MenuItemRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vendors, err = r.source.ListVendors(gctx)
		if err != nil {
			return apperrors.NewUpstreamFetchError("vendors", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		items, err = r.source.ListCatalogItems(gctx)
		if err != nil {
			return apperrors.NewUpstreamFetchError("food_items", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return QualitySummary{}, err
	}

	if len(vendors) == 0 {
		r.logger.Info("No vendors to analyse, skipping quality report")
		return QualitySummary{Success: true, Skipped: true}, nil
	}

	report := analysis.ComputeQualityReport(vendors, items, now, r.cfg)

	payload, err := json.Marshal(report)
	if err != nil {
		return QualitySummary{}, apperrors.NewInternalError("failed to encode quality report", err)
	}

	historyID := now.In(r.loc).Format("2006-01-02")
	if err := r.store.SaveReport(ctx, r.collection, historyID, now, payload); err != nil {
		return QualitySummary{}, err
	}
	r.cache.InvalidateCollection(r.collection)

	monitoring.QualityScore.Set(report.OverallQualityScore)
	monitoring.QualityCriticalIssues.Set(float64(len(report.CriticalIssues)))
	r.logger.ReportLogger(r.collection, historyID, report.OverallQualityScore, len(report.CriticalIssues))

	return QualitySummary{
		Success:             true,
		TotalVendors:        report.TotalVendors,
		OverallQualityScore: report.OverallQualityScore,
		CriticalIssuesCount: len(report.CriticalIssues),
		HistoryID:           historyID,
	}, nil
}
