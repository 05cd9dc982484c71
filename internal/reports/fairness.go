package reports

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/analysis"
	apperrors "github.com/ZanzyTHEbar/fairplate-analytics/internal/errors"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/monitoring"
)

// FairnessSummary is returned to manual triggers instead of the full report
type FairnessSummary struct {
	Success              bool    `json:"success"`
	Skipped              bool    `json:"skipped"`
	TotalRecommendations int     `json:"total_recommendations"`
	DiversityScore       float64 `json:"diversity_score"`
	BiasAlertsCount      int     `json:"bias_alerts_count"`
	HistoryID            string  `json:"history_id,omitempty"`
}

func (s FairnessSummary) IsSkipped() bool { return s.Skipped }

// WindowConfig bounds the recommendations a fairness run reads
type WindowConfig struct {
	Days  int
	Limit int
}

// FairnessRunner computes and stores the fairness report
type FairnessRunner struct {
	source     FairnessSource
	store      Store
	cache      Invalidator
	cfg        analysis.FairnessConfig
	window     WindowConfig
	collection string
	logger     *monitoring.Logger
	now        func() time.Time
}

// NewFairnessRunner wires a fairness runner. History documents are keyed by
// the full UTC timestamp, so every run appends.
func NewFairnessRunner(source FairnessSource, store Store, cache Invalidator, cfg analysis.FairnessConfig,
	window WindowConfig, collection string, logger *monitoring.Logger) *FairnessRunner {
	if cache == nil {
		cache = noopInvalidator{}
	}
	if logger == nil {
		logger = monitoring.NewLoggerWithWriter(io.Discard, "error", "json")
	}
	return &FairnessRunner{
		source:     source,
		store:      store,
		cache:      cache,
		cfg:        cfg,
		window:     window,
		collection: collection,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one fairness pass over the trailing window
func (r *FairnessRunner) Run(ctx context.Context) (FairnessSummary, error) {
	now := r.now().UTC()
	start := now.AddDate(0, 0, -r.window.Days)

	window, err := r.source.RecentRecommendations(ctx, start, r.window.Limit)
	if err != nil {
		return FairnessSummary{}, apperrors.NewUpstreamFetchError("recommendations", err)
	}
	if len(window) == 0 {
		r.logger.Info("No recommendations in window, skipping fairness report", "since", start)
		return FairnessSummary{Success: true, Skipped: true}, nil
	}

	itemIDs := make([]string, 0, len(window))
	for _, rec := range window {
		itemIDs = append(itemIDs, rec.ItemID)
	}
	items, err := r.source.ItemsByID(ctx, uniqueSorted(itemIDs))
	if err != nil {
		return FairnessSummary{}, apperrors.NewUpstreamFetchError("food_items", err)
	}

	vendorIDs := make([]string, 0, len(items))
	for _, it := range items {
		if it.VendorID != "" {
			vendorIDs = append(vendorIDs, it.VendorID)
		}
	}
	vendors, err := r.source.VendorsByID(ctx, uniqueSorted(vendorIDs))
	if err != nil {
		return FairnessSummary{}, apperrors.NewUpstreamFetchError("vendors", err)
	}

	report := analysis.ComputeFairnessReport(window, items, vendors, start, now, now, r.cfg)
	if report.ResolvedRecommendations == 0 {
		r.logger.Warn("No recommendation resolved to a catalog item, skipping fairness report",
			"window", len(window))
		return FairnessSummary{Success: true, Skipped: true, TotalRecommendations: len(window)}, nil
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return FairnessSummary{}, apperrors.NewInternalError("failed to encode fairness report", err)
	}

	historyID := now.Format(time.RFC3339)
	if err := r.store.SaveReport(ctx, r.collection, historyID, now, payload); err != nil {
		return FairnessSummary{}, err
	}
	r.cache.InvalidateCollection(r.collection)

	monitoring.FairnessDiversity.Set(report.DiversityScore)
	monitoring.FairnessNDCG.Set(report.NDCGScore)
	monitoring.FairnessBiasAlerts.Reset()
	for _, alert := range report.BiasAlerts {
		monitoring.FairnessBiasAlerts.WithLabelValues(string(alert.Kind)).Inc()
	}
	r.logger.ReportLogger(r.collection, historyID, report.DiversityScore, len(report.BiasAlerts))

	return FairnessSummary{
		Success:              true,
		TotalRecommendations: report.TotalRecommendations,
		DiversityScore:       report.DiversityScore,
		BiasAlertsCount:      len(report.BiasAlerts),
		HistoryID:            historyID,
	}, nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
