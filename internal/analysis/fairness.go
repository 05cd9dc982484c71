package analysis

import (
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/types"
)

const (
	unknownCuisine = "unknown"
	unknownRegion  = "Unknown"
)

// ComputeFairnessReport measures how a window of recommendations is spread
// across cuisines, regions and vendor sizes, and how well it was ranked.
// Entries whose item does not resolve are left out of every distribution;
// ranking quality is measured over the whole window in the order given.
func ComputeFairnessReport(
	window []types.RecommendationLogEntry,
	items map[string]types.MenuItemRecord,
	vendors map[string]types.VendorRecord,
	startDate, endDate, now time.Time,
	cfg FairnessConfig,
) FairnessReport {
	cuisines := newCounter()
	regions := newCounter()
	small, large := 0, 0

	for _, rec := range window {
		item, ok := items[rec.ItemID]
		if !ok {
			continue
		}

		cuisine := item.CuisineType
		if cuisine == "" {
			cuisine = unknownCuisine
		}
		cuisines.Add(cuisine)

		region := item.Location.State
		if region == "" {
			region = unknownRegion
		}
		regions.Add(region)

		vendor, ok := vendors[item.VendorID]
		if !ok {
			continue
		}
		if isSmallVendor(vendor, cfg) {
			small++
		} else {
			large++
		}
	}

	cuisineDist := cuisines.Distribution()
	regionDist := regions.Distribution()
	diversity := NormalizedEntropy(cuisineDist)

	report := FairnessReport{
		CuisineDistribution:     cuisineDist,
		RegionDistribution:      regionDist,
		SmallVendorVisibility:   percentage(small, small+large),
		LargeVendorVisibility:   percentage(large, small+large),
		DiversityScore:          diversity,
		NDCGScore:               NDCG(windowGains(window, cfg.DefaultScore)),
		TotalRecommendations:    len(window),
		ResolvedRecommendations: cuisines.total,
		CalculatedAt:            now,
	}
	report.AnalysisStartDate, report.AnalysisEndDate = windowBounds(window, startDate, endDate)

	alerts := make([]BiasAlert, 0)
	alerts = append(alerts, cuisineAlerts(cuisineDist, now, cfg)...)
	if small+large > 0 {
		if a, ok := vendorSizeAlert(report.SmallVendorVisibility, now, cfg); ok {
			alerts = append(alerts, a)
		}
	}
	alerts = append(alerts, regionAlerts(regionDist, now, cfg)...)
	if report.ResolvedRecommendations > 0 {
		if a, ok := diversityAlert(diversity, now, cfg); ok {
			alerts = append(alerts, a)
		}
	}
	report.BiasAlerts = alerts

	return report
}

func isSmallVendor(v types.VendorRecord, cfg FairnessConfig) bool {
	if cfg.VendorSizeProxy == ProxyItems {
		return v.TotalFoodItems < cfg.SmallVendorItemThreshold
	}
	return v.TotalOrders < cfg.SmallVendorThreshold
}

func windowGains(window []types.RecommendationLogEntry, fallback float64) []float64 {
	gains := make([]float64, len(window))
	for i, rec := range window {
		if rec.Score != nil {
			gains[i] = *rec.Score
		} else {
			gains[i] = fallback
		}
	}
	return gains
}

// windowBounds returns the earliest and latest generation times in the window,
// falling back to the requested range when no entry carries a timestamp
func windowBounds(window []types.RecommendationLogEntry, start, end time.Time) (time.Time, time.Time) {
	var lo, hi time.Time
	for _, rec := range window {
		if rec.GeneratedAt.IsZero() {
			continue
		}
		if lo.IsZero() || rec.GeneratedAt.Before(lo) {
			lo = rec.GeneratedAt
		}
		if hi.IsZero() || rec.GeneratedAt.After(hi) {
			hi = rec.GeneratedAt
		}
	}
	if lo.IsZero() {
		return start, end
	}
	return lo, hi
}

func cuisineAlerts(dist map[string]float64, now time.Time, cfg FairnessConfig) []BiasAlert {
	var alerts []BiasAlert
	expected := 100 / float64(len(dist))
	for _, cuisine := range sortedKeys(dist) {
		share := dist[cuisine]
		if share <= cfg.CuisineShareLimit {
			continue
		}
		alerts = append(alerts, BiasAlert{
			Kind: BiasCuisine,
			Description: fmt.Sprintf("%s cuisine represents %.1f%% of recommendations, exceeding the %.0f%% threshold. Expected: %.1f%%",
				cuisine, share, cfg.CuisineShareLimit, expected),
			Severity:       scaledSeverity(share-cfg.CuisineShareLimit, cfg.CuisineShareSevere-cfg.CuisineShareLimit),
			AffectedMetric: cuisine,
			ExpectedValue:  expected,
			ActualValue:    share,
			DetectedAt:     now,
		})
	}
	return alerts
}

func vendorSizeAlert(smallShare float64, now time.Time, cfg FairnessConfig) (BiasAlert, bool) {
	if smallShare >= cfg.SmallVendorMinimum {
		return BiasAlert{}, false
	}
	return BiasAlert{
		Kind: BiasVendorSize,
		Description: fmt.Sprintf("Small vendors only represent %.1f%% of recommendations. Expected at least %.0f%% for fair representation.",
			smallShare, cfg.SmallVendorMinimum),
		Severity:       scaledSeverity(cfg.SmallVendorMinimum-smallShare, cfg.SmallVendorMinimum-cfg.SmallVendorSevere),
		AffectedMetric: "Small Vendors",
		ExpectedValue:  cfg.SmallVendorMinimum,
		ActualValue:    smallShare,
		DetectedAt:     now,
	}, true
}

func regionAlerts(dist map[string]float64, now time.Time, cfg FairnessConfig) []BiasAlert {
	var alerts []BiasAlert
	expected := 100 / float64(len(dist))
	for _, region := range sortedKeys(dist) {
		share := dist[region]
		if share <= cfg.RegionShareLimit {
			continue
		}
		alerts = append(alerts, BiasAlert{
			Kind: BiasRegion,
			Description: fmt.Sprintf("%s region represents %.1f%% of recommendations, exceeding the %.0f%% threshold",
				region, share, cfg.RegionShareLimit),
			Severity:       scaledSeverity(share-cfg.RegionShareLimit, cfg.RegionShareSevere-cfg.RegionShareLimit),
			AffectedMetric: region,
			ExpectedValue:  expected,
			ActualValue:    share,
			DetectedAt:     now,
		})
	}
	return alerts
}

func diversityAlert(diversity float64, now time.Time, cfg FairnessConfig) (BiasAlert, bool) {
	if diversity >= cfg.DiversityMinimum {
		return BiasAlert{}, false
	}
	return BiasAlert{
		Kind:           BiasDiversity,
		Description:    fmt.Sprintf("Diversity score is %.2f, indicating low diversity in recommendations.", diversity),
		Severity:       scaledSeverity(cfg.DiversityMinimum-diversity, cfg.DiversityMinimum),
		AffectedMetric: "Diversity",
		ExpectedValue:  cfg.DiversityExpected,
		ActualValue:    diversity,
		DetectedAt:     now,
	}, true
}
