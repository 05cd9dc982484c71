package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/types"
)

// qualityTally accumulates per-vendor findings during a single pass
type qualityTally struct {
	completeMenus int
	validHalal    int
	stale         int
	validLocation int
	duplicates    int

	issues        []Issue
	staleIDs      []string
	certIDs       []string
	incompleteIDs []string
	duplicateIDs  []string

	locationFlagged map[string]struct{}
}

// ComputeQualityReport scores vendor listings for completeness, halal coverage,
// staleness, location accuracy and duplicates. It performs no I/O.
func ComputeQualityReport(vendors []types.VendorRecord, items []types.MenuItemRecord, now time.Time, cfg QualityConfig) QualityReport {
	itemsByVendor, totalItems := groupItems(items)

	tally := &qualityTally{locationFlagged: make(map[string]struct{})}
	detectDuplicates(vendors, tally)

	for _, v := range vendors {
		scoreCompleteness(v, itemsByVendor[v.ID], cfg, tally)
		scoreHalal(v, now, tally)
		scoreStaleness(v, now, cfg, tally)
		scoreLocation(v, tally)
	}

	total := len(vendors)
	menu := percentage(tally.completeMenus, total)
	halal := percentage(tally.validHalal, total)
	staleness := percentage(tally.stale, total)
	location := percentage(tally.validLocation, total)
	overall := (menu + halal + (100 - staleness) + location) / 4

	SortIssues(tally.issues)

	return QualityReport{
		OverallQualityScore:        round2(overall),
		MenuCompleteness:           round2(menu),
		HalalCoverage:              round2(halal),
		Staleness:                  round2(staleness),
		LocationAccuracy:           round2(location),
		TotalVendors:               total,
		VendorsWithCompleteMenus:   tally.completeMenus,
		VendorsWithValidHalalCerts: tally.validHalal,
		VendorsStaleData:           tally.stale,
		VendorsWithValidLocation:   tally.validLocation,
		DuplicateListings:          tally.duplicates,
		TotalFoodItems:             totalItems,
		CriticalIssues:             truncateIssues(tally.issues, cfg.MaxIssues),
		StaleVendorIDs:             truncateIDs(tally.staleIDs, cfg.MaxIDsPerList),
		ExpiredCertVendorIDs:       truncateIDs(tally.certIDs, cfg.MaxIDsPerList),
		IncompleteMenuVendorIDs:    truncateIDs(tally.incompleteIDs, cfg.MaxIDsPerList),
		DuplicateVendorIDs:         truncateIDs(tally.duplicateIDs, cfg.MaxIDsPerList),
		CalculatedAt:               now,
	}
}

// SortIssues orders issues by severity rank descending, then description ascending
func SortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		ri, rj := severityRank(issues[i].Severity), severityRank(issues[j].Severity)
		if ri != rj {
			return ri > rj
		}
		return issues[i].Description < issues[j].Description
	})
}

// groupItems joins catalog items to their vendor. Items without a vendor are ignored.
func groupItems(items []types.MenuItemRecord) (map[string][]types.MenuItemRecord, int) {
	grouped := make(map[string][]types.MenuItemRecord)
	total := 0
	for _, it := range items {
		if it.VendorID == "" {
			continue
		}
		grouped[it.VendorID] = append(grouped[it.VendorID], it)
		total++
	}
	return grouped, total
}

type listingKey struct {
	name    string
	address string
}

func duplicateKey(v types.VendorRecord) listingKey {
	return listingKey{
		name:    strings.ToLower(strings.TrimSpace(v.Name)),
		address: strings.ToLower(strings.TrimSpace(v.Location.Address)),
	}
}

// detectDuplicates flags every listing after the first one sharing a name and address
func detectDuplicates(vendors []types.VendorRecord, tally *qualityTally) {
	seen := make(map[listingKey]struct{}, len(vendors))
	for _, v := range vendors {
		key := duplicateKey(v)
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			continue
		}

		tally.duplicates++
		tally.duplicateIDs = append(tally.duplicateIDs, v.ID)
		tally.issues = append(tally.issues, Issue{
			Kind:        IssueDuplicateListing,
			Severity:    SeverityMedium,
			Description: fmt.Sprintf("Duplicate listing: %s at %s", v.Name, v.Location.Address),
			VendorID:    v.ID,
			VendorName:  v.Name,
		})
	}
}

func itemComplete(it types.MenuItemRecord) bool {
	return it.Name != "" && it.Description != "" && it.Price > 0 && len(it.ImageURLs) > 0
}

// menuCompleteness is the share of checklist predicates a vendor satisfies
func menuCompleteness(v types.VendorRecord, items []types.MenuItemRecord, cfg QualityConfig) float64 {
	checks := []bool{
		strings.TrimSpace(v.Name) != "",
		strings.TrimSpace(v.Description) != "",
		strings.TrimSpace(v.Location.Address) != "",
		strings.TrimSpace(v.Phone) != "",
		strings.TrimSpace(v.Email) != "",
		len(v.ImageURLs) > 0,
		len(v.OpeningHours) > 0,
		len(items) >= cfg.MinItems,
	}

	completeItems := 0
	for _, it := range items {
		if itemComplete(it) {
			completeItems++
		}
	}
	ratio := 0.0
	if len(items) > 0 {
		ratio = float64(completeItems) / float64(len(items))
	}
	checks = append(checks, ratio >= cfg.ItemCompletenessRatio)

	satisfied := 0
	for _, ok := range checks {
		if ok {
			satisfied++
		}
	}
	return percentage(satisfied, len(checks))
}

func scoreCompleteness(v types.VendorRecord, items []types.MenuItemRecord, cfg QualityConfig, tally *qualityTally) {
	pct := menuCompleteness(v, items, cfg)
	if pct >= cfg.CompleteMenuPercent {
		tally.completeMenus++
		return
	}

	tally.incompleteIDs = append(tally.incompleteIDs, v.ID)
	if pct < cfg.CriticalMenuPercent {
		completeness := round2(pct)
		tally.issues = append(tally.issues, Issue{
			Kind:         IssueIncompleteMenu,
			Severity:     SeverityHigh,
			Description:  fmt.Sprintf("Menu completeness: %.1f%% (%d items)", pct, len(items)),
			VendorID:     v.ID,
			VendorName:   v.Name,
			Completeness: &completeness,
		})
	}
}

// HalalValid requires the flag and, when an expiry is recorded, an unexpired certificate
func HalalValid(v types.VendorRecord, now time.Time) bool {
	if !v.IsHalalCertified {
		return false
	}
	if v.HalalCertExpiresAt != nil && !v.HalalCertExpiresAt.After(now) {
		return false
	}
	return true
}

func scoreHalal(v types.VendorRecord, now time.Time, tally *qualityTally) {
	if HalalValid(v, now) {
		tally.validHalal++
		return
	}

	tally.certIDs = append(tally.certIDs, v.ID)
	tally.issues = append(tally.issues, Issue{
		Kind:        IssueMissingHalalCert,
		Severity:    SeverityMedium,
		Description: "Missing or invalid halal certification",
		VendorID:    v.ID,
		VendorName:  v.Name,
	})
}

func scoreStaleness(v types.VendorRecord, now time.Time, cfg QualityConfig, tally *qualityTally) {
	if v.UpdatedAt == nil {
		tally.stale++
		tally.staleIDs = append(tally.staleIDs, v.ID)
		tally.issues = append(tally.issues, Issue{
			Kind:        IssueStaleData,
			Severity:    SeverityHigh,
			Description: "Data has no update timestamp",
			VendorID:    v.ID,
			VendorName:  v.Name,
		})
		return
	}

	days := now.Sub(*v.UpdatedAt).Hours() / 24
	if days <= cfg.StaleAfterDays {
		return
	}

	severity := SeverityMedium
	if days > cfg.CriticalStaleDays {
		severity = SeverityHigh
	}
	daysStale := int(math.Floor(days))

	tally.stale++
	tally.staleIDs = append(tally.staleIDs, v.ID)
	tally.issues = append(tally.issues, Issue{
		Kind:        IssueStaleData,
		Severity:    severity,
		Description: fmt.Sprintf("Data not updated for %d days", daysStale),
		VendorID:    v.ID,
		VendorName:  v.Name,
		DaysStale:   &daysStale,
	})
}

func locationValid(loc types.Location) bool {
	if loc.Latitude == nil || loc.Longitude == nil {
		return false
	}
	lat, lng := *loc.Latitude, *loc.Longitude
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat != 0 && lng != 0
}

func scoreLocation(v types.VendorRecord, tally *qualityTally) {
	if locationValid(v.Location) {
		tally.validLocation++
		return
	}

	if _, flagged := tally.locationFlagged[v.ID]; flagged {
		return
	}
	tally.locationFlagged[v.ID] = struct{}{}
	tally.issues = append(tally.issues, Issue{
		Kind:        IssueInvalidLocation,
		Severity:    SeverityMedium,
		Description: "Invalid or missing location coordinates",
		VendorID:    v.ID,
		VendorName:  v.Name,
	})
}

func truncateIssues(issues []Issue, limit int) []Issue {
	if issues == nil {
		return []Issue{}
	}
	if limit > 0 && len(issues) > limit {
		return issues[:limit]
	}
	return issues
}

func truncateIDs(ids []string, limit int) []string {
	if ids == nil {
		return []string{}
	}
	if limit > 0 && len(ids) > limit {
		return ids[:limit]
	}
	return ids
}
