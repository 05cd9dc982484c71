package analysis

import "time"

// Severity is the label attached to a data quality issue
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// IssueKind identifies what is wrong with a vendor listing
type IssueKind string

const (
	IssueDuplicateListing IssueKind = "duplicate_listing"
	IssueIncompleteMenu   IssueKind = "incomplete_menu"
	IssueMissingHalalCert IssueKind = "missing_halal_cert"
	IssueStaleData        IssueKind = "stale_data"
	IssueInvalidLocation  IssueKind = "invalid_location"
)

// Issue is a single data quality finding for one vendor
type Issue struct {
	Kind         IssueKind `json:"issue_type"`
	Severity     Severity  `json:"severity"`
	Description  string    `json:"description"`
	VendorID     string    `json:"vendor_id"`
	VendorName   string    `json:"vendor_name"`
	DaysStale    *int      `json:"days_stale,omitempty"`
	Completeness *float64  `json:"completeness,omitempty"`
}

// QualityReport is the output of one data quality run
type QualityReport struct {
	OverallQualityScore float64 `json:"overall_quality_score"`
	MenuCompleteness    float64 `json:"menu_completeness"`
	HalalCoverage       float64 `json:"halal_coverage"`
	Staleness           float64 `json:"staleness"`
	LocationAccuracy    float64 `json:"location_accuracy"`

	TotalVendors               int `json:"total_vendors"`
	VendorsWithCompleteMenus   int `json:"vendors_with_complete_menus"`
	VendorsWithValidHalalCerts int `json:"vendors_with_valid_halal_certs"`
	VendorsStaleData           int `json:"vendors_stale_data"`
	VendorsWithValidLocation   int `json:"vendors_with_valid_location"`
	DuplicateListings          int `json:"duplicate_listings"`
	TotalFoodItems             int `json:"total_food_items"`

	CriticalIssues          []Issue  `json:"critical_issues"`
	StaleVendorIDs          []string `json:"stale_vendor_ids"`
	ExpiredCertVendorIDs    []string `json:"expired_cert_vendor_ids"`
	IncompleteMenuVendorIDs []string `json:"incomplete_menu_vendor_ids"`
	DuplicateVendorIDs      []string `json:"duplicate_vendor_ids"`

	CalculatedAt time.Time `json:"calculated_at"`
}

// QualityConfig holds the thresholds used by the data quality scorer
type QualityConfig struct {
	MinItems              int     `json:"min_items" koanf:"min_items" validate:"gte=0"`
	ItemCompletenessRatio float64 `json:"item_completeness_ratio" koanf:"item_completeness_ratio" validate:"gte=0,lte=1"`
	CompleteMenuPercent   float64 `json:"complete_menu_percent" koanf:"complete_menu_percent" validate:"gte=0,lte=100"`
	CriticalMenuPercent   float64 `json:"critical_menu_percent" koanf:"critical_menu_percent" validate:"gte=0,ltefield=CompleteMenuPercent"`
	StaleAfterDays        float64 `json:"stale_after_days" koanf:"stale_after_days" validate:"gt=0"`
	CriticalStaleDays     float64 `json:"critical_stale_days" koanf:"critical_stale_days" validate:"gtefield=StaleAfterDays"`
	MaxIssues             int     `json:"max_issues" koanf:"max_issues" validate:"gt=0"`
	MaxIDsPerList         int     `json:"max_ids_per_list" koanf:"max_ids_per_list" validate:"gt=0"`
}

// DefaultQualityConfig returns the production thresholds
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		MinItems:              10,
		ItemCompletenessRatio: 0.7,
		CompleteMenuPercent:   70,
		CriticalMenuPercent:   50,
		StaleAfterDays:        30,
		CriticalStaleDays:     90,
		MaxIssues:             50,
		MaxIDsPerList:         100,
	}
}

// BiasKind identifies the distribution a bias alert was raised on
type BiasKind string

const (
	BiasCuisine    BiasKind = "cuisine"
	BiasVendorSize BiasKind = "vendor_size"
	BiasRegion     BiasKind = "region"
	BiasDiversity  BiasKind = "diversity"
)

// BiasAlert flags a distribution that drifted past its fairness threshold.
// Severity is continuous in [0,1].
type BiasAlert struct {
	Kind           BiasKind  `json:"type"`
	Description    string    `json:"description"`
	Severity       float64   `json:"severity"`
	AffectedMetric string    `json:"affected_metric"`
	ExpectedValue  float64   `json:"expected_value"`
	ActualValue    float64   `json:"actual_value"`
	DetectedAt     time.Time `json:"detected_at"`
}

// FairnessReport is the output of one recommendation fairness run.
// Distribution and visibility values are percentages of resolved recommendations.
type FairnessReport struct {
	CuisineDistribution     map[string]float64 `json:"cuisine_distribution"`
	RegionDistribution      map[string]float64 `json:"region_distribution"`
	SmallVendorVisibility   float64            `json:"small_vendor_visibility"`
	LargeVendorVisibility   float64            `json:"large_vendor_visibility"`
	DiversityScore          float64            `json:"diversity_score"`
	NDCGScore               float64            `json:"ndcg_score"`
	BiasAlerts              []BiasAlert        `json:"bias_alerts"`
	TotalRecommendations    int                `json:"total_recommendations"`
	ResolvedRecommendations int                `json:"resolved_recommendations"`
	AnalysisStartDate       time.Time          `json:"analysis_start_date"`
	AnalysisEndDate         time.Time          `json:"analysis_end_date"`
	CalculatedAt            time.Time          `json:"calculated_at"`
}

// VendorSizeProxy selects which vendor counter decides small vs large
type VendorSizeProxy string

const (
	ProxyOrders VendorSizeProxy = "orders"
	ProxyItems  VendorSizeProxy = "items"
)

// FairnessConfig holds the thresholds used by the fairness scorer
type FairnessConfig struct {
	// SmallVendorThreshold applies to total orders, SmallVendorItemThreshold to catalog size
	VendorSizeProxy          VendorSizeProxy `json:"vendor_size_proxy" koanf:"vendor_size_proxy" validate:"oneof=orders items"`
	SmallVendorThreshold     int             `json:"small_vendor_threshold" koanf:"small_vendor_threshold" validate:"gt=0"`
	SmallVendorItemThreshold int             `json:"small_vendor_item_threshold" koanf:"small_vendor_item_threshold" validate:"gt=0"`
	DefaultScore             float64         `json:"default_score" koanf:"default_score" validate:"gte=0"`

	CuisineShareLimit  float64 `json:"cuisine_share_limit" koanf:"cuisine_share_limit" validate:"gte=0,lte=100"`
	CuisineShareSevere float64 `json:"cuisine_share_severe" koanf:"cuisine_share_severe"`
	RegionShareLimit   float64 `json:"region_share_limit" koanf:"region_share_limit" validate:"gte=0,lte=100"`
	RegionShareSevere  float64 `json:"region_share_severe" koanf:"region_share_severe"`
	SmallVendorMinimum float64 `json:"small_vendor_minimum" koanf:"small_vendor_minimum"`
	SmallVendorSevere  float64 `json:"small_vendor_severe" koanf:"small_vendor_severe"`
	DiversityMinimum   float64 `json:"diversity_minimum" koanf:"diversity_minimum"`
	DiversityExpected  float64 `json:"diversity_expected" koanf:"diversity_expected"`
}

// DefaultFairnessConfig returns the production thresholds
func DefaultFairnessConfig() FairnessConfig {
	return FairnessConfig{
		VendorSizeProxy:          ProxyOrders,
		SmallVendorThreshold:     1000,
		SmallVendorItemThreshold: 10,
		DefaultScore:             0.5,
		CuisineShareLimit:        40,
		CuisineShareSevere:       70,
		RegionShareLimit:         50,
		RegionShareSevere:        70,
		SmallVendorMinimum:       20,
		SmallVendorSevere:        10,
		DiversityMinimum:         0.5,
		DiversityExpected:        0.7,
	}
}
