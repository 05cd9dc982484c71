package types

import "time"

// Location is a postal address with optional coordinates
type Location struct {
	Address   string   `json:"address"`
	City      string   `json:"city,omitempty"`
	State     string   `json:"state,omitempty"`
	Country   string   `json:"country,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// VendorRecord is a restaurant listing as read from the store
type VendorRecord struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	Location           Location          `json:"location"`
	Phone              string            `json:"phone"`
	Email              string            `json:"email"`
	ImageURLs          []string          `json:"image_urls"`
	OpeningHours       map[string]string `json:"opening_hours"`
	CuisineType        string            `json:"cuisine_type"`
	IsHalalCertified   bool              `json:"is_halal_certified"`
	HalalCertExpiresAt *time.Time        `json:"halal_cert_expires_at,omitempty"`
	TotalOrders        int               `json:"total_orders"`
	TotalFoodItems     int               `json:"total_food_items"`
	ApprovalStatus     string            `json:"approval_status"`
	SuspendedUntil     *time.Time        `json:"suspended_until,omitempty"`
	UpdatedAt          *time.Time        `json:"updated_at,omitempty"`
}

// MenuItemRecord is a catalog (food item) entry belonging to a vendor
type MenuItemRecord struct {
	ID          string   `json:"id"`
	VendorID    string   `json:"vendor_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	ImageURLs   []string `json:"image_urls"`
	CuisineType string   `json:"cuisine_type"`
	Location    Location `json:"location"`
	TotalOrders int      `json:"total_orders"`
}

// RecommendationLogEntry is one emitted recommendation
type RecommendationLogEntry struct {
	ID          string    `json:"id"`
	ItemID      string    `json:"item_id"`
	UserID      string    `json:"user_id"`
	Score       *float64  `json:"score,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// MenuEntry is a raw vendor menu row that the catalog sync turns into a food item
type MenuEntry struct {
	ID           string   `json:"id"`
	VendorID     string   `json:"vendor_id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Price        float64  `json:"price"`
	ImageURL     string   `json:"image_url"`
	Category     string   `json:"category"`
	SpiceLevel   *float64 `json:"spice_level,omitempty"`
	IsVegetarian bool     `json:"is_vegetarian"`
	IsVegan      bool     `json:"is_vegan"`
	IsGlutenFree bool     `json:"is_gluten_free"`
	TotalOrders  int      `json:"total_orders"`
	Available    *bool    `json:"available,omitempty"`
}

// FoodItem is the denormalized catalog document the recommender reads
type FoodItem struct {
	ID           string    `json:"id"`
	VendorID     string    `json:"vendor_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	ImageURLs    []string  `json:"image_urls"`
	Categories   []string  `json:"categories"`
	CuisineType  string    `json:"cuisine_type"`
	Price        float64   `json:"price"`
	SpiceLevel   float64   `json:"spice_level"`
	IsHalal      bool      `json:"is_halal"`
	IsVegetarian bool      `json:"is_vegetarian"`
	IsVegan      bool      `json:"is_vegan"`
	IsGlutenFree bool      `json:"is_gluten_free"`
	Location     Location  `json:"location"`
	TotalOrders  int       `json:"total_orders"`
	VendorName   string    `json:"vendor_name"`
	Available    bool      `json:"available"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SuspendedVendor is a vendor due for reactivation
type SuspendedVendor struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	SuspendedUntil time.Time `json:"suspended_until"`
}

// BannedUser is a user due for unbanning
type BannedUser struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	BannedUntil time.Time `json:"banned_until"`
}

// Announcement is an admin broadcast waiting for push delivery
type Announcement struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	Priority       string     `json:"priority"`
	TargetAudience string     `json:"target_audience"`
	IsActive       bool       `json:"is_active"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// AuditLog records a system action
type AuditLog struct {
	ID          string            `json:"id"`
	Action      string            `json:"action"`
	EntityType  string            `json:"entity_type"`
	EntityID    string            `json:"entity_id"`
	Reason      string            `json:"reason"`
	PerformedBy string            `json:"performed_by"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// StoredReport is one persisted report document
type StoredReport struct {
	Collection   string    `json:"collection"`
	DocID        string    `json:"doc_id"`
	CalculatedAt time.Time `json:"calculated_at"`
	Payload      []byte    `json:"-"`
}

// ReportRef identifies a history document without its payload
type ReportRef struct {
	DocID        string    `json:"doc_id"`
	CalculatedAt time.Time `json:"calculated_at"`
}
