package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/types"
)

const vendorColumns = `id, name, description, address, city, state, country, latitude, longitude,
	phone, email, image_urls, opening_hours, cuisine_type, is_halal_certified, halal_cert_expires_at,
	total_orders, total_food_items, approval_status, suspended_until, updated_at`

const itemColumns = `id, vendor_id, name, description, price, image_urls, cuisine_type,
	address, city, state, country, latitude, longitude, total_orders`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVendor(row rowScanner) (types.VendorRecord, error) {
	var (
		v                          types.VendorRecord
		lat, lng                   sql.NullFloat64
		imageURLs, hours           string
		halalExpiry, susp, updated sql.NullTime
	)
	err := row.Scan(&v.ID, &v.Name, &v.Description,
		&v.Location.Address, &v.Location.City, &v.Location.State, &v.Location.Country, &lat, &lng,
		&v.Phone, &v.Email, &imageURLs, &hours, &v.CuisineType, &v.IsHalalCertified, &halalExpiry,
		&v.TotalOrders, &v.TotalFoodItems, &v.ApprovalStatus, &susp, &updated)
	if err != nil {
		return v, err
	}
	v.Location.Latitude = floatPtr(lat)
	v.Location.Longitude = floatPtr(lng)
	v.HalalCertExpiresAt = timePtr(halalExpiry)
	v.SuspendedUntil = timePtr(susp)
	v.UpdatedAt = timePtr(updated)
	if err := decodeJSON(imageURLs, &v.ImageURLs); err != nil {
		return v, fmt.Errorf("failed to decode image urls for vendor %s: %w", v.ID, err)
	}
	if err := decodeJSON(hours, &v.OpeningHours); err != nil {
		return v, fmt.Errorf("failed to decode opening hours for vendor %s: %w", v.ID, err)
	}
	return v, nil
}

func scanItem(row rowScanner) (types.MenuItemRecord, error) {
	var (
		it        types.MenuItemRecord
		lat, lng  sql.NullFloat64
		imageURLs string
	)
	err := row.Scan(&it.ID, &it.VendorID, &it.Name, &it.Description, &it.Price, &imageURLs, &it.CuisineType,
		&it.Location.Address, &it.Location.City, &it.Location.State, &it.Location.Country, &lat, &lng,
		&it.TotalOrders)
	if err != nil {
		return it, err
	}
	it.Location.Latitude = floatPtr(lat)
	it.Location.Longitude = floatPtr(lng)
	if err := decodeJSON(imageURLs, &it.ImageURLs); err != nil {
		return it, fmt.Errorf("failed to decode image urls for item %s: %w", it.ID, err)
	}
	return it, nil
}

// ListVendors returns every vendor listing
func (r *Repository) ListVendors(ctx context.Context) ([]types.VendorRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+vendorColumns+" FROM vendors ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query vendors: %w", err)
	}
	defer rows.Close()

	vendors := make([]types.VendorRecord, 0)
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vendors: %w", err)
	}
	return vendors, nil
}

// VendorsByID resolves the given vendor ids; unknown ids are absent from the result
func (r *Repository) VendorsByID(ctx context.Context, ids []string) (map[string]types.VendorRecord, error) {
	out := make(map[string]types.VendorRecord, len(ids))
	for _, chunk := range chunkIDs(ids, maxInArgs) {
		query := r.db.Rebind("SELECT " + vendorColumns + " FROM vendors WHERE id IN (" + placeholders(len(chunk)) + ")")
		rows, err := r.db.QueryContext(ctx, query, toArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("failed to query vendors by id: %w", err)
		}
		for rows.Next() {
			v, err := scanVendor(rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan vendor: %w", err)
			}
			out[v.ID] = v
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate vendors: %w", err)
		}
	}
	return out, nil
}

// ListCatalogItems returns every food item in the catalog
func (r *Repository) ListCatalogItems(ctx context.Context) ([]types.MenuItemRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+itemColumns+" FROM food_items ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query food items: %w", err)
	}
	defer rows.Close()

	items := make([]types.MenuItemRecord, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan food item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate food items: %w", err)
	}
	return items, nil
}

// ItemsByID resolves the given food item ids; unknown ids are absent from the result
func (r *Repository) ItemsByID(ctx context.Context, ids []string) (map[string]types.MenuItemRecord, error) {
	out := make(map[string]types.MenuItemRecord, len(ids))
	for _, chunk := range chunkIDs(ids, maxInArgs) {
		query := r.db.Rebind("SELECT " + itemColumns + " FROM food_items WHERE id IN (" + placeholders(len(chunk)) + ")")
		rows, err := r.db.QueryContext(ctx, query, toArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("failed to query food items by id: %w", err)
		}
		for rows.Next() {
			it, err := scanItem(rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan food item: %w", err)
			}
			out[it.ID] = it
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate food items: %w", err)
		}
	}
	return out, nil
}

// ListMenus returns the raw menu rows of one vendor
func (r *Repository) ListMenus(ctx context.Context, vendorID string) ([]types.MenuEntry, error) {
	query := r.db.Rebind(`SELECT id, vendor_id, name, description, price, image_url, category, spice_level,
		is_vegetarian, is_vegan, is_gluten_free, total_orders, is_available
		FROM menus WHERE vendor_id = ? ORDER BY id`)
	rows, err := r.db.QueryContext(ctx, query, vendorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query menus: %w", err)
	}
	defer rows.Close()

	menus := make([]types.MenuEntry, 0)
	for rows.Next() {
		var (
			m         types.MenuEntry
			spice     sql.NullFloat64
			available sql.NullBool
		)
		if err := rows.Scan(&m.ID, &m.VendorID, &m.Name, &m.Description, &m.Price, &m.ImageURL, &m.Category,
			&spice, &m.IsVegetarian, &m.IsVegan, &m.IsGlutenFree, &m.TotalOrders, &available); err != nil {
			return nil, fmt.Errorf("failed to scan menu: %w", err)
		}
		m.SpiceLevel = floatPtr(spice)
		if available.Valid {
			a := available.Bool
			m.Available = &a
		}
		menus = append(menus, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate menus: %w", err)
	}
	return menus, nil
}

const upsertFoodItem = `INSERT INTO food_items (id, vendor_id, name, description, image_urls, categories, cuisine_type,
		price, spice_level, is_halal, is_vegetarian, is_vegan, is_gluten_free,
		address, city, state, country, latitude, longitude, total_orders, vendor_name, is_available, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		vendor_id = excluded.vendor_id, name = excluded.name, description = excluded.description,
		image_urls = excluded.image_urls, categories = excluded.categories, cuisine_type = excluded.cuisine_type,
		price = excluded.price, spice_level = excluded.spice_level, is_halal = excluded.is_halal,
		is_vegetarian = excluded.is_vegetarian, is_vegan = excluded.is_vegan, is_gluten_free = excluded.is_gluten_free,
		address = excluded.address, city = excluded.city, state = excluded.state, country = excluded.country,
		latitude = excluded.latitude, longitude = excluded.longitude, total_orders = excluded.total_orders,
		vendor_name = excluded.vendor_name, is_available = excluded.is_available, updated_at = excluded.updated_at`

// UpsertFoodItems merges one batch of food items in a single transaction.
// A row that cannot be encoded is reported in failed and does not abort the batch.
func (r *Repository) UpsertFoodItems(ctx context.Context, items []types.FoodItem) (written int, failed int, err error) {
	if len(items) == 0 {
		return 0, 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := r.db.Rebind(upsertFoodItem)
	for _, it := range items {
		imageURLs, encErr := encodeJSON(it.ImageURLs)
		if encErr != nil {
			failed++
			continue
		}
		categories, encErr := encodeJSON(it.Categories)
		if encErr != nil {
			failed++
			continue
		}
		_, err := tx.ExecContext(ctx, query,
			it.ID, it.VendorID, it.Name, it.Description, imageURLs, categories, it.CuisineType,
			it.Price, it.SpiceLevel, it.IsHalal, it.IsVegetarian, it.IsVegan, it.IsGlutenFree,
			it.Location.Address, it.Location.City, it.Location.State, it.Location.Country,
			nullFloat(it.Location.Latitude), nullFloat(it.Location.Longitude),
			it.TotalOrders, it.VendorName, it.Available, it.UpdatedAt.UTC())
		if err != nil {
			return 0, 0, fmt.Errorf("failed to upsert food item %s: %w", it.ID, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit food items: %w", err)
	}
	return written, failed, nil
}

// RefreshFoodItemCounts recomputes vendors.total_food_items from the catalog
func (r *Repository) RefreshFoodItemCounts(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `UPDATE vendors SET
		total_food_items = (SELECT COUNT(*) FROM food_items WHERE food_items.vendor_id = vendors.id)`)
	if err != nil {
		return fmt.Errorf("failed to refresh food item counts: %w", err)
	}
	return nil
}
