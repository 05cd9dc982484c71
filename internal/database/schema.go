package database

// schema is written in the subset of SQL shared by SQLite and PostgreSQL.
// JSON columns are stored as TEXT.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS vendors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		image_urls TEXT NOT NULL DEFAULT '[]',
		opening_hours TEXT NOT NULL DEFAULT '{}',
		cuisine_type TEXT NOT NULL DEFAULT '',
		is_halal_certified BOOLEAN NOT NULL DEFAULT FALSE,
		halal_cert_expires_at TIMESTAMP,
		total_orders INTEGER NOT NULL DEFAULT 0,
		total_food_items INTEGER NOT NULL DEFAULT 0,
		approval_status TEXT NOT NULL DEFAULT 'pending',
		suspended_until TIMESTAMP,
		suspension_reason TEXT,
		suspended_by TEXT,
		updated_at TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS menus (
		id TEXT NOT NULL,
		vendor_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		price DOUBLE PRECISION NOT NULL DEFAULT 0,
		image_url TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		spice_level DOUBLE PRECISION,
		is_vegetarian BOOLEAN NOT NULL DEFAULT FALSE,
		is_vegan BOOLEAN NOT NULL DEFAULT FALSE,
		is_gluten_free BOOLEAN NOT NULL DEFAULT FALSE,
		total_orders INTEGER NOT NULL DEFAULT 0,
		is_available BOOLEAN,
		PRIMARY KEY (vendor_id, id)
	)`,

	`CREATE TABLE IF NOT EXISTS food_items (
		id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		image_urls TEXT NOT NULL DEFAULT '[]',
		categories TEXT NOT NULL DEFAULT '[]',
		cuisine_type TEXT NOT NULL DEFAULT '',
		price DOUBLE PRECISION NOT NULL DEFAULT 0,
		spice_level DOUBLE PRECISION NOT NULL DEFAULT 0.5,
		is_halal BOOLEAN NOT NULL DEFAULT FALSE,
		is_vegetarian BOOLEAN NOT NULL DEFAULT FALSE,
		is_vegan BOOLEAN NOT NULL DEFAULT FALSE,
		is_gluten_free BOOLEAN NOT NULL DEFAULT FALSE,
		address TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		total_orders INTEGER NOT NULL DEFAULT 0,
		vendor_name TEXT NOT NULL DEFAULT '',
		is_available BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS recommendations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		item_id TEXT NOT NULL,
		score DOUBLE PRECISION,
		generated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		is_banned BOOLEAN NOT NULL DEFAULT FALSE,
		banned_until TIMESTAMP,
		ban_reason TEXT,
		unbanned_at TIMESTAMP,
		unbanned_by TEXT,
		unban_reason TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS announcements (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL DEFAULT '',
		target_audience TEXT NOT NULL DEFAULT 'all',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		expires_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		notified_at TIMESTAMP,
		notification_outcome TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		performed_by TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS reports (
		collection TEXT NOT NULL,
		doc_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		calculated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (collection, doc_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_food_items_vendor ON food_items(vendor_id)`,
	`CREATE INDEX IF NOT EXISTS idx_recommendations_generated ON recommendations(generated_at)`,
	`CREATE INDEX IF NOT EXISTS idx_vendors_suspension ON vendors(approval_status, suspended_until)`,
	`CREATE INDEX IF NOT EXISTS idx_users_ban ON users(is_banned, banned_until)`,
	`CREATE INDEX IF NOT EXISTS idx_announcements_pending ON announcements(notified_at)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs(entity_type, entity_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_calculated ON reports(collection, calculated_at)`,
}
