package sqlite

// schema повторяет миграции PostgreSQL в диалекте SQLite.
// Время хранится в DATETIME, набор изображений заявки — JSON-массивом.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		email         TEXT     NOT NULL UNIQUE,
		password_hash TEXT     NOT NULL,
		role          TEXT     NOT NULL DEFAULT 'client' CHECK (role IN ('client', 'admin', 'super')),
		created_at    DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS galleries (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT     NOT NULL,
		description TEXT     NOT NULL DEFAULT '',
		created_at  DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS images (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		gallery_id       INTEGER  NOT NULL REFERENCES galleries(id),
		original_key     TEXT     NOT NULL,
		preview_key      TEXT     NOT NULL,
		watermark_failed BOOLEAN  NOT NULL DEFAULT 0,
		uploaded_at      DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_images_gallery ON images(gallery_id)`,
	`CREATE TABLE IF NOT EXISTS gallery_requests (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id   INTEGER  NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		status      TEXT     NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
		created_at  DATETIME NOT NULL,
		resolved_at DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_gallery_requests_pending
		ON gallery_requests(client_id) WHERE status = 'pending'`,
	`CREATE TABLE IF NOT EXISTS client_galleries (
		client_id   INTEGER  NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		gallery_id  INTEGER  NOT NULL REFERENCES galleries(id) ON DELETE CASCADE,
		assigned_at DATETIME NOT NULL,
		PRIMARY KEY (client_id, gallery_id)
	)`,
	`CREATE TABLE IF NOT EXISTS favorites (
		client_id  INTEGER  NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		image_id   INTEGER  NOT NULL REFERENCES images(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (client_id, image_id)
	)`,
	`CREATE TABLE IF NOT EXISTS selections (
		client_id  INTEGER  NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		image_id   INTEGER  NOT NULL REFERENCES images(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (client_id, image_id)
	)`,
	`CREATE TABLE IF NOT EXISTS highres_requests (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id  INTEGER  NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		image_ids  TEXT     NOT NULL,
		status     TEXT     NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'paid', 'delivered')),
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_highres_requests_client ON highres_requests(client_id)`,
	`CREATE TABLE IF NOT EXISTS approved_downloads (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id   INTEGER  NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		image_id    INTEGER  NOT NULL REFERENCES images(id) ON DELETE CASCADE,
		request_id  INTEGER  NOT NULL REFERENCES highres_requests(id) ON DELETE CASCADE,
		approved_at DATETIME NOT NULL,
		UNIQUE (client_id, image_id)
	)`,
}
