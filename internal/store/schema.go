package store

import "context"

// Table names.
const (
	TableDocuments = "documents"
	TablePages     = "pages"
	TableBlocks    = "blocks"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT    NOT NULL UNIQUE CHECK (length(trim(name)) > 0),
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pages (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		number      INTEGER NOT NULL CHECK (number >= 0),
		image       BLOB    NOT NULL,
		summary     BLOB    NOT NULL,
		UNIQUE (document_id, number)
	)`,
	`CREATE TABLE IF NOT EXISTS blocks (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		page_id     INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
		bbox_left   INTEGER NOT NULL CHECK (bbox_left >= 0),
		bbox_top    INTEGER NOT NULL CHECK (bbox_top >= 0),
		bbox_width  INTEGER NOT NULL CHECK (bbox_width >= 0),
		bbox_height INTEGER NOT NULL CHECK (bbox_height >= 0),
		conf        INTEGER NOT NULL CHECK (conf BETWEEN 0 AND 100),
		text        TEXT    NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_blocks_page ON blocks(page_id)`,
}

// EnsureSchema creates the tables if they are missing. It is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return storageErr("create schema", err)
		}
	}
	return nil
}
