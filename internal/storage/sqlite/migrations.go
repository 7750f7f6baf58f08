package sqlite

import "database/sql"

// schema sets up the database. Entities are stored as JSON documents keyed by
// kind and owner; unique_key is NULL for kinds without a uniqueness rule, and
// SQLite treats NULLs as distinct in the unique index.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    photo_url TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    owner_key TEXT NOT NULL,
    unique_key TEXT,
    body TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_kind_owner ON entities(kind, owner_key);
CREATE UNIQUE INDEX IF NOT EXISTS idx_entities_unique ON entities(kind, owner_key, unique_key);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
