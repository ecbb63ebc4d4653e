package repository

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// sqliteSchema mirrors the MySQL bootstrap schema with SQLite types.
const sqliteSchema = `
CREATE TABLE users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    business_name TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL DEFAULT '',
    credits INTEGER NOT NULL DEFAULT 0,
    package_code TEXT NOT NULL,
    expires_at DATETIME NULL,
    payment_pending INTEGER NOT NULL DEFAULT 0,
    requested_package TEXT NULL,
    version INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
CREATE TABLE generation_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    result_id TEXT NOT NULL,
    business_type TEXT NOT NULL,
    scene_style TEXT NOT NULL,
    quality TEXT NOT NULL,
    prompt TEXT NOT NULL,
    created_at DATETIME NOT NULL
);
CREATE TABLE purchase_requests (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    package_code TEXT NOT NULL,
    event TEXT NOT NULL,
    created_at DATETIME NOT NULL
);
`

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)
	return db
}
