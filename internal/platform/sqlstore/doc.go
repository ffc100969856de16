// Package sqlstore provides database/sql implementations for the storage
// interfaces defined in the internal/store package. It runs against
// PostgreSQL (pgx driver) in production and SQLite (go-sqlite3) for local
// development and tests. Queries are written once for both dialects: they use
// $N placeholders in order of first appearance and ON CONFLICT upserts, which
// both engines accept.
//
// The schema is managed with goose; the embedded migrations are applied by
// Migrate.
package sqlstore
