package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/platform/sqlstore"
	"github.com/stretchr/testify/require"
)

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 5 * time.Second

// DatabaseURLEnv names the variable holding the PostgreSQL test database URL.
const DatabaseURLEnv = "GENJOBS_TEST_DATABASE_URL"

// GetTestDatabaseURL returns the PostgreSQL URL for integration tests, or an
// empty string when none is configured.
func GetTestDatabaseURL() string {
	return strings.TrimSpace(os.Getenv(DatabaseURLEnv))
}

// Drivers lists the database drivers tests should run against: SQLite
// always, PostgreSQL when a test database is configured.
func Drivers() []string {
	drivers := []string{sqlstore.DriverSQLite}
	if GetTestDatabaseURL() != "" {
		drivers = append(drivers, sqlstore.DriverPostgres)
	}
	return drivers
}

// Open returns a migrated database for the given driver.
func Open(t *testing.T, driver string) *sql.DB {
	t.Helper()

	switch driver {
	case sqlstore.DriverSQLite:
		return OpenSQLite(t)
	case sqlstore.DriverPostgres:
		return OpenPostgres(t)
	default:
		t.Fatalf("unsupported test database driver %q", driver)
		return nil
	}
}

// OpenSQLite returns a private in-memory SQLite database with the schema applied.
func OpenSQLite(t *testing.T) *sql.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString())

	db, err := sql.Open(sqlstore.DriverSQLite, dsn)
	require.NoError(t, err, "Failed to open sqlite database")

	// The in-memory database lives as long as its one connection does.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	migrate(t, db, sqlstore.DriverSQLite)

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// OpenPostgres returns a connection to the PostgreSQL test database with the
// schema applied. It skips the test when GENJOBS_TEST_DATABASE_URL is unset.
func OpenPostgres(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skip(DatabaseURLEnv + " not set - skipping integration test")
	}

	db, err := sql.Open(sqlstore.DriverPostgres, dbURL)
	require.NoError(t, err, "Failed to open database connection")

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "Database ping failed")

	migrate(t, db, sqlstore.DriverPostgres)

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func migrate(t *testing.T, db *sql.DB, driver string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := sqlstore.Migrate(ctx, db, driver, sqlstore.MigrateUp, quiet)
	require.NoError(t, err, "Failed to run migrations")
}
