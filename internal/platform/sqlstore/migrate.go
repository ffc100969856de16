package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/lock"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migration directions accepted by Migrate.
const (
	MigrateUp     = "up"
	MigrateDown   = "down"
	MigrateStatus = "status"
	MigrateReset  = "reset"
)

// newProvider builds a goose provider for the driver's dialect and its
// embedded migration set.
func newProvider(db *sql.DB, driver string) (*goose.Provider, error) {
	var (
		dialect goose.Dialect
		dir     string
		opts    []goose.ProviderOption
	)
	switch driver {
	case DriverPostgres:
		dialect, dir = goose.DialectPostgres, "migrations/postgres"
		// Several replicas may migrate on startup; serialize them with an advisory lock.
		locker, err := lock.NewPostgresSessionLocker()
		if err != nil {
			return nil, fmt.Errorf("failed to create migration lock: %w", err)
		}
		opts = append(opts, goose.WithSessionLocker(locker))
	case DriverSQLite:
		dialect, dir = goose.DialectSQLite3, "migrations/sqlite"
	default:
		return nil, fmt.Errorf("no migrations for database driver %q", driver)
	}

	sub, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, sub, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, nil
}

// Migrate applies the embedded migrations in the given direction.
// "up" applies all pending migrations, "down" rolls back the latest one,
// "reset" rolls back all of them and "status" only logs the current state.
func Migrate(ctx context.Context, db *sql.DB, driver, direction string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	provider, err := newProvider(db, driver)
	if err != nil {
		return err
	}

	switch direction {
	case MigrateUp:
		results, err := provider.Up(ctx)
		if err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		for _, r := range results {
			logger.Info("applied migration",
				slog.Int64("version", r.Source.Version),
				slog.String("path", r.Source.Path),
				slog.Duration("duration", r.Duration))
		}
		if len(results) == 0 {
			logger.Info("database schema is up to date")
		}

	case MigrateDown:
		r, err := provider.Down(ctx)
		if err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		logger.Info("rolled back migration",
			slog.Int64("version", r.Source.Version),
			slog.String("path", r.Source.Path))

	case MigrateReset:
		results, err := provider.DownTo(ctx, 0)
		if err != nil {
			return fmt.Errorf("failed to reset migrations: %w", err)
		}
		logger.Info("reset database schema", slog.Int("rolled_back", len(results)))

	case MigrateStatus:
		statuses, err := provider.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to read migration status: %w", err)
		}
		for _, s := range statuses {
			logger.Info("migration status",
				slog.Int64("version", s.Source.Version),
				slog.String("path", s.Source.Path),
				slog.String("state", string(s.State)))
		}

	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}

	return nil
}

// SchemaVersion reports the latest applied migration version.
func SchemaVersion(ctx context.Context, db *sql.DB, driver string) (int64, error) {
	provider, err := newProvider(db, driver)
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}
