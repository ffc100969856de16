// Package main implements the genjobs server: the jobs HTTP API, the step
// executor, or both, depending on server.mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/phrazzld/genjobs/internal/config"
	"github.com/phrazzld/genjobs/internal/platform/logger"
	"github.com/phrazzld/genjobs/internal/platform/sqlstore"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default: ./config.yaml if present)")
	migrate := flag.String("migrate", "", "run migrations and exit: up, down, status or reset")
	flag.Parse()

	if err := run(*configPath, *migrate); err != nil {
		log.Fatalf("genjobs: %v", err)
	}
}

func run(configPath, migrate string) error {
	// A .env file is optional; it only matters for local development.
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return fmt.Errorf("load .env file: %w", err)
		}
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(logger.LoggerConfig{Level: cfg.Server.LogLevel, Format: cfg.Server.LogFormat})
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	l.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("mode", cfg.Server.Mode),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("events_backend", cfg.Events.Backend),
		slog.String("checkpoints_backend", cfg.Checkpoints.Backend),
		slog.Bool("auth_enabled", cfg.Auth.JWTSecret != ""))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqlstore.Open(ctx, cfg.Database, l)
	if err != nil {
		return err
	}

	if migrate != "" {
		defer func() { _ = db.Close() }()
		return sqlstore.Migrate(ctx, db, cfg.Database.Driver, migrate, l)
	}

	if cfg.Database.AutoMigrate {
		if err := sqlstore.Migrate(ctx, db, cfg.Database.Driver, sqlstore.MigrateUp, l); err != nil {
			_ = db.Close()
			return err
		}
	}

	app, err := newApplication(ctx, cfg, l, db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.cleanup()

	return app.Run(ctx)
}
