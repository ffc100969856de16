package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/genjobs/internal/config"
	"github.com/phrazzld/genjobs/internal/events"
	"github.com/phrazzld/genjobs/internal/generation"
	"github.com/phrazzld/genjobs/internal/job"
	"github.com/phrazzld/genjobs/internal/pipelines"
	"github.com/phrazzld/genjobs/internal/platform/gemini"
	"github.com/phrazzld/genjobs/internal/platform/redisbus"
	"github.com/phrazzld/genjobs/internal/platform/sqlstore"
	"github.com/phrazzld/genjobs/internal/service"
	"github.com/phrazzld/genjobs/internal/service/auth"
	"github.com/phrazzld/genjobs/internal/store"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// application holds the shared dependencies of the process and owns their
// shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	redis  *redis.Client

	results     store.ResultStore
	checkpoints store.CheckpointStore
	orphans     job.OrphanPruner

	generator  generation.Generator
	registry   *job.Registry
	executor   *job.Executor
	dispatcher *service.Dispatcher
	tokens     auth.TokenService

	emitter  events.EventEmitter
	runner   *job.Runner
	consumer *redisbus.Consumer
	sweeper  *job.Sweeper
}

// newApplication wires stores, pipelines and the event bus for the
// configured mode.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.results = sqlstore.NewResultStore(db, logger)
	characters := sqlstore.NewCharacterStore(db, logger)

	if cfg.Events.Backend == config.BackendRedis || cfg.Checkpoints.Backend == config.BackendRedis {
		client, err := redisbus.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		app.redis = client
	}

	switch cfg.Checkpoints.Backend {
	case config.BackendRedis:
		app.checkpoints = redisbus.NewCheckpointStore(app.redis, cfg.Checkpoints.TTL)
	default:
		sqlCheckpoints := sqlstore.NewCheckpointStore(db, logger)
		app.checkpoints = sqlCheckpoints
		app.orphans = sqlCheckpoints
	}

	var err error
	app.generator, err = newGenerator(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	app.registry, err = pipelines.NewRegistry(pipelines.Deps{
		Characters: characters,
		Generator:  app.generator,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register pipelines: %w", err)
	}
	logger.Info("pipelines registered", slog.Any("events", app.registry.EventNames()))

	app.executor = job.NewExecutor(app.results, app.checkpoints, app.registry, logger)

	if err := app.setupEventBus(); err != nil {
		return nil, err
	}

	app.dispatcher = service.NewDispatcher(app.results, app.emitter, app.registry, logger)

	if cfg.Auth.JWTSecret != "" {
		app.tokens, err = auth.NewJWTService(cfg.Auth.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize token service: %w", err)
		}
	} else {
		logger.Warn("auth.jwt_secret is empty, the jobs API is unauthenticated")
	}

	if app.runsWorker() {
		app.sweeper = job.NewSweeper(app.results, app.emitter, app.orphans, job.SweeperConfig{
			StaleAge:  cfg.Runner.StaleJobAge,
			Interval:  cfg.Runner.SweepInterval,
			BatchSize: cfg.Runner.SweepBatchSize,
			Retention: cfg.Runner.Retention,
		}, logger)
	}

	logger.Info("application initialized")
	return app, nil
}

// newGenerator returns the Gemini generator, or the local generator when no
// API key is configured.
func newGenerator(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (generation.Generator, error) {
	if cfg.GeminiAPIKey == "" {
		logger.Warn("llm.gemini_api_key is empty, using the local generator")
		return generation.LocalGenerator{}, nil
	}
	g, err := gemini.NewGeminiGenerator(ctx, logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	logger.Info("LLM generator initialized", slog.String("model", cfg.ModelName))
	return g, nil
}

// setupEventBus connects dispatcher and executor. The memory bus hands work
// items to an in-process runner; the Redis bus publishes to a stream read
// by a consumer group.
func (app *application) setupEventBus() error {
	switch app.config.Events.Backend {
	case config.BackendRedis:
		app.emitter = redisbus.NewPublisher(app.redis, app.config.Redis.Stream)
		if app.runsWorker() {
			app.consumer = redisbus.NewConsumer(
				app.redis,
				redisbus.ConsumerConfigFrom(app.config.Redis),
				job.ExecuteHandler(app.executor),
				app.logger)
		}
	case config.BackendMemory:
		app.runner = job.NewRunner(app.executor, job.RunnerConfig{
			WorkerCount: app.config.Runner.WorkerCount,
			QueueSize:   app.config.Runner.QueueSize,
		}, app.logger)
		bus := events.NewInMemoryEventEmitter(app.logger)
		bus.RegisterHandler(app.runner)
		app.emitter = bus
	default:
		return fmt.Errorf("unsupported events backend %q", app.config.Events.Backend)
	}
	return nil
}

func (app *application) runsAPI() bool {
	return app.config.Server.Mode == config.ModeAPI || app.config.Server.Mode == config.ModeAll
}

func (app *application) runsWorker() bool {
	return app.config.Server.Mode == config.ModeWorker || app.config.Server.Mode == config.ModeAll
}

// Run starts every component of the configured mode and blocks until ctx is
// cancelled or one of them fails.
func (app *application) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if app.runner != nil {
		app.runner.Start()
	}

	if app.runsAPI() {
		router := app.setupRouter()
		g.Go(func() error {
			return app.startHTTPServer(gctx, router)
		})
	}

	if app.consumer != nil {
		g.Go(func() error {
			return app.consumer.Run(gctx)
		})
	}

	if app.sweeper != nil {
		g.Go(func() error {
			return app.sweeper.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.runner != nil {
		app.runner.Stop()
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", slog.String("error", err.Error()))
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}

	app.logger.Info("application shutdown completed")
}
