package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/nyralabs/contact-pipeline/internal/agents"
	httptransport "github.com/nyralabs/contact-pipeline/internal/api/http"
	"github.com/nyralabs/contact-pipeline/internal/api/http/handlers"
	"github.com/nyralabs/contact-pipeline/internal/auth"
	"github.com/nyralabs/contact-pipeline/internal/config"
	"github.com/nyralabs/contact-pipeline/internal/downstream"
	"github.com/nyralabs/contact-pipeline/internal/observability"
	"github.com/nyralabs/contact-pipeline/internal/persistence"
	"github.com/nyralabs/contact-pipeline/internal/pipeline"
	"github.com/nyralabs/contact-pipeline/internal/service"
	"github.com/nyralabs/contact-pipeline/internal/store"
	"github.com/nyralabs/contact-pipeline/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entities, err := config.LoadEntities(cfg.Pipeline.EntityConfigPath)
	if err != nil {
		logger.Fatal("failed to load entity config", zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var instances store.InstanceStore = store.NewMemoryStore()
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		instances = store.NewPostgresStore(pool)
	} else {
		logger.Warn("no postgres configured; workflow instances are kept in memory")
	}

	var records downstream.RecordStore
	var sink downstream.NotificationSink
	if cfg.Pipeline.DemoMode {
		logger.Info("demo mode: using in-memory record store and logging sink")
		records = downstream.NewMemoryRecordStore()
		sink = downstream.NewLoggingSink(logger, cfg.Notification.EmailFrom)
	} else {
		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		records = downstream.NewRedisRecordStore(redis.Client)
		if cfg.Notification.WebhookURL != "" {
			sink = downstream.NewWebhookSink(cfg.Notification.WebhookURL, cfg.Notification.NotifyTimeout(), logger)
		} else {
			sink = downstream.NewLoggingSink(logger, cfg.Notification.EmailFrom)
		}
	}

	classifier := pipeline.NewClassifier(entities, cfg.Pipeline.DefaultEntity)
	queues := pipeline.NewQueueSet(entities, cfg.Pipeline.QueueCapacity, cfg.Pipeline.BlockOnFullQueue)
	metrics := observability.NewMetrics()

	dispatcher := pipeline.NewDispatcher()
	agents.RegisterDefaults(dispatcher, records, sink, logger)
	if err := dispatcher.Validate(entities); err != nil {
		logger.Fatal("capability registry validation failed", zap.Error(err))
	}

	machine := pipeline.NewMachine(pipeline.MachineDeps{
		Store:      instances,
		Dispatcher: dispatcher,
		Classifier: classifier,
		Metrics:    metrics,
		Logger:     logger,
		Policy: pipeline.RetryPolicy{
			MaxAttempts:       cfg.Pipeline.MaxAttempts,
			InitialBackoff:    time.Duration(cfg.Pipeline.BackoffInitialMs) * time.Millisecond,
			BackoffMultiplier: cfg.Pipeline.BackoffMultiplier,
			MaxBackoff:        time.Duration(cfg.Pipeline.BackoffMaxMs) * time.Millisecond,
		},
		HandlerTimeout: cfg.Pipeline.HandlerTimeout(),
	})

	ingestService := service.NewIngestService(service.IngestDependencies{
		Classifier: classifier,
		Queues:     queues,
		Machine:    machine,
		Instances:  instances,
		Logger:     logger,
	})

	pool := worker.NewPool(queues, machine, logger, cfg.Pipeline.ShutdownGrace())
	pool.Start()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	var ingestAuth *auth.Middleware
	if cfg.Ingest.JWTSecret != "" {
		ingestAuth = auth.NewMiddleware(auth.NewTokenVerifier(cfg.Ingest.JWTSecret))
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:     handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pool, queues, cfg.Pipeline.CriticalQueueDepth),
		Ingest:     handlers.NewIngestHandler(ingestService),
		Status:     handlers.NewStatusHandler(ingestService),
		Metrics:    handlers.NewMetricsHandler(metrics, queues),
		IngestAuth: ingestAuth,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	pool.Stop()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
