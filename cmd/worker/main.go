package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ghuser/agritrack/pkg/app"
	"github.com/ghuser/agritrack/pkg/archive"
	"github.com/ghuser/agritrack/pkg/cache"
	"github.com/ghuser/agritrack/pkg/config"
	"github.com/ghuser/agritrack/pkg/database"
	"github.com/ghuser/agritrack/pkg/events"
	"github.com/ghuser/agritrack/pkg/logger"
	"github.com/ghuser/agritrack/pkg/telemetry"
	appsvcs "github.com/ghuser/agritrack/services/batch/application/services"
	"github.com/ghuser/agritrack/services/batch/application/subscribers"
	batchEvents "github.com/ghuser/agritrack/services/batch/domain/events"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := config.ValidateForProduction(cfg); err != nil {
		slog.Error("production config validation failed", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg)

	// Events only exist when batches are stored in Postgres.
	if cfg.StoreDriver != config.DriverPostgres {
		log.Error("worker requires STORE_DRIVER=postgres", "store", cfg.StoreDriver)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, _, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		log.Error("failed to setup otel", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer otelShutdown(context.Background()) //nolint:errcheck

	if err := telemetry.SetupSentry(cfg); err != nil {
		log.Warn("failed to setup sentry, continuing without crash reporting", "error", err)
	}
	defer telemetry.SentryFlush()

	pool, err := database.NewPool(ctx, cfg.StoreDriver, cfg.DSN(), log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer pool.Close() //nolint:errcheck
	log.Info("database pool connected")

	eventBus, err := events.NewEventBus(cfg, log)
	if err != nil {
		log.Error("failed to setup event bus", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer eventBus.Close() //nolint:errcheck

	appConfig := &app.Application{
		Config:   cfg,
		Db:       pool,
		Logger:   log,
		EventBus: eventBus,
	}

	if cfg.RedisURL != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1) //nolint:gocritic
		}
		defer redisClient.Close() //nolint:errcheck
		log.Info("redis connected")
		appConfig.Redis = redisClient
	}

	if cfg.ArchiveEnabled {
		store, err := archive.New(ctx, cfg)
		if err != nil {
			log.Error("failed to setup journey archive", "error", err)
			os.Exit(1) //nolint:gocritic
		}
		if err := store.Ping(ctx); err != nil {
			log.Warn("journey archive unreachable, archiving will be retried per event", "error", err)
		}
		appConfig.Archive = store
		log.Info("journey archive enabled", "bucket", cfg.MinioBucket)
	}

	if err := registerSubscribers(ctx, appConfig); err != nil {
		log.Error("failed to register subscribers", "error", err)
		os.Exit(1) //nolint:gocritic
	}

	<-ctx.Done()
	log.Info("shutting down worker...")

	// EventBus.Close() (via defer) waits up to 30s for in-flight handlers.
	log.Info("worker stopped")
}

// registerSubscribers wires all domain event handlers.
// Add new topics here as more services publish events.
func registerSubscribers(ctx context.Context, a *app.Application) error {
	svcs := appsvcs.New(a)

	var store subscribers.JourneyStore
	if a.Archive != nil {
		store = a.Archive
	}
	journeys := subscribers.NewSoldJourneys(svcs.Batch, store, a.Logger)

	handlers := map[string]events.Handler{
		batchEvents.TopicBatchCreated:  journeys.HandleBatchCreated,
		batchEvents.TopicStageAppended: journeys.HandleStageAppended,
	}
	topics := make([]string, 0, len(handlers))
	for topic, handler := range handlers {
		errCh, err := a.EventBus.Subscribe(ctx, topic, handler)
		if err != nil {
			return err
		}

		// Drain subscriber errors in background so the channel never blocks.
		go func() {
			for err := range errCh {
				a.Logger.ErrorContext(ctx, "subscriber error", "topic", topic, "error", err)
				telemetry.CaptureError(ctx, err, "topic", topic)
			}
		}()
		topics = append(topics, topic)
	}

	a.Logger.Info("event subscribers registered", "topics", topics)
	return nil
}
