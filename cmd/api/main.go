package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	_ "github.com/ghuser/agritrack/docs/swagger"
	"github.com/ghuser/agritrack/pkg/app"
	"github.com/ghuser/agritrack/pkg/archive"
	"github.com/ghuser/agritrack/pkg/cache"
	"github.com/ghuser/agritrack/pkg/config"
	"github.com/ghuser/agritrack/pkg/database"
	"github.com/ghuser/agritrack/pkg/events"
	"github.com/ghuser/agritrack/pkg/httpx"
	"github.com/ghuser/agritrack/pkg/logger"
	"github.com/ghuser/agritrack/pkg/migrator"
	"github.com/ghuser/agritrack/pkg/telemetry"
	batchApi "github.com/ghuser/agritrack/services/batch/application/api"
	"github.com/ghuser/agritrack/services/batch/infrastructure/persistence/sqlstore"
)

// @title			AgriTrack API
// @version		1.0
// @description	Produce batch traceability: batch intake, custody stages and consumer resolution.
// @contact.name	AgriTrack Support
// @license.name	MIT
// @license.url	https://opensource.org/licenses/MIT
// @host			localhost:8080
// @BasePath		/api
// @schemes		http https
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

	// Telemetry: OTel tracing + metrics
	ctx := context.Background()
	otelShutdown, metricsHandler, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		log.Error("failed to setup otel", "error", err)
		os.Exit(1)
	}
	defer otelShutdown(ctx) //nolint:errcheck

	// Crash reporting: Sentry (optional, log and continue on failure)
	if err := telemetry.SetupSentry(cfg); err != nil {
		log.Warn("failed to setup sentry, continuing without crash reporting", "error", err)
	}
	defer telemetry.SentryFlush()

	appConfig := &app.Application{Config: cfg, Logger: log}
	checks := httpx.HealthChecks{}

	if cfg.UsesSQL() {
		pool, err := database.NewPool(ctx, cfg.StoreDriver, cfg.DSN(), log)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1) //nolint:gocritic // intentional: startup failure, deferred flushes are best-effort
		}
		defer pool.Close() //nolint:errcheck
		log.Info("database pool connected", "driver", cfg.StoreDriver)
		appConfig.Db = pool
		checks.Database = pool

		// SQLite is the single-binary deployment: there is no separate
		// migration job, so the schema is brought up here.
		if cfg.StoreDriver == config.DriverSQLite {
			files, err := sqlstore.Migrations(cfg.StoreDriver)
			if err == nil {
				_, err = migrator.Up(ctx, pool.DB(), cfg.StoreDriver, files)
			}
			if err != nil {
				log.Error("failed to migrate sqlite store", "error", err)
				os.Exit(1) //nolint:gocritic
			}
		}
	} else {
		log.Warn("using in-memory batch store; batches are lost on restart")
	}

	// The outbox lives in Postgres, next to the batch rows it describes.
	if cfg.StoreDriver == config.DriverPostgres {
		eventBus, err := events.NewEventBusWithForwarder(cfg, log)
		if err != nil {
			log.Error("failed to setup event bus", "error", err)
			os.Exit(1) //nolint:gocritic
		}
		defer eventBus.Close() //nolint:errcheck

		if err := eventBus.StartForwarder(ctx); err != nil {
			log.Error("failed to start event forwarder", "error", err)
			os.Exit(1) //nolint:gocritic
		}
		appConfig.EventBus = eventBus
		checks.EventBus = eventBus
	}

	if cfg.RedisURL != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1) //nolint:gocritic // intentional: startup failure
		}
		defer redisClient.Close() //nolint:errcheck
		log.Info("redis connected")
		appConfig.Redis = redisClient
		checks.Redis = redisClient
	}

	// The worker writes the archive; the API only reports whether it is reachable.
	if cfg.ArchiveEnabled {
		store, err := archive.New(ctx, cfg)
		if err != nil {
			log.Error("failed to setup journey archive", "error", err)
			os.Exit(1) //nolint:gocritic
		}
		appConfig.Archive = store
		checks.Archive = store
	}

	r := httpx.NewRouter(
		httpx.ServerConfig{
			ServiceName:        cfg.ServiceName,
			IsDevelopment:      cfg.Environment == config.EnvDevelopment,
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
			RequestsPerMinute:  cfg.RateLimitPerMinute,
		},
		logger.Middleware(log),
		logger.Recovery(log),
		telemetry.SentryMiddleware(),
		otelhttp.NewMiddleware(cfg.ServiceName),
	)

	r.Get("/health", httpx.HealthHandler(checks))
	r.Get("/metrics", metricsHandler.ServeHTTP)
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	r.Get("/verify/{payload}", verifyRedirect)
	r.Route("/api", func(r chi.Router) {
		registerRoutes(r, appConfig)
	})

	srv := httpx.NewServer(cfg.HTTPAddr, r)

	go func() {
		log.Info("server listening", "addr", srv.Addr, "env", cfg.Environment, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// verifyRedirect sends verify URLs printed into codes to the batch resource
// when no consumer site fronts the API.
func verifyRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/api/batches/"+url.PathEscape(chi.URLParam(r, "payload")), http.StatusFound)
}

// registerRoutes mounts all service routes under /api.
// Add each new service's route function here.
func registerRoutes(r chi.Router, a *app.Application) {
	batchApi.BatchRoutes(r, a)
}
