package app

import (
	"github.com/ghuser/agritrack/pkg/archive"
	"github.com/ghuser/agritrack/pkg/cache"
	"github.com/ghuser/agritrack/pkg/config"
	"github.com/ghuser/agritrack/pkg/database"
	"github.com/ghuser/agritrack/pkg/events"
	"github.com/ghuser/agritrack/pkg/logger"
)

// Application holds shared infrastructure dependencies for all services.
// Pass to all service BatchRoutes calls during server initialization.
//
// Only Config and Logger are always set. Db is nil with the in-memory store,
// EventBus is nil unless batches live in Postgres, Redis is nil when
// REDIS_URL is empty and Archive is nil unless ARCHIVE_ENABLED is true.
//
// Logging: app.Logger is backed by a trace-aware handler, so use slog's
// context methods and trace_id, span_id and request_id are injected:
//
//	app.Logger.InfoContext(ctx, "stage appended", "batch_id", id)
//	app.Logger.ErrorContext(ctx, "failed to append", "error", err)
//
// Use app.Logger.Info/Error (no context) only for startup and shutdown messages.
type Application struct {
	Config   *config.Config
	Db       *database.Database
	Logger   logger.Logger
	EventBus *events.EventBus
	Redis    *cache.RedisClient
	Archive  *archive.Store
}
