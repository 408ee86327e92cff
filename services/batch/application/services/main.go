package services

import (
	"github.com/ghuser/agritrack/pkg/app"
	"github.com/ghuser/agritrack/pkg/cache"
	"github.com/ghuser/agritrack/pkg/config"
	"github.com/ghuser/agritrack/services/batch/domain/repositories"
	"github.com/ghuser/agritrack/services/batch/infrastructure/persistence/memory"
	"github.com/ghuser/agritrack/services/batch/infrastructure/persistence/sqlstore"
)

// Services is the application-layer service container for this bounded context.
// It wires domain services with their infrastructure implementations.
type Services struct {
	Batch *BatchService
}

// New wires all batch application services with infrastructure from the
// Application container. Without a database the in-memory store is used;
// the outbox is only attached when an event bus exists.
func New(a *app.Application) *Services {
	var repo repositories.BatchRepository
	if a.Db == nil {
		repo = memory.NewBatchRepository()
	} else {
		var outbox sqlstore.Outbox
		if a.EventBus != nil && a.Db.Driver() == config.DriverPostgres {
			outbox = a.EventBus
		}
		repo = sqlstore.NewBatchRepository(a.Db, outbox)
	}

	var viewCache ViewCache
	if a.Redis != nil {
		viewCache = cache.NewBatchCache(a.Redis)
	}

	return &Services{
		Batch: NewBatchService(repo, viewCache, a.Logger, Options{
			PublicBaseURL: a.Config.PublicBaseURL,
			MintAttempts:  a.Config.MintAttempts,
		}),
	}
}
