package repositories

import (
	"context"

	"github.com/ghuser/agritrack/services/batch/domain/models"
)

// QueryOpts contains pagination parameters for list queries.
type QueryOpts struct {
	Limit  int // Maximum number of records to return
	Offset int // Number of records to skip
}

// AppendFunc receives the current state of a batch and returns the record to
// append. It runs while the store holds the batch's exclusive lock, so no
// other append can interleave. Returning an error leaves the batch unchanged.
type AppendFunc func(current *models.Batch) (models.StageRecord, error)

// BatchRepository is the persistence interface for the Batch aggregate.
// The domain layer owns this interface; infrastructure implements it.
type BatchRepository interface {
	// Create stores a new batch together with its producer stage.
	// Returns ErrDuplicateIdentifier when the id is already taken.
	Create(ctx context.Context, b *models.Batch) error

	// Get returns the batch with the given id or ErrBatchNotFound.
	Get(ctx context.Context, id models.Identifier) (*models.Batch, error)

	// Append serialises fn with every other append to the same batch and
	// persists the record it returns. The updated batch is returned.
	Append(ctx context.Context, id models.Identifier, fn AppendFunc) (*models.Batch, error)

	// FindByProducer retrieves a paginated list of batches created by the
	// named producer, newest first. Returns the batches and the total count
	// (ignoring pagination).
	FindByProducer(ctx context.Context, producer string, opts QueryOpts) ([]*models.Batch, int, error)
}
