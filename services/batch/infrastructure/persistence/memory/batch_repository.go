// Package memory provides an in-process BatchRepository. It backs the API
// when no database is configured and serves as the reference store in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	batchdomain "github.com/ghuser/agritrack/services/batch/domain"
	"github.com/ghuser/agritrack/services/batch/domain/models"
	"github.com/ghuser/agritrack/services/batch/domain/repositories"
)

type entry struct {
	mu    sync.Mutex
	batch *models.Batch
}

// BatchRepository implements repositories.BatchRepository in memory.
// The map lock only guards membership; each batch has its own mutex so
// appends to different batches never contend.
type BatchRepository struct {
	mu      sync.RWMutex
	batches map[models.Identifier]*entry
}

var _ repositories.BatchRepository = (*BatchRepository)(nil)

// NewBatchRepository returns an empty store.
func NewBatchRepository() *BatchRepository {
	return &BatchRepository{batches: make(map[models.Identifier]*entry)}
}

// Create stores a copy of b. Returns ErrDuplicateIdentifier when b.ID is taken.
func (r *BatchRepository) Create(ctx context.Context, b *models.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(b.Stages) == 0 || b.Stages[0].Role != models.RoleProducer {
		return fmt.Errorf("batch %s has no producer stage", b.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.batches[b.ID]; ok {
		return fmt.Errorf("%w: %s", batchdomain.ErrDuplicateIdentifier, b.ID)
	}
	r.batches[b.ID] = &entry{batch: b.Clone()}
	return nil
}

// Get returns a copy of the batch with the given id.
func (r *BatchRepository) Get(ctx context.Context, id models.Identifier) (*models.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := r.lookup(id)
	if !ok {
		return nil, batchdomain.ErrBatchNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.batch.Clone(), nil
}

// Append runs fn under the batch's mutex and appends the record it returns.
func (r *BatchRepository) Append(ctx context.Context, id models.Identifier, fn repositories.AppendFunc) (*models.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := r.lookup(id)
	if !ok {
		return nil, batchdomain.ErrBatchNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := fn(e.batch.Clone())
	if err != nil {
		return nil, err
	}
	if rec.Seq != len(e.batch.Stages) {
		return nil, fmt.Errorf("append stage: seq %d does not follow %d stages", rec.Seq, len(e.batch.Stages))
	}
	e.batch.Stages = append(e.batch.Stages, rec)
	return e.batch.Clone(), nil
}

// FindByProducer returns the producer's batches, newest first.
func (r *BatchRepository) FindByProducer(ctx context.Context, producer string, opts repositories.QueryOpts) ([]*models.Batch, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	matches := make([]*entry, 0)
	for _, e := range r.batches {
		// Producer and creation time never change after Create.
		if e.batch.Producer.Name == producer {
			matches = append(matches, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i].batch, matches[j].batch
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	total := len(matches)
	start := min(max(opts.Offset, 0), total)
	end := total
	if opts.Limit > 0 {
		end = min(start+opts.Limit, total)
	}

	out := make([]*models.Batch, 0, end-start)
	for _, e := range matches[start:end] {
		e.mu.Lock()
		out = append(out, e.batch.Clone())
		e.mu.Unlock()
	}
	return out, total, nil
}

func (r *BatchRepository) lookup(id models.Identifier) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.batches[id]
	return e, ok
}
