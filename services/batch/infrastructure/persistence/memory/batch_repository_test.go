package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	batchdomain "github.com/ghuser/agritrack/services/batch/domain"
	"github.com/ghuser/agritrack/services/batch/domain/models"
	"github.com/ghuser/agritrack/services/batch/domain/repositories"
	domainservices "github.com/ghuser/agritrack/services/batch/domain/services"
)

var t0 = time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC)

func newBatch(t *testing.T, producer string, createdAt time.Time) *models.Batch {
	t.Helper()
	id, err := domainservices.Mint(createdAt)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	b, err := models.NewBatch(id,
		models.Producer{Name: producer, Location: "Nakuru"},
		models.Product{Type: "Tomatoes", Quantity: decimal.NewFromInt(50), Unit: models.UnitKilograms},
		createdAt,
		models.StageInput{Actor: producer, OccurredAt: createdAt, Details: models.ProducerDetails{}},
	)
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	return b
}

func transportAt(at time.Time) repositories.AppendFunc {
	return func(current *models.Batch) (models.StageRecord, error) {
		return domainservices.ApplyStage(current, models.StageInput{
			Actor:      "FastMove Logistics",
			OccurredAt: at,
			Details:    models.TransportDetails{},
		})
	}
}

func TestBatchRepository_CreateGet(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchRepository()
	b := newBatch(t, "Green Valley Farm", t0)

	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, b); !errors.Is(err, batchdomain.ErrDuplicateIdentifier) {
		t.Fatalf("expected ErrDuplicateIdentifier, got %v", err)
	}

	got, err := repo.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != b.ID || len(got.Stages) != 1 {
		t.Fatalf("unexpected batch %+v", got)
	}

	got.Stages[0].Actor = "mallory"
	again, _ := repo.Get(ctx, b.ID)
	if again.Stages[0].Actor != "Green Valley Farm" {
		t.Fatal("Get returned a batch sharing state with the store")
	}

	if _, err := repo.Get(ctx, "BTC01ARZ3NDEKTSV4RRFFQ69G5FAV"); !errors.Is(err, batchdomain.ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound, got %v", err)
	}
}

func TestBatchRepository_CreateRequiresProducerStage(t *testing.T) {
	b := newBatch(t, "Green Valley Farm", t0)
	b.Stages = nil
	if err := NewBatchRepository().Create(context.Background(), b); err == nil {
		t.Fatal("expected error for batch without stages")
	}
}

func TestBatchRepository_Append(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchRepository()
	b := newBatch(t, "Green Valley Farm", t0)
	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := repo.Append(ctx, b.ID, transportAt(t0.Add(time.Hour)))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if updated.State() != models.StateInTransit {
		t.Fatalf("expected IN_TRANSIT, got %s", updated.State())
	}

	_, err = repo.Append(ctx, b.ID, transportAt(t0))
	if !errors.Is(err, batchdomain.ErrNonMonotonicTime) {
		t.Fatalf("expected ErrNonMonotonicTime, got %v", err)
	}
	stored, _ := repo.Get(ctx, b.ID)
	if len(stored.Stages) != 2 {
		t.Fatalf("rejected append changed history: %d stages", len(stored.Stages))
	}

	if _, err := repo.Append(ctx, "BTC01ARZ3NDEKTSV4RRFFQ69G5FAV", transportAt(t0)); !errors.Is(err, batchdomain.ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound, got %v", err)
	}
}

func TestBatchRepository_AppendRejectsStaleSeq(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchRepository()
	b := newBatch(t, "Green Valley Farm", t0)
	_ = repo.Create(ctx, b)

	_, err := repo.Append(ctx, b.ID, func(*models.Batch) (models.StageRecord, error) {
		return models.StageRecord{Seq: 0}, nil
	})
	if err == nil {
		t.Fatal("expected error for a record that does not extend the history")
	}
}

func TestBatchRepository_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchRepository()
	b := newBatch(t, "Green Valley Farm", t0)
	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("Create: %v", err)
	}

	const n = 64
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Same timestamp for every leg so ordering never rejects a stage.
			if _, err := repo.Append(ctx, b.ID, transportAt(t0.Add(time.Hour))); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Append: %v", err)
	}

	got, _ := repo.Get(ctx, b.ID)
	if len(got.Stages) != n+1 {
		t.Fatalf("expected %d stages, got %d", n+1, len(got.Stages))
	}
	for i, s := range got.Stages {
		if s.Seq != i {
			t.Fatalf("stage %d has seq %d", i, s.Seq)
		}
	}
	if !got.Verification().Verified {
		t.Fatal("concurrent appends broke the digest chain")
	}
}

func TestBatchRepository_ConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchRepository()

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := newBatch(t, "Green Valley Farm", t0.Add(time.Duration(i)*time.Minute))
			if err := repo.Create(ctx, b); err != nil {
				t.Errorf("Create: %v", err)
			}
		}(i)
	}
	wg.Wait()

	_, total, err := repo.FindByProducer(ctx, "Green Valley Farm", repositories.QueryOpts{Limit: 1})
	if err != nil {
		t.Fatalf("FindByProducer: %v", err)
	}
	if total != n {
		t.Fatalf("expected %d batches, got %d", n, total)
	}
}

func TestBatchRepository_FindByProducer(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchRepository()
	for i := 0; i < 5; i++ {
		if err := repo.Create(ctx, newBatch(t, "Green Valley Farm", t0.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := repo.Create(ctx, newBatch(t, "Sunrise Orchard", t0)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		opts      repositories.QueryOpts
		wantLen   int
		wantFirst time.Time
	}{
		{repositories.QueryOpts{Limit: 10}, 5, t0.Add(4 * time.Hour)},
		{repositories.QueryOpts{Limit: 2}, 2, t0.Add(4 * time.Hour)},
		{repositories.QueryOpts{Limit: 2, Offset: 2}, 2, t0.Add(2 * time.Hour)},
		{repositories.QueryOpts{Limit: 2, Offset: 4}, 1, t0},
		{repositories.QueryOpts{Limit: 2, Offset: 10}, 0, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("limit=%d offset=%d", tt.opts.Limit, tt.opts.Offset), func(t *testing.T) {
			got, total, err := repo.FindByProducer(ctx, "Green Valley Farm", tt.opts)
			if err != nil {
				t.Fatalf("FindByProducer: %v", err)
			}
			if total != 5 {
				t.Fatalf("expected total 5, got %d", total)
			}
			if len(got) != tt.wantLen {
				t.Fatalf("expected %d batches, got %d", tt.wantLen, len(got))
			}
			if tt.wantLen > 0 && !got[0].CreatedAt.Equal(tt.wantFirst) {
				t.Fatalf("expected first batch at %s, got %s", tt.wantFirst, got[0].CreatedAt)
			}
		})
	}
}

func TestBatchRepository_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo := NewBatchRepository()
	if _, err := repo.Get(ctx, "BTC01ARZ3NDEKTSV4RRFFQ69G5FAV"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
