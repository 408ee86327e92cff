package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	pkgcache "github.com/ghuser/agritrack/pkg/cache"
	"github.com/ghuser/agritrack/pkg/logger"
	"github.com/ghuser/agritrack/pkg/telemetry"
	"github.com/ghuser/agritrack/services/batch/application/dto"
	batchdomain "github.com/ghuser/agritrack/services/batch/domain"
	"github.com/ghuser/agritrack/services/batch/domain/models"
	"github.com/ghuser/agritrack/services/batch/domain/repositories"
	domainsvcs "github.com/ghuser/agritrack/services/batch/domain/services"
)

const (
	instrumentationName = "github.com/ghuser/agritrack/services/batch"

	// DefaultListLimit and MaxListLimit bound a producer's batch listing.
	DefaultListLimit = 20
	MaxListLimit     = 100

	cacheWriteTimeout = 2 * time.Second
)

// ViewCache is the read model for sold batches. *cache.BatchCache satisfies it.
type ViewCache interface {
	Get(ctx context.Context, id string) (*pkgcache.CachedBatch, error)
	Set(ctx context.Context, b *pkgcache.CachedBatch) error
	Delete(ctx context.Context, id string) error
}

// Options configures a BatchService.
type Options struct {
	// PublicBaseURL prefixes verify URLs.
	PublicBaseURL string
	// MintAttempts bounds re-minting after identifier collisions.
	MintAttempts int
}

// BatchService orchestrates batch creation, custody appends and resolution.
// Event publishing is handled by the repository layer (outbox pattern).
// Sold batches are served from the Redis read model when one is configured.
type BatchService struct {
	repo  repositories.BatchRepository
	cache ViewCache
	log   logger.Logger
	opts  Options

	now  func() time.Time
	mint func(time.Time) (models.Identifier, error)

	tracer   trace.Tracer
	created  metric.Int64Counter
	appended metric.Int64Counter
	rejected metric.Int64Counter
}

// NewBatchService returns a BatchService wired with the given repository.
// viewCache may be nil, which disables the read model.
func NewBatchService(repo repositories.BatchRepository, viewCache ViewCache, log logger.Logger, opts Options) *BatchService {
	if opts.MintAttempts < 1 {
		opts.MintAttempts = 1
	}
	s := &BatchService{
		repo:   repo,
		cache:  viewCache,
		log:    log,
		opts:   opts,
		now:    time.Now,
		mint:   domainsvcs.Mint,
		tracer: otel.Tracer(instrumentationName),
	}

	meter := otel.Meter(instrumentationName)
	var err error
	if s.created, err = meter.Int64Counter("batches_created",
		metric.WithDescription("Batches created by producers")); err != nil {
		log.Warn("create batches_created counter", "error", err)
	}
	if s.appended, err = meter.Int64Counter("stages_appended",
		metric.WithDescription("Custody stages appended to batches")); err != nil {
		log.Warn("create stages_appended counter", "error", err)
	}
	if s.rejected, err = meter.Int64Counter("transitions_rejected",
		metric.WithDescription("Stages rejected by the transition guard or the time check")); err != nil {
		log.Warn("create transitions_rejected counter", "error", err)
	}
	return s
}

// Create validates the intake, mints an identifier and stores the batch with
// its producer stage. A colliding identifier is minted again up to
// MintAttempts times before ErrIdentifierExhausted is returned.
func (s *BatchService) Create(ctx context.Context, in models.Intake) (*models.BatchView, error) {
	ctx, span := s.tracer.Start(ctx, "BatchService.Create")
	defer span.End()

	createdAt := s.now().UTC()
	if in.OccurredAt.IsZero() {
		in.OccurredAt = createdAt
	}
	if err := domainsvcs.ValidateIntake(in); err != nil {
		return nil, fail(span, err)
	}
	if in.OccurredAt.After(createdAt) {
		return nil, fail(span, fmt.Errorf("%w: producer stage at %s is after creation at %s",
			batchdomain.ErrInvalidIntake,
			in.OccurredAt.UTC().Format(time.RFC3339),
			createdAt.Format(time.RFC3339)))
	}

	for attempt := 1; attempt <= s.opts.MintAttempts; attempt++ {
		id, err := s.mint(createdAt)
		if err != nil {
			return nil, fail(span, fmt.Errorf("create batch: %w", err))
		}
		b, err := models.NewBatch(id, in.Producer, in.Product, createdAt, in.FirstStage())
		if err != nil {
			return nil, fail(span, fmt.Errorf("create batch: %w", err))
		}

		err = s.repo.Create(ctx, b)
		if err == nil {
			span.SetAttributes(attribute.String("batch.id", id.String()))
			s.count(ctx, s.created, attribute.String("product_type", in.Product.Type))
			s.log.InfoContext(ctx, "batch created", "batch_id", id, "producer", in.Producer.Name, "attempt", attempt)
			return s.view(b), nil
		}
		if !errors.Is(err, batchdomain.ErrDuplicateIdentifier) {
			return nil, fail(span, fmt.Errorf("create batch: %w", err))
		}
		s.log.WarnContext(ctx, "identifier collision, minting again", "batch_id", id, "attempt", attempt)
	}

	err := fmt.Errorf("%w: %d attempts collided", batchdomain.ErrIdentifierExhausted, s.opts.MintAttempts)
	s.log.ErrorContext(ctx, "identifier mint exhausted", "error", err, "attempts", s.opts.MintAttempts)
	telemetry.CaptureError(ctx, err, "operation", "create_batch")
	return nil, fail(span, err)
}

// AppendStage appends a custodian's stage to the batch. Checks run in order:
// stage validation, identifier shape, existence, transition guard and then
// chronological order. The guard and the sealing run under the store's
// per-batch lock.
func (s *BatchService) AppendStage(ctx context.Context, id models.Identifier, in models.StageInput) (*models.BatchView, error) {
	ctx, span := s.tracer.Start(ctx, "BatchService.AppendStage",
		trace.WithAttributes(attribute.String("batch.id", id.String()), attribute.String("stage.role", in.Role().String())))
	defer span.End()

	if err := domainsvcs.ValidateStageInput(in); err != nil {
		return nil, fail(span, err)
	}
	if err := domainsvcs.ValidateIdentifier(id); err != nil {
		return nil, fail(span, err)
	}

	b, err := s.repo.Append(ctx, id, func(current *models.Batch) (models.StageRecord, error) {
		return domainsvcs.ApplyStage(current, in)
	})
	if err != nil {
		if errors.Is(err, batchdomain.ErrInvalidTransition) || errors.Is(err, batchdomain.ErrNonMonotonicTime) {
			s.count(ctx, s.rejected, attribute.String("role", in.Role().String()))
			s.log.InfoContext(ctx, "stage rejected", "batch_id", id, "role", in.Role(), "reason", err)
		}
		return nil, fail(span, fmt.Errorf("append stage: %w", err))
	}

	v := s.view(b)
	s.count(ctx, s.appended, attribute.String("role", in.Role().String()), attribute.String("state", v.CurrentState.String()))
	s.log.InfoContext(ctx, "stage appended", "batch_id", id, "role", in.Role(), "state", v.CurrentState)
	if v.CurrentState.Terminal() {
		s.storeView(ctx, v)
	}
	return v, nil
}

// AppendStagePayload decodes payload and appends in to the batch it names.
func (s *BatchService) AppendStagePayload(ctx context.Context, payload string, in models.StageInput) (*models.BatchView, error) {
	id, err := domainsvcs.Decode(payload)
	if err != nil {
		return nil, err
	}
	return s.AppendStage(ctx, id, in)
}

// Resolve returns the full view of a batch. The store is authoritative: only
// sold batches, whose history can no longer change, are read from the cache.
func (s *BatchService) Resolve(ctx context.Context, id models.Identifier) (*models.BatchView, error) {
	ctx, span := s.tracer.Start(ctx, "BatchService.Resolve", trace.WithAttributes(attribute.String("batch.id", id.String())))
	defer span.End()

	if err := domainsvcs.ValidateIdentifier(id); err != nil {
		return nil, fail(span, err)
	}

	if v, ok := s.cachedView(ctx, id); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return v, nil
	}

	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fail(span, fmt.Errorf("resolve batch: %w", err))
	}
	v := s.view(b)
	if v.CurrentState.Terminal() {
		s.storeView(ctx, v)
	}
	return v, nil
}

// ResolvePayload decodes a scanned payload (or bare identifier, or verify
// URL) and resolves the batch it names.
func (s *BatchService) ResolvePayload(ctx context.Context, payload string) (*models.BatchView, error) {
	id, err := domainsvcs.Decode(payload)
	if err != nil {
		return nil, err
	}
	return s.Resolve(ctx, id)
}

// List returns a page of the batches created by producer, newest first,
// plus the total count.
func (s *BatchService) List(ctx context.Context, producer string, opts repositories.QueryOpts) ([]*models.BatchView, int, error) {
	ctx, span := s.tracer.Start(ctx, "BatchService.List")
	defer span.End()

	if err := domainsvcs.ValidateText("producer", producer, true, 255); err != nil {
		return nil, 0, fail(span, fmt.Errorf("%w: %w", batchdomain.ErrInvalidIntake, err))
	}
	switch {
	case opts.Limit <= 0:
		opts.Limit = DefaultListLimit
	case opts.Limit > MaxListLimit:
		opts.Limit = MaxListLimit
	}
	opts.Offset = max(opts.Offset, 0)

	batches, total, err := s.repo.FindByProducer(ctx, producer, opts)
	if err != nil {
		return nil, 0, fail(span, fmt.Errorf("list batches: %w", err))
	}
	views := make([]*models.BatchView, len(batches))
	for i, b := range batches {
		views[i] = s.view(b)
	}
	return views, total, nil
}

// CacheView writes a sold batch's view into the read model. The worker calls
// it when it sees a sale that another process recorded.
func (s *BatchService) CacheView(ctx context.Context, v *models.BatchView) error {
	if s.cache == nil || !v.CurrentState.Terminal() {
		return nil
	}
	data, err := dto.MarshalView(v)
	if err != nil {
		return fmt.Errorf("cache view: %w", err)
	}
	return s.cache.Set(ctx, &pkgcache.CachedBatch{
		ID:       v.ID.String(),
		State:    v.CurrentState.String(),
		View:     data,
		CachedAt: s.now().UTC(),
	})
}

func (s *BatchService) view(b *models.Batch) *models.BatchView {
	v := models.NewBatchView(b)
	s.decorate(v)
	return v
}

// decorate fills the codec-derived fields, which depend on configuration
// and are therefore never trusted from the cache.
func (s *BatchService) decorate(v *models.BatchView) {
	v.Payload = domainsvcs.Encode(v.ID)
	v.VerifyURL = domainsvcs.VerifyURL(s.opts.PublicBaseURL, v.ID)
}

func (s *BatchService) cachedView(ctx context.Context, id models.Identifier) (*models.BatchView, bool) {
	if s.cache == nil {
		return nil, false
	}
	cached, err := s.cache.Get(ctx, id.String())
	if err != nil {
		if !errors.Is(err, pkgcache.ErrCacheMiss) {
			s.log.WarnContext(ctx, "batch cache read failed", "batch_id", id, "error", err)
		}
		return nil, false
	}
	if models.State(cached.State) != models.StateSold {
		s.evict(ctx, id, "unsold state "+cached.State)
		return nil, false
	}
	v, err := dto.UnmarshalView(cached.View)
	if err != nil || v.ID != id {
		s.log.WarnContext(ctx, "discarding unreadable cached view", "batch_id", id, "error", err)
		s.evict(ctx, id, "unreadable view")
		return nil, false
	}
	s.decorate(v)
	return v, true
}

// evict drops a cached entry that can never be served.
func (s *BatchService) evict(ctx context.Context, id models.Identifier, reason string) {
	if err := s.cache.Delete(ctx, id.String()); err != nil {
		s.log.WarnContext(ctx, "batch cache evict failed", "batch_id", id, "reason", reason, "error", err)
	}
}

// storeView warms the read model. Failures only cost a later cache miss.
func (s *BatchService) storeView(ctx context.Context, v *models.BatchView) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	defer cancel()
	if err := s.CacheView(ctx, v); err != nil {
		s.log.WarnContext(ctx, "batch cache write failed", "batch_id", v.ID, "error", err)
	}
}

func (s *BatchService) count(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
