// Package subscribers holds the worker's handlers for batch domain events.
package subscribers

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/ghuser/agritrack/pkg/archive"
	"github.com/ghuser/agritrack/pkg/events"
	"github.com/ghuser/agritrack/pkg/logger"
	"github.com/ghuser/agritrack/services/batch/application/dto"
	domainevents "github.com/ghuser/agritrack/services/batch/domain/events"
	"github.com/ghuser/agritrack/services/batch/domain/models"
)

// Resolver loads the current view of a batch. *services.BatchService
// satisfies it; its Resolve also warms the read model for sold batches.
type Resolver interface {
	Resolve(ctx context.Context, id models.Identifier) (*models.BatchView, error)
}

// JourneyStore persists archived journeys. *archive.Store satisfies it.
// Get returns archive.ErrNotFound for a journey that was never archived.
type JourneyStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	PutJSON(ctx context.Context, key string, body []byte, metadata map[string]string) error
}

// SoldJourneys reacts to sales: it resolves the sold batch, which caches its
// view, and archives the finished journey when a store is configured.
type SoldJourneys struct {
	batches Resolver
	store   JourneyStore
	log     logger.Logger
}

// NewSoldJourneys returns the handler set. store may be nil to disable archiving.
func NewSoldJourneys(batches Resolver, store JourneyStore, log logger.Logger) *SoldJourneys {
	return &SoldJourneys{batches: batches, store: store, log: log}
}

// HandleStageAppended handles batch.stage_appended events. It is idempotent:
// the cache write and the archive put both overwrite.
func (s *SoldJourneys) HandleStageAppended(ctx context.Context, msg *message.Message) error {
	evt, err := events.Decode[domainevents.StageAppendedEvent](msg)
	if err != nil {
		// A payload that never decodes would be retried forever.
		s.log.ErrorContext(ctx, "dropping undecodable stage event", "message_id", msg.UUID, "error", err)
		return nil
	}
	if models.State(evt.State) != models.StateSold {
		return nil
	}

	v, err := s.batches.Resolve(ctx, models.Identifier(evt.BatchID))
	if err != nil {
		return fmt.Errorf("resolve sold batch %s: %w", evt.BatchID, err)
	}
	s.log.InfoContext(ctx, "sold batch cached", "batch_id", evt.BatchID, "stages", len(v.Stages))

	if s.store == nil {
		return nil
	}
	key := archive.JourneyKey(evt.BatchID)
	if s.archived(ctx, key, v.Verification.Token) {
		s.log.InfoContext(ctx, "journey already archived", "batch_id", evt.BatchID, "key", key)
		return nil
	}
	data, err := dto.MarshalView(v)
	if err != nil {
		return fmt.Errorf("encode journey %s: %w", evt.BatchID, err)
	}
	if err := s.store.PutJSON(ctx, key, data, map[string]string{
		"state":    v.CurrentState.String(),
		"token":    v.Verification.Token,
		"verified": fmt.Sprint(v.Verification.Verified),
	}); err != nil {
		return fmt.Errorf("archive journey %s: %w", evt.BatchID, err)
	}
	s.log.InfoContext(ctx, "journey archived", "batch_id", evt.BatchID, "key", key)
	return nil
}

// archived reports whether key already holds the journey ending in token.
// Redelivered events then skip the upload. Lookup failures fall through to
// a fresh put, which overwrites.
func (s *SoldJourneys) archived(ctx context.Context, key, token string) bool {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, archive.ErrNotFound) {
			s.log.WarnContext(ctx, "journey lookup failed, archiving again", "key", key, "error", err)
		}
		return false
	}
	prev, err := dto.UnmarshalView(data)
	if err != nil {
		s.log.WarnContext(ctx, "archived journey unreadable, replacing", "key", key, "error", err)
		return false
	}
	return prev.Verification.Token == token
}

// HandleBatchCreated handles batch.created events.
func (s *SoldJourneys) HandleBatchCreated(ctx context.Context, msg *message.Message) error {
	evt, err := events.Decode[domainevents.BatchCreatedEvent](msg)
	if err != nil {
		s.log.ErrorContext(ctx, "dropping undecodable batch event", "message_id", msg.UUID, "error", err)
		return nil
	}
	s.log.InfoContext(ctx, "batch created", "batch_id", evt.BatchID, "producer", evt.Producer, "product_type", evt.ProductType)
	return nil
}
