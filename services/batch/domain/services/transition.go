package services

import (
	"fmt"
	"time"

	batchdomain "github.com/ghuser/agritrack/services/batch/domain"
	"github.com/ghuser/agritrack/services/batch/domain/models"
)

// NextState returns the state a batch in state from enters when a stage
// carrying next is appended, or ErrInvalidTransition when the lifecycle
// forbids it.
//
//	CREATED    + transport          -> IN_TRANSIT
//	CREATED    + seller (not sold)  -> AT_SELLER
//	IN_TRANSIT + transport          -> IN_TRANSIT
//	IN_TRANSIT + seller (not sold)  -> AT_SELLER
//	AT_SELLER  + seller             -> AT_SELLER, or SOLD when sold
//	SOLD       + anything           -> rejected
//
// A producer stage is only ever created together with the batch.
func NextState(from models.State, next models.StageDetails) (models.State, error) {
	if from.Terminal() {
		return "", invalidTransition(from, next, "batch is sold")
	}

	switch d := next.(type) {
	case models.TransportDetails:
		if from == models.StateCreated || from == models.StateInTransit {
			return models.StateInTransit, nil
		}
		return "", invalidTransition(from, next, "batch already reached a seller")
	case models.SellerDetails:
		if !d.Sold {
			return models.StateAtSeller, nil
		}
		if from != models.StateAtSeller {
			return "", invalidTransition(from, next, "batch must be received by a seller before it is sold")
		}
		return models.StateSold, nil
	case models.ProducerDetails:
		return "", invalidTransition(from, next, "producer stage only opens a batch")
	default:
		return "", invalidTransition(from, next, "unsupported stage")
	}
}

// ApplyStage checks in against the current history of b and returns the
// sealed record to append. b is not modified, so a rejected stage leaves the
// batch exactly as it was.
func ApplyStage(b *models.Batch, in models.StageInput) (models.StageRecord, error) {
	if _, err := NextState(b.State(), in.Details); err != nil {
		return models.StageRecord{}, err
	}

	if last, ok := b.LastStage(); ok && in.OccurredAt.Before(last.OccurredAt) {
		return models.StageRecord{}, fmt.Errorf("%w: %s is before stage %d at %s",
			batchdomain.ErrNonMonotonicTime,
			in.OccurredAt.UTC().Format(time.RFC3339Nano),
			last.Seq,
			last.OccurredAt.Format(time.RFC3339Nano),
		)
	}

	rec, err := b.Seal(in)
	if err != nil {
		return models.StageRecord{}, fmt.Errorf("seal stage: %w", err)
	}
	return rec, nil
}

func invalidTransition(from models.State, next models.StageDetails, reason string) error {
	role := models.Role("")
	if next != nil {
		role = next.StageRole()
	}
	return fmt.Errorf("%w: %s stage not allowed in state %s: %s",
		batchdomain.ErrInvalidTransition, role, from, reason)
}
