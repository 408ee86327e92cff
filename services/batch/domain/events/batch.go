package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	// TopicBatchCreated is published when a batch and its producer stage are stored.
	TopicBatchCreated = "batch.created"
	// TopicStageAppended is published after every transporter or seller stage.
	TopicStageAppended = "batch.stage_appended"
)

// EventVersion is the current schema version of the batch events.
const EventVersion = 1

// BatchCreatedEvent is published after a new batch is persisted.
// Consumers subscribe via EventBus.Subscribe(ctx, events.TopicBatchCreated).
type BatchCreatedEvent struct {
	EventID     uuid.UUID `json:"event_id"` // Unique publish-time identifier for deduplication
	Version     int       `json:"version"`  // Schema version; increment on breaking changes
	BatchID     string    `json:"batch_id"`
	Producer    string    `json:"producer"`
	ProductType string    `json:"product_type"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// StageAppendedEvent is published after a stage is appended to a batch.
// State is the lifecycle state the batch entered with this stage.
type StageAppendedEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	Version    int       `json:"version"`
	BatchID    string    `json:"batch_id"`
	Seq        int       `json:"seq"`
	Role       string    `json:"role"`
	State      string    `json:"state"`
	Digest     string    `json:"digest"`
	OccurredAt time.Time `json:"occurred_at"`
}
