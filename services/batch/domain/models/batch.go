package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Unit is the unit a product quantity is measured in.
type Unit string

const (
	UnitKilograms Unit = "kg"
	UnitTons      Unit = "tons"
	UnitBags      Unit = "bags"
)

// ParseUnit converts s into a Unit or returns an error for unsupported units.
func ParseUnit(s string) (Unit, error) {
	switch u := Unit(s); u {
	case UnitKilograms, UnitTons, UnitBags:
		return u, nil
	default:
		return "", fmt.Errorf("unsupported unit %q", s)
	}
}

// Producer identifies the party that originated a batch.
type Producer struct {
	Name     string
	Location string
}

// Product describes the commodity in a batch.
type Product struct {
	Type     string
	Quantity decimal.Decimal
	Unit     Unit
}

// Batch is the aggregate root of the batch bounded context: immutable
// creation data plus an append-only, chronologically ordered stage history
// whose first record is always the producer's.
type Batch struct {
	ID        Identifier
	Producer  Producer
	Product   Product
	CreatedAt time.Time
	Stages    []StageRecord
}

// NewBatch constructs a batch whose history holds the producer stage built
// from first. The stage is sealed into the digest chain.
func NewBatch(id Identifier, producer Producer, product Product, createdAt time.Time, first StageInput) (*Batch, error) {
	if first.Role() != RoleProducer {
		return nil, fmt.Errorf("first stage must be %s, got %q", RoleProducer, first.Role())
	}
	b := &Batch{
		ID:        id,
		Producer:  producer,
		Product:   product,
		CreatedAt: createdAt.UTC(),
	}
	rec, err := b.Seal(first)
	if err != nil {
		return nil, err
	}
	b.Stages = []StageRecord{rec}
	return b, nil
}

// State derives the lifecycle state from the most recent stage.
func (b *Batch) State() State {
	if len(b.Stages) == 0 {
		return StateCreated
	}
	return StateAfter(b.Stages[len(b.Stages)-1])
}

// LastStage returns the most recent stage and false when the history is empty.
func (b *Batch) LastStage() (StageRecord, bool) {
	if len(b.Stages) == 0 {
		return StageRecord{}, false
	}
	return b.Stages[len(b.Stages)-1], true
}

// Seal turns in into the record that would be appended next: it assigns the
// next sequence number and links the digest to the current chain head.
// The batch itself is not modified.
func (b *Batch) Seal(in StageInput) (StageRecord, error) {
	prev := GenesisDigest(b.ID)
	if last, ok := b.LastStage(); ok {
		prev = last.Digest
	}
	rec := NewStageRecord(len(b.Stages), in)
	digest, err := StageDigest(prev, rec)
	if err != nil {
		return StageRecord{}, err
	}
	rec.Digest = digest
	return rec, nil
}

// Verification recomputes the digest chain over the stored stages.
func (b *Batch) Verification() Verification {
	return Verify(b.ID, b.Stages)
}

// Clone returns a deep copy safe to hand to another goroutine.
func (b *Batch) Clone() *Batch {
	c := *b
	c.Stages = make([]StageRecord, len(b.Stages))
	for i, s := range b.Stages {
		c.Stages[i] = s.clone()
	}
	return &c
}
