package models

import "time"

// BatchView is the read model every custodian and consumer renders: the
// batch's creation data, its full ordered history, the derived state and
// the verification summary.
type BatchView struct {
	ID           Identifier
	Payload      string // encoded identifier carried by the scannable code
	VerifyURL    string
	Producer     Producer
	Product      Product
	CreatedAt    time.Time
	Stages       []StageRecord
	CurrentState State
	Verification Verification
}

// NewBatchView derives the view of b. Payload and VerifyURL are left for the
// caller, which owns the identifier codec.
func NewBatchView(b *Batch) *BatchView {
	c := b.Clone()
	return &BatchView{
		ID:           c.ID,
		Producer:     c.Producer,
		Product:      c.Product,
		CreatedAt:    c.CreatedAt,
		Stages:       c.Stages,
		CurrentState: c.State(),
		Verification: c.Verification(),
	}
}
