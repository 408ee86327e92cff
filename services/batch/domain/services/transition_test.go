package services

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	batchdomain "github.com/ghuser/agritrack/services/batch/domain"
	"github.com/ghuser/agritrack/services/batch/domain/models"
)

var t0 = time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC)

func newBatch(t *testing.T) *models.Batch {
	t.Helper()
	b, err := models.NewBatch(
		models.Identifier("BTC01ARZ3NDEKTSV4RRFFQ69G5FAV"),
		models.Producer{Name: "Green Valley Farm", Location: "Nakuru"},
		models.Product{Type: "Tomatoes", Quantity: decimal.NewFromInt(50), Unit: models.UnitKilograms},
		t0,
		models.StageInput{Actor: "Green Valley Farm", OccurredAt: t0, Location: "Nakuru", Details: models.ProducerDetails{}},
	)
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	return b
}

func apply(t *testing.T, b *models.Batch, details models.StageDetails, at time.Time) {
	t.Helper()
	rec, err := ApplyStage(b, models.StageInput{Actor: "actor", OccurredAt: at, Details: details})
	if err != nil {
		t.Fatalf("ApplyStage(%s): %v", details.StageRole(), err)
	}
	b.Stages = append(b.Stages, rec)
}

func TestNextState(t *testing.T) {
	transport := models.TransportDetails{}
	receive := models.SellerDetails{}
	sell := models.SellerDetails{Sold: true}
	produce := models.ProducerDetails{}

	tests := []struct {
		name    string
		from    models.State
		next    models.StageDetails
		want    models.State
		wantErr bool
	}{
		{"created to transit", models.StateCreated, transport, models.StateInTransit, false},
		{"created to seller", models.StateCreated, receive, models.StateAtSeller, false},
		{"created sold directly", models.StateCreated, sell, "", true},
		{"transit leg", models.StateInTransit, transport, models.StateInTransit, false},
		{"delivered leg stays in transit", models.StateInTransit, models.TransportDetails{Delivered: true}, models.StateInTransit, false},
		{"transit to seller", models.StateInTransit, receive, models.StateAtSeller, false},
		{"transit sold directly", models.StateInTransit, sell, "", true},
		{"seller update", models.StateAtSeller, receive, models.StateAtSeller, false},
		{"seller sells", models.StateAtSeller, sell, models.StateSold, false},
		{"seller back to transport", models.StateAtSeller, transport, "", true},
		{"sold then transport", models.StateSold, transport, "", true},
		{"sold then seller", models.StateSold, receive, "", true},
		{"sold twice", models.StateSold, sell, "", true},
		{"second producer stage", models.StateCreated, produce, "", true},
		{"producer after transport", models.StateInTransit, produce, "", true},
		{"missing details", models.StateCreated, nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextState(tt.from, tt.next)
			if tt.wantErr {
				if !errors.Is(err, batchdomain.ErrInvalidTransition) {
					t.Fatalf("expected ErrInvalidTransition, got state %q err %v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestApplyStage_Lifecycle(t *testing.T) {
	b := newBatch(t)

	apply(t, b, models.TransportDetails{}, t0.Add(2*time.Hour))
	if b.State() != models.StateInTransit {
		t.Fatalf("expected IN_TRANSIT, got %s", b.State())
	}
	apply(t, b, models.SellerDetails{}, t0.Add(6*time.Hour))
	if b.State() != models.StateAtSeller {
		t.Fatalf("expected AT_SELLER, got %s", b.State())
	}
	apply(t, b, models.SellerDetails{Sold: true}, t0.Add(30*time.Hour))
	if b.State() != models.StateSold {
		t.Fatalf("expected SOLD, got %s", b.State())
	}

	for i, s := range b.Stages {
		if s.Seq != i {
			t.Fatalf("stage %d has seq %d", i, s.Seq)
		}
	}
	if !b.Verification().Verified {
		t.Fatal("expected chain to verify")
	}

	_, err := ApplyStage(b, models.StageInput{Actor: "late", OccurredAt: t0.Add(40 * time.Hour), Details: models.TransportDetails{}})
	if !errors.Is(err, batchdomain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition after sale, got %v", err)
	}
}

func TestApplyStage_NonMonotonicTime(t *testing.T) {
	b := newBatch(t)
	apply(t, b, models.TransportDetails{}, t0.Add(2*time.Hour))

	before := len(b.Stages)
	_, err := ApplyStage(b, models.StageInput{Actor: "shop", OccurredAt: t0.Add(time.Hour), Details: models.SellerDetails{}})
	if !errors.Is(err, batchdomain.ErrNonMonotonicTime) {
		t.Fatalf("expected ErrNonMonotonicTime, got %v", err)
	}
	if len(b.Stages) != before {
		t.Fatalf("rejected stage changed history length to %d", len(b.Stages))
	}
}

func TestApplyStage_EqualTimestampAllowed(t *testing.T) {
	b := newBatch(t)
	apply(t, b, models.TransportDetails{}, t0)
	if len(b.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(b.Stages))
	}
}

func TestApplyStage_TransitionCheckedBeforeTime(t *testing.T) {
	b := newBatch(t)
	_, err := ApplyStage(b, models.StageInput{Actor: "shop", OccurredAt: t0.Add(-time.Hour), Details: models.SellerDetails{Sold: true}})
	if !errors.Is(err, batchdomain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestApplyStage_NormalisesZone(t *testing.T) {
	b := newBatch(t)
	nairobi := time.FixedZone("EAT", 3*60*60)
	apply(t, b, models.TransportDetails{}, t0.Add(time.Hour).In(nairobi))

	last, _ := b.LastStage()
	if last.OccurredAt.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %s", last.OccurredAt.Location())
	}
	if !last.OccurredAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("timestamp changed: %s", last.OccurredAt)
	}
}
