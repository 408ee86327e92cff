package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var t0 = time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC)

func newTomatoBatch(t *testing.T) *Batch {
	t.Helper()
	b, err := NewBatch(
		"BTC01ARZ3NDEKTSV4RRFFQ69G5FAV",
		Producer{Name: "Green Valley Farm", Location: "Punjab, India"},
		Product{Type: "Tomatoes", Quantity: decimal.NewFromInt(50), Unit: UnitKilograms},
		t0,
		StageInput{Actor: "Green Valley Farm", OccurredAt: t0, Location: "Punjab, India", Details: ProducerDetails{Notes: "organic"}},
	)
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	return b
}

func appendStage(t *testing.T, b *Batch, in StageInput) {
	t.Helper()
	rec, err := b.Seal(in)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	b.Stages = append(b.Stages, rec)
}

func TestNewBatch(t *testing.T) {
	t.Run("starts with a single producer stage", func(t *testing.T) {
		b := newTomatoBatch(t)
		if len(b.Stages) != 1 {
			t.Fatalf("expected 1 stage, got %d", len(b.Stages))
		}
		if b.Stages[0].Role != RoleProducer {
			t.Fatalf("expected PRODUCER, got %s", b.Stages[0].Role)
		}
		if b.Stages[0].Seq != 0 {
			t.Fatalf("expected seq 0, got %d", b.Stages[0].Seq)
		}
		if b.State() != StateCreated {
			t.Fatalf("expected CREATED, got %s", b.State())
		}
	})

	t.Run("rejects a non-producer first stage", func(t *testing.T) {
		_, err := NewBatch("BTC1", Producer{}, Product{}, t0, StageInput{Details: TransportDetails{}})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
	})

	t.Run("normalises created at to UTC", func(t *testing.T) {
		loc := time.FixedZone("IST", 5*3600+1800)
		b, err := NewBatch("BTC1", Producer{}, Product{}, t0.In(loc), StageInput{OccurredAt: t0.In(loc), Details: ProducerDetails{}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if b.CreatedAt.Location() != time.UTC || b.Stages[0].OccurredAt.Location() != time.UTC {
			t.Fatal("expected UTC timestamps")
		}
	})
}

func TestBatch_StateFollowsLastStage(t *testing.T) {
	b := newTomatoBatch(t)

	appendStage(t, b, StageInput{Actor: "Fresh Transport Co.", OccurredAt: t0.Add(time.Hour), Details: TransportDetails{}})
	if b.State() != StateInTransit {
		t.Fatalf("expected IN_TRANSIT, got %s", b.State())
	}

	appendStage(t, b, StageInput{Actor: "FreshMart", OccurredAt: t0.Add(2 * time.Hour), Details: SellerDetails{}})
	if b.State() != StateAtSeller {
		t.Fatalf("expected AT_SELLER, got %s", b.State())
	}

	appendStage(t, b, StageInput{Actor: "FreshMart", OccurredAt: t0.Add(3 * time.Hour), Details: SellerDetails{Sold: true}})
	if b.State() != StateSold {
		t.Fatalf("expected SOLD, got %s", b.State())
	}
	if !b.State().Terminal() {
		t.Fatal("SOLD must be terminal")
	}
}

func TestBatch_Clone(t *testing.T) {
	b := newTomatoBatch(t)
	appendStage(t, b, StageInput{
		Actor:      "Fresh Transport Co.",
		OccurredAt: t0.Add(time.Hour),
		Attributes: map[string]string{"truck": "PB-10"},
		Details:    TransportDetails{},
	})

	c := b.Clone()
	c.Stages[1].Attributes["truck"] = "changed"
	c.Stages = append(c.Stages, StageRecord{})

	if b.Stages[1].Attributes["truck"] != "PB-10" {
		t.Fatal("clone shares attribute map with original")
	}
	if len(b.Stages) != 2 {
		t.Fatalf("clone shares stage slice with original: %d stages", len(b.Stages))
	}
}

func TestParseUnit(t *testing.T) {
	for _, s := range []string{"kg", "tons", "bags"} {
		if _, err := ParseUnit(s); err != nil {
			t.Errorf("ParseUnit(%q): unexpected error %v", s, err)
		}
	}
	for _, s := range []string{"", "KG", "lbs"} {
		if _, err := ParseUnit(s); err == nil {
			t.Errorf("ParseUnit(%q): expected error", s)
		}
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole("SELLER"); err != nil || r != RoleSeller {
		t.Fatalf("ParseRole(SELLER) = %q, %v", r, err)
	}
	if _, err := ParseRole("CONSUMER"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
