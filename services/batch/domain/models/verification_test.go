package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestVerify_IntactChain(t *testing.T) {
	b := newTomatoBatch(t)
	temp := decimal.RequireFromString("4.0")
	appendStage(t, b, StageInput{Actor: "Fresh Transport Co.", OccurredAt: t0.Add(time.Hour), Details: TransportDetails{TemperatureC: &temp}})

	v := b.Verification()
	if !v.Verified {
		t.Fatal("expected verified chain")
	}
	if !strings.HasPrefix(v.Token, "0x") || len(v.Token) != 2+64 {
		t.Fatalf("unexpected token %q", v.Token)
	}
	if v.Token != "0x"+b.Stages[1].Digest {
		t.Fatal("token must be the head digest")
	}
}

func TestVerify_Deterministic(t *testing.T) {
	a := newTomatoBatch(t)
	b := newTomatoBatch(t)
	if a.Verification() != b.Verification() {
		t.Fatal("identical histories must yield identical verification")
	}
}

func TestVerify_TokenChangesWithHistory(t *testing.T) {
	b := newTomatoBatch(t)
	before := b.Verification().Token
	appendStage(t, b, StageInput{Actor: "Fresh Transport Co.", OccurredAt: t0.Add(time.Hour), Details: TransportDetails{}})
	if b.Verification().Token == before {
		t.Fatal("token must change after append")
	}
}

func TestVerify_DetectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(b *Batch)
	}{
		{"actor rewritten", func(b *Batch) { b.Stages[1].Actor = "Someone Else" }},
		{"time rewritten", func(b *Batch) { b.Stages[1].OccurredAt = b.Stages[1].OccurredAt.Add(time.Minute) }},
		{"details rewritten", func(b *Batch) { b.Stages[1].Details = TransportDetails{Delivered: true} }},
		{"stage removed", func(b *Batch) { b.Stages = b.Stages[:1:1]; b.Stages = append(b.Stages, b.Stages[0]) }},
		{"digest rewritten", func(b *Batch) { b.Stages[0].Digest = strings.Repeat("0", 64) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTomatoBatch(t)
			appendStage(t, b, StageInput{Actor: "Fresh Transport Co.", OccurredAt: t0.Add(time.Hour), Details: TransportDetails{}})
			tt.tamper(b)
			if b.Verification().Verified {
				t.Fatal("expected tampering to be detected")
			}
		})
	}
}

func TestVerify_EmptyHistory(t *testing.T) {
	if v := Verify("BTC1", nil); v.Verified || v.Token != "" {
		t.Fatalf("expected zero verification, got %+v", v)
	}
}

func TestDecodeStageDetails_PreservesDigest(t *testing.T) {
	b := newTomatoBatch(t)
	price := decimal.RequireFromString("80.00")
	best := time.Date(2024, 3, 25, 0, 0, 0, 0, time.FixedZone("IST", 19800))
	appendStage(t, b, StageInput{Actor: "FreshMart", OccurredAt: t0.Add(time.Hour), Details: SellerDetails{Price: &price, Currency: "INR", BestBefore: &best}})

	raw, err := json.Marshal(b.Stages[1].Details)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	d, err := DecodeStageDetails(RoleSeller, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b.Stages[1].Details = d
	if !b.Verification().Verified {
		t.Fatal("decoded details must reproduce the stored digest")
	}
}

func TestDecodeStageDetails_UnknownRole(t *testing.T) {
	if _, err := DecodeStageDetails("CONSUMER", []byte(`{}`)); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
