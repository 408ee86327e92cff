package models

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/shopspring/decimal"
)

// StageDetails is the role-specific payload of a stage record. The concrete
// type is the record's tag: ProducerDetails, TransportDetails or SellerDetails.
type StageDetails interface {
	StageRole() Role
}

// ProducerDetails describes how the batch was grown and harvested.
type ProducerDetails struct {
	PlantedOn   *time.Time `json:"planted_on,omitempty"`
	HarvestedOn *time.Time `json:"harvested_on,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	PhotoRef    string     `json:"photo_ref,omitempty"`
}

// StageRole implements StageDetails.
func (ProducerDetails) StageRole() Role { return RoleProducer }

// TransportDetails records the conditions observed during one transport leg.
type TransportDetails struct {
	TemperatureC     *decimal.Decimal `json:"temperature_c,omitempty"`
	HumidityPct      *decimal.Decimal `json:"humidity_pct,omitempty"`
	ExpectedDelivery *time.Time       `json:"expected_delivery,omitempty"`
	Delivered        bool             `json:"delivered"`
	Notes            string           `json:"notes,omitempty"`
}

// StageRole implements StageDetails.
func (TransportDetails) StageRole() Role { return RoleTransporter }

// SellerDetails records the commercial state of the batch at a seller.
// Sold marks the sale that ends the batch lifecycle.
type SellerDetails struct {
	Price       *decimal.Decimal `json:"price,omitempty"`
	Currency    string           `json:"currency,omitempty"`
	DiscountPct *decimal.Decimal `json:"discount_pct,omitempty"`
	BestBefore  *time.Time       `json:"best_before,omitempty"`
	Sold        bool             `json:"sold"`
	Notes       string           `json:"notes,omitempty"`
}

// StageRole implements StageDetails.
func (SellerDetails) StageRole() Role { return RoleSeller }

// StageInput is a custody event submitted by a custodian, before it is
// sequenced and linked into a batch's digest chain.
type StageInput struct {
	Actor      string
	OccurredAt time.Time
	Location   string
	Attributes map[string]string
	Details    StageDetails
}

// Role returns the role tagged by the input's details, or "" when unset.
func (in StageInput) Role() Role {
	if in.Details == nil {
		return ""
	}
	return in.Details.StageRole()
}

// StageRecord is one appended custody event. Records are immutable once
// appended; Seq is the record's position in the batch history and Digest
// links it to its predecessor.
type StageRecord struct {
	Seq        int
	Role       Role
	Actor      string
	OccurredAt time.Time
	Location   string
	Attributes map[string]string
	Details    StageDetails
	Digest     string
}

// NewStageRecord builds an unsealed record from in at position seq.
// Timestamps are normalised to UTC so digests do not depend on the caller's zone.
func NewStageRecord(seq int, in StageInput) StageRecord {
	return StageRecord{
		Seq:        seq,
		Role:       in.Role(),
		Actor:      in.Actor,
		OccurredAt: in.OccurredAt.UTC(),
		Location:   in.Location,
		Attributes: maps.Clone(in.Attributes),
		Details:    normaliseDetails(in.Details),
	}
}

// clone returns a copy whose attribute map is not shared with r.
func (r StageRecord) clone() StageRecord {
	r.Attributes = maps.Clone(r.Attributes)
	return r
}

// DecodeStageDetails unmarshals a persisted details document for role.
func DecodeStageDetails(role Role, data []byte) (StageDetails, error) {
	switch role {
	case RoleProducer:
		var d ProducerDetails
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decode producer details: %w", err)
		}
		return normaliseDetails(d), nil
	case RoleTransporter:
		var d TransportDetails
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decode transport details: %w", err)
		}
		return normaliseDetails(d), nil
	case RoleSeller:
		var d SellerDetails
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decode seller details: %w", err)
		}
		return normaliseDetails(d), nil
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
}

func normaliseDetails(d StageDetails) StageDetails {
	switch v := d.(type) {
	case ProducerDetails:
		v.PlantedOn = utcPtr(v.PlantedOn)
		v.HarvestedOn = utcPtr(v.HarvestedOn)
		return v
	case TransportDetails:
		v.ExpectedDelivery = utcPtr(v.ExpectedDelivery)
		return v
	case SellerDetails:
		v.BestBefore = utcPtr(v.BestBefore)
		return v
	default:
		return d
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
