// Package dto holds the JSON representation of batch views shared by the
// HTTP API, the Redis read model, the journey archive and the CLI.
package dto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ghuser/agritrack/services/batch/domain/models"
)

// Producer is the originating party of a batch.
type Producer struct {
	Name     string `json:"name"               example:"Green Valley Farm"`
	Location string `json:"location,omitempty" example:"Punjab, India"`
} // @name Producer

// Product describes the commodity in a batch.
type Product struct {
	Type     string          `json:"type"     example:"Tomatoes"`
	Quantity decimal.Decimal `json:"quantity" example:"50" swaggertype:"string"`
	Unit     string          `json:"unit"     example:"kg" enums:"kg,tons,bags"`
} // @name Product

// Stage is one custody record. Details holds the role-specific fields.
type Stage struct {
	Seq        int               `json:"seq"                  example:"0"`
	Role       string            `json:"role"                 example:"PRODUCER" enums:"PRODUCER,TRANSPORTER,SELLER"`
	Actor      string            `json:"actor"                example:"Green Valley Farm"`
	OccurredAt time.Time         `json:"occurred_at"          example:"2024-03-20T08:00:00Z"`
	Location   string            `json:"location,omitempty"   example:"Punjab, India"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Details    json.RawMessage   `json:"details"              swaggertype:"object"`
	Digest     string            `json:"digest"`
} // @name Stage

// Verification is the integrity summary of a batch history.
type Verification struct {
	Verified bool   `json:"verified" example:"true"`
	Token    string `json:"token"    example:"0x9f2c..."`
} // @name Verification

// BatchView is the full journey of a batch as rendered to every role.
type BatchView struct {
	ID           string       `json:"id"            example:"BTC01ARZ3NDEKTSV4RRFFQ69G5FAV"`
	Payload      string       `json:"payload"       example:"AGT1-BTC01ARZ3NDEKTSV4RRFFQ69G5FAV-Z"`
	VerifyURL    string       `json:"verify_url"    example:"https://agritrack.app/verify/AGT1-BTC01ARZ3NDEKTSV4RRFFQ69G5FAV-Z"`
	Producer     Producer     `json:"producer"`
	Product      Product      `json:"product"`
	CreatedAt    time.Time    `json:"created_at"    example:"2024-03-20T08:00:00Z"`
	CurrentState string       `json:"current_state" example:"CREATED" enums:"CREATED,IN_TRANSIT,AT_SELLER,SOLD"`
	Stages       []Stage      `json:"stages"`
	Verification Verification `json:"verification"`
} // @name BatchView

// NewBatchView converts a domain view into its JSON representation.
func NewBatchView(v *models.BatchView) (BatchView, error) {
	out := BatchView{
		ID:        v.ID.String(),
		Payload:   v.Payload,
		VerifyURL: v.VerifyURL,
		Producer:  Producer{Name: v.Producer.Name, Location: v.Producer.Location},
		Product: Product{
			Type:     v.Product.Type,
			Quantity: v.Product.Quantity,
			Unit:     string(v.Product.Unit),
		},
		CreatedAt:    v.CreatedAt,
		CurrentState: v.CurrentState.String(),
		Stages:       make([]Stage, 0, len(v.Stages)),
		Verification: Verification{Verified: v.Verification.Verified, Token: v.Verification.Token},
	}
	for _, s := range v.Stages {
		details, err := json.Marshal(s.Details)
		if err != nil {
			return BatchView{}, fmt.Errorf("encode stage %d details: %w", s.Seq, err)
		}
		out.Stages = append(out.Stages, Stage{
			Seq:        s.Seq,
			Role:       s.Role.String(),
			Actor:      s.Actor,
			OccurredAt: s.OccurredAt,
			Location:   s.Location,
			Attributes: s.Attributes,
			Details:    details,
			Digest:     s.Digest,
		})
	}
	return out, nil
}

// Model converts the JSON representation back into a domain view.
func (v BatchView) Model() (*models.BatchView, error) {
	out := &models.BatchView{
		ID:        models.Identifier(v.ID),
		Payload:   v.Payload,
		VerifyURL: v.VerifyURL,
		Producer:  models.Producer{Name: v.Producer.Name, Location: v.Producer.Location},
		Product: models.Product{
			Type:     v.Product.Type,
			Quantity: v.Product.Quantity,
			Unit:     models.Unit(v.Product.Unit),
		},
		CreatedAt:    v.CreatedAt.UTC(),
		CurrentState: models.State(v.CurrentState),
		Stages:       make([]models.StageRecord, 0, len(v.Stages)),
		Verification: models.Verification{Verified: v.Verification.Verified, Token: v.Verification.Token},
	}
	for _, s := range v.Stages {
		role, err := models.ParseRole(s.Role)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", s.Seq, err)
		}
		details, err := models.DecodeStageDetails(role, s.Details)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", s.Seq, err)
		}
		out.Stages = append(out.Stages, models.StageRecord{
			Seq:        s.Seq,
			Role:       role,
			Actor:      s.Actor,
			OccurredAt: s.OccurredAt.UTC(),
			Location:   s.Location,
			Attributes: s.Attributes,
			Details:    details,
			Digest:     s.Digest,
		})
	}
	return out, nil
}

// MarshalView encodes a domain view as JSON.
func MarshalView(v *models.BatchView) ([]byte, error) {
	out, err := NewBatchView(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// UnmarshalView decodes a JSON view produced by MarshalView.
func UnmarshalView(data []byte) (*models.BatchView, error) {
	var v BatchView
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode batch view: %w", err)
	}
	return v.Model()
}
