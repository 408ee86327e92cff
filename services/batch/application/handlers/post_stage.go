package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ghuser/agritrack/pkg/errhttp"
	pkgvalidator "github.com/ghuser/agritrack/pkg/validator"
	appsvcs "github.com/ghuser/agritrack/services/batch/application/services"
	"github.com/ghuser/agritrack/services/batch/domain/models"
)

// StageRequest holds the fields every custodian submits. OccurredAt
// defaults to the time the request is received.
type StageRequest struct {
	Actor      string            `json:"actor"                 validate:"required,max=255" example:"Fresh Transport Co."`
	OccurredAt *time.Time        `json:"occurred_at,omitempty" example:"2024-03-20T10:00:00Z"`
	Location   string            `json:"location,omitempty"    validate:"max=255"          example:"Delhi"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Notes      string            `json:"notes,omitempty"       validate:"max=2000"`
}

func (r StageRequest) input(details models.StageDetails, now time.Time) models.StageInput {
	at := now
	if r.OccurredAt != nil {
		at = *r.OccurredAt
	}
	return models.StageInput{
		Actor:      r.Actor,
		OccurredAt: at,
		Location:   r.Location,
		Attributes: r.Attributes,
		Details:    details,
	}
}

// TransportStageRequest is the request body for POST /batches/{payload}/transport.
type TransportStageRequest struct {
	StageRequest
	TemperatureC     *decimal.Decimal `json:"temperature_c,omitempty"     swaggertype:"string" example:"12.5"`
	HumidityPct      *decimal.Decimal `json:"humidity_pct,omitempty"      swaggertype:"string" example:"65" validate:"omitempty,gte=0,lte=100"`
	ExpectedDelivery *time.Time       `json:"expected_delivery,omitempty" example:"2024-03-21T08:00:00Z"`
	Delivered        bool             `json:"delivered"                   example:"false"`
} // @name TransportStageRequest

// SellerStageRequest is the request body for POST /batches/{payload}/seller.
// Sold ends the batch lifecycle and is only accepted once the seller has
// received the batch.
type SellerStageRequest struct {
	StageRequest
	Price       *decimal.Decimal `json:"price,omitempty"        swaggertype:"string" example:"2.50" validate:"omitempty,gte=0"`
	Currency    string           `json:"currency,omitempty"     example:"USD" validate:"omitempty,iso4217"`
	DiscountPct *decimal.Decimal `json:"discount_pct,omitempty" swaggertype:"string" example:"10" validate:"omitempty,gte=0,lte=100"`
	BestBefore  *time.Time       `json:"best_before,omitempty"  example:"2024-03-27T00:00:00Z"`
	Sold        bool             `json:"sold"                   example:"false"`
} // @name SellerStageRequest

// PostTransportHandler handles POST /batches/{payload}/transport requests.
type PostTransportHandler struct {
	svc *appsvcs.Services
	now func() time.Time
}

// NewPostTransportHandler returns a PostTransportHandler backed by the given services.
func NewPostTransportHandler(svc *appsvcs.Services) *PostTransportHandler {
	return &PostTransportHandler{svc: svc, now: time.Now}
}

// Execute appends a transport leg to a batch.
//
//	@Summary		Record transport
//	@Description	Appends a transporter stage; moves the batch to IN_TRANSIT
//	@Tags			stages
//	@Accept			json
//	@Produce		json
//	@Param			payload	path		string					true	"Encoded identifier"
//	@Param			request	body		TransportStageRequest	true	"Transport leg"
//	@Success		200		{object}	dto.BatchView
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Router			/batches/{payload}/transport [post]
func (h *PostTransportHandler) Execute(w http.ResponseWriter, r *http.Request) {
	req, ok := pkgvalidator.ValidateRequest[TransportStageRequest](w, r)
	if !ok {
		return
	}

	in := req.input(models.TransportDetails{
		TemperatureC:     req.TemperatureC,
		HumidityPct:      req.HumidityPct,
		ExpectedDelivery: req.ExpectedDelivery,
		Delivered:        req.Delivered,
		Notes:            req.Notes,
	}, h.now())

	v, err := h.svc.Batch.AppendStagePayload(r.Context(), chi.URLParam(r, "payload"), in)
	if err != nil {
		errhttp.WriteError(w, err)
		return
	}
	writeView(w, http.StatusOK, v)
}

// PostSellerHandler handles POST /batches/{payload}/seller requests.
type PostSellerHandler struct {
	svc *appsvcs.Services
	now func() time.Time
}

// NewPostSellerHandler returns a PostSellerHandler backed by the given services.
func NewPostSellerHandler(svc *appsvcs.Services) *PostSellerHandler {
	return &PostSellerHandler{svc: svc, now: time.Now}
}

// Execute appends a seller stage to a batch.
//
//	@Summary		Record seller stage
//	@Description	Appends a seller stage; moves the batch to AT_SELLER, or to SOLD when sold is true
//	@Tags			stages
//	@Accept			json
//	@Produce		json
//	@Param			payload	path		string				true	"Encoded identifier"
//	@Param			request	body		SellerStageRequest	true	"Seller stage"
//	@Success		200		{object}	dto.BatchView
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Router			/batches/{payload}/seller [post]
func (h *PostSellerHandler) Execute(w http.ResponseWriter, r *http.Request) {
	req, ok := pkgvalidator.ValidateRequest[SellerStageRequest](w, r)
	if !ok {
		return
	}

	in := req.input(models.SellerDetails{
		Price:       req.Price,
		Currency:    req.Currency,
		DiscountPct: req.DiscountPct,
		BestBefore:  req.BestBefore,
		Sold:        req.Sold,
		Notes:       req.Notes,
	}, h.now())

	v, err := h.svc.Batch.AppendStagePayload(r.Context(), chi.URLParam(r, "payload"), in)
	if err != nil {
		errhttp.WriteError(w, err)
		return
	}
	writeView(w, http.StatusOK, v)
}
