package handlers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ghuser/agritrack/pkg/errhttp"
	"github.com/ghuser/agritrack/pkg/httpx"
	pkgvalidator "github.com/ghuser/agritrack/pkg/validator"
	"github.com/ghuser/agritrack/services/batch/application/dto"
	appsvcs "github.com/ghuser/agritrack/services/batch/application/services"
	"github.com/ghuser/agritrack/services/batch/domain/models"
)

// CreateBatchRequest is the request body for POST /batches.
type CreateBatchRequest struct {
	ProducerName     string            `json:"producer_name"         validate:"required,max=255" example:"Green Valley Farm"`
	ProducerLocation string            `json:"producer_location"     validate:"max=255"          example:"Punjab, India"`
	ProductType      string            `json:"product_type"          validate:"required,max=255" example:"Tomatoes"`
	Quantity         decimal.Decimal   `json:"quantity"              swaggertype:"string"        example:"50" validate:"gt=0"`
	Unit             string            `json:"unit"                  validate:"required,oneof=kg tons bags" example:"kg"`
	RecordedAt       *time.Time        `json:"recorded_at,omitempty" example:"2024-03-20T08:00:00Z"`
	Location         string            `json:"location,omitempty"    validate:"max=255"          example:"Field 7"`
	PlantedOn        *time.Time        `json:"planted_on,omitempty"  example:"2023-12-01T00:00:00Z"`
	HarvestedOn      *time.Time        `json:"harvested_on,omitempty" example:"2024-03-19T00:00:00Z"`
	Notes            string            `json:"notes,omitempty"       validate:"max=2000"         example:"organic"`
	PhotoRef         string            `json:"photo_ref,omitempty"   validate:"max=255"`
	Attributes       map[string]string `json:"attributes,omitempty"`
} // @name CreateBatchRequest

// ErrorResponse is returned on all error responses.
type ErrorResponse struct {
	Error string `json:"error" example:"invalid stage transition: batch is SOLD"`
} // @name ErrorResponse

// PostBatchHandler handles POST /batches requests.
type PostBatchHandler struct {
	svc *appsvcs.Services
}

// NewPostBatchHandler returns a PostBatchHandler backed by the given services.
func NewPostBatchHandler(svc *appsvcs.Services) *PostBatchHandler {
	return &PostBatchHandler{svc: svc}
}

// Execute records a producer's intake as a new batch.
//
//	@Summary		Create batch
//	@Description	Mints an identifier and records the producer stage of a new batch
//	@Tags			batches
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateBatchRequest	true	"Producer intake"
//	@Success		201		{object}	dto.BatchView
//	@Failure		400		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/batches [post]
func (h *PostBatchHandler) Execute(w http.ResponseWriter, r *http.Request) {
	req, ok := pkgvalidator.ValidateRequest[CreateBatchRequest](w, r)
	if !ok {
		return
	}

	intake := models.Intake{
		Producer:   models.Producer{Name: req.ProducerName, Location: req.ProducerLocation},
		Product:    models.Product{Type: req.ProductType, Quantity: req.Quantity, Unit: models.Unit(req.Unit)},
		Location:   req.Location,
		Attributes: req.Attributes,
		Details: models.ProducerDetails{
			PlantedOn:   req.PlantedOn,
			HarvestedOn: req.HarvestedOn,
			Notes:       req.Notes,
			PhotoRef:    req.PhotoRef,
		},
	}
	if req.RecordedAt != nil {
		intake.OccurredAt = *req.RecordedAt
	}

	v, err := h.svc.Batch.Create(r.Context(), intake)
	if err != nil {
		errhttp.WriteError(w, err)
		return
	}
	writeView(w, http.StatusCreated, v)
}

func writeView(w http.ResponseWriter, status int, v *models.BatchView) {
	out, err := dto.NewBatchView(v)
	if err != nil {
		errhttp.WriteError(w, err)
		return
	}
	if status == http.StatusCreated {
		httpx.Created(w, "/api/batches/"+out.Payload, out)
		return
	}
	httpx.JSON(w, status, out)
}
