package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ghuser/agritrack/pkg/errhttp"
	appsvcs "github.com/ghuser/agritrack/services/batch/application/services"
)

// GetBatchHandler resolves a scanned payload to the batch's journey.
type GetBatchHandler struct {
	svc *appsvcs.Services
}

// NewGetBatchHandler returns a GetBatchHandler backed by the given services.
func NewGetBatchHandler(svc *appsvcs.Services) *GetBatchHandler {
	return &GetBatchHandler{svc: svc}
}

// Execute returns the full view of a batch.
//
//	@Summary		Resolve batch
//	@Description	Decodes a payload (or bare identifier) and returns the batch journey with its verification summary
//	@Tags			batches
//	@Produce		json
//	@Param			payload	path		string	true	"Encoded identifier"	example(AGT1-BTC01ARZ3NDEKTSV4RRFFQ69G5FAV-Z)
//	@Success		200		{object}	dto.BatchView
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/batches/{payload} [get]
func (h *GetBatchHandler) Execute(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Batch.ResolvePayload(r.Context(), chi.URLParam(r, "payload"))
	if err != nil {
		errhttp.WriteError(w, err)
		return
	}
	writeView(w, http.StatusOK, v)
}
