package handlers

import (
	"net/http"
	"strconv"

	"github.com/ghuser/agritrack/pkg/errhttp"
	"github.com/ghuser/agritrack/pkg/httpx"
	"github.com/ghuser/agritrack/services/batch/application/dto"
	appsvcs "github.com/ghuser/agritrack/services/batch/application/services"
	"github.com/ghuser/agritrack/services/batch/domain/repositories"
)

// ListBatchesResponse is one page of a producer's batches.
type ListBatchesResponse struct {
	Batches []dto.BatchView `json:"batches"`
	Total   int             `json:"total"  example:"42"`
	Limit   int             `json:"limit"  example:"20"`
	Offset  int             `json:"offset" example:"0"`
} // @name ListBatchesResponse

// ListBatchesHandler handles GET /batches requests.
type ListBatchesHandler struct {
	svc *appsvcs.Services
}

// NewListBatchesHandler returns a ListBatchesHandler backed by the given services.
func NewListBatchesHandler(svc *appsvcs.Services) *ListBatchesHandler {
	return &ListBatchesHandler{svc: svc}
}

// Execute lists a producer's batches, newest first.
//
//	@Summary		List batches
//	@Description	Lists the batches created by a producer, newest first
//	@Tags			batches
//	@Produce		json
//	@Param			producer	query		string	true	"Producer name"
//	@Param			limit		query		int		false	"Page size (default 20, max 100)"
//	@Param			offset		query		int		false	"Records to skip"
//	@Success		200			{object}	ListBatchesResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		422			{object}	ErrorResponse
//	@Router			/batches [get]
func (h *ListBatchesHandler) Execute(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "offset must be an integer")
		return
	}

	opts := repositories.QueryOpts{Limit: limit, Offset: offset}
	views, total, err := h.svc.Batch.List(r.Context(), q.Get("producer"), opts)
	if err != nil {
		errhttp.WriteError(w, err)
		return
	}

	resp := ListBatchesResponse{
		Batches: make([]dto.BatchView, 0, len(views)),
		Total:   total,
		Limit:   effectiveLimit(limit),
		Offset:  max(offset, 0),
	}
	for _, v := range views {
		out, err := dto.NewBatchView(v)
		if err != nil {
			errhttp.WriteError(w, err)
			return
		}
		resp.Batches = append(resp.Batches, out)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func effectiveLimit(limit int) int {
	switch {
	case limit <= 0:
		return appsvcs.DefaultListLimit
	case limit > appsvcs.MaxListLimit:
		return appsvcs.MaxListLimit
	default:
		return limit
	}
}
