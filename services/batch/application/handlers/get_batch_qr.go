package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/ghuser/agritrack/pkg/errhttp"
	"github.com/ghuser/agritrack/pkg/httpx"
	appsvcs "github.com/ghuser/agritrack/services/batch/application/services"
)

const (
	defaultQRSize = 256
	minQRSize     = 64
	maxQRSize     = 1024
)

// GetBatchQRHandler renders a batch's verify URL as a QR code.
type GetBatchQRHandler struct {
	svc *appsvcs.Services
}

// NewGetBatchQRHandler returns a GetBatchQRHandler backed by the given services.
func NewGetBatchQRHandler(svc *appsvcs.Services) *GetBatchQRHandler {
	return &GetBatchQRHandler{svc: svc}
}

// Execute writes a PNG QR code that encodes the batch's verify URL.
//
//	@Summary		Batch QR code
//	@Description	Renders the verify URL of an existing batch as a PNG QR code
//	@Tags			batches
//	@Produce		png
//	@Param			payload	path	string	true	"Encoded identifier"
//	@Param			size	query	int		false	"Image size in pixels (64-1024, default 256)"
//	@Success		200		{file}	binary
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/batches/{payload}/qr [get]
func (h *GetBatchQRHandler) Execute(w http.ResponseWriter, r *http.Request) {
	size := defaultQRSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < minQRSize || n > maxQRSize {
			httpx.JSONError(w, http.StatusBadRequest, "size must be an integer between 64 and 1024")
			return
		}
		size = n
	}

	v, err := h.svc.Batch.ResolvePayload(r.Context(), chi.URLParam(r, "payload"))
	if err != nil {
		errhttp.WriteError(w, err)
		return
	}

	png, err := qrcode.Encode(v.VerifyURL, qrcode.Medium, size)
	if err != nil {
		errhttp.WriteError(w, err)
		return
	}
	// The verify URL depends only on the identifier, so the image never changes.
	httpx.Image(w, "image/png", png, "public, max-age=86400, immutable")
}
