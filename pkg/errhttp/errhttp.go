// Package errhttp maps domain sentinel errors to HTTP status codes.
package errhttp

import (
	"errors"
	"net/http"

	"github.com/ghuser/agritrack/pkg/httpx"
	batchdomain "github.com/ghuser/agritrack/services/batch/domain"
)

// WriteError maps err to an HTTP status code and writes a JSON error response.
// Wrapped sentinels match through errors.Is. Unrecognized errors become 500
// with the message masked.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	httpx.JSONError(w, status, httpx.SafeError(err, status))
}

// StatusFor returns the HTTP status WriteError would use for err.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, batchdomain.ErrBatchNotFound):
		return http.StatusNotFound // 404
	case errors.Is(err, batchdomain.ErrMalformedIdentifier):
		return http.StatusBadRequest // 400
	case errors.Is(err, batchdomain.ErrInvalidTransition),
		errors.Is(err, batchdomain.ErrNonMonotonicTime),
		errors.Is(err, batchdomain.ErrDuplicateIdentifier):
		return http.StatusConflict // 409
	case errors.Is(err, batchdomain.ErrInvalidIntake),
		errors.Is(err, batchdomain.ErrInvalidStage):
		return http.StatusUnprocessableEntity // 422
	default:
		return http.StatusInternalServerError // 500, including ErrIdentifierExhausted
	}
}
