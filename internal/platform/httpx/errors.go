package httpx

import (
	"errors"
	"net/http"

	"github.com/scholaris/scholaris/internal/shared"
)

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrConflict),
		errors.Is(err, shared.ErrInvalidCredentials):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err as a {"message"} body. Internal errors carry the
// underlying message only when exposeInternal is set.
func RespondError(w http.ResponseWriter, err error, exposeInternal bool) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError && !exposeInternal {
		Message(w, status, "Internal server error")
		return
	}
	Message(w, status, err.Error())
}
