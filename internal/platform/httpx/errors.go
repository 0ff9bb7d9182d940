package httpx

import (
	"errors"
	"net/http"

	"github.com/mealpoint/mealpoint/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Business-rule errors carrying structured context are mapped by the owning
// handlers before falling through to this generic mapping.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrInvalidInput):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrAlreadyVerified),
		errors.Is(err, shared.ErrAlreadyLocked),
		errors.Is(err, shared.ErrNotLocked),
		errors.Is(err, shared.ErrLockedSupply):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
