package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"notesync/internal/domain"
	"notesync/pkg/response"

	"go.uber.org/zap"
)

// writeError maps domain sentinels onto HTTP statuses. Anything unclassified
// is logged and reported as an internal error without its message.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		response.Invalid(w, verr.Error(), verr.Errors)
	case errors.Is(err, domain.ErrValidation):
		response.Error(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		response.Unauthorized(w, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		response.Forbidden(w, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		response.Conflict(w, err.Error())
	case errors.Is(err, domain.ErrConflict):
		response.Error(w, http.StatusServiceUnavailable, "concurrent update, retry")
	default:
		logger.Error("request failed", zap.Error(err))
		response.InternalError(w, "internal server error")
	}
}

// decode reads a JSON body into v and runs its validate tags.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.NewValidationError("body", "invalid JSON")
	}
	return domain.ValidateStruct(v)
}
