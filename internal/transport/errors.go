package transport

import (
	"errors"
	"net/http"

	"marketplace/internal/middleware"
	"marketplace/internal/repository"
	"marketplace/internal/service"

	"go.uber.org/zap"
)

// respondError maps a service error onto the HTTP error taxonomy. Anything
// unrecognised is logged and answered with a generic message naming action.
func respondError(w http.ResponseWriter, logger *zap.Logger, err error, action string) {
	var verr *service.ValidationError

	switch {
	case errors.As(err, &verr):
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: verr.Field, Message: verr.Message},
		})

	case errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrCartLineNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrNotProductOwner):
		middleware.RespondWithError(w, http.StatusForbidden, err.Error())

	case errors.Is(err, repository.ErrInvalidTransition),
		errors.Is(err, repository.ErrCartChanged),
		errors.Is(err, repository.ErrUserAlreadyExists):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())

	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired):
		middleware.RespondWithError(w, http.StatusUnauthorized, err.Error())

	default:
		logger.Error("Failed to "+action, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to "+action)
	}
}
