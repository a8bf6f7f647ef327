package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ptcoach/pt-manager/internal/logging"
	"ptcoach/pt-manager/internal/service"
)

// statusFor maps service errors to HTTP status codes. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidationFailed),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrFutureCheckDate),
		errors.Is(err, service.ErrPhotoNotOwned),
		errors.Is(err, service.ErrResetTokenInvalid):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAuthenticationFailed),
		errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotClientAccount),
		errors.Is(err, service.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, service.ErrClientNotFound),
		errors.Is(err, service.ErrPaymentNotFound),
		errors.Is(err, service.ErrCheckNotFound),
		errors.Is(err, service.ErrAnamnesiNotFound),
		errors.Is(err, service.ErrThreadNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrCheckLocked):
		return http.StatusConflict
	case errors.Is(err, service.ErrCoachNotFound):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes the single JSON error shape. Internal errors are
// logged and replaced with fallback so details do not leak.
func respondError(c *gin.Context, log logging.Logger, err error, fallback string) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Error(c.Request.Context(), fallback, "path", c.FullPath(), "error", err)
		abortWithError(c, code, fallback)
		return
	}
	abortWithError(c, code, err.Error())
}
