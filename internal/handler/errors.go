package handler

import (
	"errors"
	"net/http"

	"storefront-payments/internal/dto"
	"storefront-payments/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrInvalidSignature):
		return http.StatusBadRequest, "invalid_signature"
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrUpstream):
		return http.StatusBadGateway, "upstream_failure"
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// respondError writes err as a JSON body. Internal errors are logged and hidden from the caller.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	status, code := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		msg = "something went wrong, please try again"
	}
	return c.JSON(status, dto.ErrorResponse{Error: code, Message: msg})
}
