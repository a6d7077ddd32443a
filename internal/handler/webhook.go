package handler

import (
	"io"
	"net/http"

	"storefront-payments/internal/dto"
	"storefront-payments/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	webhookService service.WebhookService
	log            *zap.Logger
}

func NewWebhookHandler(webhookService service.WebhookService, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		log:            log,
	}
}

func (h *WebhookHandler) StripeWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return c.String(http.StatusBadRequest, "cannot read body")
	}
	if len(body) > maxWebhookBody {
		h.log.Warn("webhook payload too large", zap.Int("limit", maxWebhookBody))
		return c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{
			Error:   "payload_too_large",
			Message: "webhook payload exceeds the accepted size",
		})
	}

	err = h.webhookService.HandleEvent(ctx, body, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		// any non-2xx makes stripe redeliver
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
