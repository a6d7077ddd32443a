package handler

import (
	"net/http"

	"storefront-payments/internal/dto"
	"storefront-payments/internal/middleware"
	"storefront-payments/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	checkoutService service.CheckoutService
	log             *zap.Logger
}

func NewCheckoutHandler(checkoutService service.CheckoutService, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		log:             log,
	}
}

func (h *CheckoutHandler) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()

	products, err := h.checkoutService.ListProducts(ctx)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto.NewProducts(products))
}

func (h *CheckoutHandler) CreateCheckout(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "validation_failed", Message: "invalid request body"})
	}

	res, err := h.checkoutService.CreateSession(ctx, middleware.UserID(c), req.ProductID, req.OrderType)
	if err != nil {
		return respondError(c, h.log, err)
	}

	// the webhook and the redirect both recover the order from session metadata
	if _, err := h.checkoutService.RecordPendingOrder(ctx, res); err != nil {
		h.log.Error("record pending order failed", zap.String("session_id", res.SessionID), zap.Error(err))
	}

	return c.JSON(http.StatusOK, dto.CheckoutResponse{
		SessionID: res.SessionID,
		URL:       res.URL,
		ExpiresAt: res.ExpiresAt,
	})
}
