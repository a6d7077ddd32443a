package handler

import (
	"errors"
	"net/http"
	"time"

	"storefront-payments/internal/dto"
	"storefront-payments/internal/middleware"
	"storefront-payments/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const manualCancelHint = "If you were charged, cancel from the receipt email link or contact support with your payment id."

type OrderHandler struct {
	completionService service.CompletionService
	orderService      service.OrderService
	sweeperService    service.SweeperService
	log               *zap.Logger
}

func NewOrderHandler(
	completionService service.CompletionService,
	orderService service.OrderService,
	sweeperService service.SweeperService,
	log *zap.Logger,
) *OrderHandler {
	return &OrderHandler{
		completionService: completionService,
		orderService:      orderService,
		sweeperService:    sweeperService,
		log:               log,
	}
}

// Complete is called by the success page after the hosted checkout redirects back.
func (h *OrderHandler) Complete(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CompleteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "validation_failed", Message: "invalid request body"})
	}
	if !req.PaymentSuccess && !req.SubscriptionSuccess {
		h.log.Debug("completion without success flag", zap.String("session_id", req.SessionID))
	}

	res, err := h.completionService.Complete(ctx, middleware.UserID(c), req.SessionID)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, dto.CompleteResponse{
		Order:            dto.NewOrder(res.Order),
		AlreadyProcessed: res.AlreadyProcessed,
	})
}

func (h *OrderHandler) CheckSession(c echo.Context) error {
	ctx := c.Request().Context()

	order, err := h.completionService.CheckSession(ctx, middleware.UserID(c), c.QueryParam("session_id"))
	if errors.Is(err, service.ErrNotFound) {
		return c.JSON(http.StatusOK, dto.CheckSessionResponse{Exists: false})
	}
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, dto.CheckSessionResponse{Exists: true, Order: dto.NewOrder(order)})
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()

	orders, err := h.orderService.ListOrders(ctx, middleware.UserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto.NewOrders(orders))
}

func (h *OrderHandler) ListSubscriptions(c echo.Context) error {
	ctx := c.Request().Context()

	subs, err := h.orderService.ListSubscriptions(ctx, middleware.UserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto.NewSubscriptions(subs))
}

func (h *OrderHandler) Cancel(c echo.Context) error {
	ctx := c.Request().Context()
	paymentID := c.QueryParam("paymentId")

	order, err := h.orderService.Cancel(ctx, middleware.UserID(c), paymentID)
	if errors.Is(err, service.ErrNotFound) {
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "not_found",
			Message: "We could not find an active order or subscription with this payment id. It may already be canceled or expired.",
			Hint:    manualCancelHint,
		})
	}
	if err != nil {
		return respondError(c, h.log, err)
	}

	paid := ""
	if order.PaymentID != nil {
		paid = *order.PaymentID
	}
	return c.JSON(http.StatusOK, dto.CancelResponse{PaymentID: paid, Status: string(order.Status)})
}

// Sweep is triggered by the scheduler; access is checked by CronKeyAuth.
func (h *OrderHandler) Sweep(c echo.Context) error {
	ctx := c.Request().Context()

	res, err := h.sweeperService.Sweep(ctx, time.Now().UTC())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}
