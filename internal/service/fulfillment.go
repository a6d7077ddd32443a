package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-payments/internal/event"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// orderCompleter is the single write path for paid checkouts, shared by the webhook and the
// redirect fallback. Whichever caller arrives second ends up reading the first one's row.
type orderCompleter struct {
	orderRepo       repository.OrderRepository
	publisher       event.Publisher
	defaultCurrency string
	log             *zap.Logger
}

func (c *orderCompleter) complete(ctx context.Context, sessionID, paymentID string, md model.CheckoutMetadata) (*model.Order, error) {
	to := md.OrderType.CompletedStatus()

	order, err := c.orderRepo.CompletePending(ctx, sessionID, paymentID, to)
	switch {
	case err == nil:
		c.publish(ctx, event.TypeOrderCompleted, order)
		return order, nil
	case errors.Is(err, repository.ErrDuplicatePaymentID):
	case errors.Is(err, gorm.ErrRecordNotFound):
		// the checkout keeps its one row even when that row already left pending
		existing, err := c.orderRepo.FindFirst(ctx, repository.OrderFilter{CheckoutRef: sessionID})
		if err == nil {
			if existing.Status != to {
				c.log.Warn("checkout paid after its order was closed",
					zap.String("order_id", existing.ID),
					zap.String("session_id", sessionID),
					zap.String("payment_id", paymentID),
					zap.String("status", string(existing.Status)),
				)
			}
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("find order for checkout: %w", err)
		}
	default:
		return nil, fmt.Errorf("complete pending order: %w", err)
	}

	currency := md.Currency
	if currency == "" {
		currency = c.defaultCurrency
	}

	order, created, err := c.orderRepo.FindOrCreate(ctx, &model.Order{
		UserID:    md.UserID,
		ProductID: md.ProductID,
		Amount:    md.Amount,
		Currency:  currency,
		OrderType: md.OrderType,
		Status:    to,
		PaymentID: &paymentID,
		SessionID: &sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("record completed order: %w", err)
	}

	if created {
		c.log.Info("completed order created without pending row",
			zap.String("order_id", order.ID),
			zap.String("session_id", sessionID),
			zap.String("payment_id", paymentID),
		)
		c.publish(ctx, event.TypeOrderCompleted, order)
	}
	return order, nil
}

// publish is best-effort; the order row is already committed.
func (c *orderCompleter) publish(ctx context.Context, eventType string, order *model.Order) {
	publishOrderEvent(ctx, c.publisher, c.log, eventType, order)
}

func publishOrderEvent(ctx context.Context, publisher event.Publisher, log *zap.Logger, eventType string, order *model.Order) {
	evt := event.OrderEvent{
		Type:      eventType,
		OrderID:   order.ID,
		UserID:    order.UserID,
		ProductID: order.ProductID,
		Status:    string(order.Status),
		Amount:    order.Amount,
		Currency:  order.Currency,
		Timestamp: time.Now().UTC(),
	}
	if order.PaymentID != nil {
		evt.PaymentID = *order.PaymentID
	}

	if err := publisher.Publish(ctx, evt); err != nil {
		log.Warn("publish order event failed",
			zap.String("type", eventType),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}
}
