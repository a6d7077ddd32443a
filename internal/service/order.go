package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront-payments/internal/client"
	"storefront-payments/internal/event"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type OrderService interface {
	Cancel(ctx context.Context, userID, paymentID string) (*model.Order, error)
	ListOrders(ctx context.Context, userID string) ([]*model.Order, error)
	ListSubscriptions(ctx context.Context, userID string) ([]*model.Subscription, error)
}

type orderServiceImpl struct {
	stripeClient     client.StripeClient
	orderRepo        repository.OrderRepository
	subscriptionRepo repository.SubscriptionRepository
	publisher        event.Publisher
	log              *zap.Logger
}

func NewOrderService(
	stripeClient client.StripeClient,
	orderRepo repository.OrderRepository,
	subscriptionRepo repository.SubscriptionRepository,
	publisher event.Publisher,
	log *zap.Logger,
) OrderService {
	return &orderServiceImpl{
		stripeClient:     stripeClient,
		orderRepo:        orderRepo,
		subscriptionRepo: subscriptionRepo,
		publisher:        publisher,
		log:              log,
	}
}

// Cancel marks the caller's order canceled, then tries to stop it at the processor. Unknown
// ids, other users' orders and orders past cancellation all look the same: ErrNotFound.
func (s *orderServiceImpl) Cancel(ctx context.Context, userID, paymentID string) (*model.Order, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if paymentID == "" {
		return nil, fmt.Errorf("%w: paymentId is required", ErrValidation)
	}

	order, err := s.orderRepo.FindFirst(ctx, repository.OrderFilter{
		UserID:    userID,
		PaymentID: paymentID,
		Statuses:  model.CancelableStatuses(),
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	previous := order.Status

	order, err = s.orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusCanceled)
	if errors.Is(err, repository.ErrInvalidTransition) || errors.Is(err, gorm.ErrRecordNotFound) {
		// completed or expired between the lookup and the update
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	s.cancelRemote(ctx, order, previous)
	publishOrderEvent(ctx, s.publisher, s.log, event.TypeOrderCanceled, order)

	return order, nil
}

func (s *orderServiceImpl) cancelRemote(ctx context.Context, order *model.Order, previous model.OrderStatus) {
	log := s.log.With(zap.String("order_id", order.ID), zap.String("payment_id", *order.PaymentID))

	var err error
	switch {
	case previous == model.OrderStatusCompletedSubscription || strings.HasPrefix(*order.PaymentID, "sub_"):
		err = s.stripeClient.CancelSubscription(ctx, *order.PaymentID)
	default:
		sessionID := checkoutSessionOf(order)
		if sessionID == "" {
			return
		}
		err = s.stripeClient.ExpireSession(ctx, sessionID)
	}
	if err != nil {
		log.Warn("remote cancellation failed, local order stays canceled", zap.Error(err))
		return
	}
	log.Info("order canceled at processor")
}

func (s *orderServiceImpl) ListOrders(ctx context.Context, userID string) ([]*model.Order, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *orderServiceImpl) ListSubscriptions(ctx context.Context, userID string) ([]*model.Subscription, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	subs, err := s.subscriptionRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}
