package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront-payments/internal/client"
	"storefront-payments/internal/event"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"

	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

type SweepResult struct {
	Processed int64 `json:"processed"`
}

type SweeperService interface {
	Sweep(ctx context.Context, now time.Time) (*SweepResult, error)
}

type sweeperServiceImpl struct {
	stripeClient client.StripeClient
	orderRepo    repository.OrderRepository
	publisher    event.Publisher
	log          *zap.Logger
}

func NewSweeperService(
	stripeClient client.StripeClient,
	orderRepo repository.OrderRepository,
	publisher event.Publisher,
	log *zap.Logger,
) SweeperService {
	return &sweeperServiceImpl{
		stripeClient: stripeClient,
		orderRepo:    orderRepo,
		publisher:    publisher,
		log:          log,
	}
}

// Sweep expires every pending order whose checkout window closed before now. The local status
// change is final; expiring the processor session afterwards is best-effort.
func (s *sweeperServiceImpl) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	now = now.UTC()
	filter := repository.OrderFilter{
		Statuses:      model.PendingStatuses(),
		ExpiresBefore: &now,
	}

	stale, err := s.orderRepo.FindMany(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find stale orders: %w", err)
	}
	if len(stale) == 0 {
		return &SweepResult{}, nil
	}

	ids := make([]string, len(stale))
	for i, o := range stale {
		ids[i] = o.ID
	}
	filter.IDs = ids

	processed, err := s.orderRepo.UpdateMany(ctx, filter, repository.OrderPatch{Status: model.OrderStatusExpired})
	if err != nil {
		return nil, fmt.Errorf("expire stale orders: %w", err)
	}

	// rows that completed in between keep their status; skip them
	expired, err := s.orderRepo.FindMany(ctx, repository.OrderFilter{IDs: ids, Statuses: []model.OrderStatus{model.OrderStatusExpired}})
	if err != nil {
		s.log.Warn("reload expired orders failed", zap.Error(err))
		expired = nil
	}

	for _, o := range expired {
		s.expireRemote(ctx, o)
		publishOrderEvent(ctx, s.publisher, s.log, event.TypeOrderExpired, o)
	}

	s.log.Info("expiration sweep finished", zap.Int("candidates", len(stale)), zap.Int64("processed", processed))
	return &SweepResult{Processed: processed}, nil
}

func (s *sweeperServiceImpl) expireRemote(ctx context.Context, o *model.Order) {
	sessionID := checkoutSessionOf(o)
	if sessionID == "" {
		return
	}
	log := s.log.With(zap.String("order_id", o.ID), zap.String("session_id", sessionID))

	session, err := s.stripeClient.RetrieveSession(ctx, sessionID)
	if err != nil {
		log.Warn("retrieve session for expiry failed", zap.Error(err))
		return
	}
	if session.Status == stripe.CheckoutSessionStatusExpired || session.Status == stripe.CheckoutSessionStatusComplete {
		return
	}

	if err := s.stripeClient.ExpireSession(ctx, sessionID); err != nil {
		log.Warn("expire processor session failed", zap.Error(err))
	}
}

// checkoutSessionOf returns the processor checkout session behind an order, if any.
func checkoutSessionOf(o *model.Order) string {
	if o.SessionID != nil && *o.SessionID != "" {
		return *o.SessionID
	}
	if o.PaymentID != nil && strings.HasPrefix(*o.PaymentID, "cs_") {
		return *o.PaymentID
	}
	return ""
}
