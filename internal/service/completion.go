package service

import (
	"context"
	"errors"
	"fmt"

	"storefront-payments/internal/cache"
	"storefront-payments/internal/client"
	"storefront-payments/internal/event"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"

	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CompletionResult struct {
	Order *model.Order
	// AlreadyProcessed is set when an earlier call or the webhook had recorded the order
	AlreadyProcessed bool
}

type CompletionService interface {
	Complete(ctx context.Context, userID, sessionID string) (*CompletionResult, error)
	CheckSession(ctx context.Context, userID, sessionID string) (*model.Order, error)
}

type completionServiceImpl struct {
	stripeClient  client.StripeClient
	orderRepo     repository.OrderRepository
	checkoutCache cache.CheckoutCache
	completer     *orderCompleter
	log           *zap.Logger
}

func NewCompletionService(
	stripeClient client.StripeClient,
	orderRepo repository.OrderRepository,
	checkoutCache cache.CheckoutCache,
	publisher event.Publisher,
	defaultCurrency string,
	log *zap.Logger,
) CompletionService {
	return &completionServiceImpl{
		stripeClient:  stripeClient,
		orderRepo:     orderRepo,
		checkoutCache: checkoutCache,
		completer: &orderCompleter{
			orderRepo:       orderRepo,
			publisher:       publisher,
			defaultCurrency: defaultCurrency,
			log:             log,
		},
		log: log,
	}
}

// Complete records the order for a checkout the browser returned from. The processed marker is
// written only after the order is persisted, so a failed attempt can simply be retried.
func (s *completionServiceImpl) Complete(ctx context.Context, userID, sessionID string) (*CompletionResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrValidation)
	}
	log := s.log.With(zap.String("session_id", sessionID), zap.String("user_id", userID))

	// the lock only spares the processor duplicate calls; the store stays correct without it
	acquired, err := s.checkoutCache.AcquireProcessing(ctx, sessionID)
	switch {
	case err != nil:
		log.Warn("acquire processing lock failed, continuing without it", zap.Error(err))
	case !acquired:
		return nil, fmt.Errorf("%w: checkout %s is already being processed", ErrConflict, sessionID)
	default:
		defer func() {
			if err := s.checkoutCache.ReleaseProcessing(context.WithoutCancel(ctx), sessionID); err != nil {
				log.Warn("release processing lock failed", zap.Error(err))
			}
		}()
	}

	existing, err := s.findCompleted(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	processed, err := s.checkoutCache.IsProcessed(ctx, sessionID)
	if err != nil {
		log.Warn("read processed marker failed", zap.Error(err))
	}
	if existing != nil {
		if !processed {
			s.markProcessed(ctx, log, sessionID)
		}
		return &CompletionResult{Order: existing, AlreadyProcessed: true}, nil
	}
	if processed {
		// the order may have moved on since, e.g. a canceled subscription
		order, err := s.orderRepo.FindFirst(ctx, repository.OrderFilter{UserID: userID, CheckoutRef: sessionID})
		if err == nil {
			return &CompletionResult{Order: order, AlreadyProcessed: true}, nil
		}
		log.Warn("processed marker set but no order found", zap.Error(err))
	}

	session, err := s.stripeClient.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if session.Status != stripe.CheckoutSessionStatusComplete {
		return nil, fmt.Errorf("%w: checkout %s is %s", ErrValidation, sessionID, session.Status)
	}
	if owner := session.Metadata[model.MetadataUserID]; owner != "" && owner != userID {
		return nil, fmt.Errorf("%w: checkout %s", ErrNotFound, sessionID)
	}

	md, err := s.metadataFor(ctx, log, session)
	if err != nil {
		return nil, err
	}
	if md.UserID != userID {
		return nil, fmt.Errorf("%w: checkout %s", ErrNotFound, sessionID)
	}

	order, err := s.completer.complete(ctx, sessionID, session.CanonicalPaymentID(), md)
	if err != nil {
		return nil, err
	}

	s.markProcessed(ctx, log, sessionID)
	if err := s.checkoutCache.ClearPendingOrder(ctx, sessionID); err != nil {
		log.Warn("clear pending order failed", zap.Error(err))
	}

	log.Info("order completed from redirect", zap.String("order_id", order.ID), zap.String("status", string(order.Status)))
	return &CompletionResult{Order: order}, nil
}

func (s *completionServiceImpl) CheckSession(ctx context.Context, userID, sessionID string) (*model.Order, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrValidation)
	}

	order, err := s.orderRepo.FindFirst(ctx, repository.OrderFilter{UserID: userID, CheckoutRef: sessionID})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no order for checkout %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return order, nil
}

func (s *completionServiceImpl) findCompleted(ctx context.Context, userID, sessionID string) (*model.Order, error) {
	order, err := s.orderRepo.FindFirst(ctx, repository.OrderFilter{
		UserID:      userID,
		CheckoutRef: sessionID,
		Statuses:    model.CompletedStatuses(),
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find completed order: %w", err)
	}
	return order, nil
}

// metadataFor prefers the snapshot cached at checkout time and falls back to the session.
func (s *completionServiceImpl) metadataFor(ctx context.Context, log *zap.Logger, session *client.CheckoutSession) (model.CheckoutMetadata, error) {
	md, ok, err := s.checkoutCache.GetPendingOrder(ctx, session.ID)
	if err != nil {
		log.Warn("read pending order failed", zap.Error(err))
	}
	if ok {
		return md, nil
	}

	md, err = model.ParseCheckoutMetadata(session.Metadata)
	if err != nil {
		return md, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return md, nil
}

func (s *completionServiceImpl) markProcessed(ctx context.Context, log *zap.Logger, sessionID string) {
	if err := s.checkoutCache.MarkProcessed(ctx, sessionID); err != nil {
		log.Warn("set processed marker failed", zap.Error(err))
	}
}
