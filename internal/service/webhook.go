package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"storefront-payments/internal/client"
	"storefront-payments/internal/event"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

type WebhookService interface {
	// HandleEvent returns nil for every event that should be acknowledged, including ones that
	// were skipped. ErrInvalidSignature means the payload was not processed at all. Any other
	// error means the store failed and the processor should redeliver.
	HandleEvent(ctx context.Context, payload []byte, signatureHeader string) error
}

type webhookServiceImpl struct {
	webhookSecret    string
	stripeClient     client.StripeClient
	subscriptionRepo repository.SubscriptionRepository
	webhookEventRepo repository.WebhookEventRepository
	completer        *orderCompleter
	log              *zap.Logger
}

func NewWebhookService(
	webhookSecret string,
	stripeClient client.StripeClient,
	orderRepo repository.OrderRepository,
	subscriptionRepo repository.SubscriptionRepository,
	webhookEventRepo repository.WebhookEventRepository,
	publisher event.Publisher,
	defaultCurrency string,
	log *zap.Logger,
) WebhookService {
	return &webhookServiceImpl{
		webhookSecret:    webhookSecret,
		stripeClient:     stripeClient,
		subscriptionRepo: subscriptionRepo,
		webhookEventRepo: webhookEventRepo,
		completer: &orderCompleter{
			orderRepo:       orderRepo,
			publisher:       publisher,
			defaultCurrency: defaultCurrency,
			log:             log,
		},
		log: log,
	}
}

func (s *webhookServiceImpl) HandleEvent(ctx context.Context, payload []byte, signatureHeader string) error {
	if s.webhookSecret == "" || signatureHeader == "" {
		return ErrInvalidSignature
	}

	evt, err := webhook.ConstructEventWithOptions(payload, signatureHeader, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	log := s.log.With(zap.String("event_id", evt.ID), zap.String("event_type", string(evt.Type)))

	if evt.Data == nil {
		log.Warn("webhook event without data, skipping")
		return nil
	}

	seen, err := s.webhookEventRepo.Exists(ctx, evt.ID)
	if err != nil {
		return fmt.Errorf("check webhook event: %w", err)
	}
	if seen {
		log.Info("webhook event already processed")
		return nil
	}

	switch evt.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		err = s.handleCheckoutCompleted(ctx, log, &evt)
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		err = s.handleSubscriptionChanged(ctx, log, &evt)
	case stripe.EventTypeCheckoutSessionExpired,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled:
		// nothing was completed for these attempts; the sweeper owns the pending row
		log.Info("checkout attempt did not complete")
	default:
		if strings.Contains(string(evt.Type), "cancel") || strings.Contains(string(evt.Type), "failed") {
			log.Info("checkout attempt did not complete")
		} else {
			log.Debug("unhandled webhook event")
		}
	}
	if err != nil {
		return err
	}

	if err := s.webhookEventRepo.MarkProcessed(ctx, evt.ID, string(evt.Type)); err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	return nil
}

func (s *webhookServiceImpl) handleCheckoutCompleted(ctx context.Context, log *zap.Logger, evt *stripe.Event) error {
	var raw stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &raw); err != nil {
		log.Warn("malformed checkout session payload", zap.Error(err))
		return nil
	}
	session := client.NewCheckoutSession(&raw)
	log = log.With(zap.String("session_id", session.ID))

	// delayed payment methods complete later via async_payment_succeeded
	if evt.Type == stripe.EventTypeCheckoutSessionCompleted && raw.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		log.Info("checkout completed with payment still pending")
		return nil
	}

	md, err := model.ParseCheckoutMetadata(session.Metadata)
	if err != nil {
		log.Warn("checkout session metadata incomplete, skipping", zap.Error(err))
		return nil
	}

	order, err := s.completer.complete(ctx, session.ID, session.CanonicalPaymentID(), md)
	if err != nil {
		return err
	}
	log.Info("order completed from webhook", zap.String("order_id", order.ID), zap.String("status", string(order.Status)))

	if md.OrderType != model.OrderTypeSubscription {
		return nil
	}
	if session.CustomerID == "" {
		log.Warn("subscription checkout without customer")
		return nil
	}

	subs, err := s.stripeClient.ListSubscriptions(ctx, session.CustomerID, 1)
	if err != nil {
		// customer.subscription.* events carry the same data
		log.Warn("list customer subscriptions failed", zap.Error(err))
		return nil
	}
	if len(subs) == 0 {
		log.Warn("no subscription found for customer", zap.String("customer_id", session.CustomerID))
		return nil
	}

	sub := subs[0]
	_, err = s.subscriptionRepo.Upsert(ctx, &model.Subscription{
		StripeID:         sub.ID,
		UserID:           md.UserID,
		Status:           sub.Status,
		PlanType:         md.PlanType,
		CurrentPeriodEnd: time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	})
	if err != nil {
		return fmt.Errorf("upsert subscription %s: %w", sub.ID, err)
	}
	return nil
}

func (s *webhookServiceImpl) handleSubscriptionChanged(ctx context.Context, log *zap.Logger, evt *stripe.Event) error {
	var raw stripe.Subscription
	if err := json.Unmarshal(evt.Data.Raw, &raw); err != nil {
		log.Warn("malformed subscription payload", zap.Error(err))
		return nil
	}
	sub := client.NewSubscriptionInfo(&raw)
	log = log.With(zap.String("subscription_id", sub.ID))

	userID := sub.Metadata[model.MetadataUserID]
	if userID == "" {
		log.Warn("subscription without userId metadata, skipping")
		return nil
	}

	saved, err := s.subscriptionRepo.Upsert(ctx, &model.Subscription{
		StripeID:         sub.ID,
		UserID:           userID,
		Status:           sub.Status,
		PlanType:         planTypeOf(sub),
		CurrentPeriodEnd: time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	})
	if err != nil {
		return fmt.Errorf("upsert subscription %s: %w", sub.ID, err)
	}

	log.Info("subscription synced", zap.String("status", saved.Status))
	return nil
}

func planTypeOf(sub *client.SubscriptionInfo) model.PlanType {
	if p := model.PlanType(sub.Metadata[model.MetadataPlanType]); p.Valid() {
		return p
	}
	if sub.Interval == string(stripe.PriceRecurringIntervalYear) {
		return model.PlanTypeYearly
	}
	return model.PlanTypeMonthly
}
