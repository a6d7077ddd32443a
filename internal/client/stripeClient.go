package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"storefront-payments/internal/config"

	"github.com/stripe/stripe-go/v80"
	stripeclient "github.com/stripe/stripe-go/v80/client"
)

type StripeClient interface {
	CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	ExpireSession(ctx context.Context, sessionID string) error
	ListSubscriptions(ctx context.Context, customerID string, limit int64) ([]*SubscriptionInfo, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	EnsureRecurringPrice(ctx context.Context, req *RecurringPriceRequest) (string, error)
}

type CheckoutSessionRequest struct {
	Mode stripe.CheckoutSessionMode
	// PriceID wins over the inline product fields when set
	PriceID       string
	ProductName   string
	Description   string
	Currency      string
	UnitAmount    int64
	Metadata      map[string]string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	ExpiresAt     int64
}

type CheckoutSession struct {
	ID              string
	URL             string
	Status          stripe.CheckoutSessionStatus
	Mode            stripe.CheckoutSessionMode
	PaymentIntentID string
	SubscriptionID  string
	CustomerID      string
	Metadata        map[string]string
}

// CanonicalPaymentID is the id the local order is keyed by once paid: the subscription for
// recurring checkouts, the payment intent otherwise, the session itself as a last resort.
func (s *CheckoutSession) CanonicalPaymentID() string {
	if s.Mode == stripe.CheckoutSessionModeSubscription && s.SubscriptionID != "" {
		return s.SubscriptionID
	}
	if s.PaymentIntentID != "" {
		return s.PaymentIntentID
	}
	if s.SubscriptionID != "" {
		return s.SubscriptionID
	}
	return s.ID
}

type SubscriptionInfo struct {
	ID               string
	CustomerID       string
	Status           string
	Interval         string
	CurrentPeriodEnd int64
	Metadata         map[string]string
}

type RecurringPriceRequest struct {
	LookupKey   string
	ProductName string
	Currency    string
	UnitAmount  int64
	Interval    stripe.PriceRecurringInterval
}

func NewCheckoutSession(s *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:       s.ID,
		URL:      s.URL,
		Status:   s.Status,
		Mode:     s.Mode,
		Metadata: s.Metadata,
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	return out
}

func NewSubscriptionInfo(s *stripe.Subscription) *SubscriptionInfo {
	out := &SubscriptionInfo{
		ID:               s.ID,
		Status:           string(s.Status),
		CurrentPeriodEnd: s.CurrentPeriodEnd,
		Metadata:         s.Metadata,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		if item.Price != nil && item.Price.Recurring != nil {
			out.Interval = string(item.Price.Recurring.Interval)
		}
	}
	return out
}

type stripeClientImpl struct {
	api *stripeclient.API
}

func NewStripeClient(stripeCfg *config.Stripe) StripeClient {
	httpClient := &http.Client{
		Timeout: stripeCfg.Timeout,
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient: httpClient,
	}
	if stripeCfg.APIBaseURL != "" {
		backendCfg.URL = stripe.String(strings.TrimSuffix(stripeCfg.APIBaseURL, "/"))
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, &stripe.BackendConfig{HTTPClient: httpClient}),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, &stripe.BackendConfig{HTTPClient: httpClient}),
	}

	return &stripeClientImpl{
		api: stripeclient.New(stripeCfg.SecretKey, backends),
	}
}

func (c *stripeClientImpl) CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSession, error) {
	lineItem := &stripe.CheckoutSessionLineItemParams{
		Quantity: stripe.Int64(1),
	}
	if req.PriceID != "" {
		lineItem.Price = stripe.String(req.PriceID)
	} else {
		lineItem.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(req.Currency),
			UnitAmount: stripe.Int64(req.UnitAmount),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(req.ProductName),
			},
		}
		if req.Description != "" {
			lineItem.PriceData.ProductData.Description = stripe.String(req.Description)
		}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(req.Mode)),
		LineItems:  []*stripe.CheckoutSessionLineItemParams{lineItem},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.ExpiresAt > 0 {
		params.ExpiresAt = stripe.Int64(req.ExpiresAt)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	// subscription lifecycle events only carry the subscription's own metadata
	if req.Mode == stripe.CheckoutSessionModeSubscription {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: req.Metadata,
		}
	}

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return NewCheckoutSession(s), nil
}

func (c *stripeClientImpl) RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")
	params.AddExpand("subscription")

	s, err := c.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session %s: %w", sessionID, err)
	}
	return NewCheckoutSession(s), nil
}

func (c *stripeClientImpl) ExpireSession(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx

	if _, err := c.api.CheckoutSessions.Expire(sessionID, params); err != nil {
		return fmt.Errorf("expire checkout session %s: %w", sessionID, err)
	}
	return nil
}

func (c *stripeClientImpl) ListSubscriptions(ctx context.Context, customerID string, limit int64) ([]*SubscriptionInfo, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(limit)
	params.Single = true
	params.AddExpand("data.items.data.price")

	var subs []*SubscriptionInfo
	it := c.api.Subscriptions.List(params)
	for it.Next() {
		subs = append(subs, NewSubscriptionInfo(it.Subscription()))
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list subscriptions for %s: %w", customerID, err)
	}
	return subs, nil
}

func (c *stripeClientImpl) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	if _, err := c.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return fmt.Errorf("cancel subscription %s: %w", subscriptionID, err)
	}
	return nil
}

// EnsureRecurringPrice returns the active price registered under the lookup key, creating it
// when the processor has none yet.
func (c *stripeClientImpl) EnsureRecurringPrice(ctx context.Context, req *RecurringPriceRequest) (string, error) {
	listParams := &stripe.PriceListParams{
		LookupKeys: []*string{stripe.String(req.LookupKey)},
		Active:     stripe.Bool(true),
	}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)
	listParams.Single = true

	it := c.api.Prices.List(listParams)
	if it.Next() {
		return it.Price().ID, nil
	}
	if err := it.Err(); err != nil {
		return "", fmt.Errorf("search price %s: %w", req.LookupKey, err)
	}

	params := &stripe.PriceParams{
		Currency:          stripe.String(req.Currency),
		UnitAmount:        stripe.Int64(req.UnitAmount),
		LookupKey:         stripe.String(req.LookupKey),
		TransferLookupKey: stripe.Bool(true),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(string(req.Interval)),
		},
		ProductData: &stripe.PriceProductDataParams{
			Name: stripe.String(req.ProductName),
		},
	}
	params.Context = ctx

	p, err := c.api.Prices.New(params)
	if err != nil {
		return "", fmt.Errorf("create price %s: %w", req.LookupKey, err)
	}
	return p.ID, nil
}
