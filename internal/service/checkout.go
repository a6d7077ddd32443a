package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-payments/internal/cache"
	"storefront-payments/internal/client"
	"storefront-payments/internal/config"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"

	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CheckoutResult struct {
	SessionID string
	URL       string
	ExpiresAt time.Time
	Metadata  model.CheckoutMetadata
}

type CheckoutService interface {
	CreateSession(ctx context.Context, userID, productID string, orderType model.OrderType) (*CheckoutResult, error)
	// RecordPendingOrder stores the local pending row and the redirect snapshot for a session
	// returned by CreateSession.
	RecordPendingOrder(ctx context.Context, res *CheckoutResult) (*model.Order, error)
	ListProducts(ctx context.Context) ([]*model.Product, error)
}

type checkoutServiceImpl struct {
	stripeClient  client.StripeClient
	productRepo   repository.ProductRepository
	userRepo      repository.UserRepository
	orderRepo     repository.OrderRepository
	checkoutCache cache.CheckoutCache
	baseURL       string
	checkoutCfg   config.Checkout
	log           *zap.Logger
}

func NewCheckoutService(
	stripeClient client.StripeClient,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	orderRepo repository.OrderRepository,
	checkoutCache cache.CheckoutCache,
	baseURL string,
	checkoutCfg config.Checkout,
	log *zap.Logger,
) CheckoutService {
	return &checkoutServiceImpl{
		stripeClient:  stripeClient,
		productRepo:   productRepo,
		userRepo:      userRepo,
		orderRepo:     orderRepo,
		checkoutCache: checkoutCache,
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		checkoutCfg:   checkoutCfg,
		log:           log,
	}
}

func (s *checkoutServiceImpl) CreateSession(ctx context.Context, userID, productID string, orderType model.OrderType) (*CheckoutResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if productID == "" {
		return nil, fmt.Errorf("%w: productId is required", ErrValidation)
	}
	if orderType == "" {
		orderType = model.OrderTypeOneTime
	}
	if !orderType.Valid() {
		return nil, fmt.Errorf("%w: unknown order type %q", ErrValidation, orderType)
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	currency := strings.ToLower(product.Currency)
	if currency == "" {
		currency = s.checkoutCfg.Currency
	}

	md := model.CheckoutMetadata{
		UserID:    userID,
		ProductID: product.ID,
		Amount:    product.Price,
		Currency:  currency,
		OrderType: orderType,
	}
	expiresAt := time.Now().UTC().Add(s.checkoutCfg.Expiration)

	req := &client.CheckoutSessionRequest{
		CustomerEmail: user.Email,
		ExpiresAt:     expiresAt.Unix(),
		CancelURL:     s.baseURL + "/checkout?canceled=true",
	}

	switch orderType {
	case model.OrderTypeSubscription:
		if !product.BillingInterval.Valid() {
			return nil, fmt.Errorf("%w: product %s has no billing interval", ErrValidation, product.ID)
		}
		md.PlanType = product.BillingInterval

		priceID, err := s.stripeClient.EnsureRecurringPrice(ctx, &client.RecurringPriceRequest{
			LookupKey:   fmt.Sprintf("%s_%s", product.ID, product.BillingInterval),
			ProductName: product.Name,
			Currency:    currency,
			UnitAmount:  product.Price,
			Interval:    recurringInterval(product.BillingInterval),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: ensure recurring price: %v", ErrUpstream, err)
		}

		req.Mode = stripe.CheckoutSessionModeSubscription
		req.PriceID = priceID
		req.SuccessURL = s.baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}&subscription_success=true"
	default:
		req.Mode = stripe.CheckoutSessionModePayment
		req.ProductName = product.Name
		req.Description = product.Description
		req.Currency = currency
		req.UnitAmount = product.Price
		req.SuccessURL = s.baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}&payment_success=true"
	}
	req.Metadata = md.ToMap()

	session, err := s.stripeClient.CreateCheckoutSession(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	s.log.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("user_id", userID),
		zap.String("product_id", product.ID),
		zap.String("order_type", string(orderType)),
	)

	return &CheckoutResult{
		SessionID: session.ID,
		URL:       session.URL,
		ExpiresAt: expiresAt,
		Metadata:  md,
	}, nil
}

func (s *checkoutServiceImpl) RecordPendingOrder(ctx context.Context, res *CheckoutResult) (*model.Order, error) {
	sessionID := res.SessionID
	expiresAt := res.ExpiresAt

	order, _, err := s.orderRepo.FindOrCreate(ctx, &model.Order{
		UserID:    res.Metadata.UserID,
		ProductID: res.Metadata.ProductID,
		Amount:    res.Metadata.Amount,
		Currency:  res.Metadata.Currency,
		OrderType: res.Metadata.OrderType,
		Status:    res.Metadata.OrderType.PendingStatus(),
		PaymentID: &sessionID,
		SessionID: &sessionID,
		ExpiresAt: &expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("record pending order: %w", err)
	}

	// the fallback reads the snapshot before asking the processor
	if err := s.checkoutCache.PutPendingOrder(ctx, sessionID, res.Metadata); err != nil {
		s.log.Warn("cache pending order failed", zap.String("session_id", sessionID), zap.Error(err))
	}

	return order, nil
}

func (s *checkoutServiceImpl) ListProducts(ctx context.Context) ([]*model.Product, error) {
	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func recurringInterval(p model.PlanType) stripe.PriceRecurringInterval {
	if p == model.PlanTypeYearly {
		return stripe.PriceRecurringIntervalYear
	}
	return stripe.PriceRecurringIntervalMonth
}
