package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"storefront-payments/internal/client"
	"storefront-payments/internal/config"
	"storefront-payments/internal/event"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"
	"storefront-payments/internal/service"
	"storefront-payments/internal/testutil"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testUserID        = "demo-user-001"
	otherUserID       = "user-002"
	testWebhookSecret = "whsec_test_secret"
)

var errProcessorDown = errors.New("processor unavailable")

// ---- processor fake ----

type fakeStripe struct {
	mu sync.Mutex

	nextID        int
	sessions      map[string]*client.CheckoutSession
	subscriptions map[string][]*client.SubscriptionInfo // by customer

	createReqs []*client.CheckoutSessionRequest
	priceReqs  []*client.RecurringPriceRequest
	expired    []string
	canceled   []string

	createErr   error
	retrieveErr error
	expireErr   error
	cancelErr   error
	listErr     error
}

func newFakeStripe() *fakeStripe {
	return &fakeStripe{
		sessions:      map[string]*client.CheckoutSession{},
		subscriptions: map[string][]*client.SubscriptionInfo{},
	}
}

func (f *fakeStripe) CreateCheckoutSession(_ context.Context, req *client.CheckoutSessionRequest) (*client.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createReqs = append(f.createReqs, req)
	if f.createErr != nil {
		return nil, f.createErr
	}

	f.nextID++
	s := &client.CheckoutSession{
		ID:       fmt.Sprintf("cs_test_%d", f.nextID),
		Status:   stripe.CheckoutSessionStatusOpen,
		Mode:     req.Mode,
		Metadata: req.Metadata,
	}
	s.URL = "https://checkout.test/" + s.ID
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeStripe) RetrieveSession(_ context.Context, sessionID string) (*client.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("no such checkout session %s", sessionID)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStripe) ExpireSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, sessionID)
	if f.expireErr != nil {
		return f.expireErr
	}
	if s, ok := f.sessions[sessionID]; ok {
		s.Status = stripe.CheckoutSessionStatusExpired
	}
	return nil
}

func (f *fakeStripe) ListSubscriptions(_ context.Context, customerID string, limit int64) ([]*client.SubscriptionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	subs := f.subscriptions[customerID]
	if int64(len(subs)) > limit {
		subs = subs[:limit]
	}
	return subs, nil
}

func (f *fakeStripe) CancelSubscription(_ context.Context, subscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, subscriptionID)
	return f.cancelErr
}

func (f *fakeStripe) EnsureRecurringPrice(_ context.Context, req *client.RecurringPriceRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.priceReqs = append(f.priceReqs, req)
	return "price_" + req.LookupKey, nil
}

// pay simulates the customer finishing the hosted page.
func (f *fakeStripe) pay(sessionID, paymentID, customerID string) *client.CheckoutSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[sessionID]
	s.Status = stripe.CheckoutSessionStatusComplete
	s.CustomerID = customerID
	if s.Mode == stripe.CheckoutSessionModeSubscription {
		s.SubscriptionID = paymentID
	} else {
		s.PaymentIntentID = paymentID
	}
	cp := *s
	return &cp
}

func (f *fakeStripe) expiredSessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.expired...)
}

// ---- cache fake ----

type fakeCache struct {
	mu        sync.Mutex
	pending   map[string]model.CheckoutMetadata
	locks     map[string]bool
	processed map[string]bool

	// down makes every call fail, like an unreachable redis
	down error
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		pending:   map[string]model.CheckoutMetadata{},
		locks:     map[string]bool{},
		processed: map[string]bool{},
	}
}

func (c *fakeCache) PutPendingOrder(_ context.Context, sessionID string, md model.CheckoutMetadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down != nil {
		return c.down
	}
	c.pending[sessionID] = md
	return nil
}

func (c *fakeCache) GetPendingOrder(_ context.Context, sessionID string) (model.CheckoutMetadata, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down != nil {
		return model.CheckoutMetadata{}, false, c.down
	}
	md, ok := c.pending[sessionID]
	return md, ok, nil
}

func (c *fakeCache) ClearPendingOrder(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down != nil {
		return c.down
	}
	delete(c.pending, sessionID)
	return nil
}

func (c *fakeCache) AcquireProcessing(_ context.Context, sessionID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down != nil {
		return false, c.down
	}
	if c.locks[sessionID] {
		return false, nil
	}
	c.locks[sessionID] = true
	return true, nil
}

func (c *fakeCache) ReleaseProcessing(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down != nil {
		return c.down
	}
	delete(c.locks, sessionID)
	return nil
}

func (c *fakeCache) IsProcessed(_ context.Context, sessionID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down != nil {
		return false, c.down
	}
	return c.processed[sessionID], nil
}

func (c *fakeCache) MarkProcessed(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down != nil {
		return c.down
	}
	c.processed[sessionID] = true
	return nil
}

func (c *fakeCache) isProcessed(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processed[sessionID]
}

// ---- publisher fake ----

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, evt event.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// ---- wiring ----

type testEnv struct {
	db     *gorm.DB
	orders repository.OrderRepository
	subs   repository.SubscriptionRepository
	events repository.WebhookEventRepository

	stripe *fakeStripe
	cache  *fakeCache
	pub    *recordingPublisher

	checkout   service.CheckoutService
	webhook    service.WebhookService
	completion service.CompletionService
	sweeper    service.SweeperService
	orderSvc   service.OrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewDB(t)
	log := zap.NewNop()

	products := repository.NewProductRepository(db)
	users := repository.NewUserRepository(db)
	require.NoError(t, products.Seed(ctx))
	require.NoError(t, users.Seed(ctx))
	require.NoError(t, db.Create(&model.User{ID: otherUserID, Email: "other@example.com"}).Error)

	e := &testEnv{
		db:     db,
		orders: repository.NewOrderRepository(db),
		subs:   repository.NewSubscriptionRepository(db),
		events: repository.NewWebhookEventRepository(db),
		stripe: newFakeStripe(),
		cache:  newFakeCache(),
		pub:    &recordingPublisher{},
	}

	checkoutCfg := config.Checkout{Expiration: 30 * time.Minute, Currency: "usd"}
	e.checkout = service.NewCheckoutService(e.stripe, products, users, e.orders, e.cache, "http://shop.test/", checkoutCfg, log)
	e.webhook = service.NewWebhookService(testWebhookSecret, e.stripe, e.orders, e.subs, e.events, e.pub, "usd", log)
	e.completion = service.NewCompletionService(e.stripe, e.orders, e.cache, e.pub, "usd", log)
	e.sweeper = service.NewSweeperService(e.stripe, e.orders, e.pub, log)
	e.orderSvc = service.NewOrderService(e.stripe, e.orders, e.subs, e.pub, log)
	return e
}

// startCheckout runs the checkout path: processor session plus local pending row.
func (e *testEnv) startCheckout(t *testing.T, userID, productID string, orderType model.OrderType) *service.CheckoutResult {
	t.Helper()
	ctx := context.Background()
	res, err := e.checkout.CreateSession(ctx, userID, productID, orderType)
	require.NoError(t, err)
	_, err = e.checkout.RecordPendingOrder(ctx, res)
	require.NoError(t, err)
	return res
}

func (e *testEnv) countOrders(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.Order{}).Count(&n).Error)
	return n
}

func (e *testEnv) countSubscriptions(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.Subscription{}).Count(&n).Error)
	return n
}

// ---- webhook payloads ----

func eventPayload(t *testing.T, id string, eventType stripe.EventType, object map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": "2024-09-30.acacia",
		"created":     time.Now().Unix(),
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	return body
}

func sign(payload []byte, secret string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	}).Header
}

func sessionObject(s *client.CheckoutSession) map[string]any {
	obj := map[string]any{
		"id":             s.ID,
		"object":         "checkout.session",
		"mode":           s.Mode,
		"status":         s.Status,
		"payment_status": "paid",
		"metadata":       s.Metadata,
	}
	if s.PaymentIntentID != "" {
		obj["payment_intent"] = s.PaymentIntentID
	}
	if s.SubscriptionID != "" {
		obj["subscription"] = s.SubscriptionID
	}
	if s.CustomerID != "" {
		obj["customer"] = s.CustomerID
	}
	return obj
}
