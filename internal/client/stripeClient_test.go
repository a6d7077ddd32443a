package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-payments/internal/client"
	"storefront-payments/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
)

func newTestStripeClient(t *testing.T, h http.HandlerFunc) client.StripeClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return client.NewStripeClient(&config.Stripe{
		SecretKey:  "sk_test_123",
		APIBaseURL: srv.URL,
		Timeout:    5 * time.Second,
	})
}

func TestCreateCheckoutSession(t *testing.T) {
	var form map[string][]string
	sc := newTestStripeClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.test/cs_test_1","status":"open","mode":"payment"}`))
	})

	s, err := sc.CreateCheckoutSession(context.Background(), &client.CheckoutSessionRequest{
		Mode:        stripe.CheckoutSessionModePayment,
		ProductName: "Pro",
		Currency:    "usd",
		UnitAmount:  9900,
		Metadata:    map[string]string{"userId": "u1", "productId": "p1"},
		SuccessURL:  "http://localhost/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   "http://localhost/cancel",
		ExpiresAt:   1700000000,
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", s.ID)
	assert.Equal(t, "https://checkout.test/cs_test_1", s.URL)
	assert.Equal(t, stripe.CheckoutSessionStatusOpen, s.Status)

	assert.Equal(t, []string{"payment"}, form["mode"])
	assert.Equal(t, []string{"u1"}, form["metadata[userId]"])
	assert.Equal(t, []string{"1700000000"}, form["expires_at"])
	assert.Equal(t, []string{"9900"}, form["line_items[0][price_data][unit_amount]"])
	assert.Empty(t, form["subscription_data[metadata][userId]"])
}

func TestCreateCheckoutSession_SubscriptionCopiesMetadata(t *testing.T) {
	var form map[string][]string
	sc := newTestStripeClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_2","object":"checkout.session","status":"open","mode":"subscription"}`))
	})

	_, err := sc.CreateCheckoutSession(context.Background(), &client.CheckoutSessionRequest{
		Mode:     stripe.CheckoutSessionModeSubscription,
		PriceID:  "price_1",
		Metadata: map[string]string{"userId": "u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"price_1"}, form["line_items[0][price]"])
	assert.Equal(t, []string{"u1"}, form["subscription_data[metadata][userId]"])
}

func TestRetrieveSession(t *testing.T) {
	sc := newTestStripeClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/checkout/sessions/cs_test_1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","status":"complete","mode":"payment",
			"payment_intent":{"id":"pi_1","object":"payment_intent"},"customer":"cus_1","metadata":{"userId":"u1"}}`))
	})

	s, err := sc.RetrieveSession(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, stripe.CheckoutSessionStatusComplete, s.Status)
	assert.Equal(t, "pi_1", s.PaymentIntentID)
	assert.Equal(t, "cus_1", s.CustomerID)
	assert.Equal(t, "pi_1", s.CanonicalPaymentID())
	assert.Equal(t, "u1", s.Metadata["userId"])
}

func TestRetrieveSession_UpstreamError(t *testing.T) {
	sc := newTestStripeClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such checkout.session"}}`))
	})

	_, err := sc.RetrieveSession(context.Background(), "cs_missing")
	require.Error(t, err)

	var stripeErr *stripe.Error
	require.ErrorAs(t, err, &stripeErr)
	assert.Equal(t, http.StatusNotFound, stripeErr.HTTPStatusCode)
}

func TestEnsureRecurringPrice_CreatesWhenMissing(t *testing.T) {
	var created map[string][]string
	sc := newTestStripeClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "/v1/prices", r.URL.Path)
			assert.Equal(t, "pro_monthly", r.URL.Query().Get("lookup_keys[0]"))
			_, _ = w.Write([]byte(`{"object":"list","data":[],"has_more":false,"url":"/v1/prices"}`))
		case http.MethodPost:
			require.NoError(t, r.ParseForm())
			created = r.PostForm
			_, _ = w.Write([]byte(`{"id":"price_new","object":"price"}`))
		}
	})

	id, err := sc.EnsureRecurringPrice(context.Background(), &client.RecurringPriceRequest{
		LookupKey:   "pro_monthly",
		ProductName: "Pro",
		Currency:    "usd",
		UnitAmount:  1500,
		Interval:    stripe.PriceRecurringIntervalMonth,
	})
	require.NoError(t, err)
	assert.Equal(t, "price_new", id)
	assert.Equal(t, []string{"month"}, created["recurring[interval]"])
	assert.Equal(t, []string{"pro_monthly"}, created["lookup_key"])
}

func TestEnsureRecurringPrice_ReusesExisting(t *testing.T) {
	posts := 0
	sc := newTestStripeClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			posts++
		}
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"price_old","object":"price"}],"has_more":false,"url":"/v1/prices"}`))
	})

	id, err := sc.EnsureRecurringPrice(context.Background(), &client.RecurringPriceRequest{
		LookupKey: "pro_yearly",
		Interval:  stripe.PriceRecurringIntervalYear,
	})
	require.NoError(t, err)
	assert.Equal(t, "price_old", id)
	assert.Zero(t, posts)
}

func TestCanonicalPaymentID(t *testing.T) {
	s := &client.CheckoutSession{ID: "cs_1", Mode: stripe.CheckoutSessionModeSubscription, SubscriptionID: "sub_1", PaymentIntentID: "pi_1"}
	assert.Equal(t, "sub_1", s.CanonicalPaymentID())

	s = &client.CheckoutSession{ID: "cs_1", Mode: stripe.CheckoutSessionModePayment}
	assert.Equal(t, "cs_1", s.CanonicalPaymentID())
}
