package dto

import (
	"strings"
	"time"

	"storefront-payments/internal/model"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Price           int64  `json:"price"`
	DisplayPrice    string `json:"displayPrice"`
	Currency        string `json:"currency"`
	BillingInterval string `json:"billingInterval,omitempty"`
}

type CheckoutRequest struct {
	ProductID string          `json:"productId"`
	OrderType model.OrderType `json:"orderType"`
}

type CheckoutResponse struct {
	SessionID string    `json:"sessionId"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type CompleteRequest struct {
	SessionID           string `json:"session_id" query:"session_id"`
	PaymentSuccess      bool   `json:"payment_success" query:"payment_success"`
	SubscriptionSuccess bool   `json:"subscription_success" query:"subscription_success"`
}

type CompleteResponse struct {
	Order            *Order `json:"order"`
	AlreadyProcessed bool   `json:"alreadyProcessed"`
}

type CheckSessionResponse struct {
	Exists bool   `json:"exists"`
	Order  *Order `json:"order,omitempty"`
}

type Order struct {
	ID            string     `json:"id"`
	ProductID     string     `json:"productId"`
	Amount        int64      `json:"amount"`
	DisplayAmount string     `json:"displayAmount"`
	Currency      string     `json:"currency"`
	OrderType     string     `json:"orderType"`
	Status        string     `json:"status"`
	PaymentID     string     `json:"paymentId,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type Subscription struct {
	ID               string    `json:"id"`
	StripeID         string    `json:"stripeId"`
	Status           string    `json:"status"`
	PlanType         string    `json:"planType"`
	CurrentPeriodEnd time.Time `json:"currentPeriodEnd"`
}

type CancelResponse struct {
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

func NewProducts(products []*model.Product) []*Product {
	out := make([]*Product, len(products))
	for i, p := range products {
		out[i] = &Product{
			ID:              p.ID,
			Name:            p.Name,
			Description:     p.Description,
			Price:           p.Price,
			DisplayPrice:    FormatAmount(p.Price, p.Currency),
			Currency:        p.Currency,
			BillingInterval: string(p.BillingInterval),
		}
	}
	return out
}

func NewOrder(o *model.Order) *Order {
	out := &Order{
		ID:            o.ID,
		ProductID:     o.ProductID,
		Amount:        o.Amount,
		DisplayAmount: FormatAmount(o.Amount, o.Currency),
		Currency:      o.Currency,
		OrderType:     string(o.OrderType),
		Status:        string(o.Status),
		ExpiresAt:     o.ExpiresAt,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.PaymentID != nil {
		out.PaymentID = *o.PaymentID
	}
	return out
}

func NewOrders(orders []*model.Order) []*Order {
	out := make([]*Order, len(orders))
	for i, o := range orders {
		out[i] = NewOrder(o)
	}
	return out
}

func NewSubscriptions(subs []*model.Subscription) []*Subscription {
	out := make([]*Subscription, len(subs))
	for i, s := range subs {
		out[i] = &Subscription{
			ID:               s.ID,
			StripeID:         s.StripeID,
			Status:           s.Status,
			PlanType:         string(s.PlanType),
			CurrentPeriodEnd: s.CurrentPeriodEnd,
		}
	}
	return out
}

// currencies whose minor unit is the major unit
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true, "krw": true,
	"mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true, "vuv": true, "xaf": true,
	"xof": true, "xpf": true,
}

// FormatAmount renders a minor-unit amount in major units, e.g. 9900 usd -> "99.00".
func FormatAmount(amount int64, currency string) string {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return decimal.NewFromInt(amount).String()
	}
	return decimal.New(amount, -2).StringFixed(2)
}
