package model

import (
	"errors"
	"fmt"
	"strconv"
)

// metadata keys carried on processor checkout sessions and subscriptions
const (
	MetadataUserID    = "userId"
	MetadataProductID = "productId"
	MetadataAmount    = "amount"
	MetadataCurrency  = "currency"
	MetadataOrderType = "orderType"
	MetadataPlanType  = "planType"
)

var ErrIncompleteMetadata = errors.New("incomplete checkout metadata")

// CheckoutMetadata is the order snapshot embedded in a checkout session. It is also what the
// checkout cache keeps for the completion fallback.
type CheckoutMetadata struct {
	UserID    string    `json:"userId"`
	ProductID string    `json:"productId"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency,omitempty"`
	OrderType OrderType `json:"orderType"`
	PlanType  PlanType  `json:"planType,omitempty"`
}

func (m CheckoutMetadata) ToMap() map[string]string {
	md := map[string]string{
		MetadataUserID:    m.UserID,
		MetadataProductID: m.ProductID,
		MetadataAmount:    strconv.FormatInt(m.Amount, 10),
		MetadataOrderType: string(m.OrderType),
	}
	if m.Currency != "" {
		md[MetadataCurrency] = m.Currency
	}
	if m.PlanType != "" {
		md[MetadataPlanType] = string(m.PlanType)
	}
	return md
}

func ParseCheckoutMetadata(md map[string]string) (CheckoutMetadata, error) {
	m := CheckoutMetadata{
		UserID:    md[MetadataUserID],
		ProductID: md[MetadataProductID],
		Currency:  md[MetadataCurrency],
		OrderType: OrderType(md[MetadataOrderType]),
		PlanType:  PlanType(md[MetadataPlanType]),
	}
	if m.UserID == "" || m.ProductID == "" {
		return m, fmt.Errorf("%w: missing userId or productId", ErrIncompleteMetadata)
	}

	amount, err := strconv.ParseInt(md[MetadataAmount], 10, 64)
	if err != nil || amount <= 0 {
		return m, fmt.Errorf("%w: invalid amount %q", ErrIncompleteMetadata, md[MetadataAmount])
	}
	m.Amount = amount

	if m.OrderType == "" {
		m.OrderType = OrderTypeOneTime
	}
	if !m.OrderType.Valid() {
		return m, fmt.Errorf("%w: unknown order type %q", ErrIncompleteMetadata, m.OrderType)
	}
	if m.OrderType == OrderTypeSubscription && !m.PlanType.Valid() {
		m.PlanType = PlanTypeMonthly
	}

	return m, nil
}
