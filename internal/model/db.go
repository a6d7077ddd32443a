package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID        string `gorm:"primaryKey;size:64;not null"`
	Email     string `gorm:"size:255;uniqueIndex;not null"`
	Name      string `gorm:"size:128"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Product struct {
	ID              string   `gorm:"primaryKey;size:64;not null"`
	Name            string   `gorm:"size:128;not null"`
	Description     string   `gorm:"size:512"`
	Price           int64    `gorm:"not null"` // minor currency unit
	Currency        string   `gorm:"size:8;not null"`
	BillingInterval PlanType `gorm:"size:16"` // empty for one-time products
}

type Order struct {
	ID        string      `gorm:"primaryKey;size:36;not null"`
	UserID    string      `gorm:"size:64;index;not null"`
	ProductID string      `gorm:"size:64;index;not null"`
	Amount    int64       `gorm:"not null"`
	Currency  string      `gorm:"size:8;not null"`
	OrderType OrderType   `gorm:"size:16;not null"`
	Status    OrderStatus `gorm:"size:32;index;not null"`
	// payment intent / subscription id once paid, checkout session id while pending
	PaymentID *string     `gorm:"size:255;uniqueIndex"`
	SessionID *string     `gorm:"size:255;index"`
	ExpiresAt *time.Time  `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

type Subscription struct {
	ID               string   `gorm:"primaryKey;size:36;not null"`
	StripeID         string   `gorm:"size:255;uniqueIndex;not null"`
	UserID           string   `gorm:"size:64;index;not null"`
	Status           string   `gorm:"size:32;not null"` // mirrors the processor: active, canceled, past_due, ...
	PlanType         PlanType `gorm:"size:16;not null"`
	CurrentPeriodEnd time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;uniqueIndex;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}
