package repository

import (
	"context"
	"time"

	"storefront-payments/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubscriptionRepository interface {
	Upsert(ctx context.Context, sub *model.Subscription) (*model.Subscription, error)
	GetByStripeID(ctx context.Context, stripeID string) (*model.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error)
}

type subscriptionRepoImpl struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepoImpl{
		db: db,
	}
}

// Upsert writes the processor's view of a subscription keyed by its processor id. Replays of
// the same event converge on one row.
func (r *subscriptionRepoImpl) Upsert(ctx context.Context, sub *model.Subscription) (*model.Subscription, error) {
	sub.UpdatedAt = time.Now().UTC()
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "plan_type", "current_period_end", "updated_at"}),
		}).
		Create(sub).Error
	if err != nil {
		return nil, err
	}

	return r.GetByStripeID(ctx, sub.StripeID)
}

func (r *subscriptionRepoImpl) GetByStripeID(ctx context.Context, stripeID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("stripe_id = ?", stripeID).
		First(&sub).
		Error

	if err != nil {
		return nil, err
	}

	return &sub, nil
}

func (r *subscriptionRepoImpl) ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&subs).
		Error

	if err != nil {
		return nil, err
	}

	return subs, nil
}
