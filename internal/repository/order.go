package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-payments/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrDuplicatePaymentID = errors.New("order with this payment id already exists")
	ErrInvalidTransition  = errors.New("order status transition not allowed")
)

// OrderFilter narrows order lookups. Zero fields are ignored.
type OrderFilter struct {
	IDs       []string
	UserID    string
	PaymentID string
	SessionID string
	// CheckoutRef matches either session_id or payment_id
	CheckoutRef   string
	Statuses      []model.OrderStatus
	ExpiresBefore *time.Time
}

type OrderPatch struct {
	Status model.OrderStatus
}

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	FindOrCreate(ctx context.Context, order *model.Order) (*model.Order, bool, error)
	FindByID(ctx context.Context, id string) (*model.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*model.Order, error)
	FindFirst(ctx context.Context, filter OrderFilter) (*model.Order, error)
	FindMany(ctx context.Context, filter OrderFilter) ([]*model.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Order, error)
	UpdateStatus(ctx context.Context, id string, to model.OrderStatus) (*model.Order, error)
	UpdateMany(ctx context.Context, filter OrderFilter, patch OrderPatch) (int64, error)
	CompletePending(ctx context.Context, sessionID, paymentID string, to model.OrderStatus) (*model.Order, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func applyOrderFilter(q *gorm.DB, f OrderFilter) *gorm.DB {
	if len(f.IDs) > 0 {
		q = q.Where("id IN ?", f.IDs)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.PaymentID != "" {
		q = q.Where("payment_id = ?", f.PaymentID)
	}
	if f.SessionID != "" {
		q = q.Where("session_id = ?", f.SessionID)
	}
	if f.CheckoutRef != "" {
		q = q.Where("(session_id = ? OR payment_id = ?)", f.CheckoutRef, f.CheckoutRef)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.ExpiresBefore != nil {
		q = q.Where("expires_at IS NOT NULL AND expires_at < ?", *f.ExpiresBefore)
	}
	return q
}

// Create inserts a new order. A clash on payment_id is reported as ErrDuplicatePaymentID.
func (r *orderRepoImpl) Create(ctx context.Context, order *model.Order) error {
	err := r.db.WithContext(ctx).Create(order).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicatePaymentID
	}
	return err
}

// FindOrCreate inserts the order unless one with the same payment_id exists, in which case the
// existing row is returned untouched. The bool reports whether a row was inserted.
func (r *orderRepoImpl) FindOrCreate(ctx context.Context, order *model.Order) (*model.Order, bool, error) {
	if order.PaymentID == nil || *order.PaymentID == "" {
		return nil, false, errors.New("find or create order: payment id is required")
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_id"}},
			DoNothing: true,
		}).
		Create(order)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return nil, false, fmt.Errorf("insert order: %w", result.Error)
	}
	if result.Error == nil && result.RowsAffected == 1 {
		return order, true, nil
	}

	existing, err := r.FindByPaymentID(ctx, *order.PaymentID)
	if err != nil {
		return nil, false, fmt.Errorf("fetch existing order: %w", err)
	}
	return existing, false, nil
}

func (r *orderRepoImpl) FindByID(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) FindByPaymentID(ctx context.Context, paymentID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) FindFirst(ctx context.Context, filter OrderFilter) (*model.Order, error) {
	var order model.Order
	err := applyOrderFilter(r.db.WithContext(ctx), filter).
		Order("created_at DESC").
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) FindMany(ctx context.Context, filter OrderFilter) ([]*model.Order, error) {
	var orders []*model.Order
	err := applyOrderFilter(r.db.WithContext(ctx), filter).
		Order("created_at ASC").
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepoImpl) ListByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

// UpdateStatus moves one order forward. The write is guarded by the allowed source statuses so
// a concurrent writer can never push an order backwards. Repeating a transition that already
// happened returns the row as is.
func (r *orderRepoImpl) UpdateStatus(ctx context.Context, id string, to model.OrderStatus) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Order{}).
			Where("id = ? AND status IN ?", id, model.AllowedFrom(to)).
			Updates(map[string]interface{}{
				"status":     to,
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}

		if err := tx.Where("id = ?", id).First(&order).Error; err != nil {
			return err
		}
		if result.RowsAffected == 0 && order.Status != to {
			return ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &order, nil
}

// UpdateMany applies the patch to every matching order whose current status permits it.
func (r *orderRepoImpl) UpdateMany(ctx context.Context, filter OrderFilter, patch OrderPatch) (int64, error) {
	q := applyOrderFilter(r.db.WithContext(ctx).Model(&model.Order{}), filter).
		Where("status IN ?", model.AllowedFrom(patch.Status))

	result := q.Updates(map[string]interface{}{
		"status":     patch.Status,
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CompletePending flips the pending order created for a checkout session to its completed
// status and rekeys it by the canonical payment id. gorm.ErrRecordNotFound means no pending
// row was left to complete.
func (r *orderRepoImpl) CompletePending(ctx context.Context, sessionID, paymentID string, to model.OrderStatus) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Order{}).
			Where("(session_id = ? OR payment_id = ?) AND status IN ?", sessionID, sessionID, model.AllowedFrom(to)).
			Updates(map[string]interface{}{
				"status":     to,
				"payment_id": paymentID,
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
				return ErrDuplicatePaymentID
			}
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.Where("payment_id = ?", paymentID).First(&order).Error
	})
	if err != nil {
		return nil, err
	}

	return &order, nil
}
