package model

type OrderType string

const (
	OrderTypeOneTime      OrderType = "one-time"
	OrderTypeSubscription OrderType = "subscription"
)

func (t OrderType) Valid() bool {
	return t == OrderTypeOneTime || t == OrderTypeSubscription
}

func (t OrderType) PendingStatus() OrderStatus {
	if t == OrderTypeSubscription {
		return OrderStatusPendingSubscription
	}
	return OrderStatusPending
}

func (t OrderType) CompletedStatus() OrderStatus {
	if t == OrderTypeSubscription {
		return OrderStatusCompletedSubscription
	}
	return OrderStatusCompleted
}

type OrderStatus string

const (
	OrderStatusPending               OrderStatus = "pending"
	OrderStatusPendingSubscription   OrderStatus = "pending_subscription"
	OrderStatusCompleted             OrderStatus = "completed"
	OrderStatusCompletedSubscription OrderStatus = "completed_subscription"
	OrderStatusExpired               OrderStatus = "expired"
	OrderStatusCanceled              OrderStatus = "canceled"
	OrderStatusFailed                OrderStatus = "failed"
)

// transitions maps a target status to the statuses it may be entered from.
// Nothing leads back into a pending status.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusCompleted:             {OrderStatusPending},
	OrderStatusCompletedSubscription: {OrderStatusPendingSubscription},
	OrderStatusExpired:               {OrderStatusPending, OrderStatusPendingSubscription},
	OrderStatusCanceled:              {OrderStatusPending, OrderStatusPendingSubscription, OrderStatusCompletedSubscription},
}

// AllowedFrom returns the statuses an order must be in to move to the given status.
func AllowedFrom(to OrderStatus) []OrderStatus {
	return transitions[to]
}

func CanTransition(from, to OrderStatus) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsPending() bool {
	return s == OrderStatusPending || s == OrderStatusPendingSubscription
}

func (s OrderStatus) IsCompleted() bool {
	return s == OrderStatusCompleted || s == OrderStatusCompletedSubscription
}

func (s OrderStatus) IsTerminal() bool {
	return !s.IsPending()
}

func PendingStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusPending, OrderStatusPendingSubscription}
}

func CompletedStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusCompleted, OrderStatusCompletedSubscription}
}

// CancelableStatuses are the statuses a user may cancel from.
func CancelableStatuses() []OrderStatus {
	return AllowedFrom(OrderStatusCanceled)
}

type PlanType string

const (
	PlanTypeMonthly PlanType = "monthly"
	PlanTypeYearly  PlanType = "yearly"
)

func (p PlanType) Valid() bool {
	return p == PlanTypeMonthly || p == PlanTypeYearly
}
