package event_test

import (
	"context"
	"testing"

	"storefront-payments/internal/config"
	"storefront-payments/internal/event"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNewPublisher_NoBrokers(t *testing.T) {
	p := event.NewPublisher(&config.Kafka{Topic: "order-events"}, zap.NewNop())

	assert.IsType(t, event.NopPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), event.OrderEvent{Type: event.TypeOrderCompleted, OrderID: "o1"}))
	assert.NoError(t, p.Close())
}
