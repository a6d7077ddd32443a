package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-payments/internal/config"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	TypeOrderCompleted = "order.completed"
	TypeOrderExpired   = "order.expired"
	TypeOrderCanceled  = "order.canceled"
)

type OrderEvent struct {
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	PaymentID string    `json:"payment_id,omitempty"`
	Status    string    `json:"status"`
	Amount    int64     `json:"amount"` // smallest currency unit
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, evt OrderEvent) error
	Close() error
}

type kafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewPublisher returns a kafka backed publisher, or one that drops events when no brokers are
// configured.
func NewPublisher(kafkaCfg *config.Kafka, log *zap.Logger) Publisher {
	if len(kafkaCfg.Brokers) == 0 {
		log.Info("kafka brokers not configured, order events disabled")
		return NopPublisher{}
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(kafkaCfg.Brokers...),
		Topic:        kafkaCfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	log.Info("kafka producer initialized",
		zap.String("topic", kafkaCfg.Topic),
		zap.Strings("brokers", kafkaCfg.Brokers),
	)
	return &kafkaPublisher{writer: w, log: log}
}

func (p *kafkaPublisher) Publish(ctx context.Context, evt OrderEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	// keyed by order so one order's events stay on one partition
	msg := kafka.Message{
		Key:   []byte(evt.OrderID),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write order event: %w", err)
	}

	p.log.Debug("order event sent", zap.String("type", evt.Type), zap.String("order_id", evt.OrderID))
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, OrderEvent) error { return nil }
func (NopPublisher) Close() error                              { return nil }
