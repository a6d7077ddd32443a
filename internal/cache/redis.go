package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront-payments/internal/config"
	"storefront-payments/internal/model"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CheckoutCache holds the short-lived state of the completion fallback. Nothing in it is
// authoritative; losing it only costs an extra trip to the processor.
type CheckoutCache interface {
	PutPendingOrder(ctx context.Context, sessionID string, md model.CheckoutMetadata) error
	// GetPendingOrder reports ok=false when nothing was cached.
	GetPendingOrder(ctx context.Context, sessionID string) (md model.CheckoutMetadata, ok bool, err error)
	ClearPendingOrder(ctx context.Context, sessionID string) error

	AcquireProcessing(ctx context.Context, sessionID string) (bool, error)
	ReleaseProcessing(ctx context.Context, sessionID string) error

	IsProcessed(ctx context.Context, sessionID string) (bool, error)
	MarkProcessed(ctx context.Context, sessionID string) error
}

type RedisClient struct {
	client *redis.Client
	log    *zap.Logger

	pendingOrderTTL time.Duration
	lockTTL         time.Duration
	processedTTL    time.Duration
}

func NewRedisClient(redisCfg *config.Redis, checkoutCfg *config.Checkout, log *zap.Logger) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("redis connected", zap.String("addr", redisCfg.Addr))

	return NewCheckoutCache(rdb, checkoutCfg, log), nil
}

// NewCheckoutCache wraps an existing client without pinging it.
func NewCheckoutCache(rdb *redis.Client, checkoutCfg *config.Checkout, log *zap.Logger) *RedisClient {
	return &RedisClient{
		client:          rdb,
		log:             log,
		pendingOrderTTL: checkoutCfg.PendingOrderTTL,
		lockTTL:         checkoutCfg.ProcessingLockTTL,
		processedTTL:    checkoutCfg.ProcessedTTL,
	}
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func pendingOrderKey(sessionID string) string { return fmt.Sprintf("checkout:order:%s", sessionID) }
func processingKey(sessionID string) string   { return fmt.Sprintf("checkout:processing:%s", sessionID) }
func processedKey(sessionID string) string    { return fmt.Sprintf("checkout:processed:%s", sessionID) }

func (r *RedisClient) PutPendingOrder(ctx context.Context, sessionID string, md model.CheckoutMetadata) error {
	data, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("marshal pending order: %w", err)
	}
	return r.client.Set(ctx, pendingOrderKey(sessionID), data, r.pendingOrderTTL).Err()
}

func (r *RedisClient) GetPendingOrder(ctx context.Context, sessionID string) (model.CheckoutMetadata, bool, error) {
	var md model.CheckoutMetadata

	data, err := r.client.Get(ctx, pendingOrderKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return md, false, nil
	}
	if err != nil {
		return md, false, err
	}

	if err := json.Unmarshal(data, &md); err != nil {
		return md, false, fmt.Errorf("unmarshal pending order: %w", err)
	}
	return md, true, nil
}

func (r *RedisClient) ClearPendingOrder(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, pendingOrderKey(sessionID)).Err()
}

func (r *RedisClient) AcquireProcessing(ctx context.Context, sessionID string) (bool, error) {
	return r.client.SetNX(ctx, processingKey(sessionID), "1", r.lockTTL).Result()
}

func (r *RedisClient) ReleaseProcessing(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, processingKey(sessionID)).Err()
}

func (r *RedisClient) IsProcessed(ctx context.Context, sessionID string) (bool, error) {
	exists, err := r.client.Exists(ctx, processedKey(sessionID)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

func (r *RedisClient) MarkProcessed(ctx context.Context, sessionID string) error {
	return r.client.Set(ctx, processedKey(sessionID), "1", r.processedTTL).Err()
}
