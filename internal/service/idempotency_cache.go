// internal/service/idempotency_cache.go
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jawaddepp/crypto-payments-api/internal/models"
	"github.com/jawaddepp/crypto-payments-api/pkg/redis"
)

// idempotencyTTL keeps replayed create requests answerable for a day.
const idempotencyTTL = 24 * time.Hour

// RedisIdempotencyCache stores create responses keyed by the caller's
// idempotency key. Cache errors are swallowed: a miss just means the
// create runs normally.
type RedisIdempotencyCache struct {
	client *redis.Client
}

func NewRedisIdempotencyCache(client *redis.Client) *RedisIdempotencyCache {
	return &RedisIdempotencyCache{client: client}
}

func (c *RedisIdempotencyCache) Get(ctx context.Context, key string) (*models.Payment, bool) {
	data, err := c.client.Get(ctx, key)
	if err != nil {
		return nil, false
	}

	var payment models.Payment
	if err := json.Unmarshal([]byte(data), &payment); err != nil {
		return nil, false
	}
	return &payment, true
}

func (c *RedisIdempotencyCache) Put(ctx context.Context, key string, payment *models.Payment) {
	data, err := json.Marshal(payment)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key, data, idempotencyTTL)
}
