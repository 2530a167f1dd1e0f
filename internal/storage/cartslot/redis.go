package cartslot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/averlon/storefront/internal/domain/cart"
)

const keyPrefix = "cart:"

var _ cart.Slots = (*RedisStore)(nil)

// RedisStore persists cart slots as JSON values in redis. Slots expire
// after ttl; a non-positive ttl keeps them forever.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore returns a RedisStore over the given client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

// Load implements cart.Slots.
func (r *RedisStore) Load(ctx context.Context, key string) (*cart.Cart, error) {
	data, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}

	var c cart.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart %q: %w", key, err)
	}
	return &c, nil
}

// Save implements cart.Slots.
func (r *RedisStore) Save(ctx context.Context, key string, c *cart.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart %q: %w", key, err)
	}
	if err := r.client.Set(ctx, keyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Clear implements cart.Slots.
func (r *RedisStore) Clear(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}
