// Package cache holds the redis read cache for the public box listing.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bookineo/bookineo/services/api/internal/domain"
)

const allBoxesKey = "bookineo:boxes:all"

// BoxCache implements repository.BoxCache. Cached boxes carry only their
// public JSON fields, so callers that need storage keys read the database.
type BoxCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewBoxCache(client redis.Cmdable, ttl time.Duration) *BoxCache {
	return &BoxCache{client: client, ttl: ttl}
}

// GetAll returns the cached listing. The bool is false on a miss.
func (c *BoxCache) GetAll(ctx context.Context) ([]domain.Box, bool, error) {
	data, err := c.client.Get(ctx, allBoxesKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get boxes: %w", err)
	}

	var boxes []domain.Box
	if err := json.Unmarshal(data, &boxes); err != nil {
		return nil, false, fmt.Errorf("unmarshal boxes: %w", err)
	}
	return boxes, true, nil
}

func (c *BoxCache) SetAll(ctx context.Context, boxes []domain.Box) error {
	data, err := json.Marshal(boxes)
	if err != nil {
		return fmt.Errorf("marshal boxes: %w", err)
	}
	if err := c.client.Set(ctx, allBoxesKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set boxes: %w", err)
	}
	return nil
}

// Invalidate drops the listing. Every box write calls it.
func (c *BoxCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, allBoxesKey).Err(); err != nil {
		return fmt.Errorf("redis del boxes: %w", err)
	}
	return nil
}

// NopBoxCache always misses. It is used when REDIS_URL is unset.
type NopBoxCache struct{}

func (NopBoxCache) GetAll(context.Context) ([]domain.Box, bool, error) { return nil, false, nil }
func (NopBoxCache) SetAll(context.Context, []domain.Box) error         { return nil }
func (NopBoxCache) Invalidate(context.Context) error                   { return nil }
