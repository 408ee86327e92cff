package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// BatchViewTTL is how long a sold batch's view stays cached. Sold batches
	// never change, so the TTL only bounds memory.
	BatchViewTTL = 7 * 24 * time.Hour

	batchCacheKeyPrefix = "batch:view"
)

// ErrCacheMiss is returned by Get when no entry exists for the batch.
var ErrCacheMiss = errors.New("cache miss")

// CachedBatch is the read model stored in Redis for one batch: the
// serialised consumer view plus the fields needed to decide if it is usable.
type CachedBatch struct {
	ID       string
	State    string
	View     []byte // JSON encoded view
	CachedAt time.Time
}

// BatchCache stores consumer views of batches as Redis hashes.
// Key format: "{prefix}:batch:view:{batchID}"
type BatchCache struct {
	client *RedisClient
}

// NewBatchCache creates a new BatchCache backed by the given RedisClient.
func NewBatchCache(r *RedisClient) *BatchCache {
	return &BatchCache{client: r}
}

// Get retrieves the cached view of a batch. Returns ErrCacheMiss when the key
// does not exist or has expired.
func (c *BatchCache) Get(ctx context.Context, id string) (*CachedBatch, error) {
	vals, err := c.client.Client().HGetAll(ctx, c.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}
	if len(vals) == 0 {
		return nil, ErrCacheMiss
	}

	cachedAt, err := time.Parse(time.RFC3339Nano, vals["cached_at"])
	if err != nil {
		return nil, fmt.Errorf("cache parse cached_at: %w", err)
	}
	return &CachedBatch{
		ID:       vals["id"],
		State:    vals["state"],
		View:     []byte(vals["view"]),
		CachedAt: cachedAt,
	}, nil
}

// Set writes the view hash and its TTL in one pipeline.
func (c *BatchCache) Set(ctx context.Context, b *CachedBatch) error {
	key := c.key(b.ID)
	pipe := c.client.Client().Pipeline()
	pipe.HSet(ctx, key,
		"id", b.ID,
		"state", b.State,
		"view", string(b.View),
		"cached_at", b.CachedAt.UTC().Format(time.RFC3339Nano),
	)
	pipe.Expire(ctx, key, BatchViewTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Delete removes a cached view.
func (c *BatchCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Client().Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (c *BatchCache) key(id string) string {
	return c.client.Key(batchCacheKeyPrefix, id)
}
