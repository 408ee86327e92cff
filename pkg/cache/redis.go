package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ghuser/agritrack/pkg/config"
)

const pingTimeout = 2 * time.Second

// RedisClient is the connection shared by the API and the worker. Keys are
// namespaced by the configured prefix so both processes address the same
// read model and other deployments on the same Redis do not.
type RedisClient struct {
	client *redis.Client
	prefix string
}

// NewRedisClient connects to cfg.RedisURL and fails fast when Redis does not
// answer a ping within ctx and a 2s deadline.
func NewRedisClient(ctx context.Context, cfg *config.Config) (*RedisClient, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr, err)
	}

	return &RedisClient{client: rdb, prefix: cfg.RedisKeyPrefix}, nil
}

// redisOptions sizes the pool for short HGETALL/HSET round trips on the
// resolve path. Reads give up before the HTTP handler timeout so a slow
// cache degrades to a store read.
func redisOptions(cfg *config.Config) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	opts.ClientName = cfg.ServiceName
	opts.PoolSize = cfg.RedisPoolSize
	if opts.PoolSize <= 0 {
		opts.PoolSize = 10
	}
	opts.MinIdleConns = max(1, opts.PoolSize/5)
	opts.MaxRetries = 2
	opts.DialTimeout = 3 * time.Second
	opts.ReadTimeout = 500 * time.Millisecond
	opts.WriteTimeout = time.Second
	opts.PoolTimeout = 2 * time.Second
	return opts, nil
}

// Key joins parts under the client's namespace: "<prefix>:<part>:<part>".
// A nil client or an empty prefix yields the bare parts.
func (r *RedisClient) Key(parts ...string) string {
	key := strings.Join(parts, ":")
	if r == nil || r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

// Ping reports whether Redis answers; the health endpoint calls it.
func (r *RedisClient) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close shuts down the connection pool. It is safe on a nil client.
func (r *RedisClient) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}

// Client returns the underlying redis.Client.
func (r *RedisClient) Client() *redis.Client {
	return r.client
}
