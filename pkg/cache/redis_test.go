package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/ghuser/agritrack/pkg/config"
)

func newTestConfig(url string) *config.Config {
	return &config.Config{
		RedisURL:       url,
		RedisKeyPrefix: "agritrack-test",
		RedisPoolSize:  4,
	}
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), newTestConfig("not-a-valid-url"))
	if err == nil {
		t.Fatal("expected error for invalid URL, got nil")
	}
}

func TestNewRedisClient_UnreachableHost(t *testing.T) {
	_, err := NewRedisClient(context.Background(), newTestConfig("redis://localhost:19999"))
	if err == nil {
		t.Fatal("expected error when Redis is unreachable, got nil")
	}
}

func TestRedisClient_CloseNil(t *testing.T) {
	var rc *RedisClient
	if err := rc.Close(); err != nil {
		t.Fatalf("Close on nil client: %v", err)
	}
}

func TestBatchCache_Key(t *testing.T) {
	tests := []struct {
		name   string
		client *RedisClient
		want   string
	}{
		{"no client", nil, "batch:view:BTC01ARZ3NDEKTSV4RRFFQ69G5FAV"},
		{"no prefix", &RedisClient{}, "batch:view:BTC01ARZ3NDEKTSV4RRFFQ69G5FAV"},
		{"prefixed", &RedisClient{prefix: "agritrack-staging"}, "agritrack-staging:batch:view:BTC01ARZ3NDEKTSV4RRFFQ69G5FAV"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewBatchCache(tt.client).key("BTC01ARZ3NDEKTSV4RRFFQ69G5FAV"); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRedisOptions(t *testing.T) {
	cfg := &config.Config{RedisURL: "redis://:secret@cache.internal:6380/2", ServiceName: "agritrack-worker", RedisPoolSize: 25}
	opts, err := redisOptions(cfg)
	if err != nil {
		t.Fatalf("redisOptions: %v", err)
	}
	if opts.Addr != "cache.internal:6380" || opts.DB != 2 || opts.Password != "secret" {
		t.Errorf("url not applied: addr=%s db=%d", opts.Addr, opts.DB)
	}
	if opts.PoolSize != 25 || opts.MinIdleConns != 5 {
		t.Errorf("pool: size=%d idle=%d", opts.PoolSize, opts.MinIdleConns)
	}
	if opts.ClientName != "agritrack-worker" {
		t.Errorf("client name %q", opts.ClientName)
	}

	cfg.RedisPoolSize = 0
	if opts, _ = redisOptions(cfg); opts.PoolSize != 10 {
		t.Errorf("default pool size: got %d", opts.PoolSize)
	}
}

// Integration tests, skipped unless REDIS_URL is set.
func TestRedisIntegration(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set; skipping integration tests")
	}
	ctx := context.Background()

	rc, err := NewRedisClient(ctx, newTestConfig(redisURL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close() //nolint:errcheck

	t.Run("Ping_Success", func(t *testing.T) {
		if err := rc.Ping(ctx); err != nil {
			t.Fatalf("Ping failed: %v", err)
		}
	})

	t.Run("BatchCache_RoundTrip", func(t *testing.T) {
		c := NewBatchCache(rc)
		id := "BTC01ARZ3NDEKTSV4RRFFQ69G5FAV"
		_ = c.Delete(ctx, id)

		if _, err := c.Get(ctx, id); !errors.Is(err, ErrCacheMiss) {
			t.Fatalf("expected ErrCacheMiss, got %v", err)
		}

		want := &CachedBatch{
			ID:       id,
			State:    "SOLD",
			View:     []byte(`{"id":"` + id + `"}`),
			CachedAt: time.Date(2024, 3, 21, 14, 0, 0, 0, time.UTC),
		}
		if err := c.Set(ctx, want); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := c.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.State != want.State || string(got.View) != string(want.View) || !got.CachedAt.Equal(want.CachedAt) {
			t.Fatalf("got %+v, want %+v", got, want)
		}

		ttl, err := rc.Client().TTL(ctx, c.key(id)).Result()
		if err != nil {
			t.Fatalf("TTL: %v", err)
		}
		if ttl <= 0 || ttl > BatchViewTTL {
			t.Fatalf("unexpected ttl %s", ttl)
		}

		if err := c.Delete(ctx, id); err != nil {
			t.Fatalf("Delete: %v", err)
		}
	})
}
