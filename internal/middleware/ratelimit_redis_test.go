package middleware

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
)

// localRedis returns a client for a Redis on localhost:6379, skipping the
// test when none is reachable.
func localRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func uniqueKey(prefix string) string {
	return prefix + "-" + strconv.FormatInt(time.Now().UnixNano(), 10)
}

func TestRedisRateLimitStore_Allow(t *testing.T) {
	client := localRedis(t)
	store := NewRedisRateLimitStore(client)
	cfg := RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}
	key := uniqueKey("allow")
	ctx := context.Background()
	t.Cleanup(func() { client.Del(ctx, "ratelimit:"+key) })

	for i := 0; i < 5; i++ {
		allowed, remaining, _ := store.Allow(ctx, key, cfg)
		if !allowed || remaining != 4-i {
			t.Errorf("request %d: got (%v, %d), want (true, %d)", i+1, allowed, remaining, 4-i)
		}
	}

	allowed, remaining, retryAfter := store.Allow(ctx, key, cfg)
	if allowed || remaining != 0 {
		t.Errorf("6th request: got (%v, %d), want blocked", allowed, remaining)
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Errorf("retryAfter = %d, want 1..60", retryAfter)
	}
}

func TestRedisRateLimitStore_IndependentKeys(t *testing.T) {
	client := localRedis(t)
	store := NewRedisRateLimitStore(client)
	cfg := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}
	k1, k2 := uniqueKey("k1"), uniqueKey("k2")
	ctx := context.Background()
	t.Cleanup(func() { client.Del(ctx, "ratelimit:"+k1, "ratelimit:"+k2) })

	a1, _, _ := store.Allow(ctx, k1, cfg)
	a2, _, _ := store.Allow(ctx, k2, cfg)
	if !a1 || !a2 {
		t.Error("first request per key should be allowed")
	}
	b1, _, _ := store.Allow(ctx, k1, cfg)
	b2, _, _ := store.Allow(ctx, k2, cfg)
	if b1 || b2 {
		t.Error("second request per key should be blocked")
	}
}

func TestRedisRateLimitStore_WindowExpiry(t *testing.T) {
	client := localRedis(t)
	store := NewRedisRateLimitStore(client)
	cfg := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 100 * time.Millisecond}
	key := uniqueKey("expiry")
	ctx := context.Background()

	store.Allow(ctx, key, cfg)
	if allowed, _, _ := store.Allow(ctx, key, cfg); allowed {
		t.Error("second request should be blocked")
	}
	time.Sleep(150 * time.Millisecond)
	if allowed, _, _ := store.Allow(ctx, key, cfg); !allowed {
		t.Error("request after window expiry should be allowed")
	}
}

func TestRedisRateLimitStore_FailOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "localhost:9999",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	metrics := NewMetrics()
	store := NewRedisRateLimitStore(client, WithStoreMetrics(metrics))
	cfg := RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}

	allowed, remaining, _ := store.Allow(context.Background(), "k", cfg)
	if !allowed || remaining != cfg.RequestsPerWindow {
		t.Errorf("got (%v, %d), want full quota when Redis is down", allowed, remaining)
	}
	if got := testutil.ToFloat64(metrics.rateLimitStoreErrors); got != 1 {
		t.Errorf("store error counter = %v, want 1", got)
	}
}
