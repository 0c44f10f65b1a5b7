package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLimiterSlidingWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	limiter := Limiter{Client: client}

	ctx := context.Background()
	window := 2 * time.Second
	max := 2

	for i := 0; i < max; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "10.0.0.1", window, max)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed {
			t.Fatalf("attempt %d should be allowed", i)
		}
		if remaining != max-(i+1) {
			t.Fatalf("unexpected remaining %d", remaining)
		}
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "10.0.0.1", window, max)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatal("attempt above max should be rejected")
	}
	if remaining != 0 {
		t.Fatalf("remaining = %d, want 0", remaining)
	}

	// Other callers keep their own window.
	allowed, _, _, err = limiter.Allow(ctx, "10.0.0.2", window, max)
	if err != nil {
		t.Fatalf("allow other key: %v", err)
	}
	if !allowed {
		t.Fatal("separate key must not be throttled")
	}

	mr.FastForward(window)
	allowed, _, _, err = limiter.Allow(ctx, "10.0.0.1", window, max)
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !allowed {
		t.Fatal("window elapsed, attempt should be allowed again")
	}
}

func TestLimiterDisabledWithoutClient(t *testing.T) {
	allowed, _, _, err := Limiter{}.Allow(context.Background(), "k", time.Second, 1)
	if err != nil || !allowed {
		t.Fatalf("nil client must fail open, got allowed=%v err=%v", allowed, err)
	}
}
