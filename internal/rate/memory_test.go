package rate

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterAllowsUpToLimit(t *testing.T) {
	limiter := NewMemory(3, time.Second)
	now := time.Now()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := limiter.Allow(ctx, "client", now)
		if err != nil {
			t.Fatalf("allow error: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d: expected allowed", i+1)
		}
	}

	allowed, retryAfter, err := limiter.Allow(ctx, "client", now)
	if err != nil {
		t.Fatalf("allow error: %v", err)
	}
	if allowed {
		t.Fatal("expected fourth request rejected")
	}
	if retryAfter <= 0 || retryAfter > time.Second {
		t.Fatalf("unexpected retry-after %v", retryAfter)
	}
}

func TestMemoryLimiterWindowResets(t *testing.T) {
	limiter := NewMemory(1, time.Second)
	now := time.Now()
	ctx := context.Background()

	if allowed, _, _ := limiter.Allow(ctx, "client", now); !allowed {
		t.Fatal("expected first request allowed")
	}
	if allowed, _, _ := limiter.Allow(ctx, "client", now); allowed {
		t.Fatal("expected second request rejected")
	}

	later := now.Add(time.Second + time.Millisecond)
	if allowed, _, _ := limiter.Allow(ctx, "client", later); !allowed {
		t.Fatal("expected request allowed after window reset")
	}
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewMemory(1, time.Second)
	now := time.Now()
	ctx := context.Background()

	if allowed, _, _ := limiter.Allow(ctx, "a", now); !allowed {
		t.Fatal("expected key a allowed")
	}
	if allowed, _, _ := limiter.Allow(ctx, "b", now); !allowed {
		t.Fatal("expected key b allowed")
	}
	if allowed, _, _ := limiter.Allow(ctx, "a", now); allowed {
		t.Fatal("expected key a rejected")
	}
}
