package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/libdb/internal/config"
)

// newTestLimiter returns a limiter with a frozen clock and no cleanup goroutine
func newTestLimiter(cfg *Config) (*Limiter, *time.Time) {
	cfg.CleanupInterval = 0
	limiter := NewLimiter(cfg)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	return limiter, &now
}

func TestLimiter_Allow(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: true, DefaultRPS: 1, DefaultBurst: 10})
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/catalog/topics", "GET")
		if !allowed {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
		if info.Limit != 10 {
			t.Errorf("Expected limit 10, got %d", info.Limit)
		}
		if info.Remaining != 10-i-1 {
			t.Errorf("Expected %d remaining, got %d", 10-i-1, info.Remaining)
		}
	}

	allowed, info := limiter.Allow("127.0.0.1", "/catalog/topics", "GET")
	if allowed {
		t.Error("Expected 11th request to be denied")
	}
	if info.RetryAfter != time.Second {
		t.Errorf("Expected retry after 1s, got %v", info.RetryAfter)
	}
}

func TestLimiter_Refill(t *testing.T) {
	limiter, now := newTestLimiter(&Config{Enabled: true, DefaultRPS: 1, DefaultBurst: 2})
	defer limiter.Stop()

	limiter.Allow("c", "/search", "GET")
	limiter.Allow("c", "/search", "GET")
	if allowed, _ := limiter.Allow("c", "/search", "GET"); allowed {
		t.Fatal("Expected request to be denied with an empty bucket")
	}

	*now = now.Add(1100 * time.Millisecond)
	if allowed, _ := limiter.Allow("c", "/search", "GET"); !allowed {
		t.Error("Expected request to be allowed after refill")
	}
	if allowed, _ := limiter.Allow("c", "/search", "GET"); allowed {
		t.Error("Expected request to be denied after consuming refilled token")
	}
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: true, DefaultRPS: 1, DefaultBurst: 1})
	defer limiter.Stop()

	if allowed, _ := limiter.Allow("a", "/search", "GET"); !allowed {
		t.Error("Expected first request from a to be allowed")
	}
	if allowed, _ := limiter.Allow("b", "/search", "GET"); !allowed {
		t.Error("Expected first request from b to be allowed")
	}
	if allowed, _ := limiter.Allow("a", "/logs", "GET"); !allowed {
		t.Error("Expected a different endpoint to have its own bucket")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(FromConfig(config.RateLimitConfig{Enabled: false, RPS: 1, Burst: 1}))
	defer limiter.Stop()

	for i := 0; i < 100; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/search", "GET")
		if !allowed {
			t.Fatalf("Expected request %d to be allowed when disabled", i+1)
		}
		if info.Limit != 0 {
			t.Errorf("Expected no limit header when disabled, got %d", info.Limit)
		}
	}
}

func TestLimiter_EndpointSpecific(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{
		Enabled:      true,
		DefaultRPS:   100,
		DefaultBurst: 100,
		EndpointConfigs: []EndpointConfig{
			{Path: "/topics/", Method: "POST", RPS: 0.01, Burst: 2},
		},
	})
	defer limiter.Stop()

	// Different topics share the prefix bucket
	for _, path := range []string{"/topics/web/discover", "/topics/cli/discover"} {
		if allowed, _ := limiter.Allow("c", path, "POST"); !allowed {
			t.Errorf("Expected %s to be allowed within burst", path)
		}
	}
	if allowed, _ := limiter.Allow("c", "/topics/orm/discover", "POST"); allowed {
		t.Error("Expected third discover request to be denied")
	}

	// Reads on the same prefix use the default limit
	if allowed, info := limiter.Allow("c", "/topics/web/libraries", "GET"); !allowed || info.Limit != 100 {
		t.Errorf("Expected GET to use the default limit, got allowed=%v limit=%d", allowed, info.Limit)
	}
}

func TestLimiter_HealthIsUnlimited(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: true, DefaultRPS: 1, DefaultBurst: 1})
	defer limiter.Stop()

	for i := 0; i < 20; i++ {
		if allowed, _ := limiter.Allow("c", "/health", "GET"); !allowed {
			t.Fatalf("Expected health request %d to be allowed", i+1)
		}
	}
	if limiter.Len() != 0 {
		t.Errorf("Expected no buckets for unlimited endpoints, got %d", limiter.Len())
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: true, DefaultRPS: 1, DefaultBurst: 50})
	defer limiter.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := limiter.Allow("c", "/search", "GET"); allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowedCount != 50 {
		t.Errorf("Expected exactly 50 allowed requests, got %d", allowedCount)
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	limiter, now := newTestLimiter(&Config{Enabled: true, DefaultRPS: 10, DefaultBurst: 10, IdleTTL: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		limiter.Allow(fmt.Sprintf("client-%d", i), "/search", "GET")
	}
	if limiter.Len() != 5 {
		t.Fatalf("Expected 5 buckets, got %d", limiter.Len())
	}

	*now = now.Add(2 * time.Minute)
	limiter.Allow("fresh", "/search", "GET")
	limiter.cleanupBuckets()

	if limiter.Len() != 1 {
		t.Errorf("Expected only the fresh bucket to survive, got %d", limiter.Len())
	}
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	limiter := NewLimiter(nil)
	limiter.Stop()
	limiter.Stop()
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs()

	tests := []struct {
		name     string
		path     string
		method   string
		wantPath string
		wantNil  bool
	}{
		{name: "health is unlimited", path: "/health", method: "GET", wantPath: ""},
		{name: "exact match", path: "/libraries/analyze", method: "POST", wantPath: "/libraries/analyze"},
		{name: "route pattern match", path: "/topics/web/discover", method: "POST", wantPath: "/topics/{name}/discover"},
		{name: "route pattern needs every segment", path: "/topics//discover", method: "POST", wantNil: true},
		{name: "route pattern literal segments", path: "/topics/web/libraries", method: "POST", wantNil: true},
		{name: "method must match", path: "/topics/web/discover", method: "GET", wantNil: true},
		{name: "no match", path: "/catalog/topics", method: "GET", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.wantNil {
				if got != nil {
					t.Errorf("Expected no match, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("Expected a match")
			}
			if got.Path != tt.wantPath {
				t.Errorf("Expected path %q, got %q", tt.wantPath, got.Path)
			}
		})
	}
}
