package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, cfg *Config) (*Limiter, *fakeClock) {
	t.Helper()
	l := NewLimiter(cfg)
	t.Cleanup(l.Stop)
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l.now = clock.Now
	return l, clock
}

func TestLimiter_DefaultLimit(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 3, DefaultWindow: time.Minute})

	for i := 0; i < 3; i++ {
		ok, info := l.Allow("10.0.0.1", "/api/jobs", "GET")
		require.True(t, ok, "request %d", i+1)
		assert.Equal(t, 3, info.Limit)
		assert.Equal(t, 2-i, info.Remaining)
	}

	ok, info := l.Allow("10.0.0.1", "/api/jobs", "GET")
	assert.False(t, ok)
	assert.Greater(t, info.RetryAfter, time.Duration(0))

	ok, _ = l.Allow("10.0.0.2", "/api/jobs", "GET")
	assert.True(t, ok, "other clients have their own bucket")
}

func TestLimiter_Refill(t *testing.T) {
	l, clock := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 60, DefaultWindow: time.Minute})

	for i := 0; i < 60; i++ {
		ok, _ := l.Allow("c", "/x", "GET")
		require.True(t, ok)
	}
	ok, info := l.Allow("c", "/x", "GET")
	require.False(t, ok)
	assert.Equal(t, time.Second, info.RetryAfter)

	clock.Advance(time.Second)
	ok, _ = l.Allow("c", "/x", "GET")
	assert.True(t, ok)
}

func TestLimiter_EndpointRules(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		EndpointConfigs: DefaultEndpointConfigs(),
	})

	for i := 0; i < 5; i++ {
		ok, info := l.Allow("c", "/api/apply", "POST")
		require.True(t, ok, "burst request %d", i+1)
		assert.Equal(t, 20, info.Limit)
	}
	ok, _ := l.Allow("c", "/api/apply", "POST")
	assert.False(t, ok)

	ok, info := l.Allow("c", "/api/jobs", "GET")
	assert.True(t, ok)
	assert.Equal(t, 1000, info.Limit)
}

func TestLimiter_PrefixRuleSharesBucket(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		EndpointConfigs: []EndpointConfig{
			{Path: "/api/jobs/", Method: "DELETE", Limit: 2, Window: time.Minute},
		},
	})

	ok, _ := l.Allow("c", "/api/jobs/a", "DELETE")
	require.True(t, ok)
	ok, _ = l.Allow("c", "/api/jobs/b", "DELETE")
	require.True(t, ok)
	ok, _ = l.Allow("c", "/api/jobs/c", "DELETE")
	assert.False(t, ok)
	assert.Equal(t, 1, l.Len())
}

func TestLimiter_WhitelistBlacklist(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Hour,
		Whitelist:     map[string]bool{"10.0.0.1": true},
		Blacklist:     map[string]bool{"10.0.0.2": true},
	})

	for i := 0; i < 10; i++ {
		ok, _ := l.Allow("10.0.0.1", "/x", "GET")
		assert.True(t, ok)
	}
	ok, _ := l.Allow("10.0.0.2", "/x", "GET")
	assert.False(t, ok)
}

func TestLimiter_Disabled(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: false, DefaultLimit: 1, DefaultWindow: time.Hour})
	for i := 0; i < 10; i++ {
		ok, info := l.Allow("c", "/x", "GET")
		assert.True(t, ok)
		assert.Zero(t, info.Limit)
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Hour})
	for i := 0; i < 5; i++ {
		ok, _ := l.Allow("c", "/api/health", "GET")
		assert.True(t, ok)
		ok, _ = l.Allow("c", "/metrics", "GET")
		assert.True(t, ok)
		ok, _ = l.Allow("c", "/api/apply", "OPTIONS")
		assert.True(t, ok)
	}
	assert.Zero(t, l.Len())
}

func TestLimiter_Concurrent(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 100, DefaultWindow: time.Hour})

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if ok, _ := l.Allow("c", "/x", "GET"); ok {
					allowed.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 100, allowed.Load())
}

func TestLimiter_Sweep(t *testing.T) {
	l, clock := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute, IdleTTL: time.Hour})

	for i := 0; i < 4; i++ {
		l.Allow(fmt.Sprintf("10.0.0.%d", i), "/x", "GET")
	}
	clock.Advance(30 * time.Minute)
	l.Allow("10.0.0.0", "/x", "GET")
	clock.Advance(45 * time.Minute)

	l.sweep()
	assert.Equal(t, 1, l.Len())
}

func TestNewLimiter_NilConfig(t *testing.T) {
	l, _ := newTestLimiter(t, nil)
	ok, info := l.Allow("c", "/api/apply", "POST")
	assert.True(t, ok)
	assert.Equal(t, 1000, info.Limit)
	l.Stop()
}

func TestMatchEndpoint(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/api/admin/candidates/", Method: "PATCH", Limit: 1},
		{Path: "/api/admin/candidates/score-all", Method: "POST", Limit: 2},
		{Path: "/api/", Method: "PATCH", Limit: 3},
	}

	tests := []struct {
		name   string
		path   string
		method string
		limit  int
		isNil  bool
	}{
		{"exact", "/api/admin/candidates/score-all", "POST", 2, false},
		{"longest prefix", "/api/admin/candidates/1/override", "PATCH", 1, false},
		{"short prefix", "/api/movestage/1", "PATCH", 3, false},
		{"method mismatch", "/api/admin/candidates/score-all", "GET", 0, true},
		{"health", "/api/health", "GET", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.isNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.limit, got.Limit)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "50")
	t.Setenv("RATE_LIMIT_DEFAULT_WINDOW", "30s")
	t.Setenv("RATE_LIMIT_WHITELIST", "10.0.0.1, 10.0.0.2")

	cfg := LoadConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 50, cfg.DefaultLimit)
	assert.Equal(t, 30*time.Second, cfg.DefaultWindow)
	assert.True(t, cfg.Whitelist["10.0.0.2"])
	assert.NotEmpty(t, cfg.EndpointConfigs)
}

func TestLoadConfig_Disabled(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	assert.False(t, LoadConfig().Enabled)
}
