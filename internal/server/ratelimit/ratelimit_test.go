package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
		Rules: []Rule{
			{Path: "/v1/imports/process", Method: "POST", Limit: 5, Window: time.Hour, Burst: 2},
			{Path: "/v1/imports/", Method: "POST", Limit: 5, Window: time.Hour, Burst: 2},
		},
	}
}

func TestLimiterEnforcesBurst(t *testing.T) {
	l := NewLimiter(testConfig())
	defer l.Stop()

	// Burst of 2: third immediate request is rejected.
	allowed, _ := l.Allow("10.0.0.1", "/v1/imports/process", "POST")
	assert.True(t, allowed)
	allowed, _ = l.Allow("10.0.0.1", "/v1/imports/process", "POST")
	assert.True(t, allowed)
	allowed, info := l.Allow("10.0.0.1", "/v1/imports/process", "POST")
	assert.False(t, allowed)
	assert.Equal(t, 5, info.Limit)
	assert.Greater(t, info.RetryAfter, time.Duration(0))
}

func TestLimiterIsolatesClients(t *testing.T) {
	l := NewLimiter(testConfig())
	defer l.Stop()

	for i := 0; i < 2; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/v1/imports/process", "POST")
		require.True(t, allowed)
	}
	allowed, _ := l.Allow("10.0.0.1", "/v1/imports/process", "POST")
	require.False(t, allowed)

	// A different client still has a full bucket.
	allowed, _ = l.Allow("10.0.0.2", "/v1/imports/process", "POST")
	assert.True(t, allowed)
}

func TestLimiterPrefixRule(t *testing.T) {
	l := NewLimiter(testConfig())
	defer l.Stop()

	path := "/v1/imports/3f6f9a36-0000-0000-0000-000000000000/process"
	for i := 0; i < 2; i++ {
		allowed, _ := l.Allow("10.0.0.1", path, "POST")
		require.True(t, allowed)
	}
	allowed, _ := l.Allow("10.0.0.1", path, "POST")
	assert.False(t, allowed)
}

func TestLimiterDefaultRuleForReads(t *testing.T) {
	l := NewLimiter(testConfig())
	defer l.Stop()

	for i := 0; i < 100; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/v1/imports", "GET")
		require.True(t, allowed, "read %d within default budget", i)
	}
	allowed, _ := l.Allow("10.0.0.1", "/v1/imports", "GET")
	assert.False(t, allowed)
}

func TestLimiterHealthUnlimited(t *testing.T) {
	l := NewLimiter(testConfig())
	defer l.Stop()

	for i := 0; i < 500; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/health", "GET")
		require.True(t, allowed)
	}
}

func TestLimiterDisabled(t *testing.T) {
	l := NewLimiter(&Config{Enabled: false})
	defer func() {
		// No cleanup goroutine when disabled; Stop must still be safe.
		l.Stop()
	}()

	for i := 0; i < 1000; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/v1/imports/process", "POST")
		require.True(t, allowed)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "42")
	t.Setenv("RATE_LIMIT_DEFAULT_WINDOW", "30s")

	cfg := LoadConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 42, cfg.DefaultLimit)
	assert.Equal(t, 30*time.Second, cfg.DefaultWindow)

	t.Setenv("RATE_LIMIT_ENABLED", "false")
	cfg = LoadConfig()
	assert.False(t, cfg.Enabled)
}

func TestEvictIdleKeepsActiveBuckets(t *testing.T) {
	l := NewLimiter(testConfig())
	defer l.Stop()

	l.Allow("10.0.0.1", "/v1/imports", "GET")
	require.Len(t, l.buckets, 1)

	// Nothing is older than an hour, so nothing is evicted.
	l.evictIdle()
	assert.Len(t, l.buckets, 1)

	for key := range l.buckets {
		l.buckets[key].lastAccess = time.Now().Add(-2 * time.Hour)
	}
	l.evictIdle()
	assert.Empty(t, l.buckets)
}
