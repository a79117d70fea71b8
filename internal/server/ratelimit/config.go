package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Rule is one endpoint rate limit: at most Limit requests per Window with an
// initial burst of Burst. A rule path ending in "/" prefix-matches.
type Rule struct {
	Path   string
	Method string
	Limit  int
	Window time.Duration
	Burst  int
}

// Config holds the limiter configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Rules           []Rule
}

// LoadConfig reads the limiter configuration from environment variables,
// falling back to the built-in rules.
func LoadConfig() *Config {
	enabled := getEnvBool("RATE_LIMIT_ENABLED", true)
	if !enabled {
		return &Config{Enabled: false}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", 600),
		DefaultWindow:   getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Rules:           defaultRules(),
	}
}

// defaultRules tiers the API: pipeline invocations are expensive (they fan
// out to every stage worker), import creation is moderate, reads fall through
// to the default.
func defaultRules() []Rule {
	return []Rule{
		{Path: "/v1/imports/process", Method: "POST", Limit: 12, Window: time.Hour, Burst: 3},
		{Path: "/v1/imports/", Method: "POST", Limit: 12, Window: time.Hour, Burst: 3},
		{Path: "/v1/imports", Method: "POST", Limit: 60, Window: time.Hour, Burst: 10},
	}
}

// match finds the rule for a request, health probes being unlimited.
func (c *Config) match(path, method string) Rule {
	if (path == "/health" || path == "/ready") && method == "GET" {
		return Rule{Limit: 0}
	}

	for _, rule := range c.Rules {
		if rule.Method == method && rule.Path == path {
			return rule
		}
	}
	for _, rule := range c.Rules {
		if rule.Method == method && strings.HasSuffix(rule.Path, "/") && strings.HasPrefix(path, rule.Path) {
			return rule
		}
	}

	return Rule{Path: "", Method: method, Limit: c.DefaultLimit, Window: c.DefaultWindow}
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
