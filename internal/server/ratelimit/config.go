package ratelimit

import (
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every rate limiting environment variable.
const EnvPrefix = "RATE_LIMIT_"

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // exact path, or a prefix when it ends with "/"
	Method string        // HTTP method
	Limit  int           // requests per window; <= 0 means unlimited
	Window time.Duration // refill window
	Burst  int           // bucket capacity, defaults to Limit
}

// key identifies the bucket family of the rule, so /api/jobs/a and /api/jobs/b
// share one budget.
func (e *EndpointConfig) key() string {
	return e.Method + " " + e.Path
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	IdleTTL         time.Duration // buckets unused for this long are dropped
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// DefaultConfig returns the built-in limits.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		Whitelist:       map[string]bool{},
		Blacklist:       map[string]bool{},
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// LoadConfig reads RATE_LIMIT_ENABLED, RATE_LIMIT_DEFAULT_LIMIT, RATE_LIMIT_DEFAULT_WINDOW,
// RATE_LIMIT_CLEANUP_INTERVAL, RATE_LIMIT_WHITELIST and RATE_LIMIT_BLACKLIST from the
// environment. Unparseable values keep their defaults.
func LoadConfig() *Config {
	cfg := DefaultConfig()

	k := koanf.New(".")
	provider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(provider, nil); err != nil {
		return cfg
	}

	if k.Exists("enabled") {
		if v, ok := parseBool(k.String("enabled")); ok {
			cfg.Enabled = v
		}
	}
	if !cfg.Enabled {
		return &Config{Enabled: false}
	}
	if v := k.Int("default_limit"); v > 0 {
		cfg.DefaultLimit = v
	}
	if v := k.Duration("default_window"); v > 0 {
		cfg.DefaultWindow = v
	}
	if v := k.Duration("cleanup_interval"); v > 0 {
		cfg.CleanupInterval = v
	}
	cfg.Whitelist = parseIPList(k.String("whitelist"))
	cfg.Blacklist = parseIPList(k.String("blacklist"))
	return cfg
}

// DefaultEndpointConfigs returns the per-endpoint limits.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Oracle calls and public writes
		{Path: "/api/apply", Method: "POST", Limit: 20, Window: time.Hour, Burst: 5},
		{Path: "/api/upload-url", Method: "POST", Limit: 20, Window: time.Hour, Burst: 5},
		{Path: "/api/ats/score", Method: "POST", Limit: 60, Window: time.Hour, Burst: 10},
		{Path: "/api/admin/candidates/score-all", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},

		// Credential guessing
		{Path: "/api/auth/login", Method: "POST", Limit: 10, Window: time.Minute, Burst: 5},

		// Admin writes
		{Path: "/api/jobs", Method: "POST", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/api/jobs/", Method: "PUT", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/api/jobs/", Method: "DELETE", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/api/candidates/", Method: "DELETE", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/api/movestage/", Method: "PATCH", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/api/admin/candidates/", Method: "PATCH", Limit: 100, Window: time.Minute, Burst: 10},
	}
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "on":
		return true, true
	case "0", "f", "false", "no", "off":
		return false, true
	}
	return false, false
}

// parseIPList parses a comma-separated list of IP addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
