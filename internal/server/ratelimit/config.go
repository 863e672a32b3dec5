package ratelimit

import (
	"time"

	"github.com/jonathan/libdb/internal/config"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string  // Endpoint path pattern (supports prefix matching)
	Method string  // HTTP method (GET, POST, etc.)
	RPS    float64 // Sustained requests per second; 0 means unlimited
	Burst  int     // Burst capacity (defaults to 1 if 0)
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultRPS      float64
	DefaultBurst    int
	CleanupInterval time.Duration
	IdleTTL         time.Duration
	EndpointConfigs []EndpointConfig
}

// FromConfig builds the limiter configuration from the ratelimit section of the
// application config.
func FromConfig(cfg config.RateLimitConfig) *Config {
	return &Config{
		Enabled:         cfg.Enabled,
		DefaultRPS:      cfg.RPS,
		DefaultBurst:    cfg.Burst,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Tier 1: operations that fan out to the search and classifier collaborators
		{Path: "/topics/{name}/discover", Method: "POST", RPS: 1.0 / 60, Burst: 5},
		{Path: "/libraries/analyze", Method: "POST", RPS: 1, Burst: 10},

		// Tier 2: long-lived streams
		{Path: "/logs/stream", Method: "GET", RPS: 0.1, Burst: 3},

		// Tier 3: read operations - handled by the default limit
		// Tier 4: health check (unlimited) - handled by special case in matcher
	}
}
