// Package config provides unified configuration for the llmrouter gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (LLMROUTER_ prefix, <HOST>_API_KEY)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// KnownHosts lists the host ids with built-in adapters. Any other host id
// in the hosts section is served by the OpenAI-compatible adapter and
// needs an explicit base_url.
var KnownHosts = []string{"anthropic", "deepseek", "gemini", "openai", "openrouter", "xai"}

// Config holds all configuration for the llmrouter gateway.
type Config struct {
	Server        ServerConfig          `yaml:"server"`
	Hosts         map[string]HostConfig `yaml:"hosts"`
	Auth          AuthConfig            `yaml:"auth"`
	Observability ObservabilityConfig   `yaml:"observability"`
	Logging       LoggingConfig         `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 0 (streams)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 10s
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 10 MB
}

// HostConfig configures one backend host.
type HostConfig struct {
	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"` // _file variant for api_key

	// BaseURL overrides the built-in endpoint of a known host.
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"` // default: 120s

	// StrictStreamErrors surfaces mid-stream backend failures to the
	// client instead of ending the stream quietly (anthropic only).
	StrictStreamErrors bool `yaml:"strict_stream_errors"`

	// Headers are added to every backend request (pass-through hosts only).
	Headers map[string]string `yaml:"headers"`

	// Quirks are merged over the built-in quirk table (pass-through hosts only).
	Quirks map[string]QuirkConfig `yaml:"quirks"`
}

// QuirkConfig is the YAML form of a per-model quirk.
type QuirkConfig struct {
	Unlisted     bool               `yaml:"unlisted"`
	DropParams   []string           `yaml:"drop_params"`
	RoleRewrites map[string]string  `yaml:"role_rewrites"`
	Clamp        map[string]float64 `yaml:"clamp"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type      string          `yaml:"type"`     // "none", "apikey", "jwt", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"` // API key entries for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key"`
	KeyFile     string `yaml:"key_file"` // _file variant for key
	Subject     string `yaml:"subject"`
	ServiceTier string `yaml:"service_tier"`
}

// JWTConfig configures bearer JWT validation. Exactly one of the HMAC
// secret or the JWKS URL selects the verification key.
type JWTConfig struct {
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"` // _file variant for secret
	JWKSURL    string `yaml:"jwks_url"`
	Issuer     string `yaml:"issuer"`
	Audience   string `yaml:"audience"`
	UserClaim  string `yaml:"user_claim"` // default: "sub"
	TierClaim  string `yaml:"tier_claim"` // default: "service_tier"
}

// RateLimitConfig holds per-subject request limits. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute int            `yaml:"requests_per_minute"`
	Tiers             map[string]int `yaml:"tiers"` // tier -> requests per minute
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LoggingConfig holds log settings. LLMROUTER_LOG_LEVEL and LLMROUTER_DEBUG
// take precedence at startup.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // ERROR, WARN, INFO, DEBUG, TRACE; default: INFO
	Debug  string `yaml:"debug"`  // comma-separated debug categories
	Format string `yaml:"format"` // "text" or "json", default: "text"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodySize:     10 << 20,
		},
		Hosts: map[string]HostConfig{},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}

// IsKnownHost reports whether host has a built-in adapter.
func IsKnownHost(host string) bool {
	for _, h := range KnownHosts {
		if h == host {
			return true
		}
	}
	return false
}
