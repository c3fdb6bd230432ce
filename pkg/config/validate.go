package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// All failures are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize < 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be >= 0, got %d", c.Server.MaxBodySize))
	}

	names := make([]string, 0, len(c.Hosts))
	for name := range c.Hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		errs = append(errs, validateHost(name, c.Hosts[name])...)
	}

	switch c.Auth.Type {
	case "none":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, fmt.Errorf("auth.api_keys must not be empty when auth.type is \"apikey\""))
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d].key or key_file is required", i))
			}
		}
	case "jwt":
		hasSecret := c.Auth.JWT.Secret != ""
		hasJWKS := c.Auth.JWT.JWKSURL != ""
		if hasSecret == hasJWKS {
			errs = append(errs, fmt.Errorf("auth.jwt requires exactly one of secret (or secret_file) and jwks_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	if c.Auth.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("auth.rate_limit.requests_per_minute must be >= 0"))
	}

	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", c.Observability.Metrics.Path))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

func validateHost(name string, h HostConfig) []error {
	var errs []error

	if name == "" || strings.Contains(name, "@") {
		errs = append(errs, fmt.Errorf("hosts: invalid host id %q", name))
	}
	if !IsKnownHost(name) && h.BaseURL == "" {
		errs = append(errs, fmt.Errorf("hosts.%s.base_url is required for hosts without a built-in endpoint", name))
	}
	if h.BaseURL != "" {
		if u, err := url.Parse(h.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("hosts.%s.base_url must be an absolute URL, got %q", name, h.BaseURL))
		}
	}
	if h.Timeout < 0 {
		errs = append(errs, fmt.Errorf("hosts.%s.timeout must be >= 0", name))
	}
	if len(h.Quirks) > 0 && name == "anthropic" {
		errs = append(errs, fmt.Errorf("hosts.anthropic.quirks is not supported"))
	}
	return errs
}
