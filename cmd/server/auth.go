package main

import (
	"fmt"

	"github.com/rhuss/llmrouter/pkg/auth"
	"github.com/rhuss/llmrouter/pkg/auth/apikey"
	"github.com/rhuss/llmrouter/pkg/auth/jwt"
	"github.com/rhuss/llmrouter/pkg/config"
)

// buildAuthChain turns the auth section into an authenticator chain and
// an optional rate limiter. A nil chain means the front end is open and
// unlimited.
func buildAuthChain(cfg config.AuthConfig) (*auth.AuthChain, auth.RateLimiter, error) {
	var limiter auth.RateLimiter
	if cfg.RateLimit.RequestsPerMinute > 0 || len(cfg.RateLimit.Tiers) > 0 {
		limiter = auth.NewInProcessLimiter(cfg.RateLimit.Tiers, cfg.RateLimit.RequestsPerMinute)
	}

	switch cfg.Type {
	case "", "none":
		if limiter == nil {
			return nil, nil, nil
		}
		// Everyone is anonymous; the limiter still applies.
		return &auth.AuthChain{DefaultDecision: auth.Yes}, limiter, nil

	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.APIKeys))
		for i, k := range cfg.APIKeys {
			subject := k.Subject
			if subject == "" {
				subject = fmt.Sprintf("apikey-%d", i)
			}
			entries = append(entries, apikey.RawKeyEntry{
				Key:      k.Key,
				Identity: auth.Identity{Subject: subject, ServiceTier: k.ServiceTier},
			})
		}
		return &auth.AuthChain{
			Authenticators:  []auth.Authenticator{apikey.New(entries)},
			DefaultDecision: auth.No,
		}, limiter, nil

	case "jwt":
		authn, err := jwt.New(jwt.Config{
			Secret:    []byte(cfg.JWT.Secret),
			JWKSURL:   cfg.JWT.JWKSURL,
			Issuer:    cfg.JWT.Issuer,
			Audience:  cfg.JWT.Audience,
			UserClaim: cfg.JWT.UserClaim,
			TierClaim: cfg.JWT.TierClaim,
		})
		if err != nil {
			return nil, nil, err
		}
		return &auth.AuthChain{
			Authenticators:  []auth.Authenticator{authn},
			DefaultDecision: auth.No,
		}, limiter, nil

	default:
		return nil, nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
}
