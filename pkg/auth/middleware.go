package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rhuss/llmrouter/pkg/api"
	"github.com/rhuss/llmrouter/pkg/debug"
	"github.com/rhuss/llmrouter/pkg/observability"
)

// Rejection reasons recorded in llmrouter_auth_rejected_total.
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonInvalidIdentity = "invalid_identity"
	ReasonRateLimited     = "rate_limited"
)

// Middleware creates HTTP middleware from an AuthChain and optional RateLimiter.
// Requests to the bypass paths skip authentication. Successful requests
// carry their identity in the request context.
func Middleware(chain *AuthChain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)

			if result.Decision != Yes || result.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				reject(w, ReasonUnauthenticated, http.StatusUnauthorized,
					api.NewAuthenticationError("authentication required"))
				return
			}

			if result.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				reject(w, ReasonInvalidIdentity, http.StatusInternalServerError,
					api.NewServerError("internal authentication error"))
				return
			}

			debug.Log("auth", "authenticated",
				"subject", result.Identity.Subject,
				"tier", result.Identity.Tier(),
				"path", r.URL.Path,
			)

			if limiter != nil {
				if err := limiter.Allow(r.Context(), result.Identity); err != nil {
					slog.Warn("rate limit exceeded",
						"subject", result.Identity.Subject,
						"tier", result.Identity.Tier(),
					)
					reject(w, ReasonRateLimited, http.StatusTooManyRequests,
						api.NewTooManyRequestsError(err.Error()))
					return
				}
			}

			ctx := SetIdentity(r.Context(), result.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func reject(w http.ResponseWriter, reason string, status int, apiErr *api.APIError) {
	observability.AuthRejectedTotal.WithLabelValues(reason).Inc()
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="llmrouter"`)
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/metrics"}
