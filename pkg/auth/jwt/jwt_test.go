package jwt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/llmrouter/pkg/auth"
)

var testSecret = []byte("test-hmac-secret-with-enough-bytes")

// testKeyPair holds the RSA key pair used by the JWKS tests.
var testKeyPair *rsa.PrivateKey

func init() {
	var err error
	testKeyPair, err = rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(fmt.Sprintf("generating test RSA key: %v", err))
	}
}

const testKID = "test-key-1"

func validClaims() jwtlib.MapClaims {
	return jwtlib.MapClaims{
		"sub": "user-123",
		"iss": "https://auth.example.com",
		"aud": "llmrouter",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
}

func signHMAC(t *testing.T, claims jwtlib.MapClaims, secret []byte) string {
	t.Helper()
	s, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

func signRSA(t *testing.T, claims jwtlib.MapClaims, kid string) string {
	t.Helper()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	s, err := token.SignedString(testKeyPair)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

func newHMACAuthenticator(t *testing.T, override func(*Config)) *Authenticator {
	t.Helper()
	cfg := Config{Secret: testSecret, Issuer: "https://auth.example.com", Audience: "llmrouter"}
	if override != nil {
		override(&cfg)
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func bearer(a *Authenticator, token string) auth.AuthResult {
	r := httptest.NewRequest("GET", "/v1/models", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	return a.Authenticate(context.Background(), r)
}

func TestNewRequiresKeySource(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without secret or JWKS URL")
	}
}

func TestHMACValidToken(t *testing.T) {
	a := newHMACAuthenticator(t, nil)

	claims := validClaims()
	claims["service_tier"] = "premium"
	claims["scope"] = "chat models"

	result := bearer(a, signHMAC(t, claims, testSecret))
	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %s, want yes; err=%v", result.Decision, result.Err)
	}
	id := result.Identity
	if id.Subject != "user-123" {
		t.Errorf("Subject = %q", id.Subject)
	}
	if id.ServiceTier != "premium" {
		t.Errorf("ServiceTier = %q", id.ServiceTier)
	}
	if len(id.Scopes) != 2 || id.Scopes[1] != "models" {
		t.Errorf("Scopes = %v", id.Scopes)
	}
	if id.Metadata["issuer"] != "https://auth.example.com" {
		t.Errorf("Metadata = %v", id.Metadata)
	}
}

func TestHMACRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(jwtlib.MapClaims)
		secret []byte
	}{
		{"expired", func(c jwtlib.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }, testSecret},
		{"no expiry", func(c jwtlib.MapClaims) { delete(c, "exp") }, testSecret},
		{"wrong audience", func(c jwtlib.MapClaims) { c["aud"] = "other-api" }, testSecret},
		{"wrong issuer", func(c jwtlib.MapClaims) { c["iss"] = "https://evil.example.com" }, testSecret},
		{"missing subject", func(c jwtlib.MapClaims) { delete(c, "sub") }, testSecret},
		{"wrong secret", func(jwtlib.MapClaims) {}, []byte("another-secret-entirely")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			tt.mutate(claims)
			result := bearer(newHMACAuthenticator(t, nil), signHMAC(t, claims, tt.secret))
			if result.Decision != auth.No {
				t.Errorf("Decision = %s, want no", result.Decision)
			}
			if result.Err == nil {
				t.Error("Err should be set")
			}
		})
	}
}

func TestHMACRejectsRSAToken(t *testing.T) {
	result := bearer(newHMACAuthenticator(t, nil), signRSA(t, validClaims(), testKID))
	if result.Decision != auth.No {
		t.Errorf("Decision = %s, want no for RS256 token", result.Decision)
	}
}

func TestNoIssuerOrAudienceValidation(t *testing.T) {
	a := newHMACAuthenticator(t, func(c *Config) {
		c.Issuer = ""
		c.Audience = ""
	})
	claims := validClaims()
	claims["iss"] = "anyone"
	claims["aud"] = "anything"

	if result := bearer(a, signHMAC(t, claims, testSecret)); result.Decision != auth.Yes {
		t.Errorf("Decision = %s, want yes; err=%v", result.Decision, result.Err)
	}
}

func TestCustomClaims(t *testing.T) {
	a := newHMACAuthenticator(t, func(c *Config) {
		c.UserClaim = "email"
		c.TierClaim = "plan"
		c.ScopesClaim = "permissions"
	})
	claims := validClaims()
	claims["email"] = "alice@example.com"
	claims["plan"] = "enterprise"
	claims["permissions"] = []any{"chat", 42, "admin"}

	result := bearer(a, signHMAC(t, claims, testSecret))
	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %s, want yes; err=%v", result.Decision, result.Err)
	}
	if result.Identity.Subject != "alice@example.com" || result.Identity.ServiceTier != "enterprise" {
		t.Errorf("Identity = %+v", result.Identity)
	}
	if len(result.Identity.Scopes) != 2 || result.Identity.Scopes[1] != "admin" {
		t.Errorf("Scopes = %v, want string entries only", result.Identity.Scopes)
	}
}

func TestAbstainAndEmptyToken(t *testing.T) {
	a := newHMACAuthenticator(t, nil)

	r := httptest.NewRequest("GET", "/", nil)
	if got := a.Authenticate(context.Background(), r).Decision; got != auth.Abstain {
		t.Errorf("no header: Decision = %s, want abstain", got)
	}

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if got := a.Authenticate(context.Background(), r).Decision; got != auth.Abstain {
		t.Errorf("basic auth: Decision = %s, want abstain", got)
	}

	r.Header.Set("Authorization", "Bearer ")
	if got := a.Authenticate(context.Background(), r).Decision; got != auth.No {
		t.Errorf("empty bearer: Decision = %s, want no", got)
	}

	if got := bearer(a, "not.a.jwt").Decision; got != auth.No {
		t.Errorf("garbage token: Decision = %s, want no", got)
	}
}

// ---------------------------------------------------------------------------
// JWKS
// ---------------------------------------------------------------------------

func jwksHandler(fetchCount *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fetchCount.Add(1)
		pub := testKeyPair.PublicKey
		doc := map[string]any{
			"keys": []map[string]string{
				{
					"kty": "RSA",
					"kid": testKID,
					"use": "sig",
					"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
					"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
				},
				{"kty": "EC", "kid": "ec-key"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	}
}

func newJWKSAuthenticator(t *testing.T, fetchCount *atomic.Int32) *Authenticator {
	t.Helper()
	srv := httptest.NewServer(jwksHandler(fetchCount))
	t.Cleanup(srv.Close)

	a, err := New(Config{JWKSURL: srv.URL + "/.well-known/jwks.json", Audience: "llmrouter"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestJWKSValidTokenAndCaching(t *testing.T) {
	var fetches atomic.Int32
	a := newJWKSAuthenticator(t, &fetches)

	for i := 0; i < 3; i++ {
		result := bearer(a, signRSA(t, validClaims(), testKID))
		if result.Decision != auth.Yes {
			t.Fatalf("call %d: Decision = %s, want yes; err=%v", i, result.Decision, result.Err)
		}
	}
	if fetches.Load() != 1 {
		t.Errorf("JWKS fetched %d times, want 1", fetches.Load())
	}
}

func TestJWKSUnknownKid(t *testing.T) {
	var fetches atomic.Int32
	a := newJWKSAuthenticator(t, &fetches)

	if result := bearer(a, signRSA(t, validClaims(), "rotated-away")); result.Decision != auth.No {
		t.Errorf("Decision = %s, want no", result.Decision)
	}
}

func TestJWKSRejectsHMACToken(t *testing.T) {
	var fetches atomic.Int32
	a := newJWKSAuthenticator(t, &fetches)

	if result := bearer(a, signHMAC(t, validClaims(), testSecret)); result.Decision != auth.No {
		t.Errorf("Decision = %s, want no for HS256 token", result.Decision)
	}
	if fetches.Load() != 0 {
		t.Error("JWKS should not be fetched for a rejected algorithm")
	}
}
