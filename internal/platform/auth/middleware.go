package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	defaultRoleClaim    = "role"
	defaultEmailClaim   = "email"
	defaultFallbackRole = RoleClient
	bearerPrefix        = "bearer "
)

var (
	// ErrTokenExpired signals that the provided bearer token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the provided bearer token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Authenticator verifies HMAC-signed bearer tokens and attaches the caller
// identity to the request context.
type Authenticator struct {
	secret []byte

	roleClaim    string
	emailClaim   string
	fallbackRole string
	leeway       time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithRoleClaim overrides the custom claim used for role extraction.
func WithRoleClaim(claim string) Option {
	return func(a *Authenticator) {
		claim = strings.TrimSpace(claim)
		if claim != "" {
			a.roleClaim = claim
		}
	}
}

// WithEmailClaim overrides the claim used to populate Identity.Email.
func WithEmailClaim(claim string) Option {
	return func(a *Authenticator) {
		claim = strings.TrimSpace(claim)
		if claim != "" {
			a.emailClaim = claim
		}
	}
}

// WithFallbackRole sets the default role when no role claim is present.
func WithFallbackRole(role string) Option {
	return func(a *Authenticator) {
		role = NormaliseRole(role, "")
		if role != "" {
			a.fallbackRole = role
		}
	}
}

// WithLeeway tolerates small clock drift when validating expiry claims.
func WithLeeway(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.leeway = d
		}
	}
}

// NewAuthenticator constructs an Authenticator for middleware composition.
func NewAuthenticator(secret []byte, opts ...Option) *Authenticator {
	a := &Authenticator{
		secret:       secret,
		roleClaim:    defaultRoleClaim,
		emailClaim:   defaultEmailClaim,
		fallbackRole: defaultFallbackRole,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Verify parses and validates a raw token, returning the extracted identity.
func (a *Authenticator) Verify(_ context.Context, raw string) (*Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenInvalid
	}

	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if a.leeway > 0 {
		// Time-based claims are re-checked below with the leeway applied.
		parserOpts = append(parserOpts, jwt.WithoutClaimsValidation())
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if a.leeway > 0 {
		now := time.Now()
		if !claims.VerifyExpiresAt(now.Add(-a.leeway).Unix(), false) {
			return nil, ErrTokenExpired
		}
		if !claims.VerifyNotBefore(now.Add(a.leeway).Unix(), false) {
			return nil, ErrTokenInvalid
		}
	}

	subject, _ := claims["sub"].(string)
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, ErrTokenInvalid
	}

	identity := &Identity{
		ID:   subject,
		Role: a.fallbackRole,
	}
	if email, ok := claims[a.emailClaim].(string); ok {
		identity.Email = strings.TrimSpace(email)
	}
	if role, ok := claims[a.roleClaim].(string); ok {
		identity.Role = NormaliseRole(role, a.fallbackRole)
	}

	return identity, nil
}

// RequireAuth enforces bearer-token authentication for every wrapped route.
func (a *Authenticator) RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthenticated", "missing bearer token")
				return
			}

			identity, err := a.Verify(r.Context(), token)
			if err != nil {
				code := "token_invalid"
				if errors.Is(err, ErrTokenExpired) {
					code = "token_expired"
				}
				writeAuthError(w, http.StatusUnauthorized, code, "invalid or expired credentials")
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   code,
		"message": message,
		"status":  status,
	})
}
