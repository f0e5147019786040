package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nasa-explorer/explorer/pkg/auth"
	"github.com/nasa-explorer/explorer/pkg/contextkeys"
	"github.com/nasa-explorer/explorer/pkg/httputil"
	"github.com/nasa-explorer/explorer/pkg/observability"
)

const (
	// MissingTokenMessage is returned when no usable bearer token was sent
	MissingTokenMessage = "User is not authorized or token is missing"
	// InvalidTokenMessage is returned when the token fails verification
	InvalidTokenMessage = "User is not authorized"
)

// TokenVerifier verifies bearer tokens. *auth.Service satisfies it.
type TokenVerifier interface {
	Authenticate(token string) (*auth.Claims, error)
}

// TokenGate rejects requests without a valid bearer token and stores the
// verified claims in the request context.
type TokenGate struct {
	verifier TokenVerifier
	audit    *auth.AuditLogger
	metrics  *observability.Metrics
}

// NewTokenGate creates a token gate. audit and metrics may be nil.
func NewTokenGate(verifier TokenVerifier, audit *auth.AuditLogger, metrics *observability.Metrics) *TokenGate {
	return &TokenGate{
		verifier: verifier,
		audit:    audit,
		metrics:  metrics,
	}
}

// Handler wraps an HTTP handler with authentication
func (g *TokenGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			g.reject(w, r, "missing", MissingTokenMessage, auth.ErrUnauthorized)
			return
		}

		claims, err := g.verifier.Authenticate(token)
		if err != nil {
			reason := "invalid"
			if !errors.Is(err, auth.ErrTokenInvalid) {
				reason = "error"
			}
			g.reject(w, r, reason, InvalidTokenMessage, err)
			return
		}

		ctx := contextkeys.WithClaims(r.Context(), claims)
		ctx = contextkeys.WithUserID(ctx, claims.User.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *TokenGate) reject(w http.ResponseWriter, r *http.Request, reason, message string, err error) {
	if g.metrics != nil {
		g.metrics.TokenRejections.WithLabelValues(reason).Inc()
	}
	if g.audit != nil {
		_ = g.audit.LogFromRequest(r, auth.ActionTokenRejected, auth.StatusDenied, "", "", err)
	}
	httputil.WriteUnauthorized(w, message)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// GetClaims returns the claims stored by TokenGate, or nil
func GetClaims(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(contextkeys.ClaimsKey).(*auth.Claims)
	return claims
}
