package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"

	"github.com/nasa-explorer/explorer/pkg/storage"
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 15 * time.Minute

// TokenManager issues and verifies HS256 bearer tokens. Tokens are not
// stored anywhere; a token is valid until it expires.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// TokenOption configures a TokenManager
type TokenOption func(*TokenManager)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) {
		m.now = now
	}
}

// NewTokenManager creates a token manager signing with secret.
// A zero ttl means DefaultTokenTTL.
func NewTokenManager(secret []byte, ttl time.Duration, issuer string, opts ...TokenOption) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	m := &TokenManager{
		secret: secret,
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the validity window of issued tokens
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for u and returns it with its expiry.
func (m *TokenManager) Issue(u *storage.User) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)

	claims := &Claims{
		User: tokenUserFrom(u),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, oops.In("auth").Code(CodeTokenSignFailed).With("user_id", u.ID).Wrap(err)
	}

	return signed, expiresAt, nil
}

// Verify parses tokenString and returns its claims. Malformed, tampered,
// foreign-algorithm and expired tokens all fail with ErrTokenInvalid.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, oops.In("auth").Code(CodeTokenInvalid).
			With("expired", errors.Is(err, jwt.ErrTokenExpired)).
			Wrap(fmt.Errorf("%w: %w", ErrTokenInvalid, err))
	}
	if !token.Valid || claims.User.ID == "" {
		return nil, oops.In("auth").Code(CodeTokenInvalid).Wrap(ErrTokenInvalid)
	}

	return claims, nil
}
