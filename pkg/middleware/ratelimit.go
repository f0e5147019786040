package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nasa-explorer/explorer/pkg/auth"
	"github.com/nasa-explorer/explorer/pkg/httputil"
	"github.com/nasa-explorer/explorer/pkg/observability"
)

// TooManyRequestsMessage is the body message for rejected requests
const TooManyRequestsMessage = "Too many requests, please try again later"

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// DefaultRateLimitConfig returns the limits applied to the login and
// register routes: 20 requests per client per minute.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 20,
		WindowDuration:    time.Minute,
	}
}

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RateLimiter implements rate limiting using token bucket algorithm
type RateLimiter struct {
	config  *RateLimitConfig
	now     func() time.Time
	buckets map[string]*bucket
	mu      sync.Mutex
}

type bucket struct {
	tokens     int
	lastUpdate time.Time
}

// NewRateLimiter creates a new in-memory rate limiter
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}

	return &RateLimiter{
		config:  config,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (rl *RateLimiter) capacity() int {
	return rl.config.RequestsPerWindow + rl.config.BurstSize
}

// Allow takes one token from key's bucket
func (rl *RateLimiter) Allow(_ context.Context, key string) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{tokens: rl.capacity(), lastUpdate: now}
		rl.buckets[key] = b
	}

	// Refill tokens based on elapsed time
	elapsed := now.Sub(b.lastUpdate)
	tokensToAdd := int(elapsed.Seconds() * float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds())
	if tokensToAdd > 0 {
		b.tokens += tokensToAdd
		if b.tokens > rl.capacity() {
			b.tokens = rl.capacity()
		}
		b.lastUpdate = now
	}

	d := Decision{
		Limit:      rl.config.RequestsPerWindow,
		ResetAfter: rl.config.WindowDuration / time.Duration(rl.config.RequestsPerWindow),
	}
	if b.tokens > 0 {
		b.tokens--
		d.Allowed = true
	}
	d.Remaining = b.tokens
	return d, nil
}

// Cleanup removes buckets idle for more than two windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastUpdate) > rl.config.WindowDuration*2 {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanup runs Cleanup once per window until ctx is cancelled
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateLimitMiddleware applies a Limiter keyed by client IP
type RateLimitMiddleware struct {
	name    string
	limiter Limiter
	logger  *observability.Logger
	metrics *observability.Metrics
	audit   *auth.AuditLogger
	ips     *auth.ClientIPResolver
}

// RateLimitOption configures a RateLimitMiddleware
type RateLimitOption func(*RateLimitMiddleware)

// WithRateLimitMetrics counts rejected requests
func WithRateLimitMetrics(m *observability.Metrics) RateLimitOption {
	return func(rl *RateLimitMiddleware) { rl.metrics = m }
}

// WithRateLimitAudit records rejected requests in the audit log
func WithRateLimitAudit(a *auth.AuditLogger) RateLimitOption {
	return func(rl *RateLimitMiddleware) { rl.audit = a }
}

// WithRateLimitClientIPs keys requests by the address ips resolves. Without
// it the key is the connection address.
func WithRateLimitClientIPs(ips *auth.ClientIPResolver) RateLimitOption {
	return func(rl *RateLimitMiddleware) { rl.ips = ips }
}

// WithRateLimitLogger logs limiter backend failures
func WithRateLimitLogger(l *observability.Logger) RateLimitOption {
	return func(rl *RateLimitMiddleware) { rl.logger = l }
}

// NewRateLimitMiddleware creates a middleware named name. The name prefixes
// every key so that separate routes keep separate budgets.
func NewRateLimitMiddleware(name string, limiter Limiter, opts ...RateLimitOption) *RateLimitMiddleware {
	m := &RateLimitMiddleware{name: name, limiter: limiter}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handler wraps an HTTP handler with rate limiting. Limiter errors fail open.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := m.name + ":ip:" + m.ips.ClientIP(r)

		d, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			if m.logger != nil {
				m.logger.WithError(err).WithField("limiter", m.name).Warn("rate limiter unavailable, allowing request")
			}
			next.ServeHTTP(w, r)
			return
		}

		setRateLimitHeaders(w, d)
		if !d.Allowed {
			m.rateLimitExceeded(w, r, d)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, d Decision) {
	if m.metrics != nil {
		m.metrics.RateLimitedTotal.WithLabelValues(m.name).Inc()
	}
	if m.audit != nil {
		_ = m.audit.LogFromRequest(r, auth.ActionRateLimitExceeded, auth.StatusDenied, "", "", nil)
	}

	retryAfter := int(d.ResetAfter.Round(time.Second).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	httputil.WriteTooManyRequests(w, TooManyRequestsMessage)
}

func setRateLimitHeaders(w http.ResponseWriter, d Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(d.ResetAfter).Unix(), 10))
}
