package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nasa-explorer/explorer/pkg/auth"
	"github.com/nasa-explorer/explorer/pkg/httputil"
	"github.com/nasa-explorer/explorer/pkg/middleware"
	"github.com/nasa-explorer/explorer/pkg/nasa"
	"github.com/nasa-explorer/explorer/pkg/observability"
)

// DefaultMaxBodyBytes caps request bodies when Options.MaxBodyBytes is unset
const DefaultMaxBodyBytes = 1 << 20

// RouteRegistrar is implemented by every handler group
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// Options wires the server's dependencies. Auth is required; everything
// else may be left nil.
type Options struct {
	Auth    *auth.Service
	NASA    *nasa.Client
	Audit   *auth.AuditLogger
	Metrics *observability.Metrics
	Logger  *observability.Logger

	// Per-route limiters for the unauthenticated endpoints
	RegisterLimiter middleware.Limiter
	LoginLimiter    middleware.Limiter

	// ClientIPs resolves the client address for rate limiting and audit.
	// Nil keys on the connection address.
	ClientIPs *auth.ClientIPResolver

	CORS         httputil.CORSOptions
	MaxBodyBytes int64
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	logger  *observability.Logger
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if opts.Audit == nil {
		opts.Audit = auth.NewAuditLogger(opts.Logger).WithClientIPs(opts.ClientIPs)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		router: mux.NewRouter(),
		logger: opts.Logger,
	}

	gate := middleware.NewTokenGate(opts.Auth, opts.Audit, opts.Metrics)

	registrars := []RouteRegistrar{
		NewUserHandlers(opts.Auth, gate, opts.Audit, opts.Metrics,
			s.rateLimit("register", opts.RegisterLimiter, opts),
			s.rateLimit("login", opts.LoginLimiter, opts)),
	}
	if opts.NASA != nil {
		registrars = append(registrars, NewNASAHandlers(opts.NASA, gate))
	}
	s.setupRoutes(opts.Metrics, registrars...)

	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(opts.Logger),
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware(opts.CORS),
		httputil.MaxBytesMiddleware(opts.MaxBodyBytes),
	)
	s.handler = otelhttp.NewHandler(chain(s.router), "nasa-explorer",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)

	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(metrics *observability.Metrics, registrars ...RouteRegistrar) {
	if metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(metrics))
	}

	for _, r := range registrars {
		r.RegisterRoutes(s.router)
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "Route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

func (s *Server) rateLimit(name string, limiter middleware.Limiter, opts Options) func(http.Handler) http.Handler {
	if limiter == nil {
		return nil
	}
	return middleware.NewRateLimitMiddleware(name, limiter,
		middleware.WithRateLimitMetrics(opts.Metrics),
		middleware.WithRateLimitAudit(opts.Audit),
		middleware.WithRateLimitLogger(opts.Logger),
		middleware.WithRateLimitClientIPs(opts.ClientIPs),
	).Handler
}

// Router returns the underlying mux router
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
