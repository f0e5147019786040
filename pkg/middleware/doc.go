// Package middleware provides the bearer token gate and rate limiting used
// by the API router.
//
// TokenGate verifies "Authorization: Bearer <token>" and stores the claims
// in the request context:
//
//	gate := middleware.NewTokenGate(authService, auditLogger, metrics)
//	protected.Use(gate.Handler)
//	claims := middleware.GetClaims(r)
//
// Rate limiting is keyed by client IP and backed either by an in-memory
// token bucket or by Redis when several instances share a budget:
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient, cfg, "explorer:ratelimit")
//	login := middleware.NewRateLimitMiddleware("login", limiter)
//
// Redis failures fail open.
package middleware
