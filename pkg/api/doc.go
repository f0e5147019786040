// Package api provides the HTTP API server for NASA Explorer.
//
// # Overview
//
// The API is built on gorilla/mux and organized into handler groups, each
// of which registers its own routes:
//
//   - UserHandlers: registration, login, the user listing and the caller's
//     own profile under /api/users
//   - NASAHandlers: the token gated NASA proxy under /api/nasa
//
// Every response uses the {"success", "message", ...} envelope from
// httputil. Sentinel errors from the auth and nasa packages are mapped to a
// status and a fixed message in errors.go; anything else becomes a 500 and
// its details only reach the log.
//
// # Usage
//
//	server := api.NewServer(api.Options{
//		Auth:   authService,
//		NASA:   nasaClient,
//		Logger: logger,
//	})
//	http.ListenAndServe(":8090", server)
//
// # Middleware
//
// NewServer wraps the router with request ids, request logging, panic
// recovery, CORS, a body size limit and OpenTelemetry server spans. Route
// level middleware (the token gate and the per-route rate limiters) is
// applied in RegisterRoutes.
package api
