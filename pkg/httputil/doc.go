// Package httputil provides the JSON envelope, request parsing and common
// middleware shared by the API handlers.
//
// Every response is wrapped in {"success": bool, "message": string, ...}:
//
//	httputil.WriteCreated(w, "New user created", user.Public())
//	httputil.WriteBadRequest(w, "Invalid email format")
//	httputil.WriteInternalError(w) // generic message only
//
// Request bodies are checked against a JSON schema before decoding:
//
//	var req registerRequest
//	if err := httputil.ReadJSON(r, validation.RegisterSchema, &req); err != nil {
//		...
//	}
//
// Middleware is composed with Chain:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.CORSMiddleware(corsOpts),
//	)(router)
package httputil
