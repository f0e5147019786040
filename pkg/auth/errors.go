package auth

import "errors"

// Request level failures. Handlers map each of these to a status code and a
// fixed user-facing message; anything else is an internal error.
var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrWeakPassword       = errors.New("password does not meet policy")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token is invalid")
	ErrUnauthorized       = errors.New("unauthorized")
)

// oops error codes attached to internal failures
const (
	CodeHashFailed      = "AUTH_HASH_FAILED"
	CodeStoreFailed     = "AUTH_STORE_FAILED"
	CodeTokenSignFailed = "AUTH_TOKEN_SIGN_FAILED"
	CodeTokenInvalid    = "AUTH_TOKEN_INVALID"
)
