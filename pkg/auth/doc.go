// Package auth implements account registration, credential checks and the
// bearer tokens that guard the protected API surface.
//
// # Key Components
//
// Password hashing: bcrypt at cost 10 behind the PasswordHasher interface
//
//	hasher := auth.NewBcryptHasher(auth.DefaultBcryptCost)
//	digest, err := hasher.Hash("Password123!")
//	ok, err := hasher.Verify("Password123!", digest)
//
// Tokens: HS256 JWTs valid for 15 minutes, carrying the user identity under
// the "user" claim. Nothing is stored server side, so a token stays valid
// until it expires.
//
//	tokens := auth.NewTokenManager(secret, auth.DefaultTokenTTL, "nasa-explorer")
//	signed, expiresAt, err := tokens.Issue(user)
//	claims, err := tokens.Verify(signed)
//
// Service: the registration and login flows
//
//	svc := auth.NewService(store, hasher, tokens, auth.WithStoreTimeout(5*time.Second))
//	user, err := svc.Register(ctx, auth.RegisterInput{...})
//	res, err := svc.Login(ctx, auth.LoginInput{Email: "john@example.com", Password: "Password123!"})
//
// # Errors
//
// Request level failures are sentinel errors (ErrMissingFields, ErrInvalidEmail,
// ErrWeakPassword, ErrUserExists, ErrInvalidCredentials, ErrTokenInvalid,
// ErrUnauthorized) to be matched with errors.Is. Everything else is an
// internal failure wrapped with an oops code (CodeStoreFailed, CodeHashFailed,
// CodeTokenSignFailed).
//
// Registration checks for an existing email before inserting, but that check
// is only a shortcut: concurrent registrations for one address are settled by
// the store's unique constraint, which surfaces as ErrUserExists.
//
// # Audit
//
// AuditLogger writes register, login and token rejection events to the
// structured log with the client address and request id.
package auth
