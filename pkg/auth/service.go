package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"

	"github.com/nasa-explorer/explorer/pkg/storage"
	"github.com/nasa-explorer/explorer/pkg/validation"
)

// dummyPassword is hashed once and verified against when a login names an
// unknown email, so that response time does not reveal whether an account
// exists.
const dummyPassword = "nasa-explorer-timing-equalizer"

// Service runs the registration and login flows.
type Service struct {
	store   storage.UserStore
	hasher  PasswordHasher
	tokens  *TokenManager
	timeout time.Duration

	dummyOnce sync.Once
	dummyHash string
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithStoreTimeout bounds each store call made by the service.
func WithStoreTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.timeout = d
	}
}

// NewService creates an auth service
func NewService(store storage.UserStore, hasher PasswordHasher, tokens *TokenManager, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		hasher: hasher,
		tokens: tokens,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tokens returns the token manager used for issuing and verifying tokens
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// Register validates in and creates a new user. The returned record still
// holds the password digest; callers render it through User.Public.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*storage.User, error) {
	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)
	email := validation.NormalizeEmail(in.Email)

	if firstName == "" || lastName == "" || email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}
	if !validation.IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !validation.ValidatePassword(in.Password) {
		return nil, ErrWeakPassword
	}

	// Fast path only. The store's unique constraint decides below.
	if _, err := s.findByEmail(ctx, email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, oops.In("auth").Code(CodeStoreFailed).With("op", "find_by_email").Wrap(err)
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, ErrWeakPassword
		}
		return nil, oops.In("auth").Code(CodeHashFailed).Wrap(err)
	}

	user := &storage.User{
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		PasswordHash: digest,
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, ErrUserExists
		}
		return nil, oops.In("auth").Code(CodeStoreFailed).With("op", "create").Wrap(err)
	}

	return user, nil
}

// Login checks the credentials and issues a token. Unknown email and wrong
// password produce the same ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := validation.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}
	if !validation.IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	// No stored account can have a password outside the policy.
	if !validation.ValidatePassword(in.Password) {
		s.equalizeTiming(in.Password)
		return nil, ErrInvalidCredentials
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.equalizeTiming(in.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, oops.In("auth").Code(CodeStoreFailed).With("op", "find_by_email").Wrap(err)
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Authenticate verifies a bearer token.
func (s *Service) Authenticate(token string) (*Claims, error) {
	return s.tokens.Verify(token)
}

// ListUsers returns every registered user.
func (s *Service) ListUsers(ctx context.Context) ([]*storage.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	users, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, oops.In("auth").Code(CodeStoreFailed).With("op", "list_all").Wrap(err)
	}
	return users, nil
}

// Profile loads the user a token was issued for. A token for an account
// that no longer exists is unauthorized.
func (s *Service) Profile(ctx context.Context, claims *Claims) (*storage.User, error) {
	if claims == nil || claims.User.ID == "" {
		return nil, ErrUnauthorized
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.store.FindByID(ctx, claims.User.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, oops.In("auth").Code(CodeStoreFailed).With("op", "find_by_id").Wrap(err)
	}
	return user, nil
}

func (s *Service) findByEmail(ctx context.Context, email string) (*storage.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.FindByEmail(ctx, email)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) equalizeTiming(password string) {
	s.dummyOnce.Do(func() {
		if digest, err := s.hasher.Hash(dummyPassword); err == nil {
			s.dummyHash = digest
		}
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(password, s.dummyHash)
	}
}
