package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps users in process memory. Lookup and insert happen under
// one lock, so the email uniqueness holds across concurrent Create calls.
type MemoryStore struct {
	mu      sync.RWMutex
	byEmail map[string]*User
	byID    map[string]*User
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory user store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byEmail: make(map[string]*User),
		byID:    make(map[string]*User),
		now:     time.Now,
	}
}

// FindByEmail returns the user registered under email
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

// FindByID returns the user with the given id
func (s *MemoryStore) FindByID(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

// Create stores u, or returns ErrDuplicateKey if the email is taken
func (s *MemoryStore) Create(ctx context.Context, u *User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[u.Email]; exists {
		return ErrDuplicateKey
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := s.now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	c := *u
	s.byEmail[c.Email] = &c
	s.byID[c.ID] = &c
	return nil
}

// ListAll returns every user ordered by creation time
func (s *MemoryStore) ListAll(ctx context.Context) ([]*User, error) {
	s.mu.RLock()
	users := make([]*User, 0, len(s.byID))
	for _, u := range s.byID {
		c := *u
		users = append(users, &c)
	}
	s.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// Count returns the number of stored users
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.byID)), nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
