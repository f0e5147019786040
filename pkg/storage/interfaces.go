package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no user matches a lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateKey is returned by Create when the email is already taken.
	// Backends derive it from their own uniqueness constraint.
	ErrDuplicateKey = errors.New("duplicate key")
)

// User is the persisted user record. PasswordHash is a bcrypt digest and
// must never leave the process.
type User struct {
	ID           string    `db:"id"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// UserReader provides read operations on users
type UserReader interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	ListAll(ctx context.Context) ([]*User, error)
	Count(ctx context.Context) (int64, error)
}

// UserWriter provides write operations on users
type UserWriter interface {
	// Create persists u, filling ID and timestamps when unset.
	Create(ctx context.Context, u *User) error
}

// HealthChecker reports backend availability
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// UserStore is the complete user persistence contract
type UserStore interface {
	UserReader
	UserWriter
	HealthChecker
	Close() error
}

// Backend types
const (
	TypeMemory   = "memory"
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
	TypeMongo    = "mongo"
)

// Config for storage backend
type Config struct {
	Type string `yaml:"type"` // "memory", "postgres", "sqlite", "mongo"

	// PostgreSQL config
	PostgresURL         string `yaml:"postgres_url"`
	PostgresReplicaURLs string `yaml:"postgres_replica_urls"` // comma separated
	PostgresMaxConns    int    `yaml:"postgres_max_conns"`
	PostgresMinConns    int    `yaml:"postgres_min_conns"`

	// SQLite config
	SQLitePath string `yaml:"sqlite_path"`

	// MongoDB config
	MongoURL      string `yaml:"mongo_url"`
	MongoDatabase string `yaml:"mongo_database"`

	// Timeout bounds a single store operation
	Timeout time.Duration `yaml:"timeout"`
	// ConnectRetries is the number of startup connection attempts
	ConnectRetries uint64 `yaml:"connect_retries"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             TypeMemory,
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		SQLitePath:       "nasa-explorer.db",
		MongoDatabase:    "nasa_explorer",
		Timeout:          5 * time.Second,
		ConnectRetries:   5,
	}
}

// Public returns a copy of u safe to serialize: no password digest.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// PublicUser is the externally visible shape of a user.
type PublicUser struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
