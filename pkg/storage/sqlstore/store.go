package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/samber/oops"

	"github.com/nasa-explorer/explorer/pkg/observability"
	"github.com/nasa-explorer/explorer/pkg/storage"
)

// CodeQueryFailed tags every wrapped query failure
const CodeQueryFailed = "STORE_QUERY_FAILED"

const userColumns = `id, first_name, last_name, email, password_hash, created_at, updated_at`

// Store implements storage.UserStore on PostgreSQL or SQLite
type Store struct {
	conns   *ConnectionManager
	backend string
	metrics *observability.Metrics
	logger  *observability.Logger
}

var _ storage.UserStore = (*Store)(nil)

// Option configures a Store
type Option func(*Store)

// WithMetrics records per-operation storage metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithLogger sets the logger used for migrations
func WithLogger(l *observability.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New wraps an open connection manager
func New(conns *ConnectionManager, opts ...Option) *Store {
	backend := storage.TypePostgres
	if conns.Driver() == DriverSQLite {
		backend = storage.TypeSQLite
	}
	s := newStore(backend, opts)
	s.conns = conns
	return s
}

func newStore(backend string, opts []Option) *Store {
	s := &Store{
		backend: backend,
		logger:  observability.NewLogger(observability.InfoLevel, io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the backend named by cfg.Type
func Open(ctx context.Context, cfg storage.Config, opts ...Option) (*Store, error) {
	s := newStore(cfg.Type, opts)

	cc := ConnectionConfig{
		MaxConns: cfg.PostgresMaxConns,
		MinConns: cfg.PostgresMinConns,
		Timeout:  cfg.Timeout,
		Logger:   s.logger,
	}
	switch cfg.Type {
	case storage.TypePostgres:
		cc.Driver = DriverPostgres
		cc.PrimaryURL = cfg.PostgresURL
		cc.ReplicaURLs = ParseReplicaURLs(cfg.PostgresReplicaURLs)
	case storage.TypeSQLite:
		cc.Driver = DriverSQLite
		cc.PrimaryURL = SQLiteDSN(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("sqlstore: unsupported storage type %q", cfg.Type)
	}

	conns, err := NewConnectionManager(ctx, cc)
	if err != nil {
		return nil, err
	}
	s.conns = conns
	return s, nil
}

// SQLiteDSN builds a go-sqlite3 DSN for path with a busy timeout
func SQLiteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + path + "?_busy_timeout=5000&_foreign_keys=on"
}

// Connections exposes the underlying connection manager
func (s *Store) Connections() *ConnectionManager {
	return s.conns
}

// FindByEmail looks a user up on the primary
func (s *Store) FindByEmail(ctx context.Context, email string) (u *storage.User, err error) {
	defer s.observe("find_by_email", time.Now(), &err)

	db := s.conns.Primary()
	query := db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ?`)
	return s.getOne(ctx, db.GetContext, query, strings.ToLower(strings.TrimSpace(email)))
}

// FindByID looks a user up on the primary
func (s *Store) FindByID(ctx context.Context, id string) (u *storage.User, err error) {
	defer s.observe("find_by_id", time.Now(), &err)

	db := s.conns.Primary()
	query := db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	return s.getOne(ctx, db.GetContext, query, id)
}

type getFunc func(ctx context.Context, dest interface{}, query string, args ...interface{}) error

func (s *Store) getOne(ctx context.Context, get getFunc, query string, arg string) (*storage.User, error) {
	var u storage.User
	if err := get(ctx, &u, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, s.wrap(err, "select user")
	}
	return &u, nil
}

// Create inserts u. An email collision returns storage.ErrDuplicateKey.
func (s *Store) Create(ctx context.Context, u *storage.User) (err error) {
	defer s.observe("create", time.Now(), &err)

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	db := s.conns.Primary()
	query := `INSERT INTO users (` + userColumns + `)
		VALUES (:id, :first_name, :last_name, :email, :password_hash, :created_at, :updated_at)`
	if _, err := db.NamedExecContext(ctx, query, u); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateKey
		}
		return s.wrap(err, "insert user")
	}
	return nil
}

// ListAll returns every user ordered by creation time, read from a replica
func (s *Store) ListAll(ctx context.Context) (users []*storage.User, err error) {
	defer s.observe("list_all", time.Now(), &err)

	users = []*storage.User{}
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id`
	if err := s.conns.Replica().SelectContext(ctx, &users, query); err != nil {
		return nil, s.wrap(err, "list users")
	}
	return users, nil
}

// Count returns the number of users, read from a replica
func (s *Store) Count(ctx context.Context) (n int64, err error) {
	defer s.observe("count", time.Now(), &err)

	if err := s.conns.Replica().GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, s.wrap(err, "count users")
	}
	return n, nil
}

// Ping checks the primary and replicas
func (s *Store) Ping(ctx context.Context) error {
	return s.conns.HealthCheck(ctx)
}

// Close closes every connection
func (s *Store) Close() error {
	return s.conns.Close()
}

func (s *Store) observe(op string, start time.Time, err *error) {
	var e error
	if err != nil && !errors.Is(*err, storage.ErrNotFound) && !errors.Is(*err, storage.ErrDuplicateKey) {
		e = *err
	}
	s.metrics.ObserveStorage(op, s.backend, start, e)
}

func (s *Store) wrap(err error, op string) error {
	return oops.In("sqlstore").
		Code(CodeQueryFailed).
		With("backend", s.backend).
		With("op", op).
		Wrapf(err, "failed to %s", op)
}

// isUniqueViolation reports whether err is a unique constraint failure from
// either supported driver
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgerrcode.UniqueViolation
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
	}
	return false
}
