package sqlstore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-explorer/explorer/pkg/observability"
	"github.com/nasa-explorer/explorer/pkg/storage"
)

var columns = []string{"id", "first_name", "last_name", "email", "password_hash", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, *observability.Metrics) {
	t.Helper()
	db, mock := newMockDB(t)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return New(NewConnectionManagerFromDB(db), WithMetrics(metrics)), mock, metrics
}

func TestStore_FindByEmail(t *testing.T) {
	store, mock, _ := newMockStore(t)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("john@example.com").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("u-1", "John", "Doe", "john@example.com", "$2a$10$digest", created, created))

	u, err := store.FindByEmail(context.Background(), "  John@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, "John", u.FirstName)
	assert.Equal(t, "$2a$10$digest", u.PasswordHash)
	assert.True(t, u.CreatedAt.Equal(created))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindByEmailNotFound(t *testing.T) {
	store, mock, metrics := newMockStore(t)

	mock.ExpectQuery("FROM users WHERE email").WillReturnRows(sqlmock.NewRows(columns))

	_, err := store.FindByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.StorageOperationsTotal.WithLabelValues("find_by_email", "postgres", "ok")))
}

func TestStore_FindByIDQueryError(t *testing.T) {
	store, mock, metrics := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs("u-1").
		WillReturnError(errors.New("connection reset"))

	_, err := store.FindByID(context.Background(), "u-1")
	require.Error(t, err)

	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, CodeQueryFailed, oopsErr.Code())
	assert.Equal(t, "sqlstore", oopsErr.Domain())
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.StorageOperationsTotal.WithLabelValues("find_by_id", "postgres", "error")))
}

func TestStore_Create(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "Jane", "Roe", "jane@example.com", "digest", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := &storage.User{FirstName: "Jane", LastName: "Roe", Email: "Jane@Example.com", PasswordHash: "digest"}
	require.NoError(t, store.Create(context.Background(), u))

	assert.Len(t, u.ID, 36)
	assert.Equal(t, "jane@example.com", u.Email)
	assert.False(t, u.CreatedAt.IsZero())
	assert.Equal(t, u.CreatedAt, u.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateDuplicate(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: pgerrcode.UniqueViolation, Constraint: "users_email_key"})

	err := store.Create(context.Background(), &storage.User{ID: "fixed", Email: "a@b.co"})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestStore_CreateOtherError(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: pgerrcode.NotNullViolation})

	err := store.Create(context.Background(), &storage.User{Email: "a@b.co"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestStore_ReadsGoToReplica(t *testing.T) {
	primary, _ := newMockDB(t)
	replica, rm := newMockDB(t)
	store := New(NewConnectionManagerFromDB(primary, replica))
	now := time.Now().UTC()

	rm.ExpectQuery(regexp.QuoteMeta("FROM users ORDER BY created_at, id")).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("u-1", "A", "One", "a@example.com", "d1", now, now).
			AddRow("u-2", "B", "Two", "b@example.com", "d2", now.Add(time.Second), now.Add(time.Second)))
	rm.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	users, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u-1", users[0].ID)
	assert.Equal(t, "u-2", users[1].ID)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, rm.ExpectationsWereMet())
}

func TestStore_ListAllEmpty(t *testing.T) {
	store, mock, _ := newMockStore(t)
	mock.ExpectQuery("FROM users ORDER BY").WillReturnRows(sqlmock.NewRows(columns))

	users, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"pq unique", &pq.Error{Code: pgerrcode.UniqueViolation}, true},
		{"pq wrapped", errors.Join(errors.New("ctx"), &pq.Error{Code: pgerrcode.UniqueViolation}), true},
		{"pq other", &pq.Error{Code: pgerrcode.ForeignKeyViolation}, false},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, true},
		{"sqlite not null", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}, false},
		{"plain", errors.New("duplicate"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file:/tmp/x.db?_busy_timeout=5000&_foreign_keys=on", SQLiteDSN("/tmp/x.db"))
	assert.Equal(t, "file::memory:?cache=shared", SQLiteDSN("file::memory:?cache=shared"))
}
