//go:build integration

package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nasa-explorer/explorer/pkg/storage"
)

func setupPostgres(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("explorer_test"),
		postgres.WithUsername("explorer"),
		postgres.WithPassword("explorer"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := Open(ctx, storage.Config{
		Type:             storage.TypePostgres,
		PostgresURL:      connStr,
		PostgresMaxConns: 10,
		PostgresMinConns: 2,
		Timeout:          5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.Migrate(ctx)
	require.NoError(t, err)
	return store
}

func TestPostgres_UserLifecycle(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	u := &storage.User{FirstName: "John", LastName: "Doe", Email: "john@example.com", PasswordHash: "digest"}
	require.NoError(t, store.Create(ctx, u))

	found, err := store.FindByEmail(ctx, "JOHN@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	err = store.Create(ctx, &storage.User{FirstName: "J", LastName: "D", Email: "john@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	users, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	applied, err := store.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)
}
