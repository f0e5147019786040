package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/nasa-explorer/explorer/pkg/config"
	"github.com/nasa-explorer/explorer/pkg/observability"
	"github.com/nasa-explorer/explorer/pkg/storage"
	"github.com/nasa-explorer/explorer/pkg/storage/mongostore"
	"github.com/nasa-explorer/explorer/pkg/storage/sqlstore"
)

// Backoff bounds for the startup connection to the user store.
const (
	connectBaseDelay = 500 * time.Millisecond
	connectMaxDelay  = 5 * time.Second
)

// storeOpener connects to one backend. Tests swap it out.
type storeOpener func(ctx context.Context, cfg storage.Config, metrics *observability.Metrics, logger *observability.Logger) (storage.UserStore, error)

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("path", configFile).Wrap(err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *observability.Logger {
	return observability.NewLogger(cfg.Observability.Level(), nil).
		WithField("service", "nasa-explorer")
}

// openStore connects to the configured backend, retrying with exponential
// backoff up to cfg.ConnectRetries times.
func openStore(ctx context.Context, cfg storage.Config, metrics *observability.Metrics, logger *observability.Logger) (storage.UserStore, error) {
	return openStoreWith(ctx, cfg, metrics, logger, connectStore)
}

func openStoreWith(ctx context.Context, cfg storage.Config, metrics *observability.Metrics, logger *observability.Logger, open storeOpener) (storage.UserStore, error) {
	backoff := retry.NewExponential(connectBaseDelay)
	backoff = retry.WithCappedDuration(connectMaxDelay, backoff)
	backoff = retry.WithMaxRetries(cfg.ConnectRetries, backoff)

	var store storage.UserStore
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		s, err := open(ctx, cfg, metrics, logger)
		if err != nil {
			logger.WithError(err).
				WithField("backend", cfg.Type).
				WithField("attempt", attempt).
				Warn("User store connection failed")
			return retry.RetryableError(err)
		}
		store = s
		return nil
	})
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("backend", cfg.Type).
			With("attempts", attempt).
			Wrap(err)
	}

	logger.WithField("backend", cfg.Type).Info("User store connected")
	return store, nil
}

func connectStore(ctx context.Context, cfg storage.Config, metrics *observability.Metrics, logger *observability.Logger) (storage.UserStore, error) {
	switch cfg.Type {
	case storage.TypeMemory:
		logger.Warn("Using the in-memory user store; accounts are lost on restart")
		return storage.NewMemoryStore(), nil
	case storage.TypePostgres, storage.TypeSQLite:
		return sqlstore.Open(ctx, cfg, sqlstore.WithMetrics(metrics), sqlstore.WithLogger(logger))
	case storage.TypeMongo:
		return mongostore.Open(ctx, cfg, metrics)
	default:
		return nil, oops.Code("CONFIG_INVALID").Errorf("unknown storage type %q", cfg.Type)
	}
}

// prepareStore brings the schema up to date: goose migrations for the SQL
// backends, indexes for Mongo. The memory store needs nothing.
func prepareStore(ctx context.Context, store storage.UserStore, logger *observability.Logger) error {
	switch s := store.(type) {
	case *sqlstore.Store:
		applied, err := s.Migrate(ctx)
		if err != nil {
			return oops.Code("MIGRATION_FAILED").Wrap(err)
		}
		logger.WithField("applied", applied).Info("Migrations complete")
	case *mongostore.Store:
		if err := s.EnsureIndexes(ctx); err != nil {
			return oops.Code("MIGRATION_FAILED").Wrap(err)
		}
		logger.Info("Indexes ensured")
	default:
		logger.Debug("User store has no schema to migrate")
	}
	return nil
}
