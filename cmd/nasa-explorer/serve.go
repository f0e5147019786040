package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nasa-explorer/explorer/pkg/api"
	"github.com/nasa-explorer/explorer/pkg/auth"
	"github.com/nasa-explorer/explorer/pkg/cache"
	"github.com/nasa-explorer/explorer/pkg/config"
	"github.com/nasa-explorer/explorer/pkg/httputil"
	"github.com/nasa-explorer/explorer/pkg/middleware"
	"github.com/nasa-explorer/explorer/pkg/nasa"
	"github.com/nasa-explorer/explorer/pkg/observability"
	"github.com/nasa-explorer/explorer/pkg/storage/sqlstore"
)

// serveConfig holds flags for the serve command.
type serveConfig struct {
	autoMigrate bool
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	sc := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API and ops servers",
		Long: `Start the public API server and the ops server that exposes health
probes and Prometheus metrics. SIGINT or SIGTERM drains both.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, sc)
		},
	}

	cmd.Flags().BoolVar(&sc.autoMigrate, "migrate", true, "apply migrations or ensure indexes before serving")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, sc *serveConfig) error {
	logger := newLogger(cfg)
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return oops.Code("OTEL_INIT_FAILED").Wrap(err)
	}
	shutdown.RegisterShutdownFunc("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = observability.NewMetrics(registry)
	}

	store, err := openStore(ctx, cfg.Storage, metrics, logger)
	if err != nil {
		_ = shutdown.Shutdown(context.Background())
		return err
	}
	shutdown.RegisterShutdownFunc("user store", func(context.Context) error {
		return store.Close()
	})
	if sc.autoMigrate {
		if err := prepareStore(ctx, store, logger); err != nil {
			_ = shutdown.Shutdown(context.Background())
			return err
		}
	}

	health := observability.NewHealthChecker(version)
	if sqlStore, ok := store.(*sqlstore.Store); ok {
		conns := sqlStore.Connections()
		health.AddDatabase("user_store", conns.Primary().DB)
		if conns.ReplicaCount() > 0 {
			conns.StartHealthCheckRoutine(ctx, 0)
		}
	} else {
		health.AddCheck("user_store", true, store.Ping)
	}

	var redisClient *cache.RedisClient
	if cfg.Redis.Enabled() {
		redisClient, err = cache.NewRedisClient(ctx, cache.RedisOptions{
			URL:      cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			_ = shutdown.Shutdown(context.Background())
			return oops.Code("REDIS_CONNECT_FAILED").Wrap(err)
		}
		shutdown.RegisterShutdownFunc("redis", func(context.Context) error {
			return redisClient.Close()
		})
		health.AddRedis(redisClient.Client())
		logger.Info("Redis enabled for rate limiting and NASA response cache")
	}

	tokens := auth.NewTokenManager([]byte(cfg.Auth.TokenSecret), cfg.Auth.TokenTTL, cfg.Auth.TokenIssuer)
	service := auth.NewService(store, auth.NewBcryptHasher(cfg.Auth.BcryptCost), tokens,
		auth.WithStoreTimeout(cfg.Storage.Timeout))

	responses := cache.New(&cache.Config{
		Size:   cfg.NASA.CacheSize,
		TTL:    cfg.NASA.CacheTTL,
		Prefix: "explorer:nasa",
	}, redisClient, metrics)
	nasaClient := nasa.NewClient(nasa.Config{
		APIKey:      cfg.NASA.APIKey,
		BaseURL:     cfg.NASA.BaseURL,
		EPICBaseURL: cfg.NASA.EPICBaseURL,
		Timeout:     cfg.NASA.Timeout,
		PageSize:    cfg.NASA.PageSize,
	},
		nasa.WithCache(responses),
		nasa.WithMetrics(metrics),
		nasa.WithLogger(newNASALogger(cfg)),
	)

	clientIPs, err := auth.NewClientIPResolver(cfg.Server.TrustedProxies)
	if err != nil {
		_ = shutdown.Shutdown(context.Background())
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	opts := api.Options{
		Auth:         service,
		ClientIPs:    clientIPs,
		NASA:         nasaClient,
		Metrics:      metrics,
		Logger:       logger,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		CORS: httputil.CORSOptions{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   cfg.CORS.AllowedMethods,
			AllowedHeaders:   cfg.CORS.AllowedHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
		},
	}
	if cfg.RateLimit.Enabled {
		opts.RegisterLimiter, opts.LoginLimiter = newLimiters(ctx, cfg, redisClient)
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewServer(opts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	opsMux := http.NewServeMux()
	observability.RegisterHealthRoutes(opsMux, health)
	if metrics != nil {
		observability.RegisterMetricsEndpoint(opsMux, registry)
	}
	opsServer := &http.Server{
		Addr:        cfg.Server.OpsAddr(),
		Handler:     opsMux,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	if metrics != nil {
		collector, err := observability.NewCollector(cfg.Observability.UsersGaugeSchedule, metrics, store, logger)
		if err != nil {
			_ = shutdown.Shutdown(context.Background())
			return oops.Code("CONFIG_INVALID").Wrap(err)
		}
		collector.Start()
		shutdown.RegisterShutdownFunc("collector", collector.Stop)
	}

	shutdown.AddServer(apiServer)
	shutdown.AddServer(opsServer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listen(apiServer, logger, "API") })
	g.Go(func() error { return listen(opsServer, logger, "ops") })
	g.Go(func() error { return shutdown.WaitForShutdown(gctx) })

	return g.Wait()
}

func listen(srv *http.Server, logger *observability.Logger, name string) error {
	logger.WithField("addr", srv.Addr).Infof("Starting %s server", name)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return oops.Code("SERVER_FAILED").With("server", name).With("addr", srv.Addr).Wrap(err)
	}
	return nil
}

// newLimiters returns one limiter per unauthenticated route. With Redis the
// budget is shared across instances; otherwise each process keeps its own.
func newLimiters(ctx context.Context, cfg *config.Config, redisClient *cache.RedisClient) (register, login middleware.Limiter) {
	rl := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		WindowDuration:    cfg.RateLimit.Window,
		BurstSize:         cfg.RateLimit.Burst,
	}

	if redisClient != nil {
		limiter := middleware.NewDistributedRateLimiter(redisClient.Client(), rl, "explorer:ratelimit")
		return limiter, limiter
	}

	registerLimiter := middleware.NewRateLimiter(rl)
	loginLimiter := middleware.NewRateLimiter(rl)
	registerLimiter.StartCleanup(ctx)
	loginLimiter.StartCleanup(ctx)
	return registerLimiter, loginLimiter
}

func newNASALogger(cfg *config.Config) logrus.FieldLogger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.Observability.LogLevel); err == nil {
		l.SetLevel(level)
	}
	return l.WithField("component", "nasa")
}
