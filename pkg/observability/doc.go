// Package observability provides structured logging, Prometheus metrics,
// health checks, and OpenTelemetry tracing.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user_id", id).Info("user registered")
//
// Errors built with samber/oops contribute their code, domain and context:
//
//	logger.LogError("login failed", err)
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.LoginsTotal.WithLabelValues("success").Inc()
//
// The users gauge is refreshed on a cron schedule by Collector.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.AddDatabase("postgres", db)
//	checker.AddRedis(redisClient)
//	observability.RegisterHealthRoutes(opsMux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "nasa-explorer",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
