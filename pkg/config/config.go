package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/nasa-explorer/explorer/pkg/auth"
	"github.com/nasa-explorer/explorer/pkg/observability"
	"github.com/nasa-explorer/explorer/pkg/storage"
)

// EnvPrefix is prepended to every configuration environment variable
const EnvPrefix = "EXPLORER_"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	CORS          CORSConfig          `yaml:"cors"`
	Auth          AuthConfig          `yaml:"auth"`
	Storage       storage.Config      `yaml:"storage"`
	Redis         RedisConfig         `yaml:"redis"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	NASA          NASAConfig          `yaml:"nasa"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`

	// Proxies whose X-Forwarded-For and X-Real-IP headers are honored when
	// deriving the client address. Empty trusts nobody.
	TrustedProxies []string `yaml:"trusted_proxies"`

	// Health/metrics server (separate port for k8s probes)
	OpsPort string `yaml:"ops_port"`
}

// Addr is the API listen address
func (s ServerConfig) Addr() string { return net.JoinHostPort(s.Host, s.Port) }

// OpsAddr is the health and metrics listen address
func (s ServerConfig) OpsAddr() string { return net.JoinHostPort(s.Host, s.OpsPort) }

// CORSConfig controls cross-origin access for the browser frontend
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

// AuthConfig holds token and hashing settings
type AuthConfig struct {
	TokenSecret string        `yaml:"token_secret"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
	TokenIssuer string        `yaml:"token_issuer"`
	BcryptCost  int           `yaml:"bcrypt_cost"`
}

// RedisConfig is optional; an empty URL disables every Redis-backed feature
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// Enabled reports whether a Redis URL was configured
func (r RedisConfig) Enabled() bool { return r.URL != "" }

// RateLimitConfig applies to the unauthenticated register and login routes
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	Burst    int           `yaml:"burst"`
}

// NASAConfig configures the upstream NASA API proxy
type NASAConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	EPICBaseURL string        `yaml:"epic_base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	CacheSize   int           `yaml:"cache_size"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	PageSize    int           `yaml:"page_size"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"log_level"`

	// Metrics
	MetricsEnabled     bool   `yaml:"metrics_enabled"`
	UsersGaugeSchedule string `yaml:"users_gauge_schedule"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(strings.ToLower(o.LogLevel))
}

// OTel converts the settings into an observability.OTelConfig
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	st := storage.DefaultConfig()
	st.Type = ""

	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8090",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			OpsPort:         "9090",
		},
		CORS: CORSConfig{
			AllowedOrigins:   []string{"https://nasa-eight-gules.vercel.app"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		},
		Auth: AuthConfig{
			TokenTTL:    15 * time.Minute,
			TokenIssuer: "nasa-explorer",
			BcryptCost:  10,
		},
		Storage: st,
		Redis: RedisConfig{
			PoolSize: 10,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 20,
			Window:   time.Minute,
		},
		NASA: NASAConfig{
			APIKey:      "DEMO_KEY",
			BaseURL:     "https://api.nasa.gov",
			EPICBaseURL: "https://epic.gsfc.nasa.gov",
			Timeout:     10 * time.Second,
			CacheSize:   256,
			CacheTTL:    10 * time.Minute,
			PageSize:    6,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			UsersGaugeSchedule: observability.DefaultUsersGaugeSchedule,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "nasa-explorer",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig builds the configuration from defaults, a .env file in the
// working directory, the optional YAML file at path, and finally the
// environment. Later sources win.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.resolveStorageType()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv(EnvPrefix+"HOST", s.Host)
	s.Port = getEnv(EnvPrefix+"PORT", getEnv("PORT", s.Port))
	s.ReadTimeout = getEnvDuration(EnvPrefix+"READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration(EnvPrefix+"WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration(EnvPrefix+"IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration(EnvPrefix+"SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxBodyBytes = getEnvInt64(EnvPrefix+"MAX_BODY_BYTES", s.MaxBodyBytes)
	s.OpsPort = getEnv(EnvPrefix+"OPS_PORT", s.OpsPort)
	s.TrustedProxies = getEnvList(EnvPrefix+"TRUSTED_PROXIES", s.TrustedProxies)

	cors := &c.CORS
	cors.AllowedOrigins = getEnvList(EnvPrefix+"ALLOWED_ORIGINS", cors.AllowedOrigins)
	cors.AllowedMethods = getEnvList(EnvPrefix+"ALLOWED_METHODS", cors.AllowedMethods)
	cors.AllowedHeaders = getEnvList(EnvPrefix+"ALLOWED_HEADERS", cors.AllowedHeaders)
	cors.AllowCredentials = getEnvBool(EnvPrefix+"ALLOW_CREDENTIALS", cors.AllowCredentials)

	a := &c.Auth
	a.TokenSecret = getEnv(EnvPrefix+"TOKEN_SECRET", getEnv("ACCESS_TOKEN_SECRET", a.TokenSecret))
	a.TokenTTL = getEnvDuration(EnvPrefix+"TOKEN_TTL", a.TokenTTL)
	a.TokenIssuer = getEnv(EnvPrefix+"TOKEN_ISSUER", a.TokenIssuer)
	a.BcryptCost = getEnvInt(EnvPrefix+"BCRYPT_COST", a.BcryptCost)

	st := &c.Storage
	st.Type = getEnv(EnvPrefix+"STORAGE_TYPE", st.Type)
	st.PostgresURL = getEnv(EnvPrefix+"POSTGRES_URL", st.PostgresURL)
	st.PostgresReplicaURLs = getEnv(EnvPrefix+"POSTGRES_REPLICA_URLS", st.PostgresReplicaURLs)
	st.PostgresMaxConns = getEnvInt(EnvPrefix+"POSTGRES_MAX_CONNS", st.PostgresMaxConns)
	st.PostgresMinConns = getEnvInt(EnvPrefix+"POSTGRES_MIN_CONNS", st.PostgresMinConns)
	st.SQLitePath = getEnv(EnvPrefix+"SQLITE_PATH", st.SQLitePath)
	st.MongoURL = getEnv(EnvPrefix+"MONGO_URL", getEnv("MONGODB_URL", st.MongoURL))
	st.MongoDatabase = getEnv(EnvPrefix+"MONGO_DATABASE", st.MongoDatabase)
	st.Timeout = getEnvDuration(EnvPrefix+"STORAGE_TIMEOUT", st.Timeout)
	if retries := getEnvInt(EnvPrefix+"CONNECT_RETRIES", -1); retries >= 0 {
		st.ConnectRetries = uint64(retries)
	}

	r := &c.Redis
	r.URL = getEnv(EnvPrefix+"REDIS_URL", r.URL)
	r.Password = getEnv(EnvPrefix+"REDIS_PASSWORD", r.Password)
	r.DB = getEnvInt(EnvPrefix+"REDIS_DB", r.DB)
	r.PoolSize = getEnvInt(EnvPrefix+"REDIS_POOL_SIZE", r.PoolSize)

	rl := &c.RateLimit
	rl.Enabled = getEnvBool(EnvPrefix+"RATE_LIMIT_ENABLED", rl.Enabled)
	rl.Requests = getEnvInt(EnvPrefix+"RATE_LIMIT_REQUESTS", rl.Requests)
	rl.Window = getEnvDuration(EnvPrefix+"RATE_LIMIT_WINDOW", rl.Window)
	rl.Burst = getEnvInt(EnvPrefix+"RATE_LIMIT_BURST", rl.Burst)

	n := &c.NASA
	n.APIKey = getEnv(EnvPrefix+"NASA_API_KEY", getEnv("NASA_API_KEY", n.APIKey))
	n.BaseURL = getEnv(EnvPrefix+"NASA_BASE_URL", n.BaseURL)
	n.EPICBaseURL = getEnv(EnvPrefix+"NASA_EPIC_BASE_URL", n.EPICBaseURL)
	n.Timeout = getEnvDuration(EnvPrefix+"NASA_TIMEOUT", n.Timeout)
	n.CacheSize = getEnvInt(EnvPrefix+"NASA_CACHE_SIZE", n.CacheSize)
	n.CacheTTL = getEnvDuration(EnvPrefix+"NASA_CACHE_TTL", n.CacheTTL)
	n.PageSize = getEnvInt(EnvPrefix+"NASA_PAGE_SIZE", n.PageSize)

	o := &c.Observability
	o.LogLevel = getEnv(EnvPrefix+"LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool(EnvPrefix+"METRICS_ENABLED", o.MetricsEnabled)
	o.UsersGaugeSchedule = getEnv(EnvPrefix+"USERS_GAUGE_SCHEDULE", o.UsersGaugeSchedule)
	o.OTelEnabled = getEnvBool(EnvPrefix+"OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv(EnvPrefix+"OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv(EnvPrefix+"OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv(EnvPrefix+"OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool(EnvPrefix+"OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat(EnvPrefix+"OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// resolveStorageType picks a backend when none was named explicitly: a
// configured Mongo or Postgres URL implies that backend, otherwise memory.
func (c *Config) resolveStorageType() {
	if c.Storage.Type != "" {
		c.Storage.Type = strings.ToLower(c.Storage.Type)
		return
	}
	switch {
	case c.Storage.MongoURL != "":
		c.Storage.Type = storage.TypeMongo
	case c.Storage.PostgresURL != "":
		c.Storage.Type = storage.TypePostgres
	default:
		c.Storage.Type = storage.TypeMemory
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.OpsPort == "" {
		return fmt.Errorf("ops port is required")
	}
	if c.Server.Port == c.Server.OpsPort {
		return fmt.Errorf("server port and ops port must be different")
	}
	if _, err := auth.NewClientIPResolver(c.Server.TrustedProxies); err != nil {
		return err
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}

	// Validate auth config
	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("token secret is required (set %sTOKEN_SECRET)", EnvPrefix)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 4 and 31, got %d", c.Auth.BcryptCost)
	}

	// Validate storage config based on type
	switch c.Storage.Type {
	case storage.TypeMemory:
	case storage.TypePostgres:
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	case storage.TypeSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite storage")
		}
	case storage.TypeMongo:
		if c.Storage.MongoURL == "" {
			return fmt.Errorf("mongo URL is required for mongo storage")
		}
		if c.Storage.MongoDatabase == "" {
			return fmt.Errorf("mongo database is required for mongo storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory, postgres, sqlite, or mongo)", c.Storage.Type)
	}
	if c.Storage.Timeout <= 0 {
		return fmt.Errorf("storage timeout must be positive")
	}

	// Validate rate limiting
	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 {
			return fmt.Errorf("rate limit requests must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}

	// Validate NASA proxy
	if c.NASA.PageSize <= 0 {
		return fmt.Errorf("NASA page size must be positive")
	}
	if c.NASA.CacheSize <= 0 {
		return fmt.Errorf("NASA cache size must be positive")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}
	if _, err := cron.ParseStandard(c.Observability.UsersGaugeSchedule); err != nil {
		return fmt.Errorf("invalid users gauge schedule %q: %w", c.Observability.UsersGaugeSchedule, err)
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
