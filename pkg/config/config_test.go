package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-explorer/explorer/pkg/observability"
	"github.com/nasa-explorer/explorer/pkg/storage"
)

const testSecret = "test-secret-with-enough-entropy-0123456789"

// isolate runs the test from an empty directory so no stray .env is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "custom")
	t.Setenv("TEST_BOOL", "1")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty-two")
	t.Setenv("TEST_DUR", "90s")
	t.Setenv("TEST_LIST", " a, ,b ,c")

	assert.Equal(t, "custom", getEnv("TEST_STR", "default"))
	assert.Equal(t, "default", getEnv("TEST_UNSET", "default"))
	assert.True(t, getEnvBool("TEST_BOOL", false))
	assert.Equal(t, 42, getEnvInt("TEST_INT", 0))
	assert.Equal(t, 7, getEnvInt("TEST_BAD_INT", 7), "unparseable values fall back")
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DUR", 0))
	assert.Equal(t, []string{"a", "b", "c"}, getEnvList("TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, getEnvList("TEST_UNSET", []string{"x"}))
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)
	t.Setenv("EXPLORER_TOKEN_SECRET", testSecret)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "8090", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.OpsPort)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, storage.TypeMemory, cfg.Storage.Type)
	assert.Equal(t, []string{"https://nasa-eight-gules.vercel.app"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.CORS.AllowCredentials)
	assert.Equal(t, 20, cfg.RateLimit.Requests)
	assert.Equal(t, "DEMO_KEY", cfg.NASA.APIKey)
	assert.Equal(t, 6, cfg.NASA.PageSize)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, observability.InfoLevel, cfg.Observability.Level())
	assert.Equal(t, "0.0.0.0:8090", cfg.Server.Addr())
	assert.Empty(t, cfg.Server.TrustedProxies)

	t.Run("trusted proxies from env", func(t *testing.T) {
		t.Setenv("EXPLORER_TRUSTED_PROXIES", "10.0.0.0/8, 172.16.0.1")

		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.1"}, cfg.Server.TrustedProxies)
	})
}

func TestLoadConfig_RequiresSecret(t *testing.T) {
	isolate(t)

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token secret is required")
}

func TestLoadConfig_LegacyVariables(t *testing.T) {
	isolate(t)
	t.Setenv("ACCESS_TOKEN_SECRET", testSecret)
	t.Setenv("PORT", "5000")
	t.Setenv("MONGODB_URL", "mongodb://localhost:27017")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, testSecret, cfg.Auth.TokenSecret)
	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, storage.TypeMongo, cfg.Storage.Type, "a mongo URL implies the mongo backend")

	t.Run("prefixed names win", func(t *testing.T) {
		t.Setenv("EXPLORER_PORT", "6000")
		t.Setenv("EXPLORER_STORAGE_TYPE", "MEMORY")

		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, "6000", cfg.Server.Port)
		assert.Equal(t, storage.TypeMemory, cfg.Storage.Type)
	})
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("EXPLORER_TOKEN_SECRET="+testSecret+"\nEXPLORER_NASA_API_KEY=from-dotenv\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("EXPLORER_TOKEN_SECRET")
		os.Unsetenv("EXPLORER_NASA_API_KEY")
	})

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.NASA.APIKey)
}

func TestLoadConfig_YAMLOverlay(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "explorer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "8181"
  read_timeout: 3s
auth:
  token_secret: from-file
storage:
  type: sqlite
  sqlite_path: users.db
nasa:
  cache_ttl: 30m
observability:
  log_level: debug
`), 0o600))

	t.Setenv("EXPLORER_PORT", "8282")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "8282", cfg.Server.Port, "environment wins over file")
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "from-file", cfg.Auth.TokenSecret)
	assert.Equal(t, storage.TypeSQLite, cfg.Storage.Type)
	assert.Equal(t, "users.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 30*time.Minute, cfg.NASA.CacheTTL)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.Level())
	assert.Equal(t, "9090", cfg.Server.OpsPort, "unset keys keep defaults")
}

func TestLoadConfig_YAMLErrors(t *testing.T) {
	dir := isolate(t)
	t.Setenv("EXPLORER_TOKEN_SECRET", testSecret)

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(dir, "typo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  prot: \"1\"\n"), 0o600))
	_, err = LoadConfig(path)
	assert.Error(t, err, "unknown keys are rejected")

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = LoadConfig(empty)
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Auth.TokenSecret = testSecret
		cfg.resolveStorageType()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"same ports", func(c *Config) { c.Server.OpsPort = c.Server.Port }, "must be different"},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "server port is required"},
		{"bad bcrypt cost", func(c *Config) { c.Auth.BcryptCost = 40 }, "bcrypt cost"},
		{"zero ttl", func(c *Config) { c.Auth.TokenTTL = 0 }, "token TTL"},
		{"postgres without url", func(c *Config) { c.Storage.Type = storage.TypePostgres }, "postgres URL is required"},
		{"sqlite without path", func(c *Config) { c.Storage.Type = storage.TypeSQLite; c.Storage.SQLitePath = "" }, "sqlite path is required"},
		{"mongo without url", func(c *Config) { c.Storage.Type = storage.TypeMongo }, "mongo URL is required"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "s3" }, "invalid storage type"},
		{"rate limit without requests", func(c *Config) { c.RateLimit.Requests = 0 }, "rate limit requests"},
		{"rate limit disabled ignores requests", func(c *Config) { c.RateLimit.Enabled = false; c.RateLimit.Requests = 0 }, ""},
		{"zero page size", func(c *Config) { c.NASA.PageSize = 0 }, "page size"},
		{"otel without endpoint", func(c *Config) { c.Observability.OTelEnabled = true; c.Observability.OTelEndpoint = "" }, "endpoint is required"},
		{"trusted proxies", func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.0/8", "192.0.2.1"} }, ""},
		{"bad trusted proxy", func(c *Config) { c.Server.TrustedProxies = []string{"proxy.internal"} }, "invalid trusted proxy"},
		{"bad schedule", func(c *Config) { c.Observability.UsersGaugeSchedule = "sometimes" }, "users gauge schedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestObservabilityConfig_OTel(t *testing.T) {
	o := Default().Observability
	o.OTelEnabled = true
	o.OTelSampleRatio = 0.1

	otel := o.OTel()
	assert.True(t, otel.Enabled)
	assert.Equal(t, "nasa-explorer", otel.ServiceName)
	assert.Equal(t, 0.1, otel.SampleRatio)
}
