package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nasa-explorer/explorer/pkg/auth"
	"github.com/nasa-explorer/explorer/pkg/httputil"
	"github.com/nasa-explorer/explorer/pkg/observability"
	"github.com/nasa-explorer/explorer/pkg/storage"
)

var testSecret = []byte("test-secret-with-enough-entropy-0123456789")

// syncWriter serializes writes from concurrent handlers into one buffer
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (e *testEnv) logOutput() string {
	e.logMu.Lock()
	defer e.logMu.Unlock()
	return e.logs.String()
}

type testEnv struct {
	server  *Server
	store   *storage.MemoryStore
	service *auth.Service
	metrics *observability.Metrics
	logs    *bytes.Buffer
	logMu   *sync.Mutex
}

func newTestEnv(t *testing.T, mutate ...func(*Options)) *testEnv {
	t.Helper()

	store := storage.NewMemoryStore()
	service := auth.NewService(store,
		auth.NewBcryptHasher(bcrypt.MinCost),
		auth.NewTokenManager(testSecret, auth.DefaultTokenTTL, "nasa-explorer"),
		auth.WithStoreTimeout(time.Second),
	)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	logs := &bytes.Buffer{}
	writer := &syncWriter{w: logs}

	opts := Options{
		Auth:    service,
		Metrics: metrics,
		Logger:  observability.NewLogger(observability.DebugLevel, writer),
		CORS: httputil.CORSOptions{
			AllowedOrigins:   []string{"https://explorer.example"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		},
	}
	for _, m := range mutate {
		m(&opts)
	}

	return &testEnv{
		server:  NewServer(opts),
		store:   store,
		service: service,
		metrics: metrics,
		logs:    logs,
		logMu:   &writer.mu,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

var johnDoe = map[string]string{
	"firstName": "John",
	"lastName":  "Doe",
	"email":     "john@example.com",
	"password":  "Password123!",
}

func (e *testEnv) registerAndLogin(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/users/register", "", johnDoe)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    johnDoe["email"],
		"password": johnDoe["password"],
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, _ := decode(t, rec)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestRegisterRoutes(t *testing.T) {
	env := newTestEnv(t)
	router := env.server.Router()

	tests := []struct {
		method string
		path   string
	}{
		{"POST", "/api/users/register"},
		{"POST", "/api/users/login"},
		{"GET", "/api/users/"},
		{"GET", "/api/users"},
		{"GET", "/api/users/me"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			var match mux.RouteMatch
			assert.True(t, router.Match(req, &match), "route should match")
		})
	}
}

func TestServer_EndToEnd(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/users/register", "", johnDoe)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, UserCreatedMessage, body["message"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "john@example.com", data["email"])
	assert.NotContains(t, data, "password")

	rec = env.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "john@example.com", "password": "Password123!",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, LoginSuccessMessage, body["message"])
	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "John", user["name"])
	assert.Equal(t, "john@example.com", user["email"])
	assert.Equal(t, data["id"], user["id"])

	rec = env.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "john@example.com", "password": "Password123?",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, InvalidCredentialsMessage, decode(t, rec)["message"])

	rec = env.do(t, http.MethodPost, "/api/users/register", "", johnDoe)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, UserExistsMessage, decode(t, rec)["message"])
}

func TestServer_CORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/users/login", nil)
	req.Header.Set("Origin", "https://explorer.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://explorer.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestServer_RequestID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/users", "", nil)
	assert.NotEmpty(t, rec.Header().Get(httputil.RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set(httputil.RequestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(httputil.RequestIDHeader))
}

func TestServer_NotFoundAndMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])

	rec = env.do(t, http.MethodGet, "/api/users/register", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.MaxBodyBytes = 64 })

	big := map[string]string{
		"firstName": strings.Repeat("a", 80),
		"lastName":  "Doe",
		"email":     "john@example.com",
		"password":  "Password123!",
	}
	rec := env.do(t, http.MethodPost, "/api/users/register", "", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, BodyTooLargeMessage, decode(t, rec)["message"])
}
