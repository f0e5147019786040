package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteJSON(w, http.StatusOK, map[string]string{"hello": "world"})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "world", decodeBody(t, w)["hello"])
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteCreated(w, "New user created", map[string]string{"id": "u1"}))

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "New user created", body["message"])
	assert.Equal(t, map[string]interface{}{"id": "u1"}, body["data"])
}

func TestWriteOK_OmitsNilData(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteOK(w, "done", nil))

	assert.NotContains(t, decodeBody(t, w), "data")
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		msg    string
	}{
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "Missing required fields") }, http.StatusBadRequest, "Missing required fields"},
		{"unauthorized", func(w http.ResponseWriter) { WriteUnauthorized(w, "User is not authorized") }, http.StatusUnauthorized, "User is not authorized"},
		{"not found", func(w http.ResponseWriter) { WriteNotFound(w, "No images available.") }, http.StatusNotFound, "No images available."},
		{"conflict", func(w http.ResponseWriter) { WriteConflict(w, "User already exists") }, http.StatusConflict, "User already exists"},
		{"too many", func(w http.ResponseWriter) { WriteTooManyRequests(w, "slow down") }, http.StatusTooManyRequests, "slow down"},
		{"bad gateway", func(w http.ResponseWriter) { WriteBadGateway(w, "Failed to fetch data.") }, http.StatusBadGateway, "Failed to fetch data."},
		{"internal", WriteInternalError, http.StatusInternalServerError, InternalErrorMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.status, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.msg, body["message"])
		})
	}
}

func TestResponse_Embedding(t *testing.T) {
	type loginResponse struct {
		Response
		Token string `json:"token"`
	}

	w := httptest.NewRecorder()
	require.NoError(t, WriteJSON(w, http.StatusOK, loginResponse{
		Response: Response{Success: true, Message: "Login successfully"},
		Token:    "abc",
	}))

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "abc", body["token"])
}
