package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nasa-explorer/explorer/pkg/validation"
)

// ErrBodyTooLarge is returned when a body exceeds the MaxBytesMiddleware limit
var ErrBodyTooLarge = errors.New("request body too large")

// DateLayout is the YYYY-MM-DD format used by date query parameters
const DateLayout = "2006-01-02"

// ReadJSON reads the request body, checks it against schema and decodes it
// into dest. Malformed or mismatched bodies yield errors wrapping
// validation.ErrMalformedBody.
func ReadJSON(r *http.Request, schema *validation.Schema, dest interface{}) error {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return ErrBodyTooLarge
		}
		return fmt.Errorf("%w: %v", validation.ErrMalformedBody, err)
	}

	if schema != nil {
		if err := validation.ValidateRequest(schema, raw); err != nil {
			return err
		}
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%w: %v", validation.ErrMalformedBody, err)
	}
	return nil
}

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := strings.TrimSpace(r.URL.Query().Get(key))
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryFloat extracts a required float query parameter
func ParseQueryFloat(r *http.Request, key string) (float64, error) {
	str := strings.TrimSpace(r.URL.Query().Get(key))
	if str == "" {
		return 0, fmt.Errorf("missing query param: %s", key)
	}
	val, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryString extracts a string query parameter
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	val := strings.TrimSpace(r.URL.Query().Get(key))
	if val == "" {
		return defaultVal
	}
	return val
}

// ParseQueryDate extracts an optional YYYY-MM-DD query parameter. The zero
// time is returned when the parameter is absent.
func ParseQueryDate(r *http.Request, key string) (time.Time, error) {
	str := strings.TrimSpace(r.URL.Query().Get(key))
	if str == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, str)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date for query param %s: %s", key, str)
	}
	return t, nil
}
