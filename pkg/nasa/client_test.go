package nasa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-explorer/explorer/pkg/cache"
	"github.com/nasa-explorer/explorer/pkg/observability"
)

var today = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base := []Option{
		WithHTTPClient(srv.Client()),
		WithClock(func() time.Time { return today }),
		WithLogger(quietLogger()),
	}
	return NewClient(Config{
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		EPICBaseURL: srv.URL + "/epic",
		PageSize:    6,
	}, append(base, opts...)...)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_APOD(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/planetary/apod", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		writeJSON(w, APOD{Date: r.URL.Query().Get("date"), Title: "Andromeda", MediaType: "image", URL: "https://apod.example/m31.jpg"})
	}), WithCache(cache.New(nil, nil, nil)))

	ctx := context.Background()
	apod, err := client.APOD(ctx, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", apod.Date)
	assert.Equal(t, "Andromeda", apod.Title)

	_, err = client.APOD(ctx, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "second call is served from cache")

	apod, err = client.APOD(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-15", apod.Date, "zero date means today")
}

func TestClient_APODFutureDate(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called")
	}))

	_, err := client.APOD(context.Background(), today.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, ErrFutureDate)
}

func TestClient_UpstreamFailure(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}), WithMetrics(metrics))

	_, err := client.APOD(context.Background(), today)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Status)

	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, CodeUpstreamFailed, oopsErr.Code())
	assert.Equal(t, EndpointAPOD, oopsErr.Context()["endpoint"])

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.UpstreamRequestsTotal.WithLabelValues(EndpointAPOD, "503")))
}

func TestClient_TransportErrorHidesAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewClient(Config{APIKey: "super-secret-key", BaseURL: srv.URL},
		WithClock(func() time.Time { return today }),
		WithLogger(quietLogger()),
	)

	_, err := client.APOD(context.Background(), today)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.NotContains(t, err.Error(), "super-secret-key")
}

func TestClient_MarsPhotos(t *testing.T) {
	photos := make([]MarsPhoto, 14)
	for i := range photos {
		photos[i] = MarsPhoto{ID: i + 1, Sol: 1000, ImgSrc: fmt.Sprintf("https://mars.example/%d.jpg", i+1)}
	}

	var hits atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/mars-photos/api/v1/rovers/curiosity/photos", r.URL.Path)
		assert.Equal(t, "1000", r.URL.Query().Get("sol"))
		assert.Equal(t, "NAVCAM", r.URL.Query().Get("camera"))
		writeJSON(w, map[string]interface{}{"photos": photos})
	}), WithCache(cache.New(nil, nil, nil)))

	ctx := context.Background()

	first, err := client.MarsPhotos(ctx, "navcam", DefaultSol, 1)
	require.NoError(t, err)
	assert.Len(t, first.Photos, 6)
	assert.Equal(t, 1, first.Photos[0].ID)
	assert.Equal(t, 3, first.TotalPages)
	assert.Equal(t, 14, first.Total)
	assert.Equal(t, "NAVCAM", first.Camera)

	last, err := client.MarsPhotos(ctx, "NAVCAM", DefaultSol, 3)
	require.NoError(t, err)
	assert.Len(t, last.Photos, 2)
	assert.Equal(t, 13, last.Photos[0].ID)

	beyond, err := client.MarsPhotos(ctx, "NAVCAM", DefaultSol, 9)
	require.NoError(t, err)
	assert.Empty(t, beyond.Photos)
	assert.Equal(t, 9, beyond.Page)

	huge, err := client.MarsPhotos(ctx, "NAVCAM", DefaultSol, math.MaxInt)
	require.NoError(t, err)
	assert.Empty(t, huge.Photos)
	assert.Equal(t, 3, huge.TotalPages)

	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_MarsPhotosInvalidCamera(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler())
	_, err := client.MarsPhotos(context.Background(), "SELFIE", DefaultSol, 1)
	assert.ErrorIs(t, err, ErrInvalidCamera)
}

func TestPaginate_Empty(t *testing.T) {
	page := paginate([]MarsPhoto{}, "", 1000, 1, 6)
	assert.NotNil(t, page.Photos)
	assert.Empty(t, page.Photos)
	assert.Equal(t, 1, page.TotalPages)
}

func TestPaginate_PageBeyondLast(t *testing.T) {
	photos := make([]MarsPhoto, 7)
	for _, page := range []int{3, 1 << 40, math.MaxInt} {
		got := paginate(photos, "", 1000, page, 6)
		assert.NotNil(t, got.Photos)
		assert.Empty(t, got.Photos, "page %d", page)
		assert.Equal(t, 2, got.TotalPages)
	}

	last := paginate(photos, "", 1000, 2, 6)
	assert.Len(t, last.Photos, 1)
}

func TestClient_EarthImagery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/planetary/earth/imagery", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "0.1", q.Get("dim"))
		if q.Get("lat") == "10" {
			http.Error(w, `{"msg":"no imagery"}`, http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, "/assets/landsat.png?"+r.URL.RawQuery, http.StatusFound)
	})
	mux.HandleFunc("/assets/landsat.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	})
	client := newTestClient(t, mux)
	ctx := context.Background()
	date := time.Date(2024, 2, 23, 0, 0, 0, 0, time.UTC)

	img, err := client.EarthImagery(ctx, -6.36, 176.4, date)
	require.NoError(t, err)
	assert.Contains(t, img.URL, "/assets/landsat.png")
	assert.Contains(t, img.URL, "lat=-6.36")
	assert.NotContains(t, img.URL, "api_key")
	assert.Equal(t, "2024-02-23", img.Date)

	_, err = client.EarthImagery(ctx, 10, 10, date)
	assert.ErrorIs(t, err, ErrNoImagery)
}

func TestClient_EarthImageryValidation(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called")
	}))
	ctx := context.Background()
	date := time.Date(2024, 2, 23, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		lat, lon float64
		date     time.Time
		want     error
	}{
		{"latitude too high", 90.5, 0, date, ErrInvalidCoordinates},
		{"latitude too low", -91, 0, date, ErrInvalidCoordinates},
		{"longitude too high", 0, 180.1, date, ErrInvalidCoordinates},
		{"longitude too low", 0, -181, date, ErrInvalidCoordinates},
		{"latitude NaN", math.NaN(), 0, date, ErrInvalidCoordinates},
		{"longitude NaN", 0, math.NaN(), date, ErrInvalidCoordinates},
		{"missing date", 0, 0, time.Time{}, ErrMissingDate},
		{"future date", 0, 0, today.AddDate(0, 1, 0), ErrFutureDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.EarthImagery(ctx, tt.lat, tt.lon, tt.date)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_EPIC(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/epic/api/natural", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("api_key"))
		_, _ = io.WriteString(w, `[{
			"identifier": "20240614003633",
			"caption": "This image was taken by NASA's EPIC camera",
			"image": "epic_1b_20240614003633",
			"date": "2024-06-14 00:31:45",
			"centroid_coordinates": {"lat": 11.2, "lon": 162.5}
		}]`)
	}))

	images, err := client.EPIC(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 1)

	img := images[0]
	assert.Equal(t, "20240614003633", img.Identifier)
	assert.True(t, strings.HasSuffix(img.ImageURL, "/epic/archive/natural/2024/06/14/png/epic_1b_20240614003633.png"), img.ImageURL)
	assert.InDelta(t, 11.2, img.Centroid.Lat, 0.0001)
	assert.InDelta(t, 162.5, img.Centroid.Lon, 0.0001)
}

func TestClient_EPICImageURLMalformedDate(t *testing.T) {
	c := NewClient(Config{EPICBaseURL: "https://epic.example"})
	assert.Empty(t, c.epicImageURL(epicRecord{Image: "x", Date: "yesterday"}))
}

func TestClient_ConcurrentFetchesShareUpstream(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = io.WriteString(w, `[]`)
	}), WithCache(cache.New(nil, nil, nil)))

	const callers = 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.EPIC(context.Background())
			errs <- err
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_CancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	var hits atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			close(entered)
		}
		<-release
		_, _ = io.WriteString(w, `[]`)
	}), WithCache(cache.New(nil, nil, nil)))

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := client.EPIC(firstCtx)
		firstErr <- err
	}()
	<-entered

	secondErr := make(chan error, 1)
	go func() {
		_, err := client.EPIC(context.Background())
		secondErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	assert.NoError(t, <-secondErr)
	assert.Equal(t, int32(1), hits.Load())
}

func TestStatusError(t *testing.T) {
	err := &StatusError{Endpoint: EndpointEPIC, Status: 500}
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.Equal(t, "epic: unexpected status 500", err.Error())
}
