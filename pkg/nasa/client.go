package nasa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/nasa-explorer/explorer/pkg/cache"
	"github.com/nasa-explorer/explorer/pkg/observability"
)

// DateLayout is the date format NASA APIs accept
const DateLayout = "2006-01-02"

// Endpoint names used for metrics and logs
const (
	EndpointAPOD  = "apod"
	EndpointMars  = "mars_photos"
	EndpointEarth = "earth_imagery"
	EndpointEPIC  = "epic"
)

const (
	// DefaultSol is the Martian day queried when none is given
	DefaultSol = 1000
	// DefaultPageSize is the number of rover photos per page
	DefaultPageSize = 6

	earthDim = "0.1"
)

// Cameras lists the Curiosity cameras accepted by MarsPhotos
var Cameras = []string{"FHAZ", "RHAZ", "MAST", "CHEMCAM", "MAHLI", "MARDI", "NAVCAM"}

// Config configures the NASA client
type Config struct {
	APIKey      string
	BaseURL     string
	EPICBaseURL string
	Timeout     time.Duration
	PageSize    int
}

// DefaultConfig returns the public NASA endpoints with the demo key
func DefaultConfig() Config {
	return Config{
		APIKey:      "DEMO_KEY",
		BaseURL:     "https://api.nasa.gov",
		EPICBaseURL: "https://epic.gsfc.nasa.gov",
		Timeout:     10 * time.Second,
		PageSize:    DefaultPageSize,
	}
}

// Client fetches data from NASA's public APIs. Responses are cached and
// concurrent identical fetches share one upstream request.
type Client struct {
	cfg     Config
	http    *http.Client
	cache   *cache.Cache
	metrics *observability.Metrics
	log     logrus.FieldLogger
	now     func() time.Time
	group   singleflight.Group
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCache enables response caching
func WithCache(rc *cache.Cache) Option {
	return func(c *Client) { c.cache = rc }
}

// WithMetrics records upstream request metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// WithClock overrides the clock used for future-date checks
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a NASA API client
func NewClient(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.APIKey == "" {
		cfg.APIKey = def.APIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.EPICBaseURL == "" {
		cfg.EPICBaseURL = def.EPICBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.EPICBaseURL = strings.TrimRight(cfg.EPICBaseURL, "/")

	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: logrus.StandardLogger(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APOD returns the picture of the day for date, or for today when date is
// the zero time.
func (c *Client) APOD(ctx context.Context, date time.Time) (*APOD, error) {
	if date.IsZero() {
		date = c.now()
	}
	if c.isFuture(date) {
		return nil, ErrFutureDate
	}
	day := date.Format(DateLayout)

	return fetchCached(ctx, c, "apod:"+day, func(ctx context.Context) (*APOD, error) {
		q := url.Values{"date": {day}}
		var apod APOD
		if err := c.getJSON(ctx, EndpointAPOD, c.apiURL("/planetary/apod", q), &apod); err != nil {
			return nil, err
		}
		return &apod, nil
	})
}

// MarsPhotos returns one page of Curiosity photos for sol, filtered by
// camera. An empty camera means every camera. Pages start at 1.
func (c *Client) MarsPhotos(ctx context.Context, camera string, sol, page int) (*MarsPhotoPage, error) {
	camera = strings.ToUpper(strings.TrimSpace(camera))
	if camera != "" && !IsValidCamera(camera) {
		return nil, ErrInvalidCamera
	}
	if sol < 0 {
		sol = DefaultSol
	}
	if page < 1 {
		page = 1
	}

	key := fmt.Sprintf("mars:%d:%s", sol, camera)
	photos, err := fetchCached(ctx, c, key, func(ctx context.Context) ([]MarsPhoto, error) {
		q := url.Values{"sol": {strconv.Itoa(sol)}}
		if camera != "" {
			q.Set("camera", camera)
		}
		var resp marsPhotosResponse
		if err := c.getJSON(ctx, EndpointMars, c.apiURL("/mars-photos/api/v1/rovers/curiosity/photos", q), &resp); err != nil {
			return nil, err
		}
		if resp.Photos == nil {
			resp.Photos = []MarsPhoto{}
		}
		return resp.Photos, nil
	})
	if err != nil {
		return nil, err
	}

	return paginate(photos, camera, sol, page, c.cfg.PageSize), nil
}

func paginate(photos []MarsPhoto, camera string, sol, page, perPage int) *MarsPhotoPage {
	totalPages := (len(photos) + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}

	start, end := len(photos), len(photos)
	if page <= totalPages {
		start = (page - 1) * perPage
		end = min(start+perPage, len(photos))
	}

	return &MarsPhotoPage{
		Photos:     photos[start:end:end],
		Camera:     camera,
		Sol:        sol,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		Total:      len(photos),
	}
}

// IsValidCamera reports whether name is a known Curiosity camera
func IsValidCamera(name string) bool {
	for _, c := range Cameras {
		if c == name {
			return true
		}
	}
	return false
}

// EarthImagery locates the Landsat image nearest to date for a point. NASA
// answers 400 when it has no imagery, which maps to ErrNoImagery.
func (c *Client) EarthImagery(ctx context.Context, lat, lon float64, date time.Time) (*EarthImage, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, ErrInvalidCoordinates
	}
	if date.IsZero() {
		return nil, ErrMissingDate
	}
	if c.isFuture(date) {
		return nil, ErrFutureDate
	}

	day := date.Format(DateLayout)
	latStr := strconv.FormatFloat(lat, 'f', -1, 64)
	lonStr := strconv.FormatFloat(lon, 'f', -1, 64)
	key := fmt.Sprintf("earth:%s:%s:%s", latStr, lonStr, day)

	return fetchCached(ctx, c, key, func(ctx context.Context) (*EarthImage, error) {
		q := url.Values{"lon": {lonStr}, "lat": {latStr}, "dim": {earthDim}, "date": {day}}
		location, err := c.locate(ctx, EndpointEarth, c.apiURL("/planetary/earth/imagery", q))
		if err != nil {
			return nil, err
		}
		return &EarthImage{URL: location, Date: day, Lat: lat, Lon: lon}, nil
	})
}

// EPIC returns the most recent natural-color EPIC images with archive URLs
func (c *Client) EPIC(ctx context.Context) ([]EPICImage, error) {
	return fetchCached(ctx, c, "epic:natural", func(ctx context.Context) ([]EPICImage, error) {
		var records []epicRecord
		if err := c.getJSON(ctx, EndpointEPIC, c.cfg.EPICBaseURL+"/api/natural", &records); err != nil {
			return nil, err
		}

		images := make([]EPICImage, 0, len(records))
		for _, r := range records {
			images = append(images, EPICImage{
				Identifier: r.Identifier,
				Caption:    r.Caption,
				Image:      r.Image,
				Date:       r.Date,
				ImageURL:   c.epicImageURL(r),
				Centroid:   r.Centroid,
			})
		}
		return images, nil
	})
}

// epicImageURL builds archive/natural/YYYY/MM/DD/png/<image>.png from the
// record's "YYYY-MM-DD hh:mm:ss" date
func (c *Client) epicImageURL(r epicRecord) string {
	day, _, _ := strings.Cut(r.Date, " ")
	parts := strings.Split(day, "-")
	if len(parts) != 3 || r.Image == "" {
		return ""
	}
	return fmt.Sprintf("%s/archive/natural/%s/%s/%s/png/%s.png", c.cfg.EPICBaseURL, parts[0], parts[1], parts[2], r.Image)
}

func (c *Client) isFuture(date time.Time) bool {
	return date.Format(DateLayout) > c.now().Format(DateLayout)
}

func (c *Client) apiURL(path string, q url.Values) string {
	q.Set("api_key", c.cfg.APIKey)
	return c.cfg.BaseURL + path + "?" + q.Encode()
}

// getJSON performs a GET and decodes a 200 response into dest
func (c *Client) getJSON(ctx context.Context, endpoint, rawURL string, dest interface{}) error {
	resp, err := c.do(ctx, endpoint, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(endpoint, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return upstreamError(endpoint, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// locate performs a GET, follows redirects and returns the final URL with
// the API key removed
func (c *Client) locate(ctx context.Context, endpoint, rawURL string) (string, error) {
	resp, err := c.do(ctx, endpoint, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusNotFound:
		return "", ErrNoImagery
	default:
		return "", c.statusError(endpoint, resp)
	}

	final := *resp.Request.URL
	q := final.Query()
	q.Del("api_key")
	final.RawQuery = q.Encode()
	return final.String(), nil
}

func (c *Client) do(ctx context.Context, endpoint, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, upstreamError(endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(endpoint, 0, start)
		c.log.WithError(redactURLError(err)).WithField("endpoint", endpoint).Warn("NASA request failed")
		return nil, upstreamError(endpoint, redactURLError(err))
	}
	c.metrics.ObserveUpstream(endpoint, resp.StatusCode, start)
	return resp, nil
}

func (c *Client) statusError(endpoint string, resp *http.Response) error {
	c.log.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"status":   resp.StatusCode,
	}).Warn("NASA returned an unexpected status")
	return upstreamError(endpoint, &StatusError{Endpoint: endpoint, Status: resp.StatusCode})
}

func upstreamError(endpoint string, err error) error {
	if !errors.Is(err, ErrUpstream) {
		err = fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return oops.In("nasa").
		Code(CodeUpstreamFailed).
		With("endpoint", endpoint).
		Wrap(err)
}

// redactURLError drops the request URL, which carries the API key, from
// transport errors
func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

// fetchCached serves key from the cache, or runs fetch once for all
// concurrent callers and caches a successful result. The shared fetch is
// detached from any single caller's cancellation and bounded by the client
// timeout; each caller stops waiting when its own ctx is done.
func fetchCached[T any](ctx context.Context, c *Client, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T

	ctx, span := observability.StartSpan(ctx, "nasa.fetch", attribute.String("nasa.cache_key", key))
	defer span.End()

	if c.cache != nil {
		if data, err := c.cache.Get(ctx, key); err == nil {
			var v T
			if err := json.Unmarshal(data, &v); err == nil {
				span.SetAttributes(attribute.Bool("nasa.cache_hit", true))
				return v, nil
			}
			_ = c.cache.Delete(ctx, key)
		}
	}

	results := c.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
		defer cancel()

		v, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			if data, err := json.Marshal(v); err == nil {
				if err := c.cache.Set(fetchCtx, key, data); err != nil {
					c.log.WithError(err).WithField("key", key).Debug("Failed to write remote cache")
				}
			}
		}
		return v, nil
	})

	select {
	case res := <-results:
		if res.Err != nil {
			observability.RecordError(span, res.Err)
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		observability.RecordError(span, ctx.Err())
		return zero, ctx.Err()
	}
}
