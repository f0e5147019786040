package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countFunc func(ctx context.Context) (int64, error)

func (f countFunc) Count(ctx context.Context) (int64, error) { return f(ctx) }

func TestCollector_RefreshUsers(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	n := int64(7)

	c, err := NewCollector("", m, countFunc(func(context.Context) (int64, error) { return n, nil }), NewLogger(InfoLevel, &bytes.Buffer{}))
	require.NoError(t, err)

	c.RefreshUsers()
	assert.Equal(t, float64(7), testutil.ToFloat64(m.UsersTotal))

	n = 9
	c.Start()
	defer func() { _ = c.Stop(context.Background()) }()
	assert.Equal(t, float64(9), testutil.ToFloat64(m.UsersTotal), "Start primes the gauge")
}

func TestCollector_CountFailureKeepsLastValue(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.UsersTotal.Set(4)

	var buf bytes.Buffer
	c, err := NewCollector("@every 1h", m, countFunc(func(context.Context) (int64, error) {
		return 0, errors.New("store down")
	}), NewLogger(InfoLevel, &buf))
	require.NoError(t, err)

	c.RefreshUsers()
	assert.Equal(t, float64(4), testutil.ToFloat64(m.UsersTotal))
	assert.Contains(t, buf.String(), "store down")
}

func TestCollector_InvalidSchedule(t *testing.T) {
	_, err := NewCollector("not a schedule", NewMetrics(prometheus.NewRegistry()), countFunc(nil), NewLogger(InfoLevel, &bytes.Buffer{}))
	assert.Error(t, err)
}

func TestCollector_StopHonoursContext(t *testing.T) {
	c, err := NewCollector("@every 1h", NewMetrics(prometheus.NewRegistry()), countFunc(func(context.Context) (int64, error) { return 0, nil }), NewLogger(InfoLevel, &bytes.Buffer{}))
	require.NoError(t, err)
	c.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, c.Stop(ctx))
}
