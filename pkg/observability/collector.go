package observability

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultUsersGaugeSchedule refreshes the users gauge once a minute
const DefaultUsersGaugeSchedule = "@every 1m"

// UserCounter reports the number of stored users
type UserCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Collector runs scheduled jobs that refresh gauges which cannot be updated
// inline with requests.
type Collector struct {
	scheduler *cron.Cron
	logger    *Logger
	metrics   *Metrics
	users     UserCounter
	timeout   time.Duration
}

// NewCollector schedules the users gauge refresh on schedule
func NewCollector(schedule string, metrics *Metrics, users UserCounter, logger *Logger) (*Collector, error) {
	if schedule == "" {
		schedule = DefaultUsersGaugeSchedule
	}
	c := &Collector{
		scheduler: cron.New(),
		logger:    logger.WithField("component", "collector"),
		metrics:   metrics,
		users:     users,
		timeout:   10 * time.Second,
	}
	if _, err := c.scheduler.AddFunc(schedule, Guard(c.logger, "users gauge refresh", c.RefreshUsers)); err != nil {
		return nil, err
	}
	return c, nil
}

// RefreshUsers sets the users gauge from the store
func (c *Collector) RefreshUsers() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	n, err := c.users.Count(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("failed to count users")
		return
	}
	c.metrics.UsersTotal.Set(float64(n))
}

// Start primes the gauge and starts the scheduler
func (c *Collector) Start() {
	c.RefreshUsers()
	c.scheduler.Start()
}

// Stop stops the scheduler and waits for a running job to finish or ctx to end
func (c *Collector) Stop(ctx context.Context) error {
	done := c.scheduler.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
