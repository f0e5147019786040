package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// DefaultShutdownTimeout bounds the whole drain when no timeout is configured
const DefaultShutdownTimeout = 30 * time.Second

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

type namedShutdown struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager drains HTTP servers first and then releases the resources
// they depend on, in reverse registration order.
type ShutdownManager struct {
	logger  *Logger
	timeout time.Duration

	mu      sync.Mutex
	servers []*http.Server
	funcs   []namedShutdown
	done    bool
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(logger *Logger, timeout time.Duration) *ShutdownManager {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return &ShutdownManager{
		logger:  logger,
		timeout: timeout,
	}
}

// AddServer registers an HTTP server to be drained before any resource is closed
func (sm *ShutdownManager) AddServer(server *http.Server) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.servers = append(sm.servers, server)
}

// RegisterShutdownFunc registers a function to call during shutdown
func (sm *ShutdownManager) RegisterShutdownFunc(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.funcs = append(sm.funcs, namedShutdown{name: name, fn: fn})
}

// WaitForShutdown blocks until ctx is cancelled (typically by a signal) and
// then runs Shutdown.
func (sm *ShutdownManager) WaitForShutdown(ctx context.Context) error {
	<-ctx.Done()
	sm.logger.Info("Shutdown requested, draining")
	return sm.Shutdown(context.Background())
}

// Shutdown drains servers concurrently, then runs the registered functions
// last-in first-out. It is safe to call more than once; only the first call
// does any work.
func (sm *ShutdownManager) Shutdown(parent context.Context) error {
	sm.mu.Lock()
	if sm.done {
		sm.mu.Unlock()
		return nil
	}
	sm.done = true
	servers := append([]*http.Server(nil), sm.servers...)
	funcs := append([]namedShutdown(nil), sm.funcs...)
	sm.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, sm.timeout)
	defer cancel()

	var (
		errMu sync.Mutex
		errs  []error
	)

	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(ctx); err != nil {
				sm.logger.WithError(err).WithField("addr", srv.Addr).Error("HTTP server shutdown error")
				errMu.Lock()
				errs = append(errs, fmt.Errorf("server %s: %w", srv.Addr, err))
				errMu.Unlock()
				return
			}
			sm.logger.WithField("addr", srv.Addr).Info("HTTP server shutdown complete")
		}(srv)
	}
	wg.Wait()

	for i := len(funcs) - 1; i >= 0; i-- {
		f := funcs[i]
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%s: shutdown timeout reached", f.name))
			continue
		}
		if err := f.fn(ctx); err != nil {
			sm.logger.WithError(err).WithField("resource", f.name).Error("Shutdown function failed")
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
			continue
		}
		sm.logger.WithField("resource", f.name).Debug("Shutdown function complete")
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	sm.logger.Info("Graceful shutdown complete")
	return nil
}
