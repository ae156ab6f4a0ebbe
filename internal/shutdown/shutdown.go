package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Handler coordinates graceful teardown. Components register cleanup
// functions; on SIGINT or SIGTERM they run in reverse registration order
// under a shared deadline.
type Handler struct {
	mu       sync.Mutex
	cleanups []func(context.Context) error
	timeout  time.Duration
	signals  chan os.Signal
	done     chan struct{}
	started  bool
}

// New creates a shutdown handler with the given teardown deadline
func New(timeout time.Duration) *Handler {
	return &Handler{
		timeout: timeout,
		signals: make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
}

// Register adds a cleanup function. Cleanups run LIFO so dependents tear
// down before their dependencies.
func (h *Handler) Register(fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanups = append(h.cleanups, fn)
}

// Wait blocks until a termination signal arrives, then runs the cleanups
func (h *Handler) Wait() {
	signal.Notify(h.signals, syscall.SIGINT, syscall.SIGTERM)
	<-h.signals
	h.Shutdown()
}

// Shutdown runs every registered cleanup under the configured deadline.
// Safe to call more than once; only the first call does any work.
func (h *Handler) Shutdown() error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return nil
	}
	h.started = true
	cleanups := h.cleanups
	h.mu.Unlock()

	close(h.done)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := cleanups[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsShuttingDown reports whether shutdown has begun
func (h *Handler) IsShuttingDown() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}

// ShutdownChan returns a channel that is closed when shutdown begins
func (h *Handler) ShutdownChan() <-chan struct{} {
	return h.done
}

// TriggerShutdown requests shutdown programmatically, as if a signal had
// been received
func (h *Handler) TriggerShutdown() {
	select {
	case h.signals <- syscall.SIGTERM:
	default:
	}
}
