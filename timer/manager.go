// Package timer schedules the callbacks behind timeout transitions.
package timer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// ErrManagerStopped is returned by Shutdown when called twice
var ErrManagerStopped = errors.New("timer manager stopped")

// Handle identifies one started timer. The zero Handle means "no timer".
type Handle struct {
	id uuid.UUID
}

// NewHandle returns a fresh non-zero handle, for schedulers other than Manager
func NewHandle() Handle {
	return Handle{id: uuid.New()}
}

// IsZero reports whether h refers to no timer
func (h Handle) IsZero() bool {
	return h.id == uuid.Nil
}

func (h Handle) String() string {
	if h.IsZero() {
		return "none"
	}
	return h.id.String()
}

// Manager runs timers with time.AfterFunc. A canceled timer never calls its
// callback once Cancel has returned.
type Manager struct {
	mutex    sync.Mutex
	timers   map[Handle]*time.Timer
	inflight sync.WaitGroup

	running *atomic.Bool
	started *atomic.Int64
	fired   *atomic.Int64

	logger *slog.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger used for timer diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a running timer manager
func New(opts ...Option) *Manager {
	m := &Manager{
		timers:  make(map[Handle]*time.Timer),
		running: atomic.NewBool(true),
		started: atomic.NewInt64(0),
		fired:   atomic.NewInt64(0),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start schedules fire to run once after d. It returns the zero Handle when
// the manager has been shut down.
func (m *Manager) Start(d time.Duration, fire func(Handle)) Handle {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.running.Load() {
		m.logger.Warn("timer requested after shutdown", "duration", d)
		return Handle{}
	}

	h := NewHandle()
	m.timers[h] = time.AfterFunc(d, func() {
		m.mutex.Lock()
		if _, ok := m.timers[h]; !ok {
			m.mutex.Unlock()
			return
		}
		delete(m.timers, h)
		m.inflight.Add(1)
		m.mutex.Unlock()

		defer m.inflight.Done()

		m.fired.Inc()
		m.logger.Debug("timer elapsed", "handle", h.String())
		fire(h)
	})
	m.started.Inc()
	m.logger.Debug("timer started", "handle", h.String(), "duration", d)

	return h
}

// Cancel stops the timer behind h. It reports whether a pending timer was
// removed; canceling an elapsed or unknown handle is a no-op.
func (m *Manager) Cancel(h Handle) bool {
	if h.IsZero() {
		return false
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	t, ok := m.timers[h]
	if !ok {
		return false
	}
	t.Stop()
	delete(m.timers, h)
	m.logger.Debug("timer canceled", "handle", h.String())

	return true
}

// Pending returns the number of timers that have neither fired nor been canceled
func (m *Manager) Pending() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.timers)
}

// Started returns the number of timers started since creation
func (m *Manager) Started() int64 {
	return m.started.Load()
}

// Fired returns the number of timers whose callback ran
func (m *Manager) Fired() int64 {
	return m.fired.Load()
}

// Running reports whether the manager still accepts timers
func (m *Manager) Running() bool {
	return m.running.Load()
}

// Shutdown cancels every pending timer and waits until callbacks already in
// progress have returned, or until ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mutex.Lock()
	if !m.running.Swap(false) {
		m.mutex.Unlock()
		return ErrManagerStopped
	}
	for h, t := range m.timers {
		t.Stop()
		delete(m.timers, h)
	}
	m.mutex.Unlock()

	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Debug("timer manager stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
