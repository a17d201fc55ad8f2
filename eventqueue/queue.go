// Package eventqueue delivers events to statechart instances asynchronously.
//
// A Queue is split into shards. Every dispatcher is bound to one shard by a
// hash of its ID and each shard has a single consumer, so events submitted to
// the same instance are dispatched one at a time in submission order while
// different instances progress in parallel.
package eventqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/anggasct/statechart"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/atomic"
)

const (
	// DefaultCapacity is the number of events a queue buffers before
	// Submit starts waiting
	DefaultCapacity = 1000
	// DefaultOfferTimeout is how long Submit waits for buffer space
	DefaultOfferTimeout = time.Second
	// DefaultShards is the number of consumers of a queue
	DefaultShards = 4
)

var (
	// ErrQueueFull is returned when no buffer space became available within
	// the offer timeout
	ErrQueueFull = errors.New("event queue full")
	// ErrQueueClosed is returned by Submit and Shutdown once the queue is
	// shut down
	ErrQueueClosed = errors.New("event queue closed")
)

// ShutdownPolicy decides what happens to buffered events on shutdown
type ShutdownPolicy int

const (
	// Drain dispatches every buffered event before the consumers stop
	Drain ShutdownPolicy = iota
	// Drop discards buffered events; dispatches in progress still finish
	Drop
)

func (p ShutdownPolicy) String() string {
	switch p {
	case Drain:
		return "drain"
	case Drop:
		return "drop"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy parses "drain" or "drop"
func ParsePolicy(s string) (ShutdownPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "drain", "":
		return Drain, nil
	case "drop":
		return Drop, nil
	default:
		return Drain, fmt.Errorf("unknown shutdown policy %q", s)
	}
}

// ErrorHandler is called on the consumer goroutine when a dispatch fails
type ErrorHandler func(target statechart.Dispatcher, event statechart.Event, err error)

type entry struct {
	ctx    context.Context
	target statechart.Dispatcher
	event  statechart.Event
}

// Stats is a snapshot of the queue counters
type Stats struct {
	Submitted int64
	Delivered int64
	Failed    int64
	Dropped   int64
	Rejected  int64
	Pending   int
}

// Queue is a bounded, sharded event queue implementing statechart.EventSink
type Queue struct {
	shards []chan entry
	pool   pond.Pool

	capacity     int
	shardCount   int
	offerTimeout time.Duration
	policy       ShutdownPolicy
	onError      ErrorHandler
	logger       *slog.Logger

	// mutex keeps Submit from sending on a shard closed by Shutdown
	mutex    sync.RWMutex
	closed   *atomic.Bool
	dropping *atomic.Bool

	submitted *atomic.Int64
	delivered *atomic.Int64
	failed    *atomic.Int64
	dropped   *atomic.Int64
	rejected  *atomic.Int64
}

var _ statechart.EventSink = (*Queue)(nil)

// Option configures a Queue
type Option func(*Queue)

// WithCapacity sets the total number of buffered events, split evenly
// between the shards
func WithCapacity(capacity int) Option {
	return func(q *Queue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithShards sets the number of consumers
func WithShards(shards int) Option {
	return func(q *Queue) {
		if shards > 0 {
			q.shardCount = shards
		}
	}
}

// WithOfferTimeout sets how long Submit waits for buffer space
func WithOfferTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.offerTimeout = d
		}
	}
}

// WithShutdownPolicy sets what Shutdown does with buffered events
func WithShutdownPolicy(policy ShutdownPolicy) Option {
	return func(q *Queue) {
		q.policy = policy
	}
}

// WithErrorHandler sets a callback for failed dispatches
func WithErrorHandler(handler ErrorHandler) Option {
	return func(q *Queue) {
		q.onError = handler
	}
}

// WithLogger sets the logger of the queue
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// New creates a queue and starts its consumers
func New(opts ...Option) *Queue {
	q := &Queue{
		capacity:     DefaultCapacity,
		shardCount:   DefaultShards,
		offerTimeout: DefaultOfferTimeout,
		policy:       Drain,
		logger:       slog.Default(),
		closed:       atomic.NewBool(false),
		dropping:     atomic.NewBool(false),
		submitted:    atomic.NewInt64(0),
		delivered:    atomic.NewInt64(0),
		failed:       atomic.NewInt64(0),
		dropped:      atomic.NewInt64(0),
		rejected:     atomic.NewInt64(0),
	}

	for _, opt := range opts {
		opt(q)
	}

	perShard := (q.capacity + q.shardCount - 1) / q.shardCount
	q.shards = make([]chan entry, q.shardCount)
	q.pool = pond.NewPool(q.shardCount)

	for i := range q.shards {
		shard := make(chan entry, perShard)
		q.shards[i] = shard
		if err := q.pool.Go(func() { q.consume(shard) }); err != nil {
			q.logger.Error("event queue consumer not started", "shard", i, "error", err)
		}
	}

	q.logger.Debug("event queue started", "shards", q.shardCount, "capacity", q.capacity, "policy", q.policy.String())

	return q
}

// Submit appends event to the shard of target. When the shard is full it
// waits up to the offer timeout for space and fails with ErrQueueFull.
func (q *Queue) Submit(ctx context.Context, target statechart.Dispatcher, event statechart.Event) error {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	if q.closed.Load() {
		return ErrQueueClosed
	}

	shard := q.shards[q.shardOf(target.ID())]
	e := entry{ctx: context.WithoutCancel(ctx), target: target, event: event}

	select {
	case shard <- e:
		q.submitted.Inc()
		return nil
	default:
	}

	wait := time.NewTimer(q.offerTimeout)
	defer wait.Stop()

	select {
	case shard <- e:
		q.submitted.Inc()
		return nil
	case <-wait.C:
		q.rejected.Inc()
		q.logger.Error("event could not be placed into the event queue",
			"instance", target.ID(), "event", eventName(event), "timeout", q.offerTimeout)
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send is a convenience wrapper submitting a named event
func (q *Queue) Send(ctx context.Context, target statechart.Dispatcher, name string, data any) error {
	return q.Submit(ctx, target, statechart.NewEvent(name, data))
}

func (q *Queue) shardOf(id string) int {
	return int(xxhash.Sum64String(id) % uint64(len(q.shards)))
}

func (q *Queue) consume(shard chan entry) {
	for e := range shard {
		if q.dropping.Load() {
			q.dropped.Inc()
			continue
		}
		q.deliver(e)
	}
}

func (q *Queue) deliver(e entry) {
	defer func() {
		if r := recover(); r != nil {
			q.fail(e, fmt.Errorf("dispatch panic: %v", r))
		}
	}()

	if _, err := e.target.Dispatch(e.ctx, e.event); err != nil {
		q.fail(e, err)
		return
	}
	q.delivered.Inc()
}

func (q *Queue) fail(e entry, err error) {
	q.failed.Inc()
	q.logger.Warn("event dispatch failed", "instance", e.target.ID(), "event", eventName(e.event), "error", err)
	if q.onError != nil {
		q.onError(e.target, e.event, err)
	}
}

// Shutdown stops accepting events and waits for the consumers. With the Drop
// policy, or once ctx is done, buffered events are discarded instead of
// dispatched.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mutex.Lock()
	if q.closed.Load() {
		q.mutex.Unlock()
		return ErrQueueClosed
	}
	if q.policy == Drop {
		q.dropping.Store(true)
	}
	q.closed.Store(true)
	for _, shard := range q.shards {
		close(shard)
	}
	q.mutex.Unlock()

	q.logger.Debug("event queue shutdown triggered", "policy", q.policy.String(), "pending", q.Pending())

	done := make(chan struct{})
	go func() {
		q.pool.StopAndWait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Debug("event queue shutdown completed", "delivered", q.delivered.Load(), "dropped", q.dropped.Load())
		return nil
	case <-ctx.Done():
		q.dropping.Store(true)
		return ctx.Err()
	}
}

// Closed reports whether Shutdown has been called
func (q *Queue) Closed() bool {
	return q.closed.Load()
}

// Pending returns the number of buffered events
func (q *Queue) Pending() int {
	n := 0
	for _, shard := range q.shards {
		n += len(shard)
	}
	return n
}

// Stats returns a snapshot of the counters
func (q *Queue) Stats() Stats {
	return Stats{
		Submitted: q.submitted.Load(),
		Delivered: q.delivered.Load(),
		Failed:    q.failed.Load(),
		Dropped:   q.dropped.Load(),
		Rejected:  q.rejected.Load(),
		Pending:   q.Pending(),
	}
}

func eventName(event statechart.Event) string {
	if event == nil {
		return ""
	}
	return event.GetName()
}
