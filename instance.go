package statechart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/anggasct/statechart/timer"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/anggasct/statechart"

	// DefaultMaxCompletionSteps bounds the completion passes of one dispatch
	DefaultMaxCompletionSteps = 10000
)

// Scheduler starts and cancels the timers behind timeout transitions.
// timer.Manager is the default implementation.
type Scheduler interface {
	Start(d time.Duration, fire func(timer.Handle)) timer.Handle
	Cancel(h timer.Handle) bool
}

// Dispatcher is anything events can be delivered to one at a time
type Dispatcher interface {
	ID() string
	Dispatch(ctx context.Context, event Event) (bool, error)
}

// EventSink delivers events asynchronously, in submission order per target
type EventSink interface {
	Submit(ctx context.Context, target Dispatcher, event Event) error
}

// Instance is one live execution of a Graph. Dispatches on an instance are
// serialized; distinct instances of the same graph run independently.
type Instance struct {
	id    string
	graph *Graph
	rt    *runtime
	data  *Data

	scheduler      Scheduler
	ownsScheduler  bool
	sink           EventSink
	observers      *ObserverManager
	logger         *slog.Logger
	maxSteps       int
	stepObservers  bool
	initialData    map[string]any
	schedulerOwner *timer.Manager

	mutex sync.Mutex
}

// InstanceOption configures an Instance
type InstanceOption func(*Instance)

// WithInstanceID overrides the generated instance identifier
func WithInstanceID(id string) InstanceOption {
	return func(in *Instance) {
		in.id = id
	}
}

// WithScheduler sets the scheduler used for timeout transitions. Without it
// the instance owns a private timer.Manager, released by Close.
func WithScheduler(scheduler Scheduler) InstanceOption {
	return func(in *Instance) {
		in.scheduler = scheduler
	}
}

// WithEventSink routes timeout occurrences through sink instead of
// dispatching them from the timer goroutine
func WithEventSink(sink EventSink) InstanceOption {
	return func(in *Instance) {
		in.sink = sink
	}
}

// WithObserver registers observers at construction time
func WithObserver(observers ...Observer) InstanceOption {
	return func(in *Instance) {
		for _, o := range observers {
			in.observers.AddObserver(o)
		}
	}
}

// WithLogger sets the logger of the instance
func WithLogger(logger *slog.Logger) InstanceOption {
	return func(in *Instance) {
		if logger != nil {
			in.logger = logger
		}
	}
}

// WithMaxCompletionSteps bounds the completion passes of a single dispatch
func WithMaxCompletionSteps(steps int) InstanceOption {
	return func(in *Instance) {
		if steps > 0 {
			in.maxSteps = steps
		}
	}
}

// WithData seeds the instance data
func WithData(values map[string]any) InstanceOption {
	return func(in *Instance) {
		in.initialData = values
	}
}

// NewInstance creates an idle instance of g and seals g
func NewInstance(g *Graph, opts ...InstanceOption) *Instance {
	g.Seal()

	in := &Instance{
		id:        uuid.NewString(),
		graph:     g,
		rt:        newRuntime(),
		data:      NewData(),
		observers: NewObserverManager(),
		logger:    slog.Default(),
		maxSteps:  DefaultMaxCompletionSteps,
	}

	for _, opt := range opts {
		opt(in)
	}

	for k, v := range in.initialData {
		in.data.Set(k, v)
	}
	in.initialData = nil

	if in.scheduler == nil {
		in.schedulerOwner = timer.New(timer.WithLogger(in.logger))
		in.scheduler = in.schedulerOwner
		in.ownsScheduler = true
	}

	in.logger = in.logger.With("statechart", g.name, "instance", in.id)

	return in
}

// ID returns the instance identifier
func (in *Instance) ID() string {
	return in.id
}

// Graph returns the graph driven by the instance
func (in *Instance) Graph() *Graph {
	return in.graph
}

// Get retrieves a value from the instance data
func (in *Instance) Get(key string) (any, bool) {
	return in.data.Get(key)
}

// Set stores a value in the instance data
func (in *Instance) Set(key string, value any) {
	in.data.Set(key, value)
}

// AddObserver registers an observer
func (in *Instance) AddObserver(observer Observer) {
	in.observers.AddObserver(observer)
}

// RemoveObserver unregisters an observer
func (in *Instance) RemoveObserver(observer Observer) {
	in.observers.RemoveObserver(observer)
}

// Started reports whether the root context is active
func (in *Instance) Started() bool {
	in.mutex.Lock()
	defer in.mutex.Unlock()
	return in.rt.isActive(Root)
}

// IsActive reports whether a state is currently active
func (in *Instance) IsActive(id StateID) bool {
	in.mutex.Lock()
	defer in.mutex.Unlock()
	return in.rt.isActive(id)
}

// ActiveStates returns every active state, the root included, in ascending order
func (in *Instance) ActiveStates() []StateID {
	in.mutex.Lock()
	defer in.mutex.Unlock()
	return in.rt.active()
}

// ActiveSince returns when an active state was entered
func (in *Instance) ActiveSince(id StateID) (time.Time, bool) {
	in.mutex.Lock()
	defer in.mutex.Unlock()
	e := in.rt.get(id)
	if e == nil || !e.active {
		return time.Time{}, false
	}
	return e.entered, true
}

// PendingTimers returns the number of outstanding timeout timers
func (in *Instance) PendingTimers() int {
	in.mutex.Lock()
	defer in.mutex.Unlock()
	return len(in.rt.timers())
}

func (in *Instance) newContext(ctx context.Context, event Event) *dispatchContext {
	return &dispatchContext{
		Context:  ctx,
		instance: in,
		state:    Root,
		event:    event,
	}
}

// Start activates the root context and settles the initial configuration
func (in *Instance) Start(ctx context.Context) error {
	in.mutex.Lock()
	defer in.mutex.Unlock()

	if in.rt.isActive(Root) {
		return NewMachineError(ErrCodeMachineAlreadyStarted, "Start", "instance is already started")
	}

	if in.graph.nodes[Root].start == NoState {
		return NewConfigurationError(in.graph.name, "root context has no start state")
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "statechart.start", trace.WithAttributes(
		attribute.String("statechart.name", in.graph.name),
		attribute.String("statechart.instance", in.id),
	))
	defer span.End()

	in.rt.reset()
	dc := in.newContext(ctx, nil)
	in.stepObservers = in.observers.HasStepObservers()

	in.notifyDispatchStarted(dc, nil)
	started := time.Now()

	err := in.activate(dc, Root)
	if err == nil {
		err = in.runToCompletion(dc, false)
	}

	if err != nil {
		in.fail(dc, span, err)
		in.reset()
		return err
	}

	in.logger.DebugContext(ctx, "statechart started", "configuration", in.configuration())
	in.notifyDispatchFinished(dc, nil, true, time.Since(started))
	in.observers.NotifyMachineStarted(dc.at(Root))

	return nil
}

// Dispatch processes one event to quiescence and reports whether the event
// itself fired a transition. A nil event only drains completion transitions.
func (in *Instance) Dispatch(ctx context.Context, event Event) (bool, error) {
	in.mutex.Lock()
	defer in.mutex.Unlock()

	if !in.rt.isActive(Root) {
		return false, NewMachineNotStartedError("Dispatch")
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "statechart.dispatch", trace.WithAttributes(
		attribute.String("statechart.name", in.graph.name),
		attribute.String("statechart.instance", in.id),
		attribute.String("statechart.event", eventName(event)),
	))
	defer span.End()

	dc := in.newContext(ctx, event)
	in.stepObservers = in.observers.HasStepObservers()
	in.notifyDispatchStarted(dc, event)
	started := time.Now()

	consumed, err := in.dispatchState(dc, Root, event)
	if err == nil {
		err = in.runToCompletion(dc, consumed)
	}

	span.SetAttributes(attribute.Bool("statechart.consumed", consumed))

	if err != nil {
		in.fail(dc, span, err)
		return consumed, err
	}

	if !consumed {
		in.observers.NotifyEventRejected(event, fmt.Sprintf("no transition fired in '%s'", in.configuration()), dc.at(Root))
	}
	in.notifyDispatchFinished(dc, event, consumed, time.Since(started))

	return consumed, nil
}

// runToCompletion re-dispatches the continuation event until a pass fires
// nothing
func (in *Instance) runToCompletion(dc *dispatchContext, fired bool) error {
	for step := 0; ; step++ {
		if fired {
			in.notifyStep(dc)
		}
		if step >= in.maxSteps {
			return NewMachineError(ErrCodeCompletionLimit, "Dispatch",
				fmt.Sprintf("completion transitions still firing after %d steps", in.maxSteps))
		}

		dc.event = nil
		var err error
		fired, err = in.dispatchState(dc, Root, nil)
		if err != nil {
			return err
		}
		if !fired {
			return nil
		}
	}
}

func (in *Instance) fail(dc *dispatchContext, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	in.logger.ErrorContext(dc, "statechart dispatch failed", "error", err, "event", eventName(dc.event))
	in.observers.NotifyError(err, dc)
}

func (in *Instance) notifyDispatchStarted(dc *dispatchContext, event Event) {
	if in.stepObservers {
		in.observers.NotifyDispatchStarted(event, dc)
	}
}

func (in *Instance) notifyStep(dc *dispatchContext) {
	if in.stepObservers {
		in.observers.NotifyStep(in.configuration(), dc)
	}
}

func (in *Instance) notifyDispatchFinished(dc *dispatchContext, event Event, consumed bool, elapsed time.Duration) {
	if in.stepObservers {
		in.observers.NotifyDispatchFinished(event, consumed, elapsed, dc)
	}
}

// Restore activates the ancestor chains of the given states directly,
// without running transitions. Regions left out of states are entered
// without a substate. Their start and other pending completion transitions
// run with the next dispatch. It returns false when the instance is already running.
func (in *Instance) Restore(ctx context.Context, states ...StateID) (bool, error) {
	in.mutex.Lock()
	defer in.mutex.Unlock()

	if in.rt.isActive(Root) {
		return false, nil
	}

	for _, s := range states {
		if !in.graph.valid(s) {
			return false, NewStateNotFoundError(fmt.Sprintf("%d", s))
		}
	}

	in.rt.reset()
	dc := in.newContext(ctx, nil)
	dc.restoring = true
	in.stepObservers = in.observers.HasStepObservers()

	for _, s := range states {
		in.markPath(in.graph.ancestors(s))
	}

	err := in.activate(dc, Root)
	for _, s := range states {
		if err != nil {
			break
		}
		err = in.activatePath(dc, in.graph.ancestors(s))
	}
	if err != nil {
		in.logger.ErrorContext(ctx, "statechart restore failed", "error", err)
		in.observers.NotifyError(err, dc)
		in.reset()
		return false, err
	}

	in.logger.DebugContext(ctx, "statechart restored", "configuration", in.configuration())
	in.observers.NotifyMachineStarted(dc.at(Root))

	return true, nil
}

// RestoreConfiguration restores a configuration string as produced by
// Configuration
func (in *Instance) RestoreConfiguration(ctx context.Context, configuration string) (bool, error) {
	states, err := in.graph.ParseConfiguration(configuration)
	if err != nil {
		return false, err
	}
	return in.Restore(ctx, states...)
}

// Shutdown cancels every outstanding timer and clears the runtime. The
// instance can be started again afterwards.
func (in *Instance) Shutdown(ctx context.Context) {
	in.mutex.Lock()
	defer in.mutex.Unlock()

	wasActive := in.rt.isActive(Root)
	in.reset()

	if wasActive {
		in.logger.DebugContext(ctx, "statechart stopped")
		in.observers.NotifyMachineStopped(in.newContext(ctx, nil))
	}
}

// reset cancels the outstanding timers and forgets the configuration
func (in *Instance) reset() {
	for _, h := range in.rt.timers() {
		in.scheduler.Cancel(h)
	}
	in.rt.reset()
}

// Close shuts the instance down and releases the scheduler it owns
func (in *Instance) Close(ctx context.Context) error {
	in.Shutdown(ctx)
	if in.ownsScheduler {
		return in.schedulerOwner.Shutdown(ctx)
	}
	return nil
}

// onTimeout builds the callback of a timer started for state
func (in *Instance) onTimeout(state StateID) func(timer.Handle) {
	return func(h timer.Handle) {
		occurrence := NewTimeoutOccurrence(h, state)
		ctx := context.Background()

		if in.sink != nil {
			if err := in.sink.Submit(ctx, in, occurrence); err != nil {
				in.logger.Warn("timeout occurrence not delivered", "state", in.graph.Path(state), "error", err)
			}
			return
		}

		if _, err := in.Dispatch(ctx, occurrence); err != nil && !IsMachineError(err) {
			in.logger.Error("timeout dispatch failed", "state", in.graph.Path(state), "error", err)
		}
	}
}
