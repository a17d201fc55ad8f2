package statechart

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestObserver is a mock observer for testing that captures all observer events
type TestObserver struct {
	mutex        sync.RWMutex
	Transitions  []TransitionEvent
	StateEnters  []StateEvent
	StateExits   []StateEvent
	EventRejects []EventRejectEvent
	Errors       []ErrorEvent
	Actions      []ActionEvent
	Started      []ContextEvent
	Stopped      []ContextEvent
	Guards       []GuardEvent
	Steps        []string
	Dispatches   []DispatchEvent
}

type TransitionEvent struct {
	From  string
	To    string
	Event Event
}

type StateEvent struct {
	State string
}

type EventRejectEvent struct {
	Event  Event
	Reason string
}

type ErrorEvent struct {
	Error error
}

type ActionEvent struct {
	ActionType string
	State      string
	Event      Event
}

type ContextEvent struct {
	Configuration string
}

type GuardEvent struct {
	From   string
	To     string
	Event  Event
	Result bool
}

type DispatchEvent struct {
	Event    Event
	Consumed bool
	Elapsed  time.Duration
}

// NewTestObserver creates a new test observer
func NewTestObserver() *TestObserver {
	return &TestObserver{}
}

// Observer interface implementations
func (o *TestObserver) OnTransition(from string, to string, event Event, ctx Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Transitions = append(o.Transitions, TransitionEvent{From: from, To: to, Event: event})
}

func (o *TestObserver) OnStateEnter(state string, ctx Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.StateEnters = append(o.StateEnters, StateEvent{State: state})
}

// ExtendedObserver interface implementations
func (o *TestObserver) OnStateExit(state string, ctx Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.StateExits = append(o.StateExits, StateEvent{State: state})
}

func (o *TestObserver) OnGuardEvaluation(from string, to string, event Event, result bool, ctx Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Guards = append(o.Guards, GuardEvent{From: from, To: to, Event: event, Result: result})
}

func (o *TestObserver) OnEventRejected(event Event, reason string, ctx Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.EventRejects = append(o.EventRejects, EventRejectEvent{Event: event, Reason: reason})
}

func (o *TestObserver) OnError(err error, ctx Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Errors = append(o.Errors, ErrorEvent{Error: err})
}

func (o *TestObserver) OnActionExecution(actionType string, state string, event Event, ctx Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Actions = append(o.Actions, ActionEvent{ActionType: actionType, State: state, Event: event})
}

// OnMachineStarted runs under the instance lock, so the configuration is
// read from the context's instance without locking again
func (o *TestObserver) OnMachineStarted(ctx Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Started = append(o.Started, ContextEvent{Configuration: ctx.GetInstance().configuration()})
}

func (o *TestObserver) OnMachineStopped(ctx Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Stopped = append(o.Stopped, ContextEvent{})
}

// StepObserver interface implementations
func (o *TestObserver) OnDispatchStarted(event Event, ctx Context) {}

func (o *TestObserver) OnStep(configuration string, ctx Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Steps = append(o.Steps, configuration)
}

func (o *TestObserver) OnDispatchFinished(event Event, consumed bool, elapsed time.Duration, ctx Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Dispatches = append(o.Dispatches, DispatchEvent{Event: event, Consumed: consumed, Elapsed: elapsed})
}

// Helper methods for test assertions
func (o *TestObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Transitions = nil
	o.StateEnters = nil
	o.StateExits = nil
	o.EventRejects = nil
	o.Errors = nil
	o.Actions = nil
	o.Started = nil
	o.Stopped = nil
	o.Guards = nil
	o.Steps = nil
	o.Dispatches = nil
}

func (o *TestObserver) TransitionCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.Transitions)
}

func (o *TestObserver) StateEnterCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.StateEnters)
}

func (o *TestObserver) StateExitCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.StateExits)
}

func (o *TestObserver) EnteredStates() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	states := make([]string, len(o.StateEnters))
	for i, e := range o.StateEnters {
		states[i] = e.State
	}
	return states
}

func (o *TestObserver) ExitedStates() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	states := make([]string, len(o.StateExits))
	for i, e := range o.StateExits {
		states[i] = e.State
	}
	return states
}

func (o *TestObserver) LastTransition() *TransitionEvent {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	if len(o.Transitions) == 0 {
		return nil
	}
	return &o.Transitions[len(o.Transitions)-1]
}

// ActionRecorder collects labels written by recording actions, in order
type ActionRecorder struct {
	mutex  sync.Mutex
	labels []string
}

// NewActionRecorder creates an empty recorder
func NewActionRecorder() *ActionRecorder {
	return &ActionRecorder{}
}

// Record returns an action that appends label when it runs
func (r *ActionRecorder) Record(label string) ActionFunc {
	return func(ctx Context) error {
		r.mutex.Lock()
		defer r.mutex.Unlock()
		r.labels = append(r.labels, label)
		return nil
	}
}

// Labels returns the recorded labels
func (r *ActionRecorder) Labels() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]string(nil), r.labels...)
}

// String joins the recorded labels with spaces
func (r *ActionRecorder) String() string {
	return strings.Join(r.Labels(), " ")
}

// Reset drops the recorded labels
func (r *ActionRecorder) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.labels = nil
}

// Test graph builders - common graph configurations for testing

// CreateSimpleGraph creates idle -start-> running -stop-> stopped -reset-> idle
func CreateSimpleGraph() *Graph {
	b := NewBuilder("simple")
	root := b.Root()
	root.Start("start").To("idle")
	root.State("idle").To("running").On("start")
	root.State("running").To("stopped").On("stop")
	root.State("stopped").To("idle").On("reset")
	return b.MustBuild()
}

// CreateHierarchicalGraph creates a graph with an "online" context holding
// "idle" and "processing"
func CreateHierarchicalGraph() *Graph {
	b := NewBuilder("hierarchical")
	root := b.Root()
	root.Start("start").To("offline")
	root.State("offline").To("online").On("connect")

	online := root.Hierarchical("online")
	online.Start("start").To("idle")
	online.State("idle").To("processing").On("process")
	online.State("processing").To("idle").On("complete")
	online.To("offline").On("disconnect")

	return b.MustBuild()
}

// CreateConcurrentGraph creates a graph whose "active" state runs a motor and
// a lights region side by side
func CreateConcurrentGraph() *Graph {
	b := NewBuilder("concurrent")
	root := b.Root()
	root.Start("start").To("inactive")
	root.State("inactive").To("active").On("activate")

	active := root.Concurrent("active")
	motor := active.Region("motor")
	motor.Start("start").To("stopped")
	motor.State("stopped").To("running").On("start_motor")
	motor.State("running").To("stopped").On("stop_motor")

	lights := active.Region("lights")
	lights.Start("start").To("off")
	lights.State("off").To("on").On("turn_on_lights")
	lights.State("on").To("off").On("turn_off_lights")

	active.To("inactive").On("deactivate")

	return b.MustBuild()
}

// CreateJunctionGraph creates a graph routing "decide" through a junction
// on the "condition" data key
func CreateJunctionGraph() *Graph {
	b := NewBuilder("junction")
	root := b.Root()
	root.Start("start").To("waiting")
	root.State("waiting").To("choice").On("decide")
	isSet := func(ctx Context) bool {
		value, ok := ctx.Get("condition")
		return ok && value.(bool)
	}
	junction := root.Junction("choice")
	junction.To("path_a").When(isSet)
	junction.To("path_b")
	root.State("path_a")
	root.State("path_b")
	return b.MustBuild()
}

// Test assertions and utilities

// StartInstance creates and starts an instance of g, failing the test on error
func StartInstance(t *testing.T, g *Graph, opts ...InstanceOption) *Instance {
	t.Helper()
	in := NewInstance(g, opts...)
	if err := in.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start instance: %v", err)
	}
	t.Cleanup(func() {
		_ = in.Close(context.Background())
	})
	return in
}

// Send dispatches an event by name, failing the test on error
func Send(t *testing.T, in *Instance, event string) bool {
	t.Helper()
	consumed, err := in.Dispatch(context.Background(), NewEvent(event, nil))
	if err != nil {
		t.Fatalf("Dispatch of %s failed: %v", event, err)
	}
	return consumed
}

// AssertConfiguration checks the active configuration of an instance
func AssertConfiguration(t *testing.T, in *Instance, expected string) {
	t.Helper()
	if actual := in.Configuration(); actual != expected {
		t.Errorf("Expected configuration %q, got %q", expected, actual)
	}
}

// AssertActive checks that the state at path is active
func AssertActive(t *testing.T, in *Instance, path string) {
	t.Helper()
	id, err := in.Graph().Lookup(path)
	if err != nil {
		t.Fatalf("Lookup of %s failed: %v", path, err)
	}
	if !in.IsActive(id) {
		t.Errorf("Expected state %s to be active in %q", path, in.Configuration())
	}
}

// AssertInactive checks that the state at path is not active
func AssertInactive(t *testing.T, in *Instance, path string) {
	t.Helper()
	id, err := in.Graph().Lookup(path)
	if err != nil {
		t.Fatalf("Lookup of %s failed: %v", path, err)
	}
	if in.IsActive(id) {
		t.Errorf("Expected state %s to be inactive in %q", path, in.Configuration())
	}
}

// AssertObserverCalled checks if observer methods were called expected number of times
func AssertObserverCalled(t *testing.T, observer *TestObserver, transitions, enters, exits int) {
	t.Helper()
	if observer.TransitionCount() != transitions {
		t.Errorf("Expected %d transitions, got %d", transitions, observer.TransitionCount())
	}
	if observer.StateEnterCount() != enters {
		t.Errorf("Expected %d state enters, got %d", enters, observer.StateEnterCount())
	}
	if observer.StateExitCount() != exits {
		t.Errorf("Expected %d state exits, got %d", exits, observer.StateExitCount())
	}
}

// AssertContextValue checks if the instance data contains the expected value
func AssertContextValue(t *testing.T, in *Instance, key string, expected any) {
	t.Helper()
	if value, ok := in.Get(key); !ok {
		t.Errorf("Expected data to contain key '%s'", key)
	} else if value != expected {
		t.Errorf("Expected data[%s] to be %v, got %v", key, expected, value)
	}
}

// ConcurrentEventSender sends events concurrently for testing thread safety
func ConcurrentEventSender(in *Instance, eventName string, count int, done chan bool) {
	for i := 0; i < count; i++ {
		_, _ = in.Dispatch(context.Background(), NewEvent(eventName, i))
	}
	done <- true
}
