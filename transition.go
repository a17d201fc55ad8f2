package statechart

import "time"

// TransitionID identifies a transition inside its Graph
type TransitionID int

// NoTransition is the zero reference for optional transition links
const NoTransition TransitionID = -1

// transition is one arena slot of the graph
type transition struct {
	id      TransitionID
	source  StateID
	target  StateID
	event   string
	timed   bool
	timeout time.Duration
	guard   GuardFunc
	action  ActionFunc

	// precomputed by the resolver
	exit  []StateID
	entry []StateID
}

// triggered reports whether the transition declares an event or timeout trigger
func (t *transition) triggered() bool {
	return t.event != "" || t.timed
}

// TransitionOption configures a transition at construction time
type TransitionOption func(t *transition)

// On sets the name of the event triggering the transition
func On(event string) TransitionOption {
	return func(t *transition) {
		t.event = event
		t.timed = false
		t.timeout = 0
	}
}

// After makes the transition fire once its source has been active for d
func After(d time.Duration) TransitionOption {
	return func(t *transition) {
		t.event = TimeoutEventName
		t.timed = true
		t.timeout = d
	}
}

// When adds a guard condition to the transition
func When(guard GuardFunc) TransitionOption {
	return func(t *transition) {
		t.guard = guard
	}
}

// Do adds an action run between the exit and the entry of the transition
func Do(action ActionFunc) TransitionOption {
	return func(t *transition) {
		t.action = action
	}
}

// TransitionInfo is a read-only view of a transition
type TransitionInfo struct {
	ID        TransitionID
	Source    StateID
	Target    StateID
	Event     string
	Timeout   time.Duration
	HasGuard  bool
	HasAction bool
	Exit      []StateID
	Entry     []StateID
}

func (t *transition) info() TransitionInfo {
	return TransitionInfo{
		ID:        t.id,
		Source:    t.source,
		Target:    t.target,
		Event:     t.event,
		Timeout:   t.timeout,
		HasGuard:  t.guard != nil,
		HasAction: t.action != nil,
		Exit:      append([]StateID(nil), t.exit...),
		Entry:     append([]StateID(nil), t.entry...),
	}
}
