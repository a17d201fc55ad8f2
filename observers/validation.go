package observers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/anggasct/statechart"
)

// ValidationObserver checks a run against expectations: transitions leaving
// a state with declared allowed targets must go to one of them, and expected
// states can be compared with the states actually visited.
type ValidationObserver struct {
	statechart.BaseObserver

	mutex              sync.RWMutex
	expectedStates     map[string]bool
	visitedStates      map[string]bool
	allowedTransitions map[string]map[string]bool
	violations         []string
}

var _ statechart.ExtendedObserver = (*ValidationObserver)(nil)

// NewValidationObserver creates a validation observer without expectations
func NewValidationObserver() *ValidationObserver {
	return &ValidationObserver{
		expectedStates:     make(map[string]bool),
		visitedStates:      make(map[string]bool),
		allowedTransitions: make(map[string]map[string]bool),
	}
}

// ExpectState adds the path of a state that should be visited
func (o *ValidationObserver) ExpectState(path string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.expectedStates[path] = true
}

// ExpectAllStates expects every state of g except pseudostates and the root
func (o *ValidationObserver) ExpectAllStates(g *statechart.Graph) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	for id := statechart.StateID(0); int(id) < g.NumStates(); id++ {
		kind := g.KindOf(id)
		if id == statechart.Root || kind.IsPseudo() {
			continue
		}
		o.expectedStates[g.Path(id)] = true
	}
}

// AllowTransition declares to as an allowed target of from. A state without
// declared targets may transition anywhere.
func (o *ValidationObserver) AllowTransition(from, to string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if _, exists := o.allowedTransitions[from]; !exists {
		o.allowedTransitions[from] = make(map[string]bool)
	}
	o.allowedTransitions[from][to] = true
}

// OnStateEnter marks state as visited
func (o *ValidationObserver) OnStateEnter(state string, ctx statechart.Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.visitedStates[state] = true
}

// OnTransition records a violation for a transition to an undeclared target
func (o *ValidationObserver) OnTransition(from string, to string, event statechart.Event, ctx statechart.Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if allowed, exists := o.allowedTransitions[from]; exists && !allowed[to] {
		o.violations = append(o.violations, fmt.Sprintf(
			"invalid transition from '%s' to '%s' on event '%s'", from, to, name(event)))
	}
}

// OnError records the failure as a violation
func (o *ValidationObserver) OnError(err error, ctx statechart.Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.violations = append(o.violations, fmt.Sprintf("error occurred: %v", err))
}

// Violations returns the recorded violations in order
func (o *ValidationObserver) Violations() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return append([]string(nil), o.violations...)
}

// HasViolations reports whether any violation was recorded
func (o *ValidationObserver) HasViolations() bool {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.violations) > 0
}

// UnvisitedStates returns the sorted paths of expected states never entered
func (o *ValidationObserver) UnvisitedStates() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	var unvisited []string
	for state := range o.expectedStates {
		if !o.visitedStates[state] {
			unvisited = append(unvisited, state)
		}
	}
	sort.Strings(unvisited)
	return unvisited
}

// Reset forgets visited states and violations, keeping the expectations
func (o *ValidationObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.visitedStates = make(map[string]bool)
	o.violations = nil
}
