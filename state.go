package statechart

import "fmt"

// StateID identifies a state inside its Graph
type StateID int

// NoState is the zero reference for optional state links
const NoState StateID = -1

// Root is the identifier of the top-level context of every graph
const Root StateID = 0

// Kind enumerates the variants a state node can take
type Kind int

const (
	// KindInvalid marks an unknown or missing state
	KindInvalid Kind = iota
	// KindRoot is the single top-level context of a graph
	KindRoot
	// KindState is a plain leaf state
	KindState
	// KindFinal marks completion of the enclosing context
	KindFinal
	// KindHierarchical is an OR context with exactly one active substate
	KindHierarchical
	// KindConcurrent is an AND context whose regions are active together
	KindConcurrent
	// KindStart selects the default substate of a context
	KindStart
	// KindHistory restores the last active substate of a context
	KindHistory
	// KindDeepHistory restores the last active nested configuration of a context
	KindDeepHistory
	// KindJunction routes immediately through its guarded outgoing transitions
	KindJunction
	// KindFork activates several regions of a concurrent state at once
	KindFork
	// KindJoin waits for a transition from every incoming source
	KindJoin
)

var kindNames = map[Kind]string{
	KindInvalid:      "invalid",
	KindRoot:         "root",
	KindState:        "state",
	KindFinal:        "final",
	KindHierarchical: "hierarchical",
	KindConcurrent:   "concurrent",
	KindStart:        "start",
	KindHistory:      "history",
	KindDeepHistory:  "deep-history",
	KindJunction:     "junction",
	KindFork:         "fork",
	KindJoin:         "join",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsPseudo reports whether the kind is a transient routing or memory node
func (k Kind) IsPseudo() bool {
	switch k {
	case KindStart, KindHistory, KindDeepHistory, KindJunction, KindFork, KindJoin:
		return true
	default:
		return false
	}
}

// IsContext reports whether states of this kind can own substates
func (k Kind) IsContext() bool {
	switch k {
	case KindRoot, KindHierarchical, KindConcurrent:
		return true
	default:
		return false
	}
}

// isHierarchical reports whether the kind holds one current substate
func (k Kind) isHierarchical() bool {
	return k == KindRoot || k == KindHierarchical
}

// keepsRuntime reports whether runtime data survives deactivation
func (k Kind) keepsRuntime() bool {
	return k == KindHistory || k == KindDeepHistory || k == KindJoin
}

// ActionFunc represents an entry, exit, activity or transition action
type ActionFunc func(ctx Context) error

// GuardFunc represents a guard condition function
type GuardFunc func(ctx Context) bool

// StateOption configures the behaviors of a state at construction time
type StateOption func(n *node)

// WithEntry sets the action run when the state is entered
func WithEntry(action ActionFunc) StateOption {
	return func(n *node) {
		n.entry = action
	}
}

// WithExit sets the action run when the state is left
func WithExit(action ActionFunc) StateOption {
	return func(n *node) {
		n.exit = action
	}
}

// WithActivity sets the while-active action, run right after entry
func WithActivity(action ActionFunc) StateOption {
	return func(n *node) {
		n.activity = action
	}
}

// node is one arena slot of the graph
type node struct {
	id       StateID
	name     string
	kind     Kind
	parent   StateID
	children []StateID

	// contexts only
	start   StateID
	history StateID

	entry    ActionFunc
	exit     ActionFunc
	activity ActionFunc

	// outgoing transitions, guarded first
	transitions []TransitionID
	timeout     TransitionID

	// joins only
	incoming []TransitionID
}

func newNode(id StateID, name string, kind Kind, parent StateID) node {
	return node{
		id:      id,
		name:    name,
		kind:    kind,
		parent:  parent,
		start:   NoState,
		history: NoState,
		timeout: NoTransition,
	}
}
