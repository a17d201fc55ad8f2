package statechart

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/atomic"
)

const (
	// PathDelimiter separates state names in a path
	PathDelimiter = ":"
	// RegionOpen starts the region list of a concurrent state in a configuration
	RegionOpen = "("
	// RegionClose ends the region list of a concurrent state in a configuration
	RegionClose = ")"
	// RegionSeparator separates regions in a configuration
	RegionSeparator = "|"
)

const reservedCharacters = PathDelimiter + RegionOpen + RegionClose + RegionSeparator

// Graph is the static structure of a statechart: an arena of states and
// transitions addressed by StateID and TransitionID. A graph is built once,
// sealed when the first Instance is created, and then shared read-only by any
// number of instances.
type Graph struct {
	name        string
	nodes       []node
	transitions []transition

	sealed *atomic.Bool
	mutex  sync.Mutex
}

// New creates an empty graph whose root context carries name
func New(name string) *Graph {
	g := &Graph{
		name:   name,
		sealed: atomic.NewBool(false),
	}
	g.nodes = append(g.nodes, newNode(Root, name, KindRoot, NoState))
	return g
}

// Name returns the name of the graph
func (g *Graph) Name() string {
	return g.name
}

// Seal stops the graph from accepting further mutations
func (g *Graph) Seal() {
	g.sealed.Store(true)
}

// Sealed reports whether the graph still accepts mutations
func (g *Graph) Sealed() bool {
	return g.sealed.Load()
}

// AddState adds a plain leaf state to a hierarchical parent
func (g *Graph) AddState(parent StateID, name string, opts ...StateOption) (StateID, error) {
	return g.addNode(parent, name, KindState, opts)
}

// AddFinal adds a final state to a hierarchical parent
func (g *Graph) AddFinal(parent StateID, name string) (StateID, error) {
	return g.addNode(parent, name, KindFinal, nil)
}

// AddHierarchical adds an OR context to a hierarchical parent
func (g *Graph) AddHierarchical(parent StateID, name string, opts ...StateOption) (StateID, error) {
	return g.addNode(parent, name, KindHierarchical, opts)
}

// AddConcurrent adds an AND context to a hierarchical parent
func (g *Graph) AddConcurrent(parent StateID, name string, opts ...StateOption) (StateID, error) {
	return g.addNode(parent, name, KindConcurrent, opts)
}

// AddRegion adds a region, a hierarchical context, to a concurrent state
func (g *Graph) AddRegion(concurrent StateID, name string, opts ...StateOption) (StateID, error) {
	return g.addNode(concurrent, name, KindHierarchical, opts, regionNode)
}

// AddPseudostate adds a pseudostate of the given kind to a hierarchical parent
func (g *Graph) AddPseudostate(parent StateID, name string, kind Kind) (StateID, error) {
	if !kind.IsPseudo() {
		return NoState, NewConstructionError(ErrCodeInvalidConfiguration, name, g.nameOf(parent),
			fmt.Sprintf("%s is not a pseudostate kind", kind))
	}
	return g.addNode(parent, name, kind, nil)
}

type nodeFlag int

const regionNode nodeFlag = 1

func (g *Graph) addNode(parent StateID, name string, kind Kind, opts []StateOption, flags ...nodeFlag) (StateID, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.sealed.Load() {
		return NoState, NewConstructionError(ErrCodeGraphSealed, name, g.nameOf(parent), "graph is sealed")
	}

	if err := validateName(name, g.nameOf(parent)); err != nil {
		return NoState, err
	}

	if parent == NoState {
		return NoState, NewConstructionError(ErrCodeParentMissing, name, "", "parent is required")
	}

	if !g.valid(parent) {
		return NoState, NewConstructionError(ErrCodeNoTopLevel, name, "",
			fmt.Sprintf("parent %d does not belong to graph '%s'", parent, g.name))
	}

	p := g.nodes[parent]
	if !p.kind.IsContext() {
		return NoState, NewConstructionError(ErrCodeParentNotContext, name, p.name,
			fmt.Sprintf("parent is a %s state", p.kind))
	}

	region := len(flags) > 0 && flags[0] == regionNode
	if region && p.kind != KindConcurrent {
		return NoState, NewConstructionError(ErrCodeParentNotConcurrent, name, p.name,
			"regions can only be added to concurrent states")
	}
	if !region && !p.kind.isHierarchical() {
		return NoState, NewConstructionError(ErrCodeParentNotHierarchical, name, p.name,
			"concurrent states only own regions")
	}

	for _, child := range p.children {
		if g.nodes[child].name == name {
			return NoState, NewConstructionError(ErrCodeNameNotUnique, name, p.name, "name already used by a sibling")
		}
	}

	switch kind {
	case KindStart:
		if p.start != NoState {
			return NoState, NewConstructionError(ErrCodeParentHasStartState, name, p.name,
				fmt.Sprintf("parent already has start state '%s'", g.nodes[p.start].name))
		}
	case KindHistory, KindDeepHistory:
		if parent == Root {
			return NoState, NewConstructionError(ErrCodeParentNotHierarchical, name, p.name,
				"history states need an enclosing hierarchical state")
		}
		if p.history != NoState {
			return NoState, NewConstructionError(ErrCodeParentHasHistoryState, name, p.name,
				fmt.Sprintf("parent already has history state '%s'", g.nodes[p.history].name))
		}
	}

	id := StateID(len(g.nodes))
	n := newNode(id, name, kind, parent)
	for _, opt := range opts {
		opt(&n)
	}
	g.nodes = append(g.nodes, n)

	pn := &g.nodes[parent]
	pn.children = append(pn.children, id)
	switch kind {
	case KindStart:
		pn.start = id
	case KindHistory, KindDeepHistory:
		pn.history = id
	}

	return id, nil
}

func validateName(name, parent string) error {
	if strings.TrimSpace(name) == "" {
		return NewConstructionError(ErrCodeNameInvalid, name, parent, "name must not be empty")
	}
	if strings.ContainsAny(name, reservedCharacters) {
		return NewConstructionError(ErrCodeNameInvalidCharacter, name, parent,
			fmt.Sprintf("name must not contain any of %q", reservedCharacters))
	}
	return nil
}

// AddTransition adds a transition from source to target. Guarded transitions
// are evaluated before unguarded ones; each group keeps declaration order.
func (g *Graph) AddTransition(source, target StateID, opts ...TransitionOption) (TransitionID, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.sealed.Load() {
		return NoTransition, NewConstructionError(ErrCodeGraphSealed, g.nameOf(source), "", "graph is sealed")
	}

	for _, id := range []StateID{source, target} {
		if !g.valid(id) {
			return NoTransition, NewConstructionError(ErrCodeNoTopLevel, fmt.Sprintf("%d", id), "",
				fmt.Sprintf("state does not belong to graph '%s'", g.name))
		}
	}

	if source == Root || target == Root {
		return NoTransition, NewConstructionError(ErrCodeInvalidTransition, g.nameOf(source), "",
			"the root context cannot be the source or target of a transition")
	}

	src := &g.nodes[source]
	if src.kind == KindFinal {
		return NoTransition, NewConstructionError(ErrCodeInvalidTransition, src.name, g.nameOf(src.parent),
			"final states have no outgoing transitions")
	}

	t := transition{
		id:     TransitionID(len(g.transitions)),
		source: source,
		target: target,
	}
	for _, opt := range opts {
		opt(&t)
	}

	if t.timed {
		if t.timeout <= 0 {
			return NoTransition, NewConstructionError(ErrCodeTimeoutNotPositive, src.name, g.nameOf(src.parent),
				fmt.Sprintf("timeout %s is not greater than zero", t.timeout))
		}
		if src.timeout != NoTransition {
			return NoTransition, NewConstructionError(ErrCodeMultipleTimeouts, src.name, g.nameOf(src.parent),
				"state already has a timeout transition")
		}
	}

	t.exit, t.entry = g.resolve(source, target)
	g.transitions = append(g.transitions, t)

	if t.guard != nil {
		guarded := 0
		for _, tid := range src.transitions {
			if g.transitions[tid].guard == nil {
				break
			}
			guarded++
		}
		src.transitions = append(src.transitions, NoTransition)
		copy(src.transitions[guarded+1:], src.transitions[guarded:])
		src.transitions[guarded] = t.id
	} else {
		src.transitions = append(src.transitions, t.id)
	}

	if t.timed {
		src.timeout = t.id
	}

	if tgt := &g.nodes[target]; tgt.kind == KindJoin {
		tgt.incoming = append(tgt.incoming, t.id)
	}

	return t.id, nil
}

func (g *Graph) valid(id StateID) bool {
	return id >= 0 && int(id) < len(g.nodes)
}

func (g *Graph) node(id StateID) *node {
	return &g.nodes[id]
}

func (g *Graph) transition(id TransitionID) *transition {
	return &g.transitions[id]
}

func (g *Graph) nameOf(id StateID) string {
	if !g.valid(id) {
		return ""
	}
	return g.nodes[id].name
}

func (g *Graph) kindOf(id StateID) Kind {
	if !g.valid(id) {
		return KindInvalid
	}
	return g.nodes[id].kind
}

// NameOf returns the name of a state
func (g *Graph) NameOf(id StateID) string {
	return g.nameOf(id)
}

// KindOf returns the kind of a state, KindInvalid for unknown identifiers
func (g *Graph) KindOf(id StateID) Kind {
	return g.kindOf(id)
}

// ParentOf returns the parent context of a state
func (g *Graph) ParentOf(id StateID) StateID {
	if !g.valid(id) {
		return NoState
	}
	return g.nodes[id].parent
}

// Children returns the substates of a context in declaration order
func (g *Graph) Children(id StateID) []StateID {
	if !g.valid(id) {
		return nil
	}
	return append([]StateID(nil), g.nodes[id].children...)
}

// StartOf returns the start pseudostate of a context
func (g *Graph) StartOf(id StateID) StateID {
	if !g.valid(id) {
		return NoState
	}
	return g.nodes[id].start
}

// HistoryOf returns the history or deep-history pseudostate of a context
func (g *Graph) HistoryOf(id StateID) StateID {
	if !g.valid(id) {
		return NoState
	}
	return g.nodes[id].history
}

// TransitionsOf returns the outgoing transitions of a state in evaluation order
func (g *Graph) TransitionsOf(id StateID) []TransitionID {
	if !g.valid(id) {
		return nil
	}
	return append([]TransitionID(nil), g.nodes[id].transitions...)
}

// Transition returns a read-only view of a transition
func (g *Graph) Transition(id TransitionID) (TransitionInfo, bool) {
	if id < 0 || int(id) >= len(g.transitions) {
		return TransitionInfo{}, false
	}
	return g.transitions[id].info(), true
}

// NumStates returns the number of states, the root included
func (g *Graph) NumStates() int {
	return len(g.nodes)
}

// NumTransitions returns the number of transitions
func (g *Graph) NumTransitions() int {
	return len(g.transitions)
}

// Path returns the delimited path of a state relative to the root, e.g.
// "H1:H2:C". The root itself has an empty path.
func (g *Graph) Path(id StateID) string {
	if !g.valid(id) || id == Root {
		return ""
	}
	chain := g.ancestors(id)
	names := make([]string, len(chain))
	for i, s := range chain {
		names[i] = g.nodes[s].name
	}
	return strings.Join(names, PathDelimiter)
}

// Lookup resolves a delimited path relative to the root
func (g *Graph) Lookup(path string) (StateID, error) {
	return g.LookupFrom(Root, path)
}

// LookupFrom resolves a delimited path relative to the given context, e.g.
// "substate:subsubstate"
func (g *Graph) LookupFrom(context StateID, path string) (StateID, error) {
	if !g.valid(context) || path == "" {
		return NoState, NewStateNotFoundError(path)
	}

	current := context
	for _, name := range strings.Split(path, PathDelimiter) {
		next := g.child(current, name)
		if next == NoState {
			return NoState, NewStateNotFoundError(path)
		}
		current = next
	}

	return current, nil
}

func (g *Graph) child(parent StateID, name string) StateID {
	for _, c := range g.nodes[parent].children {
		if g.nodes[c].name == name {
			return c
		}
	}
	return NoState
}
