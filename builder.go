package statechart

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Builder assembles a Graph with a fluent API. Transition targets are given
// as paths and resolved by Build, so a transition may reference a state that
// is declared later. The first construction error is kept and returned by
// Build; builders created after it are inert.
type Builder struct {
	graph   *Graph
	pending []*TransitionBuilder
	err     error
	built   bool
}

// NewBuilder creates a builder for a graph whose root context carries name
func NewBuilder(name string) *Builder {
	return &Builder{
		graph: New(name),
	}
}

// Root returns the builder of the root context
func (b *Builder) Root() *ContextBuilder {
	return &ContextBuilder{builder: b, id: Root}
}

// Build resolves the pending transitions and returns the graph
func (b *Builder) Build() (*Graph, error) {
	if b.built {
		if b.err != nil {
			return nil, b.err
		}
		return b.graph, nil
	}
	b.built = true

	if b.err != nil {
		return nil, b.err
	}

	for _, tb := range b.pending {
		target, err := b.resolveTarget(tb.source, tb.target)
		if err != nil {
			b.err = err
			return nil, err
		}
		if _, err := b.graph.AddTransition(tb.source, target, tb.opts...); err != nil {
			b.err = err
			return nil, err
		}
	}

	return b.graph, nil
}

// MustBuild is like Build but panics on error
func (b *Builder) MustBuild() *Graph {
	g, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build statechart: %v", err))
	}
	return g
}

// resolveTarget looks a target path up next to the source first, then from
// the root. A leading "../" climbs one context per occurrence.
func (b *Builder) resolveTarget(source StateID, target string) (StateID, error) {
	context := b.graph.ParentOf(source)
	if context == NoState {
		context = Root
	}

	if strings.HasPrefix(target, "../") {
		for strings.HasPrefix(target, "../") {
			target = target[3:]
			if context != Root {
				context = b.graph.ParentOf(context)
			}
		}
		return b.graph.LookupFrom(context, target)
	}

	if id, err := b.graph.LookupFrom(context, target); err == nil {
		return id, nil
	}
	id, err := b.graph.Lookup(target)
	if err != nil {
		var stateErr *StateError
		if errors.As(err, &stateErr) {
			return NoState, NewConstructionError(ErrCodeStateNotFound, b.graph.Path(source), "",
				fmt.Sprintf("transition target '%s' not found", target))
		}
		return NoState, err
	}
	return id, nil
}

func (b *Builder) add(fn func() (StateID, error)) StateID {
	if b.err != nil {
		return NoState
	}
	id, err := fn()
	if err != nil {
		b.err = err
		return NoState
	}
	return id
}

func (b *Builder) transition(source StateID, target string) *TransitionBuilder {
	tb := &TransitionBuilder{
		builder: b,
		source:  source,
		target:  target,
	}
	if b.err == nil && source != NoState {
		b.pending = append(b.pending, tb)
	}
	return tb
}

// ContextBuilder declares the substates of a hierarchical context
type ContextBuilder struct {
	builder *Builder
	id      StateID
}

// ID returns the identifier of the context
func (cb *ContextBuilder) ID() StateID {
	return cb.id
}

// State adds a plain leaf state
func (cb *ContextBuilder) State(name string, opts ...StateOption) *StateBuilder {
	id := cb.builder.add(func() (StateID, error) { return cb.builder.graph.AddState(cb.id, name, opts...) })
	return &StateBuilder{builder: cb.builder, id: id}
}

// Final adds a final state
func (cb *ContextBuilder) Final(name string) *StateBuilder {
	id := cb.builder.add(func() (StateID, error) { return cb.builder.graph.AddFinal(cb.id, name) })
	return &StateBuilder{builder: cb.builder, id: id}
}

// Hierarchical adds a nested OR context
func (cb *ContextBuilder) Hierarchical(name string, opts ...StateOption) *ContextBuilder {
	id := cb.builder.add(func() (StateID, error) { return cb.builder.graph.AddHierarchical(cb.id, name, opts...) })
	return &ContextBuilder{builder: cb.builder, id: id}
}

// Concurrent adds a nested AND context
func (cb *ContextBuilder) Concurrent(name string, opts ...StateOption) *ConcurrentBuilder {
	id := cb.builder.add(func() (StateID, error) { return cb.builder.graph.AddConcurrent(cb.id, name, opts...) })
	return &ConcurrentBuilder{builder: cb.builder, id: id}
}

// Start adds the start pseudostate of the context
func (cb *ContextBuilder) Start(name string) *StateBuilder {
	return cb.pseudostate(name, KindStart)
}

// History adds a shallow history pseudostate
func (cb *ContextBuilder) History(name string) *StateBuilder {
	return cb.pseudostate(name, KindHistory)
}

// DeepHistory adds a deep history pseudostate
func (cb *ContextBuilder) DeepHistory(name string) *StateBuilder {
	return cb.pseudostate(name, KindDeepHistory)
}

// Junction adds a junction pseudostate
func (cb *ContextBuilder) Junction(name string) *StateBuilder {
	return cb.pseudostate(name, KindJunction)
}

// Fork adds a fork pseudostate
func (cb *ContextBuilder) Fork(name string) *StateBuilder {
	return cb.pseudostate(name, KindFork)
}

// Join adds a join pseudostate
func (cb *ContextBuilder) Join(name string) *StateBuilder {
	return cb.pseudostate(name, KindJoin)
}

func (cb *ContextBuilder) pseudostate(name string, kind Kind) *StateBuilder {
	id := cb.builder.add(func() (StateID, error) { return cb.builder.graph.AddPseudostate(cb.id, name, kind) })
	return &StateBuilder{builder: cb.builder, id: id}
}

// To starts a transition leaving the context itself
func (cb *ContextBuilder) To(target string) *TransitionBuilder {
	return cb.builder.transition(cb.id, target)
}

// Build builds the whole graph
func (cb *ContextBuilder) Build() (*Graph, error) {
	return cb.builder.Build()
}

// ConcurrentBuilder declares the regions of a concurrent state
type ConcurrentBuilder struct {
	builder *Builder
	id      StateID
}

// ID returns the identifier of the concurrent state
func (cb *ConcurrentBuilder) ID() StateID {
	return cb.id
}

// Region adds a region
func (cb *ConcurrentBuilder) Region(name string, opts ...StateOption) *ContextBuilder {
	id := cb.builder.add(func() (StateID, error) { return cb.builder.graph.AddRegion(cb.id, name, opts...) })
	return &ContextBuilder{builder: cb.builder, id: id}
}

// To starts a transition leaving the concurrent state
func (cb *ConcurrentBuilder) To(target string) *TransitionBuilder {
	return cb.builder.transition(cb.id, target)
}

// Build builds the whole graph
func (cb *ConcurrentBuilder) Build() (*Graph, error) {
	return cb.builder.Build()
}

// StateBuilder configures the outgoing transitions of a leaf state or a
// pseudostate
type StateBuilder struct {
	builder *Builder
	id      StateID
}

// ID returns the identifier of the state
func (sb *StateBuilder) ID() StateID {
	return sb.id
}

// To starts a transition to target
func (sb *StateBuilder) To(target string) *TransitionBuilder {
	return sb.builder.transition(sb.id, target)
}

// ToSelf starts a self-transition
func (sb *StateBuilder) ToSelf() *TransitionBuilder {
	return sb.builder.transition(sb.id, sb.builder.graph.NameOf(sb.id))
}

// Build builds the whole graph
func (sb *StateBuilder) Build() (*Graph, error) {
	return sb.builder.Build()
}

// TransitionBuilder configures one transition
type TransitionBuilder struct {
	builder *Builder
	source  StateID
	target  string
	opts    []TransitionOption
}

// On sets the triggering event
func (tb *TransitionBuilder) On(event string) *TransitionBuilder {
	tb.opts = append(tb.opts, On(event))
	return tb
}

// After makes the transition fire once the source has been active for d
func (tb *TransitionBuilder) After(d time.Duration) *TransitionBuilder {
	tb.opts = append(tb.opts, After(d))
	return tb
}

// When adds a guard condition
func (tb *TransitionBuilder) When(guard GuardFunc) *TransitionBuilder {
	tb.opts = append(tb.opts, When(guard))
	return tb
}

// Unless adds a negated guard condition
func (tb *TransitionBuilder) Unless(guard GuardFunc) *TransitionBuilder {
	tb.opts = append(tb.opts, When(func(ctx Context) bool {
		return !guard(ctx)
	}))
	return tb
}

// Do adds a transition action
func (tb *TransitionBuilder) Do(action ActionFunc) *TransitionBuilder {
	tb.opts = append(tb.opts, Do(action))
	return tb
}

// To starts another transition from the same source
func (tb *TransitionBuilder) To(target string) *TransitionBuilder {
	return tb.builder.transition(tb.source, target)
}

// Build builds the whole graph
func (tb *TransitionBuilder) Build() (*Graph, error) {
	return tb.builder.Build()
}
