package statechart

import (
	"sort"
	"time"

	"github.com/anggasct/statechart/timer"
)

// entry is the runtime record of one state of one instance
type entry struct {
	active  bool
	epoch   uint64
	entered time.Time
	current StateID
	timer   timer.Handle

	// concurrent states: regions entered explicitly by the ongoing transition
	marked map[StateID]struct{}
	// history pseudostates: remembered configuration, root-most first
	history []StateID
	// joins: source state -> activation epoch it arrived with
	arrivals map[StateID]uint64
}

// runtime holds the mutable state of one instance. A state has an active
// entry iff it is active; history and join entries stay behind inactive.
type runtime struct {
	entries map[StateID]*entry
	epoch   uint64
}

func newRuntime() *runtime {
	return &runtime{
		entries: make(map[StateID]*entry),
	}
}

func (r *runtime) get(id StateID) *entry {
	return r.entries[id]
}

// ensure returns the entry of id, creating an inactive one if needed
func (r *runtime) ensure(id StateID) *entry {
	e, ok := r.entries[id]
	if !ok {
		e = &entry{current: NoState}
		r.entries[id] = e
	}
	return e
}

func (r *runtime) isActive(id StateID) bool {
	e := r.entries[id]
	return e != nil && e.active
}

// activeSince reports whether id is still in the activation stamped epoch
func (r *runtime) activeSince(id StateID, epoch uint64) bool {
	e := r.entries[id]
	return e != nil && e.active && e.epoch == epoch
}

// current returns the current substate of an active context
func (r *runtime) current(id StateID) StateID {
	e := r.entries[id]
	if e == nil || !e.active {
		return NoState
	}
	return e.current
}

// activate marks id active and makes it the current substate of its parent
func (r *runtime) activate(g *Graph, id StateID, now time.Time) *entry {
	e := r.ensure(id)
	r.epoch++
	e.active = true
	e.epoch = r.epoch
	e.entered = now
	e.current = NoState

	if parent := g.nodes[id].parent; parent != NoState && g.nodes[parent].kind.isHierarchical() {
		if pe := r.entries[parent]; pe != nil && pe.active {
			pe.current = id
		}
	}

	return e
}

// deactivate drops the entry of id, keeping history and join memory behind
func (r *runtime) deactivate(g *Graph, id StateID) {
	if parent := g.nodes[id].parent; parent != NoState {
		if pe := r.entries[parent]; pe != nil && pe.current == id {
			pe.current = NoState
		}
	}

	if g.nodes[id].kind.keepsRuntime() {
		if e := r.entries[id]; e != nil {
			e.active = false
			e.current = NoState
			e.timer = timer.Handle{}
		}
		return
	}

	delete(r.entries, id)
}

// mark records that region is entered explicitly, so the activation of its
// concurrent parent skips the default entry of that region
func (r *runtime) mark(concurrent, region StateID) {
	e := r.ensure(concurrent)
	if e.marked == nil {
		e.marked = make(map[StateID]struct{})
	}
	e.marked[region] = struct{}{}
}

// takeMarks returns and clears the marked regions of a concurrent state
func (r *runtime) takeMarks(concurrent StateID) map[StateID]struct{} {
	e := r.entries[concurrent]
	if e == nil {
		return nil
	}
	marked := e.marked
	e.marked = nil
	return marked
}

// active returns all active states in ascending order
func (r *runtime) active() []StateID {
	ids := make([]StateID, 0, len(r.entries))
	for id, e := range r.entries {
		if e.active {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// timers returns the outstanding timer handles
func (r *runtime) timers() []timer.Handle {
	var handles []timer.Handle
	for _, e := range r.entries {
		if !e.timer.IsZero() {
			handles = append(handles, e.timer)
		}
	}
	return handles
}

func (r *runtime) reset() {
	r.entries = make(map[StateID]*entry)
}
