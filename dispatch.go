package statechart

import (
	"fmt"
	"time"
)

// maxRoutingDepth bounds the look-ahead through chained start and junction
// pseudostates
const maxRoutingDepth = 64

// safeEvaluateGuard evaluates a guard function with panic recovery
func safeEvaluateGuard(guard GuardFunc, ctx Context) (result bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = false
			err = fmt.Errorf("guard panic: %v", r)
		}
	}()

	result = guard(ctx)
	return result, nil
}

// safeExecuteAction executes an action function with panic recovery
func safeExecuteAction(action ActionFunc, ctx Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panic: %v", r)
		}
	}()

	err = action(ctx)
	return err
}

// dispatchState hands ev to an active state and reports whether a transition
// fired
func (in *Instance) dispatchState(dc *dispatchContext, id StateID, ev Event) (bool, error) {
	switch in.graph.nodes[id].kind {
	case KindRoot, KindHierarchical:
		return in.dispatchHierarchical(dc, id, ev)
	case KindConcurrent:
		return in.dispatchConcurrent(dc, id, ev)
	case KindHistory, KindDeepHistory:
		return in.resolveHistory(dc, id)
	case KindFork:
		return in.fireFork(dc, id, ev)
	case KindFinal:
		return false, nil
	default:
		return in.dispatchOwn(dc, id, ev, false)
	}
}

func (in *Instance) dispatchHierarchical(dc *dispatchContext, id StateID, ev Event) (bool, error) {
	n := &in.graph.nodes[id]

	current := in.rt.current(id)
	if current == NoState && n.start != NoState {
		if err := in.activate(dc, n.start); err != nil {
			return false, err
		}
		current = n.start
	}

	if current != NoState {
		consumed, err := in.dispatchState(dc, current, ev)
		if err != nil || consumed {
			return consumed, err
		}
	}

	if id == Root || !in.rt.isActive(id) {
		return false, nil
	}

	current = in.rt.current(id)
	completed := current != NoState && in.graph.nodes[current].kind == KindFinal
	return in.dispatchOwn(dc, id, ev, !completed)
}

func (in *Instance) dispatchConcurrent(dc *dispatchContext, id StateID, ev Event) (bool, error) {
	n := &in.graph.nodes[id]

	var epoch uint64
	if e := in.rt.get(id); e != nil {
		epoch = e.epoch
	}
	consumed := false
	for _, region := range n.children {
		if !in.rt.activeSince(id, epoch) {
			break
		}
		if !in.rt.isActive(region) {
			continue
		}
		fired, err := in.dispatchState(dc, region, ev)
		if err != nil {
			return consumed || fired, err
		}
		consumed = consumed || fired
	}

	if consumed || !in.rt.activeSince(id, epoch) {
		return consumed, nil
	}

	return in.dispatchOwn(dc, id, ev, !in.regionsCompleted(id))
}

// regionsCompleted reports whether every region of a concurrent state rests
// in a final state
func (in *Instance) regionsCompleted(id StateID) bool {
	for _, region := range in.graph.nodes[id].children {
		current := in.rt.current(region)
		if current == NoState || in.graph.nodes[current].kind != KindFinal {
			return false
		}
	}
	return true
}

// dispatchOwn evaluates the outgoing transitions of id in order and fires the
// first allowed one. With triggeredOnly set, completion transitions are
// skipped.
func (in *Instance) dispatchOwn(dc *dispatchContext, id StateID, ev Event, triggeredOnly bool) (bool, error) {
	for _, tid := range in.graph.nodes[id].transitions {
		t := &in.graph.transitions[tid]
		if triggeredOnly && !t.triggered() {
			continue
		}

		ok, err := in.matches(dc, t, ev)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}

		if in.graph.nodes[t.target].kind == KindJoin && !in.joinReady(t) {
			if in.recordArrival(t) {
				return true, nil
			}
			continue
		}

		ok, err = in.admissible(dc, t.target, 0)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}

		return true, in.fire(dc, t)
	}

	return false, nil
}

// matches checks the trigger and the guard of t against ev
func (in *Instance) matches(dc *dispatchContext, t *transition, ev Event) (bool, error) {
	occurrence, isOccurrence := ev.(*TimeoutOccurrence)

	switch {
	case t.timed:
		if !isOccurrence || occurrence.State != t.source {
			return false, nil
		}
		e := in.rt.get(t.source)
		if e == nil || !e.active || e.timer != occurrence.Handle {
			return false, nil
		}
	case t.event != "":
		if ev == nil || isOccurrence || ev.GetName() != t.event {
			return false, nil
		}
	default:
		if isOccurrence {
			return false, nil
		}
	}

	if t.guard == nil {
		return true, nil
	}

	return in.evaluateGuard(dc, t)
}

func (in *Instance) evaluateGuard(dc *dispatchContext, t *transition) (bool, error) {
	from := in.graph.Path(t.source)
	to := in.graph.Path(t.target)

	result, err := safeEvaluateGuard(t.guard, dc.at(t.source))
	if err != nil {
		return false, NewGuardError(from, to, eventName(dc.event), err)
	}

	in.observers.NotifyGuardEvaluation(from, to, dc.event, result, dc)
	return result, nil
}

// admissible looks ahead through start and junction targets so a transition
// never strands the instance in a routing pseudostate
func (in *Instance) admissible(dc *dispatchContext, target StateID, depth int) (bool, error) {
	n := &in.graph.nodes[target]
	if n.kind != KindStart && n.kind != KindJunction {
		return true, nil
	}
	if depth >= maxRoutingDepth {
		return false, nil
	}

	for _, tid := range n.transitions {
		t := &in.graph.transitions[tid]
		ok, err := in.matches(dc, t, nil)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		if in.graph.nodes[t.target].kind == KindJoin {
			return true, nil
		}
		ok, err = in.admissible(dc, t.target, depth+1)
		if err != nil || ok {
			return ok, err
		}
	}

	return false, nil
}

// fire performs a transition: history capture, exits deepest first, the
// transition action, then entries shallowest first
func (in *Instance) fire(dc *dispatchContext, t *transition) error {
	if len(t.exit) > 0 {
		in.captureHistory(t.exit[len(t.exit)-1])
	} else if len(t.entry) > 0 {
		if err := in.leaveSubstate(dc, t.entry[0]); err != nil {
			return err
		}
	}

	for _, id := range t.exit {
		if err := in.deactivate(dc, id); err != nil {
			return err
		}
	}

	if t.action != nil {
		if err := in.runAction(dc, "transition", t.source, t.action); err != nil {
			return err
		}
	}

	for i, id := range t.entry {
		if i+1 < len(t.entry) && in.graph.nodes[id].kind == KindConcurrent {
			in.rt.mark(id, t.entry[i+1])
		}
		if err := in.activate(dc, id); err != nil {
			return err
		}
	}

	in.observers.NotifyTransition(in.graph.Path(t.source), in.graph.Path(t.target), dc.event, dc.at(t.target))
	return nil
}

// leaveSubstate exits the state occupying the slot entry is about to fill:
// the current substate of a hierarchical context, or the region itself inside
// a concurrent state
func (in *Instance) leaveSubstate(dc *dispatchContext, entry StateID) error {
	parent := in.graph.nodes[entry].parent

	leave := entry
	if in.graph.nodes[parent].kind != KindConcurrent {
		leave = in.rt.current(parent)
	}
	if leave == NoState || !in.rt.isActive(leave) {
		return nil
	}

	in.captureHistory(leave)
	return in.deactivate(dc, leave)
}

// activate enters a state. Concurrent states enter every region not marked by
// the ongoing transition and resolve its start right away.
func (in *Instance) activate(dc *dispatchContext, id StateID) error {
	n := &in.graph.nodes[id]

	if in.rt.isActive(id) {
		if n.kind == KindConcurrent {
			in.rt.takeMarks(id)
		}
		return nil
	}

	e := in.rt.activate(in.graph, id, time.Now())

	if n.timeout != NoTransition {
		e.timer = in.scheduler.Start(in.graph.transitions[n.timeout].timeout, in.onTimeout(id))
	}
	if n.kind == KindJoin {
		e.arrivals = nil
	}

	if id != Root {
		in.observers.NotifyStateEnter(in.graph.Path(id), dc.at(id))
	}

	if err := in.runAction(dc, "entry", id, n.entry); err != nil {
		return err
	}
	if err := in.runAction(dc, "activity", id, n.activity); err != nil {
		return err
	}

	if n.kind != KindConcurrent {
		return nil
	}

	marked := in.rt.takeMarks(id)
	for _, region := range n.children {
		if _, ok := marked[region]; ok {
			continue
		}
		if err := in.activate(dc, region); err != nil {
			return err
		}
		if dc.restoring {
			continue
		}
		if _, err := in.dispatchState(dc, region, nil); err != nil {
			return err
		}
	}

	return nil
}

// deactivate leaves a state together with its active substates
func (in *Instance) deactivate(dc *dispatchContext, id StateID) error {
	if !in.rt.isActive(id) {
		return nil
	}
	n := &in.graph.nodes[id]

	switch n.kind {
	case KindRoot, KindHierarchical:
		if current := in.rt.current(id); current != NoState {
			if err := in.deactivate(dc, current); err != nil {
				return err
			}
		}
	case KindConcurrent:
		for _, region := range n.children {
			if err := in.deactivate(dc, region); err != nil {
				return err
			}
		}
	}

	if e := in.rt.get(id); !e.timer.IsZero() {
		in.scheduler.Cancel(e.timer)
	}
	in.rt.deactivate(in.graph, id)

	if err := in.runAction(dc, "exit", id, n.exit); err != nil {
		return err
	}
	if id != Root {
		in.observers.NotifyStateExit(in.graph.Path(id), dc.at(id))
	}

	return nil
}

// activatePath enters a chain of states root-most first, marking regions so
// concurrent ancestors skip the default entry of the region being entered
func (in *Instance) activatePath(dc *dispatchContext, chain []StateID) error {
	in.markPath(chain)
	for _, id := range chain {
		if err := in.activate(dc, id); err != nil {
			return err
		}
	}
	return nil
}

func (in *Instance) markPath(chain []StateID) {
	for _, id := range chain {
		if parent := in.graph.nodes[id].parent; parent != NoState && in.graph.nodes[parent].kind == KindConcurrent {
			in.rt.mark(parent, id)
		}
	}
}

func (in *Instance) runAction(dc *dispatchContext, actionType string, state StateID, action ActionFunc) error {
	if action == nil {
		return nil
	}

	path := in.graph.Path(state)
	in.observers.NotifyActionExecution(actionType, path, dc.event, dc.at(state))

	if err := safeExecuteAction(action, dc); err != nil {
		return NewActionError(actionType, path, err)
	}
	return nil
}
