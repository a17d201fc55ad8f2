package statechart

// captureHistory stores the history of every active context in the subtree
// of id, which is about to be exited
func (in *Instance) captureHistory(id StateID) {
	if !in.rt.isActive(id) {
		return
	}
	n := &in.graph.nodes[id]

	switch n.kind {
	case KindRoot, KindHierarchical:
		current := in.rt.current(id)
		if n.history != NoState {
			in.storeHistory(n.history, current)
		}
		if current != NoState {
			in.captureHistory(current)
		}
	case KindConcurrent:
		for _, region := range n.children {
			in.captureHistory(region)
		}
	}
}

// storeHistory remembers current for the history pseudostate h. Transient
// substates and final states leave the previous memory untouched.
func (in *Instance) storeHistory(h, current StateID) {
	if current == NoState {
		return
	}
	if k := in.graph.nodes[current].kind; k.IsPseudo() || k == KindFinal {
		return
	}

	e := in.rt.ensure(h)
	if in.graph.nodes[h].kind == KindHistory {
		e.history = []StateID{current}
		return
	}
	e.history = in.activeSubtree(current, nil)
}

// activeSubtree appends id and its active descendants in pre-order, skipping
// pseudostates
func (in *Instance) activeSubtree(id StateID, acc []StateID) []StateID {
	n := &in.graph.nodes[id]
	if n.kind.IsPseudo() || !in.rt.isActive(id) {
		return acc
	}
	acc = append(acc, id)

	switch n.kind {
	case KindHierarchical:
		if current := in.rt.current(id); current != NoState {
			acc = in.activeSubtree(current, acc)
		}
	case KindConcurrent:
		for _, region := range n.children {
			acc = in.activeSubtree(region, acc)
		}
	}
	return acc
}

// resolveHistory replaces an active history pseudostate with the remembered
// configuration of its context. Without memory the history's own default
// transition fires, or else the context falls back to its start state.
func (in *Instance) resolveHistory(dc *dispatchContext, h StateID) (bool, error) {
	var stored []StateID
	if e := in.rt.get(h); e != nil {
		stored = e.history
	}

	if len(stored) == 0 {
		fired, err := in.dispatchOwn(dc, h, nil, false)
		if err != nil || fired {
			return fired, err
		}
		return true, in.deactivate(dc, h)
	}

	if err := in.deactivate(dc, h); err != nil {
		return false, err
	}

	for _, id := range stored {
		if parent := in.graph.nodes[id].parent; in.graph.nodes[parent].kind == KindConcurrent {
			in.rt.mark(parent, id)
		}
	}
	for _, id := range stored {
		if err := in.activate(dc, id); err != nil {
			return false, err
		}
	}

	in.observers.NotifyTransition(in.graph.Path(h), in.graph.Path(stored[len(stored)-1]), dc.event, dc.at(h))
	return true, nil
}

// fireFork fires every allowed outgoing transition of a fork. Targeted
// regions are marked up front so their concurrent state only enters the
// remaining regions by default.
func (in *Instance) fireFork(dc *dispatchContext, f StateID, ev Event) (bool, error) {
	var allowed []*transition
	for _, tid := range in.graph.nodes[f].transitions {
		t := &in.graph.transitions[tid]
		ok, err := in.matches(dc, t, ev)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		if ok, err = in.admissible(dc, t.target, 0); err != nil {
			return false, err
		}
		if ok {
			allowed = append(allowed, t)
		}
	}

	if len(allowed) == 0 {
		return false, nil
	}

	for _, t := range allowed {
		for i := 0; i+1 < len(t.entry); i++ {
			if in.graph.nodes[t.entry[i]].kind == KindConcurrent {
				in.rt.mark(t.entry[i], t.entry[i+1])
			}
		}
	}

	for _, t := range allowed {
		if err := in.fire(dc, t); err != nil {
			return true, err
		}
	}

	return true, nil
}

// joinReady reports whether t completes its join: every other incoming
// source has arrived during its current activation
func (in *Instance) joinReady(t *transition) bool {
	join := in.rt.get(t.target)

	for _, tid := range in.graph.nodes[t.target].incoming {
		source := in.graph.transitions[tid].source
		if source == t.source {
			continue
		}
		if join == nil {
			return false
		}
		arrived, ok := join.arrivals[source]
		src := in.rt.get(source)
		if !ok || src == nil || !src.active || src.epoch != arrived {
			return false
		}
	}

	return true
}

// recordArrival notes that the source of t reached its join. It returns false
// when the arrival was already known.
func (in *Instance) recordArrival(t *transition) bool {
	src := in.rt.get(t.source)
	if src == nil {
		return false
	}

	join := in.rt.ensure(t.target)
	if join.arrivals == nil {
		join.arrivals = make(map[StateID]uint64)
	}
	if epoch, ok := join.arrivals[t.source]; ok && epoch == src.epoch {
		return false
	}
	join.arrivals[t.source] = src.epoch
	return true
}
