package timer

import (
	"sort"
	"sync"
	"time"
)

// Manual is a scheduler driven by a virtual clock. Timers fire only when
// Advance moves the clock past their deadline, which makes timeout behavior
// deterministic in tests and simulations.
type Manual struct {
	mutex  sync.Mutex
	now    time.Duration
	seq    uint64
	timers map[Handle]*manualTimer
}

type manualTimer struct {
	deadline time.Duration
	seq      uint64
	fire     func(Handle)
}

// NewManual creates a manual scheduler with its clock at zero
func NewManual() *Manual {
	return &Manual{
		timers: make(map[Handle]*manualTimer),
	}
}

// Start registers fire to run once the clock has advanced by d
func (m *Manual) Start(d time.Duration, fire func(Handle)) Handle {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	h := NewHandle()
	m.seq++
	m.timers[h] = &manualTimer{deadline: m.now + d, seq: m.seq, fire: fire}
	return h
}

// Cancel removes a pending timer
func (m *Manual) Cancel(h Handle) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.timers[h]; !ok {
		return false
	}
	delete(m.timers, h)
	return true
}

// Pending returns the number of timers not yet fired or canceled
func (m *Manual) Pending() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.timers)
}

// Now returns the virtual time elapsed since creation
func (m *Manual) Now() time.Duration {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.now
}

// Advance moves the clock forward by d and fires every timer that became
// due, earliest deadline first. Callbacks run on the calling goroutine
// without the scheduler lock held, so they may start or cancel timers.
// It returns the number of callbacks run.
func (m *Manual) Advance(d time.Duration) int {
	m.mutex.Lock()
	target := m.now + d
	m.mutex.Unlock()

	fired := 0
	for {
		h, t, ok := m.next(target)
		if !ok {
			break
		}
		t.fire(h)
		fired++
	}

	m.mutex.Lock()
	if m.now < target {
		m.now = target
	}
	m.mutex.Unlock()

	return fired
}

// next removes and returns the earliest timer due at or before target
func (m *Manual) next(target time.Duration) (Handle, *manualTimer, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	type due struct {
		h Handle
		t *manualTimer
	}
	var candidates []due
	for h, t := range m.timers {
		if t.deadline <= target {
			candidates = append(candidates, due{h, t})
		}
	}
	if len(candidates) == 0 {
		return Handle{}, nil, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].t.deadline != candidates[j].t.deadline {
			return candidates[i].t.deadline < candidates[j].t.deadline
		}
		return candidates[i].t.seq < candidates[j].t.seq
	})

	first := candidates[0]
	delete(m.timers, first.h)
	if first.t.deadline > m.now {
		m.now = first.t.deadline
	}
	return first.h, first.t, true
}
