package timer_test

import (
	"testing"
	"time"

	"github.com/anggasct/statechart/timer"
	"github.com/stretchr/testify/assert"
)

func TestManual_FiresInDeadlineOrder(t *testing.T) {
	m := timer.NewManual()

	var order []string
	m.Start(300*time.Millisecond, func(timer.Handle) { order = append(order, "late") })
	m.Start(100*time.Millisecond, func(timer.Handle) { order = append(order, "early") })
	m.Start(100*time.Millisecond, func(timer.Handle) { order = append(order, "early-second") })

	assert.Equal(t, 3, m.Pending())
	assert.Equal(t, 0, m.Advance(50*time.Millisecond))
	assert.Equal(t, 2, m.Advance(100*time.Millisecond))
	assert.Equal(t, []string{"early", "early-second"}, order)
	assert.Equal(t, 150*time.Millisecond, m.Now())

	assert.Equal(t, 1, m.Advance(time.Second))
	assert.Equal(t, "late", order[2])
	assert.Equal(t, 0, m.Pending())
}

func TestManual_Cancel(t *testing.T) {
	m := timer.NewManual()

	fired := false
	h := m.Start(time.Second, func(timer.Handle) { fired = true })

	assert.True(t, m.Cancel(h))
	assert.False(t, m.Cancel(h))
	assert.Equal(t, 0, m.Advance(time.Minute))
	assert.False(t, fired)
}

func TestManual_CallbackMayStartTimers(t *testing.T) {
	m := timer.NewManual()

	var seen []time.Duration
	var tick func(timer.Handle)
	tick = func(timer.Handle) {
		seen = append(seen, m.Now())
		if len(seen) < 3 {
			m.Start(time.Second, tick)
		}
	}
	m.Start(time.Second, tick)

	assert.Equal(t, 3, m.Advance(10*time.Second))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, seen)
	assert.Equal(t, 10*time.Second, m.Now())
}

func TestManual_HandlePassedToCallback(t *testing.T) {
	m := timer.NewManual()

	var got timer.Handle
	h := m.Start(time.Millisecond, func(fired timer.Handle) { got = fired })
	m.Advance(time.Millisecond)

	assert.Equal(t, h, got)
	assert.False(t, got.IsZero())
}
