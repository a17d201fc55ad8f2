package statechart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func scopeGraph(recorder *ActionRecorder) *Graph {
	traced := func(name string) []StateOption {
		return []StateOption{
			WithEntry(recorder.Record("enter " + name)),
			WithExit(recorder.Record("exit " + name)),
		}
	}

	b := NewBuilder("scope")
	root := b.Root()
	root.Start("start").To("H")

	h := root.Hierarchical("H", traced("H")...)
	h.Start("start").To("X")
	h.State("X", traced("X")...)
	h.State("Y", traced("Y")...).To("H").On("up")
	h.To("H:Y").On("down").Do(recorder.Record("H to Y"))

	return b.MustBuild()
}

func TestDispatch_TransitionIntoOwnSubstate(t *testing.T) {
	recorder := NewActionRecorder()
	in := StartInstance(t, scopeGraph(recorder))
	AssertConfiguration(t, in, "H:X")
	recorder.Reset()

	assert.True(t, Send(t, in, "down"))
	AssertConfiguration(t, in, "H:Y")
	AssertInactive(t, in, "H:X")
	assert.Equal(t, "exit X H to Y enter Y", recorder.String())
}

func TestDispatch_TransitionToOwnAncestor(t *testing.T) {
	recorder := NewActionRecorder()
	in := StartInstance(t, scopeGraph(recorder))
	Send(t, in, "down")
	recorder.Reset()

	assert.True(t, Send(t, in, "up"))
	AssertConfiguration(t, in, "H:X")
	AssertInactive(t, in, "H:Y")
	assert.Equal(t, "exit Y enter X", recorder.String())
}

func crossRegionGraph(recorder *ActionRecorder) *Graph {
	b := NewBuilder("regions")
	root := b.Root()
	root.Start("start").To("P")

	p := root.Concurrent("P", WithEntry(recorder.Record("enter P")), WithExit(recorder.Record("exit P")))
	r1 := p.Region("R1")
	r1.Start("start").To("A").Do(recorder.Record("start A"))
	a := r1.State("A")
	a.To("P:R2:B1").On("cross")
	a.To("P").On("reset")
	r2 := p.Region("R2")
	r2.Start("start").To("B0")
	r2.State("B0")
	r2.State("B1")
	p.To("P:R2:B1").On("inner")

	return b.MustBuild()
}

func TestDispatch_TransitionAcrossRegions(t *testing.T) {
	recorder := NewActionRecorder()
	in := StartInstance(t, crossRegionGraph(recorder))
	AssertConfiguration(t, in, "P(A|B0)")
	recorder.Reset()

	assert.True(t, Send(t, in, "cross"))
	AssertConfiguration(t, in, "P(A|B1)")
	for _, path := range []string{"P", "P:R1", "P:R1:A", "P:R2", "P:R2:B1"} {
		AssertActive(t, in, path)
	}
	AssertInactive(t, in, "P:R2:B0")
	assert.Equal(t, "exit P enter P start A", recorder.String())
}

func TestDispatch_TransitionFromRegionToConcurrentState(t *testing.T) {
	recorder := NewActionRecorder()
	in := StartInstance(t, crossRegionGraph(recorder))
	Send(t, in, "inner")
	AssertConfiguration(t, in, "P(A|B1)")
	recorder.Reset()

	assert.True(t, Send(t, in, "reset"))
	AssertConfiguration(t, in, "P(A|B0)")
	assert.Equal(t, "exit P enter P start A", recorder.String())
}

func TestDispatch_ConcurrentStateIntoOwnRegion(t *testing.T) {
	recorder := NewActionRecorder()
	in := StartInstance(t, crossRegionGraph(recorder))
	recorder.Reset()

	assert.True(t, Send(t, in, "inner"))
	AssertConfiguration(t, in, "P(A|B1)")
	AssertInactive(t, in, "P:R2:B0")
	assert.Empty(t, recorder.String(), "P and R1 stay untouched")
}
