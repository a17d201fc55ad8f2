package statechart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequence_FinalStateStopsConsuming(t *testing.T) {
	b := NewBuilder("sequence")
	root := b.Root()
	root.Start("start").To("A")
	root.State("A").To("B").On("E1")
	root.State("B").To("Final").On("E1")
	root.Final("Final")
	g := b.MustBuild()

	in := StartInstance(t, g)

	assert.True(t, Send(t, in, "E1"))
	assert.True(t, Send(t, in, "E1"))
	assert.Equal(t, "Final", in.Configuration())
	assert.False(t, Send(t, in, "E1"))
}

func TestHistory_RestoresInsteadOfStart(t *testing.T) {
	b := NewBuilder("resume")
	root := b.Root()
	root.Start("start").To("H")
	root.State("Y").To("H:history").On("back")

	h := root.Hierarchical("H")
	h.Start("start").To("W")
	h.History("history")
	h.State("W").To("X").On("advance")
	h.State("X")
	h.To("Y").On("leave")
	g := b.MustBuild()

	in := StartInstance(t, g)
	assert.Equal(t, "H:W", in.Configuration())

	Send(t, in, "advance")
	Send(t, in, "leave")
	assert.Equal(t, "Y", in.Configuration())

	Send(t, in, "back")
	assert.Equal(t, "H:X", in.Configuration())
}

func completionGraph(recorder *ActionRecorder) *Graph {
	b := NewBuilder("completion")
	root := b.Root()
	root.Start("start").To("C")

	c := root.Concurrent("C", WithExit(recorder.Record("exit C")))
	r1 := c.Region("R1")
	r1.Start("start").To("a")
	r1.State("a").To("Final").On("finish_r1")
	r1.Final("Final")
	r2 := c.Region("R2")
	r2.Start("start").To("b")
	r2.State("b").To("Final").On("finish_r2")
	r2.Final("Final")
	c.To("done")

	root.State("done", WithEntry(recorder.Record("enter done")))
	return b.MustBuild()
}

func TestConcurrent_CompletionWaitsForEveryRegion(t *testing.T) {
	recorder := NewActionRecorder()
	in := StartInstance(t, completionGraph(recorder))
	assert.Equal(t, "C(a|b)", in.Configuration())

	assert.True(t, Send(t, in, "finish_r1"))
	assert.Equal(t, "C(Final|b)", in.Configuration())
	AssertActive(t, in, "C:R2:b")
	assert.Empty(t, recorder.Labels())

	assert.True(t, Send(t, in, "finish_r2"))
	assert.Equal(t, "done", in.Configuration())
	assert.Equal(t, "exit C enter done", recorder.String())
}

func TestConcurrent_RegionsActivateTogether(t *testing.T) {
	observer := NewTestObserver()
	in := StartInstance(t, CreateConcurrentGraph(), WithObserver(observer))

	observer.Reset()
	Send(t, in, "activate")
	assert.Equal(t, "active(stopped|off)", in.Configuration())

	entered := observer.EnteredStates()
	assert.Contains(t, entered, "active:motor:stopped")
	assert.Contains(t, entered, "active:lights:off")
	assert.Equal(t, []string{"active(stopped|off)"}, observer.Steps)
}

func TestConcurrent_EventReachesEveryRegion(t *testing.T) {
	b := NewBuilder("broadcast")
	root := b.Root()
	root.Start("start").To("P")
	p := root.Concurrent("P")
	r1 := p.Region("R1")
	r1.Start("start").To("a1")
	r1.State("a1").To("a2").On("tick")
	r1.State("a2")
	r2 := p.Region("R2")
	r2.Start("start").To("b1")
	r2.State("b1").To("b2").On("tick")
	r2.State("b2")
	g := b.MustBuild()

	in := StartInstance(t, g)
	assert.True(t, Send(t, in, "tick"))
	assert.Equal(t, "P(a2|b2)", in.Configuration())
}

func TestConcurrent_TransitionLeavingFromRegion(t *testing.T) {
	recorder := NewActionRecorder()

	b := NewBuilder("escape")
	root := b.Root()
	root.Start("start").To("P")
	p := root.Concurrent("P", WithExit(recorder.Record("exit P")))
	r1 := p.Region("R1")
	r1.Start("start").To("a")
	r1.State("a", WithExit(recorder.Record("exit a"))).To("out").On("escape")
	r2 := p.Region("R2")
	r2.Start("start").To("b")
	r2.State("b", WithExit(recorder.Record("exit b"))).To("b").On("escape").Do(recorder.Record("b self"))
	root.State("out")
	g := b.MustBuild()

	in := StartInstance(t, g)
	assert.True(t, Send(t, in, "escape"))
	assert.Equal(t, "out", in.Configuration())
	assert.Equal(t, "exit a exit b exit P", recorder.String())
}

func TestConcurrent_InnerTransitionBeforeOuter(t *testing.T) {
	b := NewBuilder("priority")
	root := b.Root()
	root.Start("start").To("P")
	p := root.Concurrent("P")
	r1 := p.Region("R1")
	r1.Start("start").To("a1")
	r1.State("a1").To("a2").On("go")
	r1.State("a2")
	r2 := p.Region("R2")
	r2.Start("start").To("b1")
	r2.State("b1")
	p.To("out").On("go")
	root.State("out")
	g := b.MustBuild()

	in := StartInstance(t, g)
	assert.True(t, Send(t, in, "go"))
	assert.Equal(t, "P(a2|b1)", in.Configuration())

	assert.True(t, Send(t, in, "go"))
	assert.Equal(t, "out", in.Configuration())
}

func TestConcurrent_RestoreThenComplete(t *testing.T) {
	recorder := NewActionRecorder()
	in := NewInstance(completionGraph(recorder))
	t.Cleanup(func() { _ = in.Close(context.Background()) })

	ok, err := in.RestoreConfiguration(context.Background(), "C(Final|Final)")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "C(Final|Final)", in.Configuration())

	consumed, err := in.Dispatch(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, "done", in.Configuration())
}
