package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anggasct/statechart"
	"github.com/anggasct/statechart/observers"
	"github.com/anggasct/statechart/timer"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartChart_Loops(t *testing.T) {
	tracer := observers.NewLineTracer(nil)
	clock := timer.NewManual()

	chart, err := cartChart(tracer, 3, 50*time.Millisecond)
	require.NoError(t, err)

	in := statechart.NewInstance(chart,
		statechart.WithScheduler(clock),
		statechart.WithObserver(tracer),
		statechart.WithLogger(slogt.New(t)),
	)
	t.Cleanup(func() { _ = in.Close(context.Background()) })
	require.NoError(t, in.Start(context.Background()))

	send := func(name string) {
		consumed, err := in.Dispatch(context.Background(), statechart.NewEvent(name, nil))
		require.NoError(t, err)
		assert.True(t, consumed, name)
	}

	send("anEvent")
	send("anEvent")
	assert.Equal(t, 1, clock.Advance(60*time.Millisecond))
	send("anEvent")
	send("anEvent")
	send("anEvent")

	expected := ": A:B >'Concurrent state activated''start timeout'A:C(D|E)\n" +
		"anEvent: A:C(D|F)\n" +
		"anEvent: 'Concurrent state deactivated'A:junction >A:B >'Concurrent state activated''start timeout'A:C(D|E)\n" +
		"timeout: 'Timeout'A:C(D|F)\n" +
		"anEvent: 'Concurrent state deactivated'A:junction >A:B >'Concurrent state activated''start timeout'A:C(D|E)\n" +
		"anEvent: A:C(D|F)\n" +
		"anEvent: 'Concurrent state deactivated'A:junction >A:A_final >final\n"
	assert.Equal(t, expected, tracer.String())
	assert.Equal(t, "final", in.Configuration())
	assert.Equal(t, 0, clock.Pending())
}

func TestCartChart_AnotherEventRestartsTimeout(t *testing.T) {
	tracer := observers.NewLineTracer(nil)
	clock := timer.NewManual()

	chart, err := cartChart(tracer, 3, 50*time.Millisecond)
	require.NoError(t, err)

	in := statechart.NewInstance(chart, statechart.WithScheduler(clock), statechart.WithObserver(tracer))
	t.Cleanup(func() { _ = in.Close(context.Background()) })
	require.NoError(t, in.Start(context.Background()))
	tracer.Reset()

	assert.Equal(t, 1, clock.Advance(60*time.Millisecond))
	_, err = in.Dispatch(context.Background(), statechart.NewEvent("anotherEvent", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, clock.Pending())

	expected := "timeout: 'Timeout'A:C(D|F)\n" +
		"anotherEvent: 'start timeout'A:C(D|E)\n"
	assert.Equal(t, expected, tracer.String())
}

func TestExecute_Config(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statechart.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queue:\n  shards: 2\n"), 0o600))

	var out bytes.Buffer
	require.NoError(t, execute(context.Background(), []string{"config", "-c", path}, &out))
	assert.Contains(t, out.String(), "shards: 2")
	assert.Contains(t, out.String(), "offer_timeout: 1s")
}

func TestExecute_Dot(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, execute(context.Background(), []string{"dot", "--rankdir", "LR", "--no-pseudostates"}, &out))

	dot := out.String()
	assert.Contains(t, dot, `digraph "Example"`)
	assert.Contains(t, dot, "rankdir=LR;")
	assert.Contains(t, dot, `subgraph "cluster_A:C:C_R2"`)
	assert.NotContains(t, dot, "A:junction")
}

func TestExecute_Run(t *testing.T) {
	var out bytes.Buffer
	args := []string{"run", "--instances", "2", "--timeout", "1h", "--pause", "1ms", "--events", "anEvent"}
	require.NoError(t, execute(context.Background(), args, &out))

	assert.Contains(t, out.String(), "[Run1] : A:B >'Concurrent state activated''start timeout'A:C(D|E)\n")
	assert.Contains(t, out.String(), "[Run2] anEvent: A:C(D|F)\n")
	assert.Contains(t, out.String(), "[Run1] configuration: A:C(D|F)\n")
}

func TestExecute_UnknownCommand(t *testing.T) {
	assert.Error(t, execute(context.Background(), []string{"explode"}, &bytes.Buffer{}))
}
