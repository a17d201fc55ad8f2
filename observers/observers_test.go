package observers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/anggasct/statechart"
	"github.com/neilotoole/slogt"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// lightGraph cycles red -> green -> yellow -> red on "next"
func lightGraph(name string) *statechart.Graph {
	b := statechart.NewBuilder(name)
	root := b.Root()
	root.Start("start").To("red")
	root.State("red").To("green").On("next")
	root.State("green").To("yellow").On("next")
	root.State("yellow").To("red").On("next")
	return b.MustBuild()
}

func start(t *testing.T, g *statechart.Graph, opts ...statechart.InstanceOption) *statechart.Instance {
	t.Helper()
	opts = append([]statechart.InstanceOption{statechart.WithLogger(slogt.New(t))}, opts...)
	in := statechart.NewInstance(g, opts...)
	require.NoError(t, in.Start(context.Background()))
	t.Cleanup(func() { _ = in.Close(context.Background()) })
	return in
}

func send(t *testing.T, in *statechart.Instance, event string) bool {
	t.Helper()
	consumed, err := in.Dispatch(context.Background(), statechart.NewEvent(event, nil))
	require.NoError(t, err)
	return consumed
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	in := start(t, lightGraph("logged"), statechart.WithObserver(NewLoggingObserver(logger)))
	assert.True(t, send(t, in, "next"))
	assert.False(t, send(t, in, "unknown"))

	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		records = append(records, record)
	}

	messages := make([]string, len(records))
	for i, r := range records {
		messages[i] = r["msg"].(string)
		assert.Equal(t, "logged", r["statechart"])
		assert.Equal(t, in.ID(), r["instance"])
	}

	assert.Contains(t, messages, "instance started")
	assert.Contains(t, messages, "state entered")
	assert.Contains(t, messages, "step")
	assert.Contains(t, messages, "event rejected")

	for _, r := range records {
		if r["msg"] == "transition" && r["event"] == "next" {
			assert.Equal(t, "red", r["from"])
			assert.Equal(t, "green", r["to"])
			return
		}
	}
	t.Errorf("no transition record for 'next' in %v", messages)
}

func TestLoggingObserver_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	in := start(t, lightGraph("quiet"), statechart.WithObserver(NewLoggingObserver(logger)))
	send(t, in, "next")

	out := buf.String()
	assert.Contains(t, out, "instance started")
	assert.NotContains(t, out, "state entered")

	buf.Reset()
	loud := NewLoggingObserver(logger, WithLevel(slog.LevelWarn))
	in.AddObserver(loud)
	send(t, in, "next")
	assert.Contains(t, buf.String(), "state entered")
}

//nolint:paralleltest // Test reads global Prometheus metrics
func TestMetricsObserver(t *testing.T) {
	in := start(t, lightGraph("metered"), statechart.WithObserver(NewMetricsObserver()))

	send(t, in, "next")
	send(t, in, "next")
	send(t, in, "bogus")

	assert.InDelta(t, 1, testutil.ToFloat64(transitionsTotal.WithLabelValues("metered", "red", "green")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(transitionsTotal.WithLabelValues("metered", "green", "yellow")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(transitionsTotal.WithLabelValues("metered", "start", "red")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(stateEntriesTotal.WithLabelValues("metered", "yellow")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(eventsTotal.WithLabelValues("metered", "next", "consumed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(eventsTotal.WithLabelValues("metered", "bogus", "rejected")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(eventsTotal.WithLabelValues("metered", "none", "consumed")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(dispatchDuration, "statechart_dispatch_duration_seconds"))
}

//nolint:paralleltest // Test modifies global OTEL tracer provider
func TestTracingObserver(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	old := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(old) })

	in := start(t, lightGraph("traced"), statechart.WithObserver(NewTracingObserver(WithActionEvents())))
	send(t, in, "next")

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "statechart.start", spans[0].Name)
	assert.Equal(t, "statechart.dispatch", spans[1].Name)

	var events []string
	for _, e := range spans[1].Events {
		events = append(events, e.Name)
	}
	assert.Equal(t, []string{"state.exit", "state.enter", "transition"}, events)

	attrs := make(map[string]any)
	for _, a := range spans[1].Events[2].Attributes {
		attrs[string(a.Key)] = a.Value.AsInterface()
	}
	assert.Equal(t, "red", attrs["statechart.from"])
	assert.Equal(t, "green", attrs["statechart.to"])
	assert.Equal(t, "next", attrs["statechart.event"])
}

func TestLineTracer(t *testing.T) {
	tracer := NewLineTracer(nil)

	b := statechart.NewBuilder("Si1")
	root := b.Root()
	root.Start("start").To("A")
	root.Final("final")
	root.State("A",
		statechart.WithEntry(tracer.Action("A_entry")),
		statechart.WithActivity(tracer.Action("A_do")),
		statechart.WithExit(tracer.Action("A_exit")),
	).To("B").On("Event1")
	root.State("B",
		statechart.WithEntry(tracer.Action("B_entry")),
		statechart.WithActivity(tracer.Action("B_do")),
		statechart.WithExit(tracer.Action("B_exit")),
	).To("final").On("Event1")

	var out bytes.Buffer
	tracer.out = &out

	in := start(t, b.MustBuild(), statechart.WithObserver(tracer))
	assert.True(t, send(t, in, "Event1"))
	assert.False(t, send(t, in, "Event2"))
	assert.True(t, send(t, in, "Event1"))

	expected := ": 'A_entry''A_do'A\n" +
		"Event1: 'A_exit''B_entry''B_do'B\n" +
		"Event2: \n" +
		"Event1: 'B_exit'final\n"
	assert.Equal(t, expected, tracer.String())
	assert.Equal(t, expected, out.String())
	assert.Len(t, tracer.Lines(), 4)

	tracer.Reset()
	assert.Empty(t, tracer.String())
}

func TestValidationObserver(t *testing.T) {
	g := lightGraph("validated")
	validation := NewValidationObserver()
	validation.ExpectAllStates(g)
	validation.AllowTransition("green", "red")

	in := start(t, g, statechart.WithObserver(validation))
	assert.True(t, send(t, in, "next"))
	assert.False(t, validation.HasViolations())
	assert.Equal(t, []string{"yellow"}, validation.UnvisitedStates())

	assert.True(t, send(t, in, "next"))
	assert.Empty(t, validation.UnvisitedStates())
	require.True(t, validation.HasViolations())
	assert.Equal(t, []string{"invalid transition from 'green' to 'yellow' on event 'next'"}, validation.Violations())

	validation.Reset()
	assert.False(t, validation.HasViolations())
	assert.Equal(t, []string{"green", "red", "yellow"}, validation.UnvisitedStates())
}
