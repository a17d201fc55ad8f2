package observers

import (
	"github.com/anggasct/statechart"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingObserver annotates the span of the running dispatch with span
// events for entered and exited states and fired transitions. Instances open
// a "statechart.start" or "statechart.dispatch" span per call; the observer
// only adds to it.
type TracingObserver struct {
	statechart.BaseObserver
	actions bool
}

var _ statechart.ExtendedObserver = (*TracingObserver)(nil)

// TracingOption configures a TracingObserver
type TracingOption func(*TracingObserver)

// WithActionEvents also records an event per executed action
func WithActionEvents() TracingOption {
	return func(o *TracingObserver) {
		o.actions = true
	}
}

// NewTracingObserver creates a tracing observer
func NewTracingObserver(opts ...TracingOption) *TracingObserver {
	o := &TracingObserver{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OnTransition adds a "transition" event
func (o *TracingObserver) OnTransition(from string, to string, event statechart.Event, ctx statechart.Context) {
	trace.SpanFromContext(ctx).AddEvent("transition", trace.WithAttributes(
		attribute.String("statechart.from", from),
		attribute.String("statechart.to", to),
		attribute.String("statechart.event", name(event)),
	))
}

// OnStateEnter adds a "state.enter" event
func (o *TracingObserver) OnStateEnter(state string, ctx statechart.Context) {
	trace.SpanFromContext(ctx).AddEvent("state.enter", trace.WithAttributes(
		attribute.String("statechart.state", state),
	))
}

// OnStateExit adds a "state.exit" event
func (o *TracingObserver) OnStateExit(state string, ctx statechart.Context) {
	trace.SpanFromContext(ctx).AddEvent("state.exit", trace.WithAttributes(
		attribute.String("statechart.state", state),
	))
}

// OnEventRejected adds an "event.rejected" event
func (o *TracingObserver) OnEventRejected(event statechart.Event, reason string, ctx statechart.Context) {
	trace.SpanFromContext(ctx).AddEvent("event.rejected", trace.WithAttributes(
		attribute.String("statechart.event", name(event)),
		attribute.String("statechart.reason", reason),
	))
}

// OnActionExecution adds an "action" event when enabled
func (o *TracingObserver) OnActionExecution(actionType string, state string, event statechart.Event, ctx statechart.Context) {
	if !o.actions {
		return
	}
	trace.SpanFromContext(ctx).AddEvent("action", trace.WithAttributes(
		attribute.String("statechart.action", actionType),
		attribute.String("statechart.state", state),
	))
}

// OnError marks the span as failed
func (o *TracingObserver) OnError(err error, ctx statechart.Context) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
