package observers

import (
	"time"

	"github.com/anggasct/statechart"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statechart_transitions_total",
		Help: "Total number of fired transitions by chart, source and target state",
	}, []string{"chart", "from_state", "to_state"})

	stateEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statechart_state_entries_total",
		Help: "Total number of state activations by chart and state",
	}, []string{"chart", "state"})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statechart_events_total",
		Help: "Total number of dispatched events by chart, event and outcome (consumed or rejected)",
	}, []string{"chart", "event", "outcome"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statechart_errors_total",
		Help: "Total number of failed dispatches by chart",
	}, []string{"chart"})

	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "statechart_dispatch_duration_seconds",
		Help:    "Duration of a dispatch to quiescence by chart",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
	}, []string{"chart"})

	stepsPerDispatch = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "statechart_dispatch_steps",
		Help:    "Run-to-completion passes that fired a transition, per dispatch",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 64},
	}, []string{"chart"})
)

// MetricsObserver exports instance activity as Prometheus metrics. It keeps
// no per-instance state besides the step count of the running dispatch, so
// one observer may serve one instance at a time.
type MetricsObserver struct {
	statechart.BaseObserver
	steps int
}

var (
	_ statechart.ExtendedObserver = (*MetricsObserver)(nil)
	_ statechart.StepObserver     = (*MetricsObserver)(nil)
)

// NewMetricsObserver creates a metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

func chart(ctx statechart.Context) string {
	if g := ctx.GetGraph(); g != nil {
		return g.Name()
	}
	return "unknown"
}

// OnTransition counts fired transitions
func (o *MetricsObserver) OnTransition(from string, to string, event statechart.Event, ctx statechart.Context) {
	transitionsTotal.WithLabelValues(chart(ctx), from, to).Inc()
}

// OnStateEnter counts state activations
func (o *MetricsObserver) OnStateEnter(state string, ctx statechart.Context) {
	stateEntriesTotal.WithLabelValues(chart(ctx), state).Inc()
}

// OnError counts failed dispatches
func (o *MetricsObserver) OnError(err error, ctx statechart.Context) {
	errorsTotal.WithLabelValues(chart(ctx)).Inc()
}

// OnDispatchStarted resets the step count
func (o *MetricsObserver) OnDispatchStarted(event statechart.Event, ctx statechart.Context) {
	o.steps = 0
}

// OnStep counts passes
func (o *MetricsObserver) OnStep(configuration string, ctx statechart.Context) {
	o.steps++
}

// OnDispatchFinished records outcome, duration and pass count
func (o *MetricsObserver) OnDispatchFinished(event statechart.Event, consumed bool, elapsed time.Duration, ctx statechart.Context) {
	c := chart(ctx)

	outcome := "rejected"
	if consumed {
		outcome = "consumed"
	}
	eventName := name(event)
	if eventName == "" {
		eventName = "none"
	}

	eventsTotal.WithLabelValues(c, eventName, outcome).Inc()
	dispatchDuration.WithLabelValues(c).Observe(elapsed.Seconds())
	stepsPerDispatch.WithLabelValues(c).Observe(float64(o.steps))
}
