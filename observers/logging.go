// Package observers provides observers for monitoring statechart instances
package observers

import (
	"log/slog"
	"time"

	"github.com/anggasct/statechart"
)

// LoggingObserver writes instance activity to a structured logger. State
// changes are logged at debug level, rejected events at info, failures at
// error.
type LoggingObserver struct {
	logger *slog.Logger
	level  slog.Level
}

var (
	_ statechart.ExtendedObserver = (*LoggingObserver)(nil)
	_ statechart.StepObserver     = (*LoggingObserver)(nil)
)

// LoggingOption configures a LoggingObserver
type LoggingOption func(*LoggingObserver)

// WithLevel sets the level used for state and transition records
func WithLevel(level slog.Level) LoggingOption {
	return func(o *LoggingObserver) {
		o.level = level
	}
}

// NewLoggingObserver creates a logging observer writing to logger, or to
// slog.Default when logger is nil
func NewLoggingObserver(logger *slog.Logger, opts ...LoggingOption) *LoggingObserver {
	if logger == nil {
		logger = slog.Default()
	}
	o := &LoggingObserver{
		logger: logger,
		level:  slog.LevelDebug,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *LoggingObserver) log(ctx statechart.Context, level slog.Level, msg string, args ...any) {
	args = append(args, "statechart", ctx.GetGraph().Name(), "instance", ctx.GetInstance().ID())
	o.logger.Log(ctx, level, msg, args...)
}

// OnTransition logs a fired transition
func (o *LoggingObserver) OnTransition(from string, to string, event statechart.Event, ctx statechart.Context) {
	o.log(ctx, o.level, "transition", "from", from, "to", to, "event", name(event))
}

// OnStateEnter logs state entry
func (o *LoggingObserver) OnStateEnter(state string, ctx statechart.Context) {
	o.log(ctx, o.level, "state entered", "state", state)
}

// OnStateExit logs state exit
func (o *LoggingObserver) OnStateExit(state string, ctx statechart.Context) {
	o.log(ctx, o.level, "state exited", "state", state)
}

// OnGuardEvaluation logs guard results
func (o *LoggingObserver) OnGuardEvaluation(from string, to string, event statechart.Event, result bool, ctx statechart.Context) {
	o.log(ctx, o.level, "guard evaluated", "from", from, "to", to, "event", name(event), "result", result)
}

// OnEventRejected logs events that fired nothing
func (o *LoggingObserver) OnEventRejected(event statechart.Event, reason string, ctx statechart.Context) {
	o.log(ctx, slog.LevelInfo, "event rejected", "event", name(event), "reason", reason)
}

// OnError logs dispatch failures
func (o *LoggingObserver) OnError(err error, ctx statechart.Context) {
	o.log(ctx, slog.LevelError, "dispatch failed", "error", err)
}

// OnActionExecution logs action calls
func (o *LoggingObserver) OnActionExecution(actionType string, state string, event statechart.Event, ctx statechart.Context) {
	o.log(ctx, o.level, "action", "type", actionType, "state", state, "event", name(event))
}

// OnMachineStarted logs instance start
func (o *LoggingObserver) OnMachineStarted(ctx statechart.Context) {
	o.log(ctx, slog.LevelInfo, "instance started")
}

// OnMachineStopped logs instance shutdown
func (o *LoggingObserver) OnMachineStopped(ctx statechart.Context) {
	o.log(ctx, slog.LevelInfo, "instance stopped")
}

// OnDispatchStarted is a no-op; the finished record carries the event
func (o *LoggingObserver) OnDispatchStarted(event statechart.Event, ctx statechart.Context) {}

// OnStep logs the configuration reached by a run-to-completion pass
func (o *LoggingObserver) OnStep(configuration string, ctx statechart.Context) {
	o.log(ctx, o.level, "step", "configuration", configuration)
}

// OnDispatchFinished logs the outcome of a dispatch
func (o *LoggingObserver) OnDispatchFinished(event statechart.Event, consumed bool, elapsed time.Duration, ctx statechart.Context) {
	o.log(ctx, o.level, "dispatch finished", "event", name(event), "consumed", consumed, "elapsed", elapsed)
}

// name returns the event name, or "" for the continuation event
func name(event statechart.Event) string {
	if event == nil {
		return ""
	}
	return event.GetName()
}
