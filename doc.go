// Package statechart provides a hierarchical, concurrent state machine
// interpreter implementing UML statechart semantics: nested OR states,
// orthogonal AND regions, start, history, deep-history, junction, fork and
// join pseudostates, guarded and timed transitions, and run-to-completion
// event processing.
//
// A Graph holds the static structure and is shared read-only by any number
// of Instance values, each carrying its own runtime configuration:
//
//	g, err := statechart.NewBuilder("door").Root().
//		Start("start").To("closed").
//		Build()
//
//	in := statechart.NewInstance(g)
//	err = in.Start(ctx)
//	consumed, err := in.Dispatch(ctx, statechart.NewEvent("open", nil))
//
// Timeout transitions are driven by a Scheduler, by default a private
// timer.Manager. Asynchronous delivery goes through an EventSink such as
// eventqueue.Queue.
package statechart
