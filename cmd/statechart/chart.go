package main

import (
	"time"

	"github.com/anggasct/statechart"
	"github.com/anggasct/statechart/observers"
)

const counterKey = "counter"

// cartChart builds the demo chart: A sets a counter on entry and loops
// through the concurrent state C until the counter, decremented on every
// entry of F, reaches zero.
//
//	Example
//	├── start -> A:B
//	├── A (entry: counter = counterInit)
//	│   ├── B -> C
//	│   ├── C (concurrent), anEvent -> junction
//	│   │   ├── C_R1: start -> D
//	│   │   └── C_R2: start -> E, E -> F (after timeout | anEvent), F -> E (anotherEvent)
//	│   ├── junction -> B [counter > 0] | A_final
//	│   └── A_final
//	├── A -> final
//	└── final
func cartChart(tracer *observers.LineTracer, counterInit int, timeout time.Duration) (*statechart.Graph, error) {
	b := statechart.NewBuilder("Example")
	root := b.Root()
	root.Start("start").To("A:B")
	root.Final("final")

	a := root.Hierarchical("A", statechart.WithEntry(func(ctx statechart.Context) error {
		ctx.Set(counterKey, counterInit)
		return nil
	}))
	a.State("B").To("C")
	a.Final("A_final")
	a.To("final")

	c := a.Concurrent("C")
	c.To("junction").On("anEvent")

	r1 := c.Region("C_R1")
	r1.Start("start").To("D")
	r1.State("D",
		statechart.WithEntry(tracer.Action("Concurrent state activated")),
		statechart.WithExit(tracer.Action("Concurrent state deactivated")),
	)

	r2 := c.Region("C_R2")
	r2.Start("start").To("E")
	e := r2.State("E", statechart.WithEntry(tracer.Action("start timeout")))
	e.To("F").After(timeout).Do(tracer.Action("Timeout"))
	e.To("F").On("anEvent")
	r2.State("F", statechart.WithEntry(decrement)).To("E").On("anotherEvent")

	junction := a.Junction("junction")
	junction.To("B").When(counterAbove(0))
	junction.To("A_final")

	return b.Build()
}

func counter(ctx statechart.Context) int {
	v, _ := ctx.Get(counterKey)
	n, _ := v.(int)
	return n
}

func decrement(ctx statechart.Context) error {
	ctx.Set(counterKey, counter(ctx)-1)
	return nil
}

func counterAbove(limit int) statechart.GuardFunc {
	return func(ctx statechart.Context) bool {
		return counter(ctx) > limit
	}
}
