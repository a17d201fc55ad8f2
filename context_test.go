package statechart

import (
	"context"
	"sync"
	"testing"
)

type testContextKey string

func TestContext_Creation(t *testing.T) {
	parentCtx := context.WithValue(context.Background(), testContextKey("trace"), "abc")
	in := NewInstance(CreateSimpleGraph())
	t.Cleanup(func() { _ = in.Close(context.Background()) })

	ctx := NewContext(parentCtx, in)

	if ctx.GetInstance() != in {
		t.Error("Expected context to reference the instance")
	}
	if ctx.GetGraph() != in.Graph() {
		t.Error("Expected context to reference the graph")
	}
	if ctx.GetCurrentState() != NoState {
		t.Error("Expected no current state outside of a dispatch")
	}
	if ctx.GetCurrentEvent() != nil || ctx.GetEventName() != "" || ctx.GetEventData() != nil {
		t.Error("Expected no event outside of a dispatch")
	}
	if ctx.Value(testContextKey("trace")) != "abc" {
		t.Error("Expected parent values to be visible")
	}

	ctx.Set("k", 1)
	if v, ok := in.Get("k"); !ok || v != 1 {
		t.Error("Expected context writes to reach the instance data")
	}
}

func TestContext_NilInstance(t *testing.T) {
	ctx := NewContext(nil, nil)

	ctx.Set("k", 1)
	if _, ok := ctx.Get("k"); ok {
		t.Error("Expected detached context to hold no data")
	}
	if len(ctx.GetAll()) != 0 {
		t.Error("Expected empty data")
	}
	if ctx.GetGraph() != nil || ctx.GetCurrentStatePath() != "" {
		t.Error("Expected detached context to have no graph")
	}
}

func TestContext_CurrentStateDuringBehavior(t *testing.T) {
	var (
		entryState string
		guardState string
		actionPath string
		eventName  string
	)

	b := NewBuilder("ctx")
	root := b.Root()
	root.Start("start").To("H:A")
	h := root.Hierarchical("H")
	h.State("A").To("B").On("go").When(func(ctx Context) bool {
		guardState = ctx.GetCurrentStatePath()
		return true
	}).Do(func(ctx Context) error {
		actionPath = ctx.GetCurrentStatePath()
		eventName = ctx.GetEventName()
		return nil
	})
	h.State("B", WithEntry(func(ctx Context) error {
		entryState = ctx.GetCurrentStatePath()
		return nil
	}))
	g := b.MustBuild()

	in := StartInstance(t, g)
	Send(t, in, "go")

	if guardState != "H:A" {
		t.Errorf("Expected guard to run at H:A, got %q", guardState)
	}
	if actionPath != "H:A" {
		t.Errorf("Expected transition action to run at its source H:A, got %q", actionPath)
	}
	if entryState != "H:B" {
		t.Errorf("Expected entry action to run at H:B, got %q", entryState)
	}
	if eventName != "go" {
		t.Errorf("Expected event 'go', got %q", eventName)
	}
}

func TestContext_GetEventDataAs(t *testing.T) {
	tests := []struct {
		name   string
		data   any
		target any
		ok     bool
	}{
		{"string", "hello", new(string), true},
		{"int", 42, new(int), true},
		{"bool", true, new(bool), true},
		{"float", 1.5, new(float64), true},
		{"mismatch", "hello", new(int), false},
		{"nil", nil, new(string), false},
		{"unsupported target", 42, new(int64), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &dispatchContext{Context: context.Background(), event: NewEvent("e", tt.data)}
			if got := ctx.GetEventDataAs(tt.target); got != tt.ok {
				t.Errorf("Expected %v, got %v", tt.ok, got)
			}
		})
	}
}

func TestData_ConcurrentAccess(t *testing.T) {
	data := NewData()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				data.Set("key", i*j)
				_, _ = data.Get("key")
				_ = data.GetAll()
			}
		}(i)
	}
	wg.Wait()

	data.Set("a", 1)
	all := data.GetAll()
	all["a"] = 2
	if v, _ := data.Get("a"); v != 1 {
		t.Error("Expected GetAll to return a copy")
	}

	data.Delete("a")
	if _, ok := data.Get("a"); ok {
		t.Error("Expected key to be deleted")
	}
}
