package statechart

import (
	"context"
	"sync"
)

// Context provides access to instance data and the event being processed
// while guards, actions and observers run
type Context interface {
	context.Context

	Get(key string) (any, bool)
	Set(key string, value any)
	GetAll() map[string]any

	GetInstance() *Instance
	GetGraph() *Graph
	GetCurrentState() StateID
	GetCurrentStatePath() string

	GetCurrentEvent() Event
	GetEventName() string
	GetEventData() any
	GetEventDataAs(target any) bool
}

// Data is the key/value store of one instance, shared by its guards and actions
type Data struct {
	values map[string]any
	mutex  sync.RWMutex
}

// NewData creates an empty data store
func NewData() *Data {
	return &Data{
		values: make(map[string]any),
	}
}

// Get retrieves a value
func (d *Data) Get(key string) (any, bool) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	value, exists := d.values[key]
	return value, exists
}

// Set stores a value
func (d *Data) Set(key string, value any) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.values[key] = value
}

// Delete removes a value
func (d *Data) Delete(key string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	delete(d.values, key)
}

// GetAll returns a copy of all values
func (d *Data) GetAll() map[string]any {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	result := make(map[string]any, len(d.values))
	for k, v := range d.values {
		result[k] = v
	}
	return result
}

// dispatchContext is the Context handed out during one dispatch. It is only
// touched by the goroutine holding the instance lock.
type dispatchContext struct {
	context.Context
	instance *Instance
	state    StateID
	event    Event

	// restoring suppresses the default entry of unmarked regions
	restoring bool
}

// NewContext creates a context bound to an instance, for calling guards and
// actions outside of a dispatch
func NewContext(parent context.Context, instance *Instance) Context {
	if parent == nil {
		parent = context.Background()
	}
	return &dispatchContext{
		Context:  parent,
		instance: instance,
		state:    NoState,
	}
}

// Get retrieves a value from the instance data
func (ctx *dispatchContext) Get(key string) (any, bool) {
	if ctx.instance == nil {
		return nil, false
	}
	return ctx.instance.data.Get(key)
}

// Set stores a value in the instance data
func (ctx *dispatchContext) Set(key string, value any) {
	if ctx.instance == nil {
		return
	}
	ctx.instance.data.Set(key, value)
}

// GetAll returns all instance data
func (ctx *dispatchContext) GetAll() map[string]any {
	if ctx.instance == nil {
		return map[string]any{}
	}
	return ctx.instance.data.GetAll()
}

// GetInstance returns the instance being driven
func (ctx *dispatchContext) GetInstance() *Instance {
	return ctx.instance
}

// GetGraph returns the graph of the instance
func (ctx *dispatchContext) GetGraph() *Graph {
	if ctx.instance == nil {
		return nil
	}
	return ctx.instance.graph
}

// GetCurrentState returns the state whose behavior is running
func (ctx *dispatchContext) GetCurrentState() StateID {
	return ctx.state
}

// GetCurrentStatePath returns the path of the state whose behavior is running
func (ctx *dispatchContext) GetCurrentStatePath() string {
	if ctx.instance == nil {
		return ""
	}
	return ctx.instance.graph.Path(ctx.state)
}

// GetCurrentEvent returns the event being processed, nil during completion steps
func (ctx *dispatchContext) GetCurrentEvent() Event {
	return ctx.event
}

// GetEventName returns the name of the current event
func (ctx *dispatchContext) GetEventName() string {
	return eventName(ctx.event)
}

// GetEventData returns the data of the current event
func (ctx *dispatchContext) GetEventData() any {
	if ctx.event != nil {
		return ctx.event.GetData()
	}
	return nil
}

// GetEventDataAs attempts to cast event data to the target type
func (ctx *dispatchContext) GetEventDataAs(target any) bool {
	data := ctx.GetEventData()
	if data == nil {
		return false
	}

	switch t := target.(type) {
	case *string:
		if str, ok := data.(string); ok {
			*t = str
			return true
		}
	case *int:
		if i, ok := data.(int); ok {
			*t = i
			return true
		}
	case *bool:
		if b, ok := data.(bool); ok {
			*t = b
			return true
		}
	case *float64:
		if f, ok := data.(float64); ok {
			*t = f
			return true
		}
	}

	return false
}

// at points the context at the state whose behavior runs next
func (ctx *dispatchContext) at(state StateID) *dispatchContext {
	ctx.state = state
	return ctx
}
