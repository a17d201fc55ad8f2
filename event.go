package statechart

import (
	"time"

	"github.com/anggasct/statechart/timer"
)

// TimeoutEventName is the name carried by timeout triggers and their occurrences
const TimeoutEventName = "timeout"

// Event represents a trigger for transitions in the statechart
type Event interface {
	GetName() string
	GetData() any
	GetTimestamp() time.Time
}

// BaseEvent provides a basic implementation of the Event interface
type BaseEvent struct {
	name      string
	data      any
	timestamp time.Time
}

// NewEvent creates a new basic event
func NewEvent(name string, data any) Event {
	return &BaseEvent{
		name:      name,
		data:      data,
		timestamp: time.Now(),
	}
}

// GetName returns the event name
func (e *BaseEvent) GetName() string {
	return e.name
}

// GetData returns the event data
func (e *BaseEvent) GetData() any {
	return e.data
}

// GetTimestamp returns the event timestamp
func (e *BaseEvent) GetTimestamp() time.Time {
	return e.timestamp
}

func (e *BaseEvent) String() string {
	return e.name
}

// TimeoutOccurrence is raised when a timer started for a state elapses.
// It only matches the timeout transition of State, and only while the
// instance still holds Handle for that state.
type TimeoutOccurrence struct {
	Handle    timer.Handle
	State     StateID
	timestamp time.Time
}

// NewTimeoutOccurrence creates the occurrence event for an elapsed timer
func NewTimeoutOccurrence(handle timer.Handle, state StateID) *TimeoutOccurrence {
	return &TimeoutOccurrence{
		Handle:    handle,
		State:     state,
		timestamp: time.Now(),
	}
}

// GetName returns TimeoutEventName
func (e *TimeoutOccurrence) GetName() string {
	return TimeoutEventName
}

// GetData returns the timer handle
func (e *TimeoutOccurrence) GetData() any {
	return e.Handle
}

// GetTimestamp returns the time the timer elapsed
func (e *TimeoutOccurrence) GetTimestamp() time.Time {
	return e.timestamp
}

func (e *TimeoutOccurrence) String() string {
	return TimeoutEventName
}

// eventName returns the name of ev, or "" for the continuation event
func eventName(ev Event) string {
	if ev == nil {
		return ""
	}
	return ev.GetName()
}
