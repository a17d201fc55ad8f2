package statechart

import (
	"fmt"
	"sync"
	"time"
)

// Observer represents an entity that observes an instance.
// States are reported by their path, see Graph.Path.
type Observer interface {
	// OnTransition is called after a transition has fired
	OnTransition(from string, to string, event Event, ctx Context)

	// OnStateEnter is called when a state becomes active
	OnStateEnter(state string, ctx Context)
}

// ExtendedObserver provides additional optional observation methods
type ExtendedObserver interface {
	Observer

	// OnStateExit is called when a state becomes inactive
	OnStateExit(state string, ctx Context)

	// OnGuardEvaluation is called when a guard condition is evaluated
	OnGuardEvaluation(from string, to string, event Event, result bool, ctx Context)

	// OnEventRejected is called when an event fired no transition
	OnEventRejected(event Event, reason string, ctx Context)

	// OnError is called when a dispatch fails
	OnError(err error, ctx Context)

	// OnActionExecution is called before an entry, exit, activity or transition action runs
	OnActionExecution(actionType string, state string, event Event, ctx Context)

	// OnMachineStarted is called when the instance starts
	OnMachineStarted(ctx Context)

	// OnMachineStopped is called when the instance shuts down
	OnMachineStopped(ctx Context)
}

// StepObserver follows run-to-completion steps. OnStep receives the settled
// configuration after every pass that fired a transition.
type StepObserver interface {
	OnDispatchStarted(event Event, ctx Context)
	OnStep(configuration string, ctx Context)
	OnDispatchFinished(event Event, consumed bool, elapsed time.Duration, ctx Context)
}

// BaseObserver provides a default implementation with no-op methods
type BaseObserver struct{}

// OnTransition implements the required Observer method
func (o *BaseObserver) OnTransition(from string, to string, event Event, ctx Context) {}

// OnStateEnter implements the required Observer method
func (o *BaseObserver) OnStateEnter(state string, ctx Context) {}

// OnStateExit implements the optional ExtendedObserver method
func (o *BaseObserver) OnStateExit(state string, ctx Context) {}

// OnGuardEvaluation implements the optional ExtendedObserver method
func (o *BaseObserver) OnGuardEvaluation(from string, to string, event Event, result bool, ctx Context) {
}

// OnEventRejected implements the optional ExtendedObserver method
func (o *BaseObserver) OnEventRejected(event Event, reason string, ctx Context) {}

// OnError implements the optional ExtendedObserver method
func (o *BaseObserver) OnError(err error, ctx Context) {}

// OnActionExecution implements the optional ExtendedObserver method
func (o *BaseObserver) OnActionExecution(actionType string, state string, event Event, ctx Context) {}

// OnMachineStarted implements the optional ExtendedObserver method
func (o *BaseObserver) OnMachineStarted(ctx Context) {}

// OnMachineStopped implements the optional ExtendedObserver method
func (o *BaseObserver) OnMachineStopped(ctx Context) {}

// ObserverManager manages a collection of observers. A panicking observer is
// reported through OnError and never breaks a dispatch.
type ObserverManager struct {
	observers []Observer
	mutex     sync.RWMutex
}

// NewObserverManager creates a new observer manager
func NewObserverManager() *ObserverManager {
	return &ObserverManager{
		observers: make([]Observer, 0),
	}
}

// AddObserver adds an observer to the manager
func (om *ObserverManager) AddObserver(observer Observer) {
	om.mutex.Lock()
	defer om.mutex.Unlock()
	om.observers = append(om.observers, observer)
}

// RemoveObserver removes an observer from the manager
func (om *ObserverManager) RemoveObserver(observer Observer) {
	om.mutex.Lock()
	defer om.mutex.Unlock()
	for i, obs := range om.observers {
		if obs == observer {
			om.observers = append(om.observers[:i], om.observers[i+1:]...)
			break
		}
	}
}

// Len returns the number of registered observers
func (om *ObserverManager) Len() int {
	om.mutex.RLock()
	defer om.mutex.RUnlock()
	return len(om.observers)
}

func (om *ObserverManager) snapshot() []Observer {
	om.mutex.RLock()
	defer om.mutex.RUnlock()
	observers := make([]Observer, len(om.observers))
	copy(observers, om.observers)
	return observers
}

// call runs fn for one observer and turns a panic into an OnError notification
func call(observer Observer, method string, ctx Context, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if extObs, ok := observer.(ExtendedObserver); ok {
				func() {
					defer func() { _ = recover() }()
					extObs.OnError(fmt.Errorf("observer panic in %s: %v", method, r), ctx)
				}()
			}
		}
	}()
	fn()
}

// NotifyTransition notifies all observers of a fired transition
func (om *ObserverManager) NotifyTransition(from string, to string, event Event, ctx Context) {
	for _, observer := range om.snapshot() {
		call(observer, "OnTransition", ctx, func() {
			observer.OnTransition(from, to, event, ctx)
		})
	}
}

// NotifyStateEnter notifies all observers of state entry
func (om *ObserverManager) NotifyStateEnter(state string, ctx Context) {
	for _, observer := range om.snapshot() {
		call(observer, "OnStateEnter", ctx, func() {
			observer.OnStateEnter(state, ctx)
		})
	}
}

// NotifyStateExit notifies all observers of state exit
func (om *ObserverManager) NotifyStateExit(state string, ctx Context) {
	for _, observer := range om.snapshot() {
		if extObs, ok := observer.(ExtendedObserver); ok {
			call(observer, "OnStateExit", ctx, func() {
				extObs.OnStateExit(state, ctx)
			})
		}
	}
}

// NotifyGuardEvaluation notifies all observers of guard evaluation
func (om *ObserverManager) NotifyGuardEvaluation(from string, to string, event Event, result bool, ctx Context) {
	for _, observer := range om.snapshot() {
		if extObs, ok := observer.(ExtendedObserver); ok {
			call(observer, "OnGuardEvaluation", ctx, func() {
				extObs.OnGuardEvaluation(from, to, event, result, ctx)
			})
		}
	}
}

// NotifyEventRejected notifies all observers of an event that fired nothing
func (om *ObserverManager) NotifyEventRejected(event Event, reason string, ctx Context) {
	for _, observer := range om.snapshot() {
		if extObs, ok := observer.(ExtendedObserver); ok {
			call(observer, "OnEventRejected", ctx, func() {
				extObs.OnEventRejected(event, reason, ctx)
			})
		}
	}
}

// NotifyError notifies all observers of errors
func (om *ObserverManager) NotifyError(err error, ctx Context) {
	for _, observer := range om.snapshot() {
		if extObs, ok := observer.(ExtendedObserver); ok {
			func() {
				defer func() { _ = recover() }()
				extObs.OnError(err, ctx)
			}()
		}
	}
}

// NotifyActionExecution notifies all observers of action execution
func (om *ObserverManager) NotifyActionExecution(actionType string, state string, event Event, ctx Context) {
	for _, observer := range om.snapshot() {
		if extObs, ok := observer.(ExtendedObserver); ok {
			call(observer, "OnActionExecution", ctx, func() {
				extObs.OnActionExecution(actionType, state, event, ctx)
			})
		}
	}
}

// NotifyMachineStarted notifies all observers that the instance has started
func (om *ObserverManager) NotifyMachineStarted(ctx Context) {
	for _, observer := range om.snapshot() {
		if extObs, ok := observer.(ExtendedObserver); ok {
			call(observer, "OnMachineStarted", ctx, func() {
				extObs.OnMachineStarted(ctx)
			})
		}
	}
}

// NotifyMachineStopped notifies all observers that the instance has stopped
func (om *ObserverManager) NotifyMachineStopped(ctx Context) {
	for _, observer := range om.snapshot() {
		if extObs, ok := observer.(ExtendedObserver); ok {
			call(observer, "OnMachineStopped", ctx, func() {
				extObs.OnMachineStopped(ctx)
			})
		}
	}
}

// NotifyDispatchStarted notifies step observers that a dispatch begins
func (om *ObserverManager) NotifyDispatchStarted(event Event, ctx Context) {
	for _, observer := range om.snapshot() {
		if stepObs, ok := observer.(StepObserver); ok {
			call(observer, "OnDispatchStarted", ctx, func() {
				stepObs.OnDispatchStarted(event, ctx)
			})
		}
	}
}

// NotifyStep notifies step observers of a settled configuration
func (om *ObserverManager) NotifyStep(configuration string, ctx Context) {
	for _, observer := range om.snapshot() {
		if stepObs, ok := observer.(StepObserver); ok {
			call(observer, "OnStep", ctx, func() {
				stepObs.OnStep(configuration, ctx)
			})
		}
	}
}

// NotifyDispatchFinished notifies step observers that a dispatch ended
func (om *ObserverManager) NotifyDispatchFinished(event Event, consumed bool, elapsed time.Duration, ctx Context) {
	for _, observer := range om.snapshot() {
		if stepObs, ok := observer.(StepObserver); ok {
			call(observer, "OnDispatchFinished", ctx, func() {
				stepObs.OnDispatchFinished(event, consumed, elapsed, ctx)
			})
		}
	}
}

// HasStepObservers reports whether any registered observer follows steps
func (om *ObserverManager) HasStepObservers() bool {
	om.mutex.RLock()
	defer om.mutex.RUnlock()
	for _, observer := range om.observers {
		if _, ok := observer.(StepObserver); ok {
			return true
		}
	}
	return false
}
