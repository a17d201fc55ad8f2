package statechart

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error conditions of the statechart
type ErrorCode int

const (
	// No error occurred
	ErrCodeNone ErrorCode = iota
	// State name is empty
	ErrCodeNameInvalid
	// State name contains a reserved delimiter
	ErrCodeNameInvalidCharacter
	// State name collides with a sibling
	ErrCodeNameNotUnique
	// Parent reference is missing
	ErrCodeParentMissing
	// Parent cannot own substates
	ErrCodeParentNotContext
	// Parent is not a hierarchical context
	ErrCodeParentNotHierarchical
	// Parent is not a concurrent state
	ErrCodeParentNotConcurrent
	// Parent already owns a start pseudostate
	ErrCodeParentHasStartState
	// Parent already owns a history pseudostate
	ErrCodeParentHasHistoryState
	// Timeout duration is not strictly positive
	ErrCodeTimeoutNotPositive
	// Source state already owns a timeout transition
	ErrCodeMultipleTimeouts
	// State does not reach the root of this graph
	ErrCodeNoTopLevel
	// Transition endpoints are not allowed
	ErrCodeInvalidTransition
	// Graph no longer accepts mutations
	ErrCodeGraphSealed
	// State was not found
	ErrCodeStateNotFound
	// Instance is not started
	ErrCodeMachineNotStarted
	// Instance is already started
	ErrCodeMachineAlreadyStarted
	// Action execution failed
	ErrCodeActionFailed
	// Guard evaluation failed
	ErrCodeGuardFailed
	// Configuration is invalid
	ErrCodeInvalidConfiguration
	// Completion transitions kept firing past the step limit
	ErrCodeCompletionLimit
)

// ConstructionError is returned by graph construction calls
type ConstructionError struct {
	Code    ErrorCode
	State   string
	Parent  string
	Message string
}

func (e *ConstructionError) Error() string {
	if e.Parent != "" {
		return fmt.Sprintf("construction error [%s in %s]: %s", e.State, e.Parent, e.Message)
	}
	return fmt.Sprintf("construction error [%s]: %s", e.State, e.Message)
}

// NewConstructionError creates a new construction error
func NewConstructionError(code ErrorCode, state, parent, message string) *ConstructionError {
	return &ConstructionError{
		Code:    code,
		State:   state,
		Parent:  parent,
		Message: message,
	}
}

// StateError represents lookup errors
type StateError struct {
	Code    ErrorCode
	Path    string
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state error [%s]: %s", e.Path, e.Message)
}

// NewStateNotFoundError creates a new state not found error
func NewStateNotFoundError(path string) *StateError {
	return &StateError{
		Code:    ErrCodeStateNotFound,
		Path:    path,
		Message: fmt.Sprintf("state '%s' not found", path),
	}
}

// NewStateError creates a new state error with custom values
func NewStateError(code ErrorCode, path string, message string) *StateError {
	return &StateError{
		Code:    code,
		Path:    path,
		Message: message,
	}
}

// GuardError represents a guard that panicked during evaluation
type GuardError struct {
	From        string
	To          string
	Event       string
	OriginalErr error
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("guard failed [%s->%s on %s]: %v", e.From, e.To, e.Event, e.OriginalErr)
}

func (e *GuardError) Unwrap() error {
	return e.OriginalErr
}

// NewGuardError creates a new guard error
func NewGuardError(from, to, event string, err error) *GuardError {
	return &GuardError{
		From:        from,
		To:          to,
		Event:       event,
		OriginalErr: err,
	}
}

// ConfigurationError represents invalid runtime setup
type ConfigurationError struct {
	Component string
	Issue     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Issue)
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(component, issue string) *ConfigurationError {
	return &ConfigurationError{
		Component: component,
		Issue:     issue,
	}
}

// MachineError represents instance lifecycle errors
type MachineError struct {
	Code      ErrorCode
	Operation string
	Message   string
}

func (e *MachineError) Error() string {
	return fmt.Sprintf("machine error during %s: %s", e.Operation, e.Message)
}

// NewMachineNotStartedError creates a new machine not started error
func NewMachineNotStartedError(operation string) *MachineError {
	return &MachineError{
		Code:      ErrCodeMachineNotStarted,
		Operation: operation,
		Message:   "instance is not started",
	}
}

// NewMachineError creates a new machine error
func NewMachineError(code ErrorCode, operation string, message string) *MachineError {
	return &MachineError{
		Code:      code,
		Operation: operation,
		Message:   message,
	}
}

// ActionError represents action execution errors
type ActionError struct {
	Action      string
	State       string
	OriginalErr error
}

func (e *ActionError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("action '%s' failed in state '%s': %v", e.Action, e.State, e.OriginalErr)
	}
	return fmt.Sprintf("action '%s' failed in state '%s'", e.Action, e.State)
}

func (e *ActionError) Unwrap() error {
	return e.OriginalErr
}

// NewActionError creates a new action execution error
func NewActionError(action, state string, err error) *ActionError {
	return &ActionError{
		Action:      action,
		State:       state,
		OriginalErr: err,
	}
}

// IsConstructionError checks if an error is a ConstructionError
func IsConstructionError(err error) bool {
	var target *ConstructionError
	return errors.As(err, &target)
}

// IsStateError checks if an error is a StateError
func IsStateError(err error) bool {
	var target *StateError
	return errors.As(err, &target)
}

// IsGuardError checks if an error is a GuardError
func IsGuardError(err error) bool {
	var target *GuardError
	return errors.As(err, &target)
}

// IsConfigurationError checks if an error is a ConfigurationError
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsMachineError checks if an error is a MachineError
func IsMachineError(err error) bool {
	var target *MachineError
	return errors.As(err, &target)
}

// IsActionError checks if an error is an ActionError
func IsActionError(err error) bool {
	var target *ActionError
	return errors.As(err, &target)
}

// GetErrorCode returns the error code for known error types
func GetErrorCode(err error) ErrorCode {
	var (
		constructionErr *ConstructionError
		stateErr        *StateError
		machineErr      *MachineError
		guardErr        *GuardError
		configErr       *ConfigurationError
		actionErr       *ActionError
	)

	switch {
	case errors.As(err, &constructionErr):
		return constructionErr.Code
	case errors.As(err, &stateErr):
		return stateErr.Code
	case errors.As(err, &machineErr):
		return machineErr.Code
	case errors.As(err, &guardErr):
		return ErrCodeGuardFailed
	case errors.As(err, &configErr):
		return ErrCodeInvalidConfiguration
	case errors.As(err, &actionErr):
		return ErrCodeActionFailed
	default:
		return ErrCodeNone
	}
}
