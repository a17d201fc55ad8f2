package statechart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrors_ErrorCode(t *testing.T) {
	testCases := []ErrorCode{
		ErrCodeNone,
		ErrCodeNameInvalid,
		ErrCodeNameInvalidCharacter,
		ErrCodeNameNotUnique,
		ErrCodeParentMissing,
		ErrCodeParentNotContext,
		ErrCodeParentNotHierarchical,
		ErrCodeParentNotConcurrent,
		ErrCodeParentHasStartState,
		ErrCodeParentHasHistoryState,
		ErrCodeTimeoutNotPositive,
		ErrCodeMultipleTimeouts,
		ErrCodeNoTopLevel,
		ErrCodeInvalidTransition,
		ErrCodeGraphSealed,
		ErrCodeStateNotFound,
		ErrCodeMachineNotStarted,
		ErrCodeMachineAlreadyStarted,
		ErrCodeActionFailed,
		ErrCodeGuardFailed,
		ErrCodeInvalidConfiguration,
		ErrCodeCompletionLimit,
	}

	for i, code := range testCases {
		if int(code) != i {
			t.Errorf("Expected error code %d to have value %d", i, int(code))
		}
	}
}

func TestConstructionError(t *testing.T) {
	err := NewConstructionError(ErrCodeNameNotUnique, "A", "H1", "name already used by a sibling")

	if !strings.Contains(err.Error(), "A in H1") {
		t.Errorf("Expected state and parent in error string, got %q", err.Error())
	}

	err = NewConstructionError(ErrCodeNameInvalid, "", "", "name must not be empty")
	if strings.Contains(err.Error(), " in ") {
		t.Errorf("Expected no parent in error string, got %q", err.Error())
	}

	if !IsConstructionError(fmt.Errorf("building: %w", err)) {
		t.Error("Expected wrapped construction error to be detected")
	}
	if GetErrorCode(fmt.Errorf("building: %w", err)) != ErrCodeNameInvalid {
		t.Error("Expected error code to survive wrapping")
	}
}

func TestStateError(t *testing.T) {
	err := NewStateNotFoundError("H1:H2:X")

	if err.Code != ErrCodeStateNotFound {
		t.Errorf("Expected error code %v, got %v", ErrCodeStateNotFound, err.Code)
	}
	if !strings.Contains(err.Error(), "H1:H2:X") {
		t.Error("Expected error string to contain the path")
	}

	custom := NewStateError(ErrCodeInvalidConfiguration, "B(", "expected region")
	if custom.Message != "expected region" || custom.Path != "B(" {
		t.Error("Expected custom values to be kept")
	}
	if !IsStateError(custom) {
		t.Error("Expected IsStateError to detect state error")
	}
}

func TestGuardError(t *testing.T) {
	cause := errors.New("guard panic: boom")
	err := NewGuardError("A", "B", "go", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected guard error to unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "A->B on go") {
		t.Errorf("Unexpected error string %q", err.Error())
	}
	if GetErrorCode(err) != ErrCodeGuardFailed {
		t.Error("Expected guard failed code")
	}
	if !IsGuardError(err) {
		t.Error("Expected IsGuardError to detect guard error")
	}
}

func TestActionError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewActionError("entry", "H1:A", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected action error to unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Unexpected error string %q", err.Error())
	}
	if GetErrorCode(err) != ErrCodeActionFailed {
		t.Error("Expected action failed code")
	}

	bare := NewActionError("exit", "A", nil)
	if !strings.Contains(bare.Error(), "'exit' failed in state 'A'") {
		t.Errorf("Unexpected error string %q", bare.Error())
	}
}

func TestMachineAndConfigurationErrors(t *testing.T) {
	notStarted := NewMachineNotStartedError("Dispatch")
	if notStarted.Code != ErrCodeMachineNotStarted {
		t.Error("Expected not started code")
	}
	if !IsMachineError(notStarted) {
		t.Error("Expected IsMachineError to detect machine error")
	}

	cfg := NewConfigurationError("queue", "capacity must be positive")
	if GetErrorCode(cfg) != ErrCodeInvalidConfiguration {
		t.Error("Expected invalid configuration code")
	}
	if !IsConfigurationError(cfg) {
		t.Error("Expected IsConfigurationError to detect configuration error")
	}

	if GetErrorCode(errors.New("plain")) != ErrCodeNone {
		t.Error("Expected no code for plain errors")
	}
	if IsActionError(cfg) || IsGuardError(cfg) || IsStateError(cfg) {
		t.Error("Expected no cross detection")
	}
}

func TestErrors_ActionFailureAbortsDispatch(t *testing.T) {
	b := NewBuilder("failing")
	root := b.Root()
	root.Start("start").To("A")
	root.State("A").To("B").On("go")
	root.State("B", WithEntry(func(ctx Context) error {
		return errors.New("refused")
	}))
	g := b.MustBuild()

	observer := NewTestObserver()
	in := StartInstance(t, g, WithObserver(observer))

	consumed, err := in.Dispatch(context.Background(), NewEvent("go", nil))
	if !consumed {
		t.Error("Expected the event to be reported as consumed")
	}
	if !IsActionError(err) {
		t.Fatalf("Expected action error, got %v", err)
	}

	var actionErr *ActionError
	errors.As(err, &actionErr)
	if actionErr.Action != "entry" || actionErr.State != "B" {
		t.Errorf("Unexpected action error %+v", actionErr)
	}

	if len(observer.Errors) != 1 {
		t.Errorf("Expected 1 error notification, got %d", len(observer.Errors))
	}
}

func TestErrors_PanickingActionAndGuard(t *testing.T) {
	b := NewBuilder("panics")
	root := b.Root()
	root.Start("start").To("A")
	a := root.State("A")
	a.To("B").On("guarded").When(func(ctx Context) bool {
		panic("guard exploded")
	})
	a.To("B").On("acting").Do(func(ctx Context) error {
		panic("action exploded")
	})
	root.State("B")
	g := b.MustBuild()

	in := StartInstance(t, g)

	_, err := in.Dispatch(context.Background(), NewEvent("guarded", nil))
	if !IsGuardError(err) {
		t.Errorf("Expected guard error, got %v", err)
	}
	if !strings.Contains(err.Error(), "guard exploded") {
		t.Errorf("Expected panic value in error, got %v", err)
	}
	AssertConfiguration(t, in, "A")

	_, err = in.Dispatch(context.Background(), NewEvent("acting", nil))
	if !IsActionError(err) {
		t.Errorf("Expected action error, got %v", err)
	}
	if !strings.Contains(err.Error(), "action exploded") {
		t.Errorf("Expected panic value in error, got %v", err)
	}
}
