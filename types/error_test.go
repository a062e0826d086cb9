package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrModelInvocationFailure, "completion failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true)

	if GetErrorCode(err) != ErrModelInvocationFailure {
		t.Fatalf("expected code %s, got %s", ErrModelInvocationFailure, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestIsErrorCode_Wrapped(t *testing.T) {
	t.Parallel()

	inner := Errorf(ErrQueueFull, "queue is full (%d)", 100)
	wrapped := fmt.Errorf("submit: %w", inner)

	if !IsErrorCode(wrapped, ErrQueueFull) {
		t.Fatalf("expected wrapped error to carry %s", ErrQueueFull)
	}
	if IsErrorCode(wrapped, ErrUnknownTool) {
		t.Fatalf("unexpected code match")
	}
	if IsErrorCode(errors.New("plain"), ErrQueueFull) {
		t.Fatalf("plain error must not match")
	}
}
