package errors

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// AgentError Tests
// -----------------------------------------------------------------------------

func TestAgentError(t *testing.T) {
	err := NewAgentError("send", ErrInvalidState).
		WithAgentID("openai-1").
		WithProvider("openai").
		WithStatus("paused")

	want := "agent error [agent=openai-1, provider=openai, status=paused]: send: agent is not running"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if err.Op() != "send" {
		t.Errorf("Op() = %q, want %q", err.Op(), "send")
	}
	if !errors.Is(err, ErrInvalidState) {
		t.Error("errors.Is(err, ErrInvalidState) = false, want true")
	}
	if errors.Is(err, ErrBusy) {
		t.Error("errors.Is(err, ErrBusy) = true, want false")
	}

	var agentErr *AgentError
	wrapped := fmt.Errorf("dispatch: %w", err)
	if !errors.As(wrapped, &agentErr) {
		t.Fatal("errors.As should find AgentError through wrapping")
	}
	if agentErr.AgentID != "openai-1" {
		t.Errorf("AgentID = %q, want %q", agentErr.AgentID, "openai-1")
	}
}

func TestAgentError_NoContext(t *testing.T) {
	err := NewAgentError("pause", nil)
	if err.Error() != "agent error: pause" {
		t.Errorf("Error() = %q, want %q", err.Error(), "agent error: pause")
	}
}

func TestAgentError_InheritsRetryable(t *testing.T) {
	transient := NewTransportError("claude", io.ErrUnexpectedEOF).WithRetryable(true)
	err := NewAgentError("send", transient)

	if !err.IsRetryable() {
		t.Error("AgentError wrapping a retryable transport error should be retryable")
	}
	if !errors.Is(err, ErrTransportFailure) {
		t.Error("AgentError should match ErrTransportFailure through its cause")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("AgentError should match the root cause")
	}
}

// -----------------------------------------------------------------------------
// TransportError Tests
// -----------------------------------------------------------------------------

func TestTransportError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewTransportError("google", cause)

	if !errors.Is(err, ErrTransportFailure) {
		t.Error("TransportError should always match ErrTransportFailure")
	}
	if !errors.Is(err, cause) {
		t.Error("TransportError should match its cause")
	}
	if err.IsRetryable() {
		t.Error("TransportError should not be retryable by default")
	}
	if !strings.Contains(err.Error(), "provider=google") {
		t.Errorf("Error() should mention provider: %q", err.Error())
	}

	err.WithRetryable(true)
	if !err.IsRetryable() {
		t.Error("WithRetryable(true) should make the error retryable")
	}
}

// -----------------------------------------------------------------------------
// SessionError Tests
// -----------------------------------------------------------------------------

func TestSessionError(t *testing.T) {
	err := NewSessionError("failed to load session", ErrSessionNotFound).WithSessionID("abc123")

	want := "session error [session=abc123]: failed to load session: session not found"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrSessionNotFound) {
		t.Error("SessionError should match its cause")
	}
	if !errors.Is(err, &SessionError{}) {
		t.Error("SessionError should match any *SessionError target")
	}
}

// -----------------------------------------------------------------------------
// Semantic Error Tests
// -----------------------------------------------------------------------------

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("agent", "claude-1")

	if err.Error() != "agent 'claude-1' not found" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}
}

func TestAlreadyExistsError(t *testing.T) {
	err := NewAlreadyExistsError("agent", "claude-1")

	if err.Error() != "agent 'claude-1' already exists" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrDuplicateID) {
		t.Error("AlreadyExistsError should match ErrDuplicateID")
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "message only",
			err:  NewValidationError("prompt is required"),
			want: "validation error: prompt is required",
		},
		{
			name: "with field and value",
			err:  NewValidationError("must be positive").WithField("agents[0].count").WithValue(0),
			want: "validation error [field=agents[0].count, value=0]: must be positive",
		},
		{
			name: "with cause",
			err:  NewValidationError("bad provider").WithCause(ErrUnknownProvider),
			want: "validation error: bad provider: unknown provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(tt.err, ErrInvalidConfig) {
				t.Error("ValidationError should match ErrInvalidConfig")
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Classification Tests
// -----------------------------------------------------------------------------

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"sentinel", ErrBusy, false},
		{"retryable transport", NewTransportError("claude", io.EOF).WithRetryable(true), true},
		{"fatal transport", NewTransportError("claude", io.EOF), false},
		{"wrapped retryable", fmt.Errorf("ctx: %w", NewTransportError("claude", io.EOF).WithRetryable(true)), true},
		{"agent error over retryable", NewAgentError("send", NewTransportError("openai", io.EOF).WithRetryable(true)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
