// Package errors provides centralized error definitions and error handling utilities
// for agentcrew. It defines the sentinel errors of the agent lifecycle, typed errors
// that carry agent and session context, and classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - AgentError: a lifecycle operation rejected or failed on one agent
//   - TransportError: a provider transport call failed
//   - SessionError: session persistence failures
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or configuration
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewAgentError("pause", errors.ErrInvalidTransition).
//	    WithAgentID("claude-1a2b").WithStatus("idle")
//
//	err := errors.NewTransportError("claude", cause).WithRetryable(true)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrBusy) { ... }
//
//	var agentErr *errors.AgentError
//	if errors.As(err, &agentErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Agent lifecycle sentinel errors
var (
	// ErrInvalidTransition indicates the operation is illegal from the agent's current status.
	ErrInvalidTransition = New("invalid status transition")
	// ErrInvalidState indicates a message was sent to an agent that is not running.
	ErrInvalidState = New("agent is not running")
	// ErrBusy indicates another operation is already in flight on the agent.
	ErrBusy = New("agent is busy")
	// ErrUnsupportedCapability indicates the agent's provider lacks the requested capability.
	ErrUnsupportedCapability = New("unsupported capability")
	// ErrTransportFailure indicates the provider transport call failed.
	ErrTransportFailure = New("transport failure")
	// ErrCanceled indicates the operation was canceled, usually by terminate.
	ErrCanceled = New("operation canceled")
)

// Registry sentinel errors
var (
	// ErrDuplicateID indicates an agent with the same id is already registered.
	ErrDuplicateID = New("duplicate agent id")
	// ErrNotFound indicates no agent is registered under the id.
	ErrNotFound = New("agent not found")
)

// Dispatch and configuration sentinel errors
var (
	// ErrConcurrencyLimitExceeded indicates the in-flight bound was violated.
	// Batching prevents this from reaching callers.
	ErrConcurrencyLimitExceeded = New("concurrency limit exceeded")
	// ErrInvalidConfig indicates a malformed deployment or configuration.
	ErrInvalidConfig = New("invalid configuration")
	// ErrNoAgents indicates a deployment that requests zero agents.
	ErrNoAgents = New("no agents requested")
	// ErrUnknownProvider indicates a provider kind with no registered variant.
	ErrUnknownProvider = New("unknown provider")
)

// Session-related sentinel errors
var (
	// ErrSessionNotFound indicates that a session could not be found.
	ErrSessionNotFound = New("session not found")
	// ErrSessionLocked indicates that a session is locked by another process.
	ErrSessionLocked = New("session is locked")
	// ErrSessionCorrupted indicates that session data is corrupted.
	ErrSessionCorrupted = New("session data corrupted")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// CrewError is the base interface for all agentcrew errors.
type CrewError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// AgentError represents a lifecycle operation that was rejected or failed on
// one agent.
//
// Example:
//
//	err := errors.NewAgentError("send", errors.ErrInvalidState).WithAgentID("openai-1").WithStatus("paused")
//	fmt.Println(err) // "agent error [agent=openai-1, status=paused]: send: agent is not running"
type AgentError struct {
	baseError
	AgentID  string
	Provider string
	Status   string
}

// NewAgentError creates an AgentError for the named operation.
func NewAgentError(op string, cause error) *AgentError {
	return &AgentError{
		baseError: baseError{
			message:   op,
			cause:     cause,
			retryable: IsRetryable(cause),
		},
	}
}

// Op returns the operation that produced the error.
func (e *AgentError) Op() string {
	return e.message
}

// WithAgentID adds an agent ID to the error context.
func (e *AgentError) WithAgentID(id string) *AgentError {
	e.AgentID = id
	return e
}

// WithProvider adds the provider kind to the error context.
func (e *AgentError) WithProvider(provider string) *AgentError {
	e.Provider = provider
	return e
}

// WithStatus records the status the agent was in when the operation was attempted.
func (e *AgentError) WithStatus(status string) *AgentError {
	e.Status = status
	return e
}

// Error returns the formatted error message.
func (e *AgentError) Error() string {
	var parts []string
	if e.AgentID != "" {
		parts = append(parts, fmt.Sprintf("agent=%s", e.AgentID))
	}
	if e.Provider != "" {
		parts = append(parts, fmt.Sprintf("provider=%s", e.Provider))
	}
	if e.Status != "" {
		parts = append(parts, fmt.Sprintf("status=%s", e.Status))
	}

	prefix := "agent error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("agent error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *AgentError) Is(target error) bool {
	if _, ok := target.(*AgentError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TransportError represents a failed call into a provider transport. It always
// matches ErrTransportFailure.
//
// Example:
//
//	err := errors.NewTransportError("claude", io.ErrUnexpectedEOF).WithRetryable(true)
type TransportError struct {
	baseError
	Provider string
}

// NewTransportError creates a TransportError. Transport errors are not
// retryable unless marked otherwise.
func NewTransportError(provider string, cause error) *TransportError {
	return &TransportError{
		baseError: baseError{
			message:   "transport call failed",
			cause:     cause,
			retryable: false,
		},
		Provider: provider,
	}
}

// WithRetryable sets whether the error is retryable.
func (e *TransportError) WithRetryable(r bool) *TransportError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TransportError) Error() string {
	prefix := "transport error"
	if e.Provider != "" {
		prefix = fmt.Sprintf("transport error [provider=%s]", e.Provider)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *TransportError) Is(target error) bool {
	if _, ok := target.(*TransportError); ok {
		return true
	}
	if target == ErrTransportFailure {
		return true
	}
	return e.baseError.Is(target)
}

// SessionError represents errors related to session persistence.
//
// Example:
//
//	err := errors.NewSessionError("failed to load session", errors.ErrSessionNotFound)
//	err = err.WithSessionID("abc123")
//	fmt.Println(err) // "session error [session=abc123]: failed to load session: session not found"
type SessionError struct {
	baseError
	SessionID string
}

// NewSessionError creates a new SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			retryable: false,
		},
	}
}

// WithSessionID adds a session ID to the error context.
func (e *SessionError) WithSessionID(id string) *SessionError {
	e.SessionID = id
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	prefix := "session error"
	if e.SessionID != "" {
		prefix = fmt.Sprintf("session error [session=%s]", e.SessionID)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SessionError) Is(target error) bool {
	if _, ok := target.(*SessionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("agent", "claude-1a2b")
//	fmt.Println(err) // "agent 'claude-1a2b' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError. It wraps ErrNotFound.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:   fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			cause:     ErrNotFound,
			retryable: false,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
//
// Example:
//
//	err := errors.NewAlreadyExistsError("agent", "claude-1a2b")
//	fmt.Println(err) // "agent 'claude-1a2b' already exists"
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError. It wraps ErrDuplicateID.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:   fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			cause:     ErrDuplicateID,
			retryable: false,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or configuration. It always
// matches ErrInvalidConfig.
//
// Example:
//
//	err := errors.NewValidationError("count must be positive").WithField("agents[0].count").WithValue(0)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:   message,
			retryable: false,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidConfig {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. Only errors implementing CrewError can be
// retryable; the first one found in the chain decides.
//
// Example:
//
//	if errors.IsRetryable(err) {
//	    time.Sleep(backoff)
//	    return retry(operation)
//	}
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var crewErr CrewError
	if As(err, &crewErr) {
		if crewErr.IsRetryable() {
			return true
		}
		// An outer wrapper may not know the cause was transient.
		return IsRetryable(crewErr.Unwrap())
	}
	return false
}
