// Package retry provides retry state management for agent operations.
//
// This package tracks attempts per agent operation, decides whether a failed
// operation should be retried, and keeps the retry history so the supervisor
// can report how many attempts each agent needed.
package retry

import (
	"context"
	"sync"
	"time"

	"github.com/mkykode/agentcrew/internal/errors"
)

// Policy controls how failed operations are retried.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// Backoff is the pause before each retry.
	Backoff time.Duration
}

// State tracks retry attempts for one agent operation.
type State struct {
	Key        string `json:"key"`
	Attempts   int    `json:"attempts"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
	LastError  string `json:"last_error,omitempty"`
	Succeeded  bool   `json:"succeeded,omitempty"`
}

// Key builds the state key for an operation on an agent.
func Key(agentID, op string) string {
	return agentID + "/" + op
}

// Manager manages retry state for agent operations.
// It is thread-safe and can be used concurrently.
type Manager struct {
	policy Policy

	mu     sync.RWMutex
	states map[string]*State
}

// NewManager creates a new retry manager.
func NewManager(policy Policy) *Manager {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	return &Manager{
		policy: policy,
		states: make(map[string]*State),
	}
}

// Policy returns the manager's retry policy.
func (m *Manager) Policy() Policy {
	return m.policy
}

// Do runs fn until it succeeds, fails with a non-retryable error, the policy
// is exhausted, or ctx is done. It returns the number of attempts made and
// the last error.
func (m *Manager) Do(ctx context.Context, key string, fn func(ctx context.Context) error) (int, error) {
	m.startState(key)

	for {
		err := fn(ctx)
		m.RecordAttempt(key, err)
		state := m.GetState(key)

		if err == nil || !errors.IsRetryable(err) || !m.ShouldRetry(key) {
			return state.Attempts, err
		}

		if m.policy.Backoff > 0 {
			timer := time.NewTimer(m.policy.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return state.Attempts, err
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return state.Attempts, err
		}
	}
}

// startState replaces any previous state for key with a fresh one.
func (m *Manager) startState(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[key] = &State{
		Key:        key,
		MaxRetries: m.policy.MaxRetries,
	}
}

// GetState returns a copy of the retry state for key, or nil if not found.
func (m *Manager) GetState(key string) *State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[key]
	if !ok {
		return nil
	}
	stateCopy := *state
	return &stateCopy
}

// ShouldRetry returns whether the operation under key may be retried.
func (m *Manager) ShouldRetry(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.states[key]
	if !exists {
		return false
	}
	return state.RetryCount < state.MaxRetries && !state.Succeeded
}

// RecordAttempt records the outcome of one attempt. A nil err marks the
// operation succeeded.
func (m *Manager) RecordAttempt(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.states[key]
	if !exists {
		return
	}

	state.Attempts++
	state.RetryCount = state.Attempts - 1
	if err == nil {
		state.Succeeded = true
		state.LastError = ""
		return
	}
	state.LastError = err.Error()
}

// Reset clears the retry state for key.
func (m *Manager) Reset(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, key)
}
