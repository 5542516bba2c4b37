package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkykode/agentcrew/internal/errors"
)

// Status represents the lifecycle state of an agent.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusFailed     Status = "failed"
	StatusTerminated Status = "terminated"
)

// IsTerminal reports whether no further transitions are possible from s.
func (s Status) IsTerminal() bool {
	return s == StatusFailed || s == StatusTerminated
}

// validTransitions is the complete transition set. Terminate on a terminal
// agent is a no-op and not listed here.
var validTransitions = map[Status][]Status{
	StatusIdle:    {StatusRunning, StatusFailed, StatusTerminated},
	StatusRunning: {StatusPaused, StatusFailed, StatusTerminated},
	StatusPaused:  {StatusRunning, StatusFailed, StatusTerminated},
}

// CanTransition reports whether from -> to is part of the transition set.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Capability names a permission that gates which operations may be requested
// of an agent.
type Capability string

const (
	CapabilityCodeGeneration Capability = "codeGeneration"
	CapabilityFileOperations Capability = "fileOperations"
	CapabilityGitOperations  Capability = "gitOperations"
	CapabilityTerminalAccess Capability = "terminalAccess"
	CapabilityWebAccess      Capability = "webAccess"
)

// AllCapabilities returns every known capability in table order.
func AllCapabilities() []Capability {
	return []Capability{
		CapabilityCodeGeneration,
		CapabilityFileOperations,
		CapabilityGitOperations,
		CapabilityTerminalAccess,
		CapabilityWebAccess,
	}
}

// ParseCapability resolves a capability name case-insensitively.
func ParseCapability(name string) (Capability, error) {
	for _, c := range AllCapabilities() {
		if strings.EqualFold(string(c), name) {
			return c, nil
		}
	}
	return "", errors.NewValidationError("unknown capability").WithField("capability").WithValue(name)
}

// Capabilities is the immutable capability record of a provider variant.
type Capabilities struct {
	CodeGeneration bool `json:"code_generation"`
	FileOperations bool `json:"file_operations"`
	GitOperations  bool `json:"git_operations"`
	TerminalAccess bool `json:"terminal_access"`
	WebAccess      bool `json:"web_access"`
}

// Has reports whether the record grants c. Unknown capabilities are never granted.
func (c Capabilities) Has(capability Capability) bool {
	switch capability {
	case CapabilityCodeGeneration:
		return c.CodeGeneration
	case CapabilityFileOperations:
		return c.FileOperations
	case CapabilityGitOperations:
		return c.GitOperations
	case CapabilityTerminalAccess:
		return c.TerminalAccess
	case CapabilityWebAccess:
		return c.WebAccess
	default:
		return false
	}
}

// List returns the granted capabilities in table order.
func (c Capabilities) List() []Capability {
	var granted []Capability
	for _, capability := range AllCapabilities() {
		if c.Has(capability) {
			granted = append(granted, capability)
		}
	}
	return granted
}

// MessageType classifies an entry in an agent's message log.
type MessageType string

const (
	MessageInput  MessageType = "input"
	MessageOutput MessageType = "output"
	MessageError  MessageType = "error"
	MessageSystem MessageType = "system"
)

// Message is one immutable entry in an agent's append-only log.
type Message struct {
	ID        string      `json:"id"`
	AgentID   string      `json:"agent_id"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Type      MessageType `json:"type"`
}

func newMessage(agentID string, typ MessageType, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Content:   content,
		Timestamp: time.Now(),
		Type:      typ,
	}
}

// Transport carries an agent's traffic to its provider. Implementations are
// external collaborators: a subprocess, an HTTP client, or a test fake.
//
// Open and Send must honor ctx cancellation. Close is called at most once.
type Transport interface {
	Open(ctx context.Context) error
	Send(ctx context.Context, content string) (string, error)
	Close() error
}

// Transition describes one status change of an agent. Seq starts at 1 and
// increases by one with every transition of the same agent.
type Transition struct {
	AgentID string
	Seq     uint64
	From    Status
	To      Status
	Reason  string
	At      time.Time
}

func (t Transition) String() string {
	if t.Reason == "" {
		return fmt.Sprintf("%s -> %s", t.From, t.To)
	}
	return fmt.Sprintf("%s -> %s (%s)", t.From, t.To, t.Reason)
}

// Snapshot is a point-in-time, read-only view of an agent.
type Snapshot struct {
	ID           string       `json:"id"`
	Provider     string       `json:"provider"`
	Name         string       `json:"name,omitempty"`
	Model        string       `json:"model,omitempty"`
	Status       Status       `json:"status"`
	WorktreePath string       `json:"worktree_path"`
	Capabilities Capabilities `json:"capabilities"`
	CreatedAt    time.Time    `json:"created_at"`
	LastActive   time.Time    `json:"last_active"`
	MessageCount int          `json:"message_count"`
}

// NewID returns a fresh agent id of the form "<provider>-<8 hex chars>".
func NewID(provider string) string {
	return fmt.Sprintf("%s-%s", provider, uuid.NewString()[:8])
}
