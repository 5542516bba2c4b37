package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "agent.created", "deployment.completed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeAgentCreated        = "agent.created"
	TypeAgentStatusChanged  = "agent.status_changed"
	TypeAgentResponded      = "agent.responded"
	TypeDeploymentStarted   = "deployment.started"
	TypeBatchCompleted      = "deployment.batch_completed"
	TypeDeploymentCompleted = "deployment.completed"
	TypeSupervisorShutdown  = "supervisor.shutdown"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Agent Lifecycle Events
// -----------------------------------------------------------------------------

// AgentCreatedEvent is emitted when the supervisor registers a new agent.
type AgentCreatedEvent struct {
	baseEvent
	DeploymentID string
	AgentID      string
	Provider     string
	WorktreePath string
}

// NewAgentCreatedEvent creates an AgentCreatedEvent.
func NewAgentCreatedEvent(deploymentID, agentID, provider, worktreePath string) AgentCreatedEvent {
	return AgentCreatedEvent{
		baseEvent:    newBaseEvent(TypeAgentCreated),
		DeploymentID: deploymentID,
		AgentID:      agentID,
		Provider:     provider,
		WorktreePath: worktreePath,
	}
}

// AgentStatusChangedEvent is emitted after every agent status transition.
// Events for one agent can be published out of order when transitions race;
// Seq is the agent's transition counter and orders them.
type AgentStatusChangedEvent struct {
	baseEvent
	AgentID string
	Seq     uint64
	From    string
	To      string
	Reason  string
}

// NewAgentStatusChangedEvent creates an AgentStatusChangedEvent.
func NewAgentStatusChangedEvent(agentID string, seq uint64, from, to, reason string) AgentStatusChangedEvent {
	return AgentStatusChangedEvent{
		baseEvent: newBaseEvent(TypeAgentStatusChanged),
		AgentID:   agentID,
		Seq:       seq,
		From:      from,
		To:        to,
		Reason:    reason,
	}
}

// AgentRespondedEvent is emitted when an agent's send settles.
type AgentRespondedEvent struct {
	baseEvent
	AgentID  string
	Success  bool
	Attempts int
	Error    string // Error message (if failed)
}

// NewAgentRespondedEvent creates an AgentRespondedEvent.
func NewAgentRespondedEvent(agentID string, success bool, attempts int, errMsg string) AgentRespondedEvent {
	return AgentRespondedEvent{
		baseEvent: newBaseEvent(TypeAgentResponded),
		AgentID:   agentID,
		Success:   success,
		Attempts:  attempts,
		Error:     errMsg,
	}
}

// -----------------------------------------------------------------------------
// Deployment Events
// -----------------------------------------------------------------------------

// Phase identifies a stage of a deployment.
type Phase string

const (
	PhaseInitialize Phase = "initialize"
	PhaseDispatch   Phase = "dispatch"
)

// DeploymentStartedEvent is emitted once a deployment passes validation.
type DeploymentStartedEvent struct {
	baseEvent
	DeploymentID   string
	AgentCount     int
	MaxConcurrency int // 0 means unbounded
}

// NewDeploymentStartedEvent creates a DeploymentStartedEvent.
func NewDeploymentStartedEvent(deploymentID string, agentCount, maxConcurrency int) DeploymentStartedEvent {
	return DeploymentStartedEvent{
		baseEvent:      newBaseEvent(TypeDeploymentStarted),
		DeploymentID:   deploymentID,
		AgentCount:     agentCount,
		MaxConcurrency: maxConcurrency,
	}
}

// BatchCompletedEvent is emitted after every batch of a phase settles.
type BatchCompletedEvent struct {
	baseEvent
	DeploymentID string
	Phase        Phase
	Batch        int // zero-based batch index within the phase
	Size         int
	Failed       int
}

// NewBatchCompletedEvent creates a BatchCompletedEvent.
func NewBatchCompletedEvent(deploymentID string, phase Phase, batch, size, failed int) BatchCompletedEvent {
	return BatchCompletedEvent{
		baseEvent:    newBaseEvent(TypeBatchCompleted),
		DeploymentID: deploymentID,
		Phase:        phase,
		Batch:        batch,
		Size:         size,
		Failed:       failed,
	}
}

// DeploymentCompletedEvent is emitted when Deploy returns a report.
type DeploymentCompletedEvent struct {
	baseEvent
	DeploymentID    string
	Succeeded       int
	Failed          int
	PeakConcurrency int
	Duration        time.Duration
}

// NewDeploymentCompletedEvent creates a DeploymentCompletedEvent.
func NewDeploymentCompletedEvent(deploymentID string, succeeded, failed, peak int, duration time.Duration) DeploymentCompletedEvent {
	return DeploymentCompletedEvent{
		baseEvent:       newBaseEvent(TypeDeploymentCompleted),
		DeploymentID:    deploymentID,
		Succeeded:       succeeded,
		Failed:          failed,
		PeakConcurrency: peak,
		Duration:        duration,
	}
}

// SupervisorShutdownEvent is emitted when the supervisor terminates all agents.
type SupervisorShutdownEvent struct {
	baseEvent
	Terminated int
	Errors     int
}

// NewSupervisorShutdownEvent creates a SupervisorShutdownEvent.
func NewSupervisorShutdownEvent(terminated, errs int) SupervisorShutdownEvent {
	return SupervisorShutdownEvent{
		baseEvent:  newBaseEvent(TypeSupervisorShutdown),
		Terminated: terminated,
		Errors:     errs,
	}
}
