package supervisor

import (
	"time"

	"github.com/mkykode/agentcrew/internal/agent"
)

// Outcome is the result of one agent within a deployment.
type Outcome struct {
	AgentID      string
	Provider     string
	WorktreePath string
	Status       agent.Status
	// Response is the reply to the deployment prompt, if one was sent.
	Response string
	// Err is the first failure the agent hit: initialize or dispatch.
	Err error
	// Attempts counts dispatch attempts, retries included.
	Attempts int
}

// OK reports whether the agent came up and, if it was prompted, answered.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Report aggregates the outcomes of a deployment in agent creation order.
type Report struct {
	DeploymentID    string
	Prompt          string
	Outcomes        []Outcome
	PeakConcurrency int
	MaxConcurrency  int // effective bound, 0 means unbounded
	StartedAt       time.Time
	Duration        time.Duration
}

// Succeeded returns the number of agents without a failure.
func (r *Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of agents that hit a failure.
func (r *Report) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// ExitCode is 0 when every agent succeeded, 1 on partial failure and 2 when
// every agent failed.
func (r *Report) ExitCode() int {
	switch failed := r.Failed(); {
	case failed == 0:
		return 0
	case failed == len(r.Outcomes):
		return 2
	default:
		return 1
	}
}
