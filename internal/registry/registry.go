// Package registry tracks the live agents of a deployment.
//
// The Registry is the single source of truth for which agents exist. It holds
// no lifecycle logic: agents own their status, the registry owns identity.
package registry

import (
	"iter"
	"slices"
	"sync"

	"github.com/mkykode/agentcrew/internal/agent"
	"github.com/mkykode/agentcrew/internal/errors"
	"github.com/mkykode/agentcrew/internal/logging"
)

// Registry maps agent ids to agents. Mutations are exclusive; lookups and
// enumeration run concurrently with each other.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*agent.Agent
	order  []string
	logger *logging.Logger
}

// New creates an empty Registry. A nil logger discards output.
func New(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Registry{
		agents: make(map[string]*agent.Agent),
		logger: logger,
	}
}

// Register adds a. It fails with errors.ErrDuplicateID if the id is taken.
func (r *Registry) Register(a *agent.Agent) error {
	if a == nil {
		return errors.NewValidationError("agent is required").WithField("agent")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[a.ID()]; exists {
		return errors.NewAlreadyExistsError("agent", a.ID())
	}

	r.agents[a.ID()] = a
	r.order = append(r.order, a.ID())
	r.logger.Debug("agent registered",
		"agent_id", a.ID(),
		"provider", a.Provider(),
		"total_agents", len(r.agents),
	)
	return nil
}

// Get returns the agent registered under id, or errors.ErrNotFound.
func (r *Registry) Get(id string) (*agent.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[id]
	if !ok {
		return nil, errors.NewNotFoundError("agent", id)
	}
	return a, nil
}

// Remove drops the agent registered under id, or returns errors.ErrNotFound.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[id]; !ok {
		return errors.NewNotFoundError("agent", id)
	}

	delete(r.agents, id)
	if i := slices.Index(r.order, id); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	r.logger.Debug("agent removed", "agent_id", id, "total_agents", len(r.agents))
	return nil
}

// List returns a sequence over the registered agents in registration order.
// Each iteration starts from the registry's state at that moment, so the
// sequence may be ranged over any number of times. Agents removed during
// iteration are skipped.
func (r *Registry) List() iter.Seq[*agent.Agent] {
	return func(yield func(*agent.Agent) bool) {
		r.mu.RLock()
		ids := slices.Clone(r.order)
		r.mu.RUnlock()

		for _, id := range ids {
			r.mu.RLock()
			a, ok := r.agents[id]
			r.mu.RUnlock()
			if !ok {
				continue
			}
			if !yield(a) {
				return
			}
		}
	}
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
