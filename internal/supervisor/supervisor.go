package supervisor

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/mkykode/agentcrew/internal/agent"
	"github.com/mkykode/agentcrew/internal/config"
	"github.com/mkykode/agentcrew/internal/deployment"
	"github.com/mkykode/agentcrew/internal/errors"
	"github.com/mkykode/agentcrew/internal/event"
	"github.com/mkykode/agentcrew/internal/logging"
	"github.com/mkykode/agentcrew/internal/provider"
	"github.com/mkykode/agentcrew/internal/registry"
	"github.com/mkykode/agentcrew/internal/retry"
)

// Options configures a Supervisor. Zero values get working defaults: a fresh
// registry and bus, the built-in catalog, the echo transport and no logging.
type Options struct {
	Registry         *registry.Registry
	Catalog          *provider.Catalog
	TransportFactory provider.TransportFactory
	// Config supplies per-provider command, model and key settings. May be nil.
	Config *config.Config
	Bus    *event.Bus
	Logger *logging.Logger

	// WorktreeRoot is the directory under which each agent gets <root>/<id>.
	// Empty leaves agents without a worktree path.
	WorktreeRoot string
	// MaxConcurrency applies when a deployment does not set its own bound.
	// 0 means unbounded.
	MaxConcurrency int
	// MaxAgents caps the agents one deployment may request. 0 means no cap.
	MaxAgents int
	Retry     retry.Policy
}

// OptionsFromConfig derives supervisor options from cfg. baseDir anchors
// relative paths. Registry, Bus and Logger are left for the caller.
func OptionsFromConfig(cfg *config.Config, baseDir string) (Options, error) {
	factory, err := provider.NewTransportFactory(cfg.Crew.Transport)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Catalog:          provider.DefaultCatalog(),
		TransportFactory: factory,
		Config:           cfg,
		WorktreeRoot:     cfg.Paths.ResolveWorktreeDir(baseDir),
		MaxConcurrency:   cfg.Crew.MaxConcurrency,
		MaxAgents:        cfg.Crew.MaxAgents,
		Retry: retry.Policy{
			MaxRetries: cfg.Crew.MaxRetries,
			Backoff:    cfg.Crew.RetryBackoff(),
		},
	}, nil
}

// Supervisor materializes deployments into agents, drives them through
// initialize and dispatch in bounded batches, and routes control operations
// to individual agents through the registry.
type Supervisor struct {
	registry       *registry.Registry
	catalog        *provider.Catalog
	factory        provider.TransportFactory
	cfg            *config.Config
	bus            *event.Bus
	logger         *logging.Logger
	worktreeRoot   string
	maxConcurrency int
	maxAgents      int
	retries        *retry.Manager
}

// New creates a Supervisor.
func New(opts Options) *Supervisor {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	s := &Supervisor{
		registry:       opts.Registry,
		catalog:        opts.Catalog,
		factory:        opts.TransportFactory,
		cfg:            opts.Config,
		bus:            opts.Bus,
		logger:         logger,
		worktreeRoot:   opts.WorktreeRoot,
		maxConcurrency: max(opts.MaxConcurrency, 0),
		maxAgents:      max(opts.MaxAgents, 0),
		retries:        retry.NewManager(opts.Retry),
	}
	if s.registry == nil {
		s.registry = registry.New(logger)
	}
	if s.catalog == nil {
		s.catalog = provider.DefaultCatalog()
	}
	if s.factory == nil {
		s.factory = provider.EchoFactory(0)
	}
	if s.bus == nil {
		s.bus = event.NewBus(logger)
	}
	return s
}

// Registry returns the registry the supervisor tracks agents in.
func (s *Supervisor) Registry() *registry.Registry { return s.registry }

// Bus returns the bus lifecycle events are published on.
func (s *Supervisor) Bus() *event.Bus { return s.bus }

// -----------------------------------------------------------------------------
// Deploy
// -----------------------------------------------------------------------------

// run carries the state of one Deploy call.
type run struct {
	id     string
	gate   *gate
	limit  int
	report *Report
	logger *logging.Logger
}

// Deploy validates cfg, creates and registers its agents, initializes them
// in batches and then sends cfg.Prompt to every running agent in batches.
//
// Configuration problems abort before any agent exists. Per-agent failures,
// panics included, are recorded in that agent's Outcome and never abort the
// deployment. Agents stay registered after Deploy returns; callers end them
// with Terminate or Shutdown.
func (s *Supervisor) Deploy(ctx context.Context, cfg *deployment.Config) (*Report, error) {
	if cfg == nil {
		return nil, errors.NewValidationError("deployment is required").WithCause(errors.ErrNoAgents)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	variants, err := s.resolve(cfg)
	if err != nil {
		return nil, err
	}
	capability, err := cfg.RequiredCapability()
	if err != nil {
		return nil, err
	}

	limit := cfg.MaxConcurrency
	if limit == 0 {
		limit = s.maxConcurrency
	}

	id := uuid.NewString()
	r := &run{
		id:     id,
		gate:   newGate(limit),
		limit:  limit,
		logger: s.logger.WithDeployment(id),
	}

	agents, err := s.materialize(r, cfg, variants)
	if err != nil {
		return nil, err
	}

	r.report = &Report{
		DeploymentID:   r.id,
		Prompt:         cfg.Prompt,
		Outcomes:       make([]Outcome, len(agents)),
		MaxConcurrency: limit,
		StartedAt:      time.Now(),
	}
	all := make([]int, len(agents))
	for i, a := range agents {
		all[i] = i
		r.report.Outcomes[i] = Outcome{
			AgentID:      a.ID(),
			Provider:     a.Provider(),
			WorktreePath: a.WorktreePath(),
		}
	}

	s.bus.Publish(event.NewDeploymentStartedEvent(r.id, len(agents), limit))
	r.logger.Info("deployment started", "agents", len(agents), "max_concurrency", limit)

	s.runPhase(ctx, r, event.PhaseInitialize, all, func(ctx context.Context, i int) error {
		return agents[i].Initialize(ctx)
	})

	if cfg.Prompt != "" {
		var ready []int
		for i, a := range agents {
			if r.report.Outcomes[i].Err != nil {
				continue
			}
			if status := a.Status(); status != agent.StatusRunning {
				r.report.Outcomes[i].Err = errors.NewAgentError(string(event.PhaseDispatch), errors.ErrInvalidState).
					WithAgentID(a.ID()).
					WithProvider(a.Provider()).
					WithStatus(string(status))
				continue
			}
			ready = append(ready, i)
		}

		s.runPhase(ctx, r, event.PhaseDispatch, ready, func(ctx context.Context, i int) error {
			return s.dispatch(ctx, r, agents[i], capability, cfg.Prompt, &r.report.Outcomes[i])
		})
	}

	for i, a := range agents {
		r.report.Outcomes[i].Status = a.Status()
	}
	r.report.PeakConcurrency = r.gate.highWater()
	r.report.Duration = time.Since(r.report.StartedAt)

	s.bus.Publish(event.NewDeploymentCompletedEvent(r.id, r.report.Succeeded(), r.report.Failed(),
		r.report.PeakConcurrency, r.report.Duration))
	r.logger.Info("deployment completed",
		"succeeded", r.report.Succeeded(),
		"failed", r.report.Failed(),
		"peak_concurrency", r.report.PeakConcurrency,
		"duration_ms", r.report.Duration.Milliseconds(),
	)
	return r.report, nil
}

// resolve maps every requested provider onto a catalog variant and enforces
// the agent cap.
func (s *Supervisor) resolve(cfg *deployment.Config) ([]provider.Variant, error) {
	variants := make([]provider.Variant, len(cfg.Agents))
	for i, ac := range cfg.Agents {
		v, err := s.catalog.Lookup(deployment.NormalizeProvider(ac.Provider))
		if err != nil {
			return nil, err
		}
		variants[i] = v
	}

	if total := cfg.TotalAgents(); s.maxAgents > 0 && total > s.maxAgents {
		return nil, errors.NewValidationError(fmt.Sprintf("deployment requests %d agents, limit is %d", total, s.maxAgents)).
			WithField("crew.max_agents").
			WithValue(total)
	}
	return variants, nil
}

// materialize builds every agent with its transport and registers them.
// Either all agents are registered or none are.
func (s *Supervisor) materialize(r *run, cfg *deployment.Config, variants []provider.Variant) ([]*agent.Agent, error) {
	var built []*agent.Agent
	discard := func() {
		for _, a := range built {
			_ = a.Terminate()
		}
	}

	for i, ac := range cfg.Agents {
		v := variants[i]
		for n := 1; n <= ac.Count; n++ {
			id := agent.NewID(string(v.Kind))
			worktree := ""
			if s.worktreeRoot != "" {
				worktree = filepath.Join(s.worktreeRoot, id)
			}

			opts := provider.OptionsFromConfig(s.cfg, v.Kind, provider.TransportOptions{
				AgentID:      id,
				WorktreePath: worktree,
				Model:        ac.Model,
				APIKey:       ac.APIKey,
				Logger:       r.logger.WithAgent(id),
			})
			transport, err := s.factory(v, opts)
			if err != nil {
				discard()
				return nil, err
			}

			a, err := agent.New(agent.Config{
				ID:           id,
				Provider:     string(v.Kind),
				Name:         fmt.Sprintf("%s #%d", v.DisplayName, n),
				Model:        opts.Model,
				WorktreePath: worktree,
				Capabilities: v.Capabilities,
				Transport:    transport,
				Logger:       r.logger,
			})
			if err != nil {
				_ = transport.Close()
				discard()
				return nil, err
			}
			built = append(built, a)
		}
	}

	for i, a := range built {
		if err := s.registry.Register(a); err != nil {
			for _, registered := range built[:i] {
				_ = s.registry.Remove(registered.ID())
			}
			discard()
			return nil, err
		}
	}

	for _, a := range built {
		a.SetObserver(s.observe)
		s.bus.Publish(event.NewAgentCreatedEvent(r.id, a.ID(), a.Provider(), a.WorktreePath()))
	}
	return built, nil
}

// runPhase applies op to the agents at idx in batches of at most r.limit.
// Each batch runs concurrently and settles before the next one starts.
func (s *Supervisor) runPhase(ctx context.Context, r *run, phase event.Phase, idx []int, op func(context.Context, int) error) {
	for b, batch := range batches(idx, r.limit) {
		if err := ctx.Err(); err != nil {
			for _, i := range batch {
				s.fail(r, i, errors.NewAgentError(string(phase), fmt.Errorf("%w: %w", errors.ErrCanceled, err)).
					WithAgentID(r.report.Outcomes[i].AgentID).
					WithProvider(r.report.Outcomes[i].Provider))
			}
			s.bus.Publish(event.NewBatchCompletedEvent(r.id, phase, b, len(batch), len(batch)))
			continue
		}

		var failed atomic.Int64
		p := pool.New().WithMaxGoroutines(len(batch))
		for _, i := range batch {
			p.Go(func() {
				if err := r.guard(phase, r.report.Outcomes[i].AgentID, func() error { return op(ctx, i) }); err != nil {
					failed.Add(1)
					s.fail(r, i, err)
				}
			})
		}
		p.Wait()

		s.bus.Publish(event.NewBatchCompletedEvent(r.id, phase, b, len(batch), int(failed.Load())))
		r.logger.Debug("batch completed",
			"phase", string(phase),
			"batch", b,
			"size", len(batch),
			"failed", failed.Load(),
		)
	}
}

// fail records err as the agent's first failure. Each outcome is written
// only by the goroutine that owns its index.
func (s *Supervisor) fail(r *run, i int, err error) {
	o := &r.report.Outcomes[i]
	if o.Err == nil {
		o.Err = err
	}
	r.logger.Warn("agent operation failed", "agent_id", o.AgentID, "error", err.Error())
}

// guard runs fn inside the in-flight gate and converts a panic into an error
// attributed to the agent.
func (r *run) guard(phase event.Phase, agentID string, fn func() error) (err error) {
	if err := r.gate.enter(); err != nil {
		return err
	}
	defer r.gate.leave()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("agent operation panicked",
				"agent_id", agentID,
				"phase", string(phase),
				"panic", fmt.Sprint(p),
				"stack", string(debug.Stack()),
			)
			err = errors.NewAgentError(string(phase), fmt.Errorf("panic: %v", p)).WithAgentID(agentID)
		}
	}()
	return fn()
}

// dispatch sends prompt to a, retrying retryable transport failures. A
// non-empty capability gates the send with agent.Request.
func (s *Supervisor) dispatch(ctx context.Context, r *run, a *agent.Agent, capability agent.Capability, prompt string, out *Outcome) error {
	var response string
	attempts, err := s.retries.Do(ctx, retry.Key(a.ID(), string(event.PhaseDispatch)), func(ctx context.Context) error {
		var resp string
		var err error
		if capability != "" {
			resp, err = a.Request(ctx, capability, prompt)
		} else {
			resp, err = a.Send(ctx, prompt)
		}
		if err != nil {
			return err
		}
		response = resp
		return nil
	})

	out.Attempts = attempts
	out.Response = response

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	s.bus.Publish(event.NewAgentRespondedEvent(a.ID(), err == nil, attempts, errMsg))
	if attempts > 1 {
		r.logger.Info("dispatch retried", "agent_id", a.ID(), "attempts", attempts, "succeeded", err == nil)
	}
	return err
}

func (s *Supervisor) observe(tr agent.Transition) {
	s.bus.Publish(event.NewAgentStatusChangedEvent(tr.AgentID, tr.Seq, string(tr.From), string(tr.To), tr.Reason))
}

// -----------------------------------------------------------------------------
// Single-agent operations
// -----------------------------------------------------------------------------

// Send delivers content to one agent outside any deployment batch.
func (s *Supervisor) Send(ctx context.Context, id, content string) (string, error) {
	a, err := s.registry.Get(id)
	if err != nil {
		return "", err
	}
	return a.Send(ctx, content)
}

// Request is a capability-gated Send on one agent.
func (s *Supervisor) Request(ctx context.Context, id string, capability agent.Capability, content string) (string, error) {
	a, err := s.registry.Get(id)
	if err != nil {
		return "", err
	}
	return a.Request(ctx, capability, content)
}

// Pause pauses one agent. It is not batched.
func (s *Supervisor) Pause(id string) error {
	a, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	return a.Pause()
}

// Resume resumes one paused agent. It is not batched.
func (s *Supervisor) Resume(id string) error {
	a, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	return a.Resume()
}

// Terminate stops one agent, cancelling any in-flight operation, and removes
// it from the registry.
func (s *Supervisor) Terminate(id string) error {
	a, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	termErr := a.Terminate()
	if err := s.registry.Remove(id); err != nil && !errors.Is(err, errors.ErrNotFound) {
		return errors.Join(termErr, err)
	}
	s.retries.Reset(retry.Key(id, string(event.PhaseDispatch)))
	return termErr
}

// Status returns a snapshot of one agent.
func (s *Supervisor) Status(id string) (agent.Snapshot, error) {
	a, err := s.registry.Get(id)
	if err != nil {
		return agent.Snapshot{}, err
	}
	return a.Snapshot(), nil
}

// Statuses returns snapshots of every registered agent in registration order.
func (s *Supervisor) Statuses() []agent.Snapshot {
	var out []agent.Snapshot
	for a := range s.registry.List() {
		out = append(out, a.Snapshot())
	}
	return out
}

// Shutdown terminates every registered agent and empties the registry. It
// returns the joined termination errors.
func (s *Supervisor) Shutdown() error {
	var errs []error
	terminated := 0
	for a := range s.registry.List() {
		if err := s.Terminate(a.ID()); err != nil {
			errs = append(errs, err)
			continue
		}
		terminated++
	}

	s.bus.Publish(event.NewSupervisorShutdownEvent(terminated, len(errs)))
	s.logger.Info("supervisor shut down", "terminated", terminated, "errors", len(errs))
	return errors.Join(errs...)
}
