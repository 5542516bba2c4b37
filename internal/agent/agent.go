// Package agent implements a single supervised coding-agent session.
//
// An Agent owns its status and serializes every transition behind one mutex.
// At most one suspending operation (Initialize or Send) is in flight per agent;
// a second one fails fast with errors.ErrBusy instead of queueing. Pause,
// Resume and Terminate never suspend and may be called while an operation is
// in flight.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mkykode/agentcrew/internal/errors"
	"github.com/mkykode/agentcrew/internal/logging"
)

// Config describes an agent to construct.
type Config struct {
	ID           string
	Provider     string
	Name         string
	Model        string
	WorktreePath string
	Capabilities Capabilities
	Transport    Transport
	Logger       *logging.Logger
}

// Agent is one supervised session bound to a provider and a worktree.
// It is safe for concurrent use.
type Agent struct {
	// immutable after New
	id           string
	provider     string
	name         string
	model        string
	worktreePath string
	capabilities Capabilities
	createdAt    time.Time
	transport    Transport
	logger       *logging.Logger

	mu         sync.Mutex
	status     Status
	busy       bool
	cancel     context.CancelFunc
	lastActive time.Time
	messages   []Message
	observer   func(Transition)
	seq        uint64

	closeOnce sync.Once
}

// New creates an idle agent.
func New(cfg Config) (*Agent, error) {
	if cfg.ID == "" {
		return nil, errors.NewValidationError("agent id is required").WithField("id")
	}
	if cfg.Provider == "" {
		return nil, errors.NewValidationError("agent provider is required").WithField("provider")
	}
	if cfg.Transport == nil {
		return nil, errors.NewValidationError("agent transport is required").WithField("transport")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	name := cfg.Name
	if name == "" {
		name = cfg.ID
	}

	now := time.Now()
	return &Agent{
		id:           cfg.ID,
		provider:     cfg.Provider,
		name:         name,
		model:        cfg.Model,
		worktreePath: cfg.WorktreePath,
		capabilities: cfg.Capabilities,
		createdAt:    now,
		transport:    cfg.Transport,
		logger:       logger.WithAgent(cfg.ID).WithProvider(cfg.Provider),
		status:       StatusIdle,
		lastActive:   now,
	}, nil
}

func (a *Agent) ID() string                 { return a.id }
func (a *Agent) Provider() string           { return a.provider }
func (a *Agent) Name() string               { return a.name }
func (a *Agent) Model() string              { return a.model }
func (a *Agent) WorktreePath() string       { return a.worktreePath }
func (a *Agent) Capabilities() Capabilities { return a.capabilities }
func (a *Agent) CreatedAt() time.Time       { return a.createdAt }

// Status returns the current status.
func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// LastActive returns the time of the last transition or delivered response.
func (a *Agent) LastActive() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastActive
}

// Messages returns a copy of the message log in creation order.
func (a *Agent) Messages() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Message, len(a.messages))
	copy(out, a.messages)
	return out
}

// Snapshot returns a read-only view of the agent.
func (a *Agent) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		ID:           a.id,
		Provider:     a.provider,
		Name:         a.name,
		Model:        a.model,
		Status:       a.status,
		WorktreePath: a.worktreePath,
		Capabilities: a.capabilities,
		CreatedAt:    a.createdAt,
		LastActive:   a.lastActive,
		MessageCount: len(a.messages),
	}
}

// SetObserver registers fn to be called after every status transition.
// fn runs outside the agent lock and may call back into the agent. When
// transitions race (Pause against Terminate), calls may arrive out of order;
// Transition.Seq gives the order in which they were applied.
func (a *Agent) SetObserver(fn func(Transition)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observer = fn
}

// Initialize opens the transport and moves the agent from idle to running.
// A transport failure moves the agent to failed.
func (a *Agent) Initialize(ctx context.Context) error {
	a.mu.Lock()
	if a.status != StatusIdle {
		err := a.opError("initialize", errors.ErrInvalidTransition)
		a.mu.Unlock()
		return err
	}
	if a.busy {
		err := a.opError("initialize", errors.ErrBusy)
		a.mu.Unlock()
		return err
	}
	opCtx := a.beginLocked(ctx)
	a.mu.Unlock()

	a.logger.Debug("opening transport")
	_, openErr := recovered(func() (struct{}, error) {
		return struct{}{}, a.transport.Open(opCtx)
	})

	a.mu.Lock()
	a.endLocked()

	if a.status == StatusTerminated {
		err := a.opError("initialize", errors.ErrCanceled)
		a.mu.Unlock()
		return err
	}

	if openErr != nil {
		if ctx.Err() != nil {
			// Caller gave up; the agent never left idle and may be initialized again.
			err := a.opError("initialize", fmt.Errorf("%w: %w", errors.ErrCanceled, ctx.Err()))
			a.mu.Unlock()
			return err
		}
		cause := a.asTransportError(openErr)
		a.appendLocked(MessageError, cause.Error())
		err := a.opError("initialize", cause)
		tr := a.transitionLocked(StatusFailed, "initialize failed")
		a.mu.Unlock()
		a.notify(tr)
		a.logger.Warn("initialize failed", "error", openErr.Error())
		return err
	}

	tr := a.transitionLocked(StatusRunning, "initialized")
	a.mu.Unlock()
	a.notify(tr)
	return nil
}

// Send delivers content to the provider and returns the response. It is valid
// only while running. A retryable transport failure leaves the agent running;
// any other transport failure moves it to failed.
func (a *Agent) Send(ctx context.Context, content string) (string, error) {
	return a.send(ctx, "send", content)
}

// Request is a capability-gated Send. If the provider lacks capability the
// call fails with errors.ErrUnsupportedCapability and status is unchanged.
func (a *Agent) Request(ctx context.Context, capability Capability, content string) (string, error) {
	if !a.capabilities.Has(capability) {
		a.mu.Lock()
		err := a.opError("request "+string(capability), errors.ErrUnsupportedCapability)
		a.mu.Unlock()
		return "", err
	}
	return a.send(ctx, "request "+string(capability), content)
}

func (a *Agent) send(ctx context.Context, op, content string) (string, error) {
	a.mu.Lock()
	if a.status != StatusRunning {
		err := a.opError(op, errors.ErrInvalidState)
		a.mu.Unlock()
		return "", err
	}
	if a.busy {
		err := a.opError(op, errors.ErrBusy)
		a.mu.Unlock()
		return "", err
	}
	a.appendLocked(MessageInput, content)
	opCtx := a.beginLocked(ctx)
	a.mu.Unlock()

	response, sendErr := recovered(func() (string, error) {
		return a.transport.Send(opCtx, content)
	})

	a.mu.Lock()
	a.endLocked()

	if a.status == StatusTerminated {
		err := a.opError(op, errors.ErrCanceled)
		a.mu.Unlock()
		return "", err
	}

	if sendErr != nil {
		if ctx.Err() != nil {
			err := a.opError(op, fmt.Errorf("%w: %w", errors.ErrCanceled, ctx.Err()))
			a.mu.Unlock()
			return "", err
		}
		cause := a.asTransportError(sendErr)
		a.appendLocked(MessageError, cause.Error())
		err := a.opError(op, cause)
		if cause.IsRetryable() {
			a.mu.Unlock()
			a.logger.Warn("send failed, agent still running", "error", sendErr.Error())
			return "", err
		}
		tr := a.transitionLocked(StatusFailed, op+" failed")
		a.mu.Unlock()
		a.notify(tr)
		a.logger.Warn("send failed", "error", sendErr.Error())
		return "", err
	}

	a.appendLocked(MessageOutput, response)
	a.lastActive = time.Now()
	a.mu.Unlock()
	return response, nil
}

// Pause moves a running agent to paused. An in-flight send completes and
// delivers its result; later sends fail with errors.ErrInvalidState.
func (a *Agent) Pause() error {
	return a.control("pause", StatusRunning, StatusPaused)
}

// Resume moves a paused agent back to running.
func (a *Agent) Resume() error {
	return a.control("resume", StatusPaused, StatusRunning)
}

func (a *Agent) control(op string, from, to Status) error {
	a.mu.Lock()
	if a.status != from {
		err := a.opError(op, errors.ErrInvalidTransition)
		a.mu.Unlock()
		return err
	}
	tr := a.transitionLocked(to, op)
	a.mu.Unlock()
	a.notify(tr)
	return nil
}

// Terminate stops the agent, cancels any in-flight operation and releases the
// transport. A failed agent stays failed but its transport is released.
// Terminating a terminal agent again is a no-op.
func (a *Agent) Terminate() error {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}

	var tr *Transition
	if !a.status.IsTerminal() {
		tr = a.transitionLocked(StatusTerminated, "terminated")
	}
	a.mu.Unlock()

	a.notify(tr)
	return a.closeTransport()
}

// closeTransport closes the transport once. Only the call that performed the
// close reports its error.
func (a *Agent) closeTransport() error {
	var closeErr error
	a.closeOnce.Do(func() {
		if err := a.transport.Close(); err != nil {
			a.logger.Warn("failed to close transport", "error", err.Error())
			a.mu.Lock()
			closeErr = a.opError("terminate", a.asTransportError(err))
			a.mu.Unlock()
		}
	})
	return closeErr
}

// beginLocked marks an operation in flight and returns its context, which
// Terminate cancels.
func (a *Agent) beginLocked(ctx context.Context) context.Context {
	opCtx, cancel := context.WithCancel(ctx)
	a.busy = true
	a.cancel = cancel
	return opCtx
}

func (a *Agent) endLocked() {
	if a.cancel != nil {
		a.cancel()
	}
	a.busy = false
	a.cancel = nil
}

func (a *Agent) transitionLocked(to Status, reason string) *Transition {
	from := a.status
	if !CanTransition(from, to) {
		// Every caller checks the source status first.
		panic(fmt.Sprintf("agent %s: illegal transition %s -> %s", a.id, from, to))
	}
	now := time.Now()
	a.status = to
	a.lastActive = now
	a.seq++
	tr := &Transition{AgentID: a.id, Seq: a.seq, From: from, To: to, Reason: reason, At: now}
	a.appendLocked(MessageSystem, "status changed: "+tr.String())
	a.logger.Debug("status changed", "from", string(from), "to", string(to), "reason", reason)
	return tr
}

func (a *Agent) notify(tr *Transition) {
	if tr == nil {
		return
	}
	a.mu.Lock()
	observer := a.observer
	a.mu.Unlock()
	if observer != nil {
		observer(*tr)
	}
}

func (a *Agent) appendLocked(typ MessageType, content string) {
	a.messages = append(a.messages, newMessage(a.id, typ, content))
}

func (a *Agent) opError(op string, cause error) *errors.AgentError {
	return errors.NewAgentError(op, cause).
		WithAgentID(a.id).
		WithProvider(a.provider).
		WithStatus(string(a.status))
}

// recovered runs a transport call and reports a panic as a non-retryable
// error, so a misbehaving transport cannot leave the agent busy.
func recovered[T any](call func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panicked: %v", r)
		}
	}()
	return call()
}

// asTransportError normalizes a transport failure so that it always matches
// errors.ErrTransportFailure. Transports mark retryable failures themselves.
func (a *Agent) asTransportError(err error) *errors.TransportError {
	var te *errors.TransportError
	if errors.As(err, &te) {
		return te
	}
	return errors.NewTransportError(a.provider, err)
}
