package provider

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mkykode/agentcrew/internal/agent"
	"github.com/mkykode/agentcrew/internal/config"
	"github.com/mkykode/agentcrew/internal/errors"
	"github.com/mkykode/agentcrew/internal/logging"
)

// Transport names accepted by NewTransportFactory.
const (
	TransportEcho    = "echo"
	TransportCommand = "command"
)

// TransportOptions carries the per-agent settings a transport is built with.
type TransportOptions struct {
	AgentID      string
	WorktreePath string
	Model        string
	Command      string
	APIKeyEnv    string
	APIKey       string // exported to the CLI as APIKeyEnv when both are set
	Logger       *logging.Logger
}

// TransportFactory builds the transport for one agent of variant v.
type TransportFactory func(v Variant, opts TransportOptions) (agent.Transport, error)

// NewTransportFactory returns the factory registered under name.
func NewTransportFactory(name string) (TransportFactory, error) {
	switch strings.ToLower(name) {
	case TransportEcho, "":
		return EchoFactory(0), nil
	case TransportCommand:
		return CommandFactory(), nil
	default:
		return nil, errors.NewValidationError("unknown transport").
			WithField("crew.transport").
			WithValue(name)
	}
}

// OptionsFromConfig fills command, model and key settings for kind from cfg.
// Explicit values already set in opts win.
func OptionsFromConfig(cfg *config.Config, kind Kind, opts TransportOptions) TransportOptions {
	if cfg == nil {
		return opts
	}
	pc, ok := cfg.Providers.Provider(string(kind))
	if !ok {
		return opts
	}
	if opts.Command == "" {
		opts.Command = pc.Command
	}
	if opts.Model == "" {
		opts.Model = pc.Model
	}
	if opts.APIKeyEnv == "" {
		opts.APIKeyEnv = pc.APIKeyEnv
	}
	return opts
}

// -----------------------------------------------------------------------------
// Echo transport
// -----------------------------------------------------------------------------

// EchoFactory returns a factory for offline echo transports. delay simulates
// provider latency and honors cancellation.
func EchoFactory(delay time.Duration) TransportFactory {
	return func(v Variant, opts TransportOptions) (agent.Transport, error) {
		return NewEchoTransport(v.DisplayName, delay), nil
	}
}

// EchoTransport answers every message locally with
// "<DisplayName> response to: <message>".
type EchoTransport struct {
	displayName string
	delay       time.Duration

	mu     sync.Mutex
	open   bool
	closed bool
}

// NewEchoTransport creates an EchoTransport.
func NewEchoTransport(displayName string, delay time.Duration) *EchoTransport {
	return &EchoTransport{displayName: displayName, delay: delay}
}

func (e *EchoTransport) Open(ctx context.Context) error {
	if err := e.wait(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.NewTransportError(e.displayName, fmt.Errorf("transport closed"))
	}
	e.open = true
	return nil
}

func (e *EchoTransport) Send(ctx context.Context, content string) (string, error) {
	e.mu.Lock()
	ready := e.open && !e.closed
	e.mu.Unlock()
	if !ready {
		return "", errors.NewTransportError(e.displayName, fmt.Errorf("transport not open"))
	}

	if err := e.wait(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s response to: %s", e.displayName, content), nil
}

func (e *EchoTransport) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = false
	e.closed = true
	return nil
}

func (e *EchoTransport) wait(ctx context.Context) error {
	if e.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(e.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// -----------------------------------------------------------------------------
// Command transport
// -----------------------------------------------------------------------------

// commandWaitDelay bounds how long a canceled command may keep its output
// pipes open through grandchildren.
const commandWaitDelay = 2 * time.Second

// CommandFactory returns a factory for transports that run the provider CLI.
func CommandFactory() TransportFactory {
	return func(v Variant, opts TransportOptions) (agent.Transport, error) {
		return NewCommandTransport(v, opts)
	}
}

// CommandTransport runs the provider CLI once per message inside the agent's
// worktree and returns its trimmed stdout.
type CommandTransport struct {
	variant Variant
	opts    TransportOptions
	logger  *logging.Logger

	mu     sync.Mutex
	path   string
	closed bool
}

// NewCommandTransport creates a CommandTransport for variant v.
func NewCommandTransport(v Variant, opts TransportOptions) (*CommandTransport, error) {
	if opts.Command == "" {
		opts.Command = v.DefaultCommand
	}
	if opts.Command == "" {
		return nil, errors.NewValidationError("no command configured for provider").
			WithField("providers." + string(v.Kind) + ".command")
	}
	if v.Args == nil {
		return nil, errors.NewValidationError("provider does not support the command transport").
			WithField("provider").
			WithValue(v.Kind)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	return &CommandTransport{
		variant: v,
		opts:    opts,
		logger:  logger.WithProvider(string(v.Kind)).With("command", opts.Command),
	}, nil
}

// Open resolves the CLI binary and prepares the worktree directory. A missing
// binary is not retryable.
func (c *CommandTransport) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := exec.LookPath(c.opts.Command)
	if err != nil {
		return errors.NewTransportError(string(c.variant.Kind), fmt.Errorf("command %q not found: %w", c.opts.Command, err))
	}

	if c.opts.WorktreePath != "" {
		if err := os.MkdirAll(c.opts.WorktreePath, 0755); err != nil {
			return errors.NewTransportError(string(c.variant.Kind), fmt.Errorf("failed to prepare worktree: %w", err))
		}
	}

	if c.opts.APIKeyEnv != "" && c.opts.APIKey == "" && os.Getenv(c.opts.APIKeyEnv) == "" {
		c.logger.Debug("api key environment variable not set, relying on CLI login", "env", c.opts.APIKeyEnv)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.NewTransportError(string(c.variant.Kind), fmt.Errorf("transport closed"))
	}
	c.path = path
	return nil
}

// Send runs the CLI with content as the prompt. A non-zero exit is retryable.
func (c *CommandTransport) Send(ctx context.Context, content string) (string, error) {
	c.mu.Lock()
	path, closed := c.path, c.closed
	c.mu.Unlock()
	if closed || path == "" {
		return "", errors.NewTransportError(string(c.variant.Kind), fmt.Errorf("transport not open"))
	}

	cmd := exec.CommandContext(ctx, path, c.variant.Args(c.opts.Model, content)...)
	cmd.Dir = c.opts.WorktreePath
	cmd.WaitDelay = commandWaitDelay
	if c.opts.APIKey != "" && c.opts.APIKeyEnv != "" {
		cmd.Env = append(os.Environ(), c.opts.APIKeyEnv+"="+c.opts.APIKey)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	c.logger.Debug("command finished", "duration_ms", time.Since(start).Milliseconds(), "agent_id", c.opts.AgentID)

	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = exitErr.Error()
			}
			return "", errors.NewTransportError(string(c.variant.Kind), fmt.Errorf("exit code %d: %s", exitErr.ExitCode(), msg)).
				WithRetryable(true)
		}
		return "", errors.NewTransportError(string(c.variant.Kind), err)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// Close marks the transport closed. Running commands are stopped through
// their context.
func (c *CommandTransport) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
