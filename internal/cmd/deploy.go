package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mkykode/agentcrew/internal/config"
	"github.com/mkykode/agentcrew/internal/deployment"
	"github.com/mkykode/agentcrew/internal/errors"
	"github.com/mkykode/agentcrew/internal/provider"
	"github.com/mkykode/agentcrew/internal/session"
	"github.com/mkykode/agentcrew/internal/supervisor"
)

type deployOptions struct {
	agents         string
	prompt         string
	file           string
	require        string
	maxConcurrency int
	name           string
	verbose        bool
}

func newDeployCmd() *cobra.Command {
	opts := &deployOptions{}
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a crew of agents and send them a prompt",
		Long: `Deploy a crew of agents, initialize them and send every agent the same prompt.

Agents come from a crew file (--file), an agent list (--agents) or, when
neither is given, one agent of the configured default provider. Flags
override the matching crew file settings.

With --require the prompt is only sent to agents whose provider grants that
capability (codeGeneration, fileOperations, gitOperations, terminalAccess,
webAccess). The others are recorded as failed.

At most --max-concurrency agents are initialized or prompted at the same
time. A failing agent is recorded and the rest of the crew carries on.

Exit status is 0 when every agent succeeded, 1 when some failed and 2 when
all of them failed.`,
		Example: `  agentcrew deploy --agents claude:2,openai:1 --prompt "Review the auth module"
  agentcrew deploy -f crew.yaml --max-concurrency 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.agents, "agents", "", "agents to deploy, e.g. claude:2,openai:1 (providers: "+providerKinds()+")")
	f.StringVarP(&opts.prompt, "prompt", "p", "", "prompt sent to every agent")
	f.StringVarP(&opts.file, "file", "f", "", "crew file (YAML)")
	f.StringVar(&opts.require, "require", "", "capability the prompt needs, e.g. webAccess; agents without it are not prompted")
	f.IntVar(&opts.maxConcurrency, "max-concurrency", 0, "max agents working at once (0 = unbounded)")
	f.StringVar(&opts.name, "name", "", "session name")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "print lifecycle events as they happen")
	return cmd
}

// providerKinds lists the built-in providers for help text.
func providerKinds() string {
	kinds := provider.DefaultCatalog().Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// deployment builds the deployment request. A crew file wins over --agents,
// which wins over the default provider.
func (o *deployOptions) deployment(cmd *cobra.Command, cfg *config.Config) (*deployment.Config, error) {
	var dep *deployment.Config
	switch {
	case o.file != "":
		loaded, err := deployment.LoadFile(o.file)
		if err != nil {
			return nil, err
		}
		dep = loaded
	case o.agents != "":
		agents, err := deployment.ParseAgents(o.agents)
		if err != nil {
			return nil, err
		}
		dep = &deployment.Config{Agents: agents}
	default:
		dep = &deployment.Config{Agents: []deployment.AgentConfig{
			{Provider: deployment.NormalizeProvider(cfg.Crew.DefaultProvider), Count: 1},
		}}
	}

	if cmd.Flags().Changed("prompt") {
		dep.Prompt = o.prompt
	}
	if cmd.Flags().Changed("require") {
		dep.Require = o.require
	}
	if cmd.Flags().Changed("max-concurrency") {
		if o.maxConcurrency < 0 {
			return nil, errors.NewValidationError("max concurrency cannot be negative").
				WithField("max-concurrency").
				WithValue(o.maxConcurrency)
		}
		dep.MaxConcurrency = o.maxConcurrency
	}

	if err := dep.Validate(); err != nil {
		return nil, err
	}
	return dep, nil
}

func runDeploy(cmd *cobra.Command, opts *deployOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dep, err := opts.deployment(cmd, cfg)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	supOpts, err := supervisor.OptionsFromConfig(cfg, cwd)
	if err != nil {
		return err
	}
	// An explicit --max-concurrency 0 means unbounded, not the config default
	if cmd.Flags().Changed("max-concurrency") {
		supOpts.MaxConcurrency = opts.maxConcurrency
	}

	store, err := session.NewStore(cfg.Paths.ResolveSessionDir(cwd), nil)
	if err != nil {
		return err
	}
	sess := session.New(opts.name, cwd, opts.file)
	sess.Prompt = dep.Prompt

	lock, err := store.Lock(sess.ID)
	if err != nil {
		return err
	}
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if err := lock.Release(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to release session lock: %v\n", err)
		}
	}
	defer release()

	logger := createLogger(store.SessionDir(sess.ID), cfg).WithSession(sess.ID)
	defer func() { _ = logger.Close() }()
	supOpts.Logger = logger

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.Save(ctx, sess); err != nil {
		return err
	}

	sup := supervisor.New(supOpts)
	if opts.verbose {
		progress := newPrinter(cmd.ErrOrStderr())
		id := sup.Bus().SubscribeAll(progress.event)
		defer sup.Bus().Unsubscribe(id)
	}

	report, err := sup.Deploy(ctx, dep)
	if err != nil {
		// Nothing was started, so the session has nothing worth keeping
		logger.Warn("deployment rejected", "error", err)
		release()
		if delErr := store.Delete(context.Background(), sess.ID); delErr != nil {
			logger.Warn("failed to remove rejected session", "error", delErr)
		}
		return err
	}

	sess.DeploymentID = report.DeploymentID
	sess.Agents = sup.Statuses()
	sess.Results = results(report)
	sess.ExitCode = report.ExitCode()

	if err := sup.Shutdown(); err != nil {
		logger.Warn("supervisor shutdown reported errors", "error", err)
	}

	// The deployment context may be canceled by now; the record must still land
	if err := store.Save(context.Background(), sess); err != nil {
		return err
	}

	newPrinter(cmd.OutOrStdout()).report(report, sess)

	if code := report.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// results converts report outcomes into their persisted form.
func results(report *supervisor.Report) []session.Result {
	out := make([]session.Result, len(report.Outcomes))
	for i, o := range report.Outcomes {
		out[i] = session.Result{
			AgentID:  o.AgentID,
			Attempts: o.Attempts,
			Response: o.Response,
		}
		if o.Err != nil {
			out[i].Error = o.Err.Error()
		}
	}
	return out
}
