package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkykode/agentcrew/internal/agent"
	"github.com/mkykode/agentcrew/internal/errors"
	"github.com/mkykode/agentcrew/internal/registry"
	"github.com/mkykode/agentcrew/internal/session"
)

type statusOptions struct {
	sessionID string
	json      bool
}

func newStatusCmd() *cobra.Command {
	opts := &statusOptions{}
	cmd := &cobra.Command{
		Use:   "status [pattern]",
		Short: "Show the agents of a deployment session",
		Long: `Show the agents recorded by a deployment session and how each one fared.

Without --session the most recent session is shown. The optional pattern is a
glob matched against agent ids and providers, e.g. "claude-*". An exact agent
id shows that agent in detail, including its full response.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}
			return runStatus(cmd, opts, pattern)
		},
	}
	cmd.Flags().StringVar(&opts.sessionID, "session", "", "session id (default: most recent)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the session as JSON")
	return cmd
}

func runStatus(cmd *cobra.Command, opts *statusOptions, pattern string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var sess *session.Session
	if opts.sessionID != "" {
		sess, err = store.Load(ctx, opts.sessionID)
	} else {
		sess, err = store.Latest(ctx)
	}
	if err != nil {
		if errors.Is(err, errors.ErrSessionNotFound) && opts.sessionID == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions found. Run 'agentcrew deploy' to start one.")
			return nil
		}
		return err
	}

	sel, err := registry.ParsePattern(pattern)
	if err != nil {
		return err
	}
	agents := filterAgents(sess.Agents, sel)

	if opts.json {
		view := *sess
		view.Agents = agents
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	out := newPrinter(cmd.OutOrStdout())
	if len(agents) == 1 && sel.Exact(agents[0].ID) {
		res, _ := sess.Result(pattern)
		out.agentDetail(agents[0], res)
		return nil
	}
	out.session(sess, agents)
	return nil
}

// filterAgents keeps the agents selected by sel, in recorded order.
func filterAgents(agents []agent.Snapshot, sel registry.Pattern) []agent.Snapshot {
	matched := make([]agent.Snapshot, 0, len(agents))
	for _, a := range agents {
		if sel.Match(a.ID, a.Provider) {
			matched = append(matched, a)
		}
	}
	return matched
}

// openStore opens the session store of the current project.
func openStore() (*session.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	return session.NewStore(cfg.Paths.ResolveSessionDir(cwd), nil)
}
