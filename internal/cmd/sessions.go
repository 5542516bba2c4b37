package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkykode/agentcrew/internal/errors"
	"github.com/mkykode/agentcrew/internal/session"
	"github.com/mkykode/agentcrew/internal/util"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage deployment sessions",
		Long:  `Commands for listing, deleting and cleaning up deployment sessions.`,
	}
	cmd.AddCommand(newSessionsListCmd(), newSessionsDeleteCmd(), newSessionsCleanCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deployment sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			infos, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}

			if asJSON {
				if infos == nil {
					infos = []*session.Info{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}

			out := newPrinter(cmd.OutOrStdout())
			if len(infos) == 0 {
				out.println("No sessions found.")
				return nil
			}
			out.println(out.header.Render(fmt.Sprintf("Found %s:", util.Plural(len(infos), "session"))))
			for _, info := range infos {
				name := info.Name
				if name == "" {
					name = "(unnamed)"
				}
				lockStatus := "unlocked"
				if info.IsLocked {
					lockStatus = fmt.Sprintf("LOCKED (PID %d)", info.LockInfo.PID)
				}
				out.println()
				out.printf("  Session: %s\n", info.ID)
				out.printf("    Name:     %s\n", name)
				out.printf("    Created:  %s\n", info.Created.Format(time.RFC822))
				out.printf("    Agents:   %d\n", info.AgentCount)
				out.printf("    Status:   %s\n", lockStatus)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print sessions as JSON")
	return cmd
}

func newSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>...",
		Short: "Delete deployment sessions",
		Long:  `Delete the stored record of one or more sessions. Locked sessions are left alone.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			var errs []error
			for _, id := range args {
				if err := store.Delete(cmd.Context(), id); err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", id)
			}
			return errors.Join(errs...)
		},
	}
}

func newSessionsCleanCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Clean up stale session data",
		Long: `Remove lock files left behind by agentcrew processes that are no longer
running. With --all, also delete every session that is not locked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			entries, err := os.ReadDir(store.Dir())
			if err != nil {
				return fmt.Errorf("failed to read session directory: %w", err)
			}

			out := cmd.OutOrStdout()
			cleaned, deleted := 0, 0
			var errs []error
			for _, entry := range entries {
				if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
					continue
				}
				id := entry.Name()
				removed, err := session.CleanStaleLock(store.SessionDir(id), nil)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if removed {
					cleaned++
					fmt.Fprintf(out, "Removed stale lock from session %s\n", id)
				}

				if !all {
					continue
				}
				if _, locked := session.IsLocked(store.SessionDir(id)); locked {
					fmt.Fprintf(out, "Skipping locked session %s\n", id)
					continue
				}
				if err := os.RemoveAll(store.SessionDir(id)); err != nil {
					errs = append(errs, fmt.Errorf("failed to remove session %s: %w", id, err))
					continue
				}
				deleted++
			}

			fmt.Fprintf(out, "Cleaned %s", util.Plural(cleaned, "stale lock"))
			if all {
				fmt.Fprintf(out, ", deleted %s", util.Plural(deleted, "session"))
			}
			fmt.Fprintln(out)
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "delete every unlocked session")
	return cmd
}
