package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mkykode/agentcrew/internal/config"
	"github.com/mkykode/agentcrew/internal/deployment"
)

const (
	configHeader = `# agentcrew project configuration
# Values here override the user config at ~/.config/agentcrew/config.yaml.
# Environment variables override both, e.g. AGENTCREW_CREW_MAX_CONCURRENCY=2.

`
	crewHeader = `# agentcrew crew file
# Deploy with: agentcrew deploy -f crew.yaml

`
	crewFileName = "crew.yaml"
)

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up agentcrew in the current directory",
		Long: `Create the .agentcrew directory with a project config file, and a sample
crew.yaml next to it. Existing files are kept unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get current directory: %w", err)
			}
			return runInit(cmd, cwd, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	crewDir := filepath.Join(dir, config.DirName)
	if err := os.MkdirAll(crewDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", config.DirName, err)
	}

	cfgData, err := config.Default().YAML()
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	crewData, err := deployment.Example()
	if err != nil {
		return fmt.Errorf("failed to render crew file: %w", err)
	}

	files := []struct {
		path string
		data []byte
	}{
		{filepath.Join(crewDir, "config.yaml"), append([]byte(configHeader), cfgData...)},
		{filepath.Join(dir, crewFileName), append([]byte(crewHeader), crewData...)},
	}

	out := cmd.OutOrStdout()
	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil && !force {
			fmt.Fprintf(out, "Keeping existing %s (use --force to overwrite)\n", f.path)
			continue
		}
		if err := os.WriteFile(f.path, f.data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.path, err)
		}
		fmt.Fprintf(out, "Created %s\n", f.path)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Next: agentcrew deploy -f %s\n", crewFileName)
	return nil
}
