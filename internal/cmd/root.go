package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mkykode/agentcrew/internal/config"
	"github.com/mkykode/agentcrew/internal/logging"
)

// ExitError carries a non-zero process exit code for a command that already
// reported its result.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute builds the command tree and runs it
func Execute() error {
	return newRootCmd().Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentcrew",
		Short: "Deploy and supervise crews of AI coding agents",
		Long: `agentcrew starts several AI coding agents (Claude, OpenAI, Google) at once,
sends them a shared prompt with a bounded number of agents working at the
same time, and records how each one fared. One failing agent never takes
the rest of the crew down with it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	root.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/agentcrew/config.yaml)")
	_ = viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))

	root.AddCommand(
		newInitCmd(),
		newDeployCmd(),
		newStatusCmd(),
		newSessionsCmd(),
		newConfigCmd(),
	)
	return root
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.DirName)
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("AGENTCREW")
	// e.g. AGENTCREW_CREW_MAX_CONCURRENCY for crew.max_concurrency
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing config file is fine
	_ = viper.ReadInConfig()
}

// loadConfig returns the validated configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// createLogger creates a rotating logger in dir if logging is enabled in cfg.
// Returns a NopLogger if logging is disabled or if creation fails.
func createLogger(dir string, cfg *config.Config) *logging.Logger {
	if !cfg.Logging.Enabled {
		return logging.NopLogger()
	}

	rotation := logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	}

	logger, err := logging.NewRotatingLogger(dir, cfg.Logging.Level, rotation)
	if err != nil {
		// A broken log file must not stop a deployment
		fmt.Fprintf(os.Stderr, "Warning: failed to create logger: %v\n", err)
		return logging.NopLogger()
	}
	return logger
}
