package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DirName is the per-project directory holding sessions, logs and worktrees.
const DirName = ".agentcrew"

// Config represents the complete agentcrew configuration
type Config struct {
	Crew      CrewConfig      `mapstructure:"crew" yaml:"crew"`
	Providers ProvidersConfig `mapstructure:"providers" yaml:"providers"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Paths     PathsConfig     `mapstructure:"paths" yaml:"paths"`
}

// CrewConfig controls how deployments are supervised
type CrewConfig struct {
	// MaxAgents caps the number of agents a single deployment may request
	MaxAgents int `mapstructure:"max_agents" yaml:"max_agents"`
	// MaxConcurrency is the default batch size when a deployment does not set one (0 = unbounded)
	MaxConcurrency int `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	// DefaultProvider is used by `deploy` when --agents is omitted
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`
	// Transport selects how agents reach their provider: "echo" or "command"
	Transport string `mapstructure:"transport" yaml:"transport"`
	// MaxRetries is how many times a retryable transport failure is retried per operation
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	// RetryBackoffMs is the pause between retries in milliseconds
	RetryBackoffMs int `mapstructure:"retry_backoff_ms" yaml:"retry_backoff_ms"`
}

// ProvidersConfig holds per-provider settings
type ProvidersConfig struct {
	Claude ProviderConfig `mapstructure:"claude" yaml:"claude"`
	OpenAI ProviderConfig `mapstructure:"openai" yaml:"openai"`
	Google ProviderConfig `mapstructure:"google" yaml:"google"`
}

// ProviderConfig configures one provider variant
type ProviderConfig struct {
	// Command is the CLI binary used by the command transport
	Command string `mapstructure:"command" yaml:"command"`
	// Model is passed to the CLI when set
	Model string `mapstructure:"model" yaml:"model"`
	// APIKeyEnv names the environment variable holding the API key.
	// Keys themselves are never stored in config.
	APIKeyEnv string `mapstructure:"api_key_env" yaml:"api_key_env"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated log files (default: false)
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// PathsConfig controls where agentcrew stores data
type PathsConfig struct {
	// WorktreeDir is the root under which each agent gets its worktree path.
	// If empty, defaults to ".agentcrew/worktrees" relative to the project root.
	// Supports ~ for home directory expansion.
	WorktreeDir string `mapstructure:"worktree_dir" yaml:"worktree_dir"`
	// SessionDir is where sessions are persisted.
	// If empty, defaults to ".agentcrew/sessions" relative to the project root.
	SessionDir string `mapstructure:"session_dir" yaml:"session_dir"`
}

// Provider returns the settings for a provider kind, and false for kinds
// without a config section.
func (p *ProvidersConfig) Provider(kind string) (ProviderConfig, bool) {
	switch strings.ToLower(kind) {
	case "claude":
		return p.Claude, true
	case "openai":
		return p.OpenAI, true
	case "google":
		return p.Google, true
	default:
		return ProviderConfig{}, false
	}
}

// RetryBackoff returns the retry backoff as a time.Duration
func (c *CrewConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMs) * time.Millisecond
}

// ResolveWorktreeDir returns the resolved worktree root.
func (p *PathsConfig) ResolveWorktreeDir(baseDir string) string {
	return resolvePath(p.WorktreeDir, baseDir, "worktrees")
}

// ResolveSessionDir returns the resolved session directory.
func (p *PathsConfig) ResolveSessionDir(baseDir string) string {
	return resolvePath(p.SessionDir, baseDir, "sessions")
}

// resolvePath expands ~, resolves relative paths against baseDir and falls
// back to .agentcrew/<fallback> when path is empty.
func resolvePath(path, baseDir, fallback string) string {
	if path == "" {
		return filepath.Join(baseDir, DirName, fallback)
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Crew: CrewConfig{
			MaxAgents:       10,
			MaxConcurrency:  4,
			DefaultProvider: "claude",
			Transport:       "echo",
			MaxRetries:      2,
			RetryBackoffMs:  250,
		},
		Providers: ProvidersConfig{
			Claude: ProviderConfig{Command: "claude", APIKeyEnv: "ANTHROPIC_API_KEY"},
			OpenAI: ProviderConfig{Command: "codex", APIKeyEnv: "OPENAI_API_KEY"},
			Google: ProviderConfig{Command: "gemini", APIKeyEnv: "GEMINI_API_KEY"},
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Paths: PathsConfig{},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("crew.max_agents", defaults.Crew.MaxAgents)
	viper.SetDefault("crew.max_concurrency", defaults.Crew.MaxConcurrency)
	viper.SetDefault("crew.default_provider", defaults.Crew.DefaultProvider)
	viper.SetDefault("crew.transport", defaults.Crew.Transport)
	viper.SetDefault("crew.max_retries", defaults.Crew.MaxRetries)
	viper.SetDefault("crew.retry_backoff_ms", defaults.Crew.RetryBackoffMs)

	viper.SetDefault("providers.claude.command", defaults.Providers.Claude.Command)
	viper.SetDefault("providers.claude.model", defaults.Providers.Claude.Model)
	viper.SetDefault("providers.claude.api_key_env", defaults.Providers.Claude.APIKeyEnv)
	viper.SetDefault("providers.openai.command", defaults.Providers.OpenAI.Command)
	viper.SetDefault("providers.openai.model", defaults.Providers.OpenAI.Model)
	viper.SetDefault("providers.openai.api_key_env", defaults.Providers.OpenAI.APIKeyEnv)
	viper.SetDefault("providers.google.command", defaults.Providers.Google.Command)
	viper.SetDefault("providers.google.model", defaults.Providers.Google.Model)
	viper.SetDefault("providers.google.api_key_env", defaults.Providers.Google.APIKeyEnv)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	viper.SetDefault("paths.worktree_dir", defaults.Paths.WorktreeDir)
	viper.SetDefault("paths.session_dir", defaults.Paths.SessionDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when the
// loaded configuration cannot be used.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "agentcrew")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return DirName
	}
	return filepath.Join(home, ".config", "agentcrew")
}

// ConfigFile returns the path to the user config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidTransports returns the list of valid transport names
func ValidTransports() []string {
	return []string{"echo", "command"}
}

// ValidProviders returns the provider kinds that have a config section
func ValidProviders() []string {
	return []string{"claude", "openai", "google"}
}

// YAML renders c in the same shape the config file uses.
func (c *Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
