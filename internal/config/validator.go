package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "crew.max_concurrency")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// commandRegex accepts bare binary names and paths, no shell metacharacters.
var commandRegex = regexp.MustCompile(`^[a-zA-Z0-9_./~-]+$`)

// envNameRegex matches POSIX environment variable names
var envNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateCrew()...)
	errors = append(errors, c.validateProviders()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validatePaths()...)

	return errors
}

// validateCrew validates the CrewConfig
func (c *Config) validateCrew() []ValidationError {
	var errors []ValidationError

	if c.Crew.MaxAgents <= 0 {
		errors = append(errors, ValidationError{
			Field:   "crew.max_agents",
			Value:   c.Crew.MaxAgents,
			Message: "must be positive",
		})
	}

	// 0 means unbounded
	if c.Crew.MaxConcurrency < 0 {
		errors = append(errors, ValidationError{
			Field:   "crew.max_concurrency",
			Value:   c.Crew.MaxConcurrency,
			Message: "must be non-negative",
		})
	}

	if c.Crew.DefaultProvider != "" && !slices.Contains(ValidProviders(), c.Crew.DefaultProvider) {
		errors = append(errors, ValidationError{
			Field:   "crew.default_provider",
			Value:   c.Crew.DefaultProvider,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidProviders(), ", ")),
		})
	}

	if c.Crew.Transport != "" && !slices.Contains(ValidTransports(), c.Crew.Transport) {
		errors = append(errors, ValidationError{
			Field:   "crew.transport",
			Value:   c.Crew.Transport,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidTransports(), ", ")),
		})
	}

	const maxRetriesLimit = 10
	if c.Crew.MaxRetries < 0 || c.Crew.MaxRetries > maxRetriesLimit {
		errors = append(errors, ValidationError{
			Field:   "crew.max_retries",
			Value:   c.Crew.MaxRetries,
			Message: fmt.Sprintf("must be between 0 and %d", maxRetriesLimit),
		})
	}

	if c.Crew.RetryBackoffMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "crew.retry_backoff_ms",
			Value:   c.Crew.RetryBackoffMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateProviders validates each ProviderConfig
func (c *Config) validateProviders() []ValidationError {
	var errors []ValidationError

	for _, kind := range ValidProviders() {
		pc, _ := c.Providers.Provider(kind)
		prefix := "providers." + kind

		if pc.Command != "" && !commandRegex.MatchString(pc.Command) {
			errors = append(errors, ValidationError{
				Field:   prefix + ".command",
				Value:   pc.Command,
				Message: "must be a binary name or path without shell metacharacters",
			})
		}

		if pc.APIKeyEnv != "" && !envNameRegex.MatchString(pc.APIKeyEnv) {
			errors = append(errors, ValidationError{
				Field:   prefix + ".api_key_env",
				Value:   pc.APIKeyEnv,
				Message: "must be a valid environment variable name",
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validatePaths validates the PathsConfig
func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	for field, path := range map[string]string{
		"paths.worktree_dir": c.Paths.WorktreeDir,
		"paths.session_dir":  c.Paths.SessionDir,
	} {
		if strings.ContainsRune(path, '\x00') {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   path,
				Message: "contains invalid null character",
			})
		}
	}

	return errors
}
