package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	errs := cfg.Validate()
	if len(errs) != 0 {
		t.Errorf("Default config should be valid, got %d errors: %v", len(errs), errs)
	}
}

func hasFieldError(errs []ValidationError, field string) bool {
	for _, err := range errs {
		if err.Field == field {
			return true
		}
	}
	return false
}

func TestConfig_Validate_Crew(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
		want   bool
	}{
		{"zero max agents", func(c *Config) { c.Crew.MaxAgents = 0 }, "crew.max_agents", true},
		{"unbounded concurrency", func(c *Config) { c.Crew.MaxConcurrency = 0 }, "crew.max_concurrency", false},
		{"negative concurrency", func(c *Config) { c.Crew.MaxConcurrency = -1 }, "crew.max_concurrency", true},
		{"known provider", func(c *Config) { c.Crew.DefaultProvider = "google" }, "crew.default_provider", false},
		{"unknown provider", func(c *Config) { c.Crew.DefaultProvider = "gpt" }, "crew.default_provider", true},
		{"command transport", func(c *Config) { c.Crew.Transport = "command" }, "crew.transport", false},
		{"unknown transport", func(c *Config) { c.Crew.Transport = "grpc" }, "crew.transport", true},
		{"too many retries", func(c *Config) { c.Crew.MaxRetries = 11 }, "crew.max_retries", true},
		{"negative retries", func(c *Config) { c.Crew.MaxRetries = -1 }, "crew.max_retries", true},
		{"negative backoff", func(c *Config) { c.Crew.RetryBackoffMs = -5 }, "crew.retry_backoff_ms", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if got := hasFieldError(cfg.Validate(), tt.field); got != tt.want {
				t.Errorf("error on %s = %v, want %v", tt.field, got, tt.want)
			}
		})
	}
}

func TestConfig_Validate_Providers(t *testing.T) {
	tests := []struct {
		name    string
		command string
		envName string
		field   string
		want    bool
	}{
		{"plain command", "claude", "ANTHROPIC_API_KEY", "providers.claude.command", false},
		{"path command", "/usr/local/bin/claude", "", "providers.claude.command", false},
		{"shell injection", "claude; rm -rf /", "", "providers.claude.command", true},
		{"bad env name", "claude", "1KEY", "providers.claude.api_key_env", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Providers.Claude.Command = tt.command
			cfg.Providers.Claude.APIKeyEnv = tt.envName
			if got := hasFieldError(cfg.Validate(), tt.field); got != tt.want {
				t.Errorf("error on %s = %v, want %v", tt.field, got, tt.want)
			}
		})
	}
}

func TestConfig_Validate_Logging(t *testing.T) {
	t.Run("invalid level", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Level = "verbose"
		if !hasFieldError(cfg.Validate(), "logging.level") {
			t.Error("expected error for invalid level")
		}
	})

	t.Run("zero size", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxSizeMB = 0
		if !hasFieldError(cfg.Validate(), "logging.max_size_mb") {
			t.Error("expected error for zero max_size_mb")
		}
	})

	t.Run("excessive size", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxSizeMB = 5000
		if !hasFieldError(cfg.Validate(), "logging.max_size_mb") {
			t.Error("expected error for excessive max_size_mb")
		}
	})

	t.Run("negative backups", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxBackups = -1
		if !hasFieldError(cfg.Validate(), "logging.max_backups") {
			t.Error("expected error for negative max_backups")
		}
	})
}

func TestConfig_Validate_Paths(t *testing.T) {
	cfg := Default()
	cfg.Paths.SessionDir = "bad\x00dir"
	if !hasFieldError(cfg.Validate(), "paths.session_dir") {
		t.Error("expected error for null byte in session_dir")
	}
}
