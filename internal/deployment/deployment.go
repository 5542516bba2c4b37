// Package deployment describes a request to start a crew of agents.
//
// A Config is built by the CLI from flags or a YAML crew file, consumed once
// by the supervisor, and then discarded.
package deployment

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mkykode/agentcrew/internal/agent"
	"github.com/mkykode/agentcrew/internal/errors"
)

// AgentConfig requests count agents of one provider.
type AgentConfig struct {
	Provider    string   `yaml:"provider"`
	Count       int      `yaml:"count"`
	Model       string   `yaml:"model,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty"`
	// APIKey is handed to the transport for this run only and never persisted.
	APIKey string `yaml:"api_key,omitempty"`
}

// Config is a deployment request.
type Config struct {
	Agents []AgentConfig `yaml:"agents"`
	Prompt string        `yaml:"prompt,omitempty"`
	// MaxConcurrency bounds in-flight agent operations. 0 defers to the
	// supervisor default.
	MaxConcurrency int `yaml:"max_concurrency,omitempty"`
	// Require names a capability the prompt needs, e.g. "webAccess". Agents
	// whose provider lacks it are not prompted and fail the deployment.
	Require string `yaml:"require,omitempty"`
}

// RequiredCapability returns the capability named by Require, or "" when the
// prompt needs none.
func (c *Config) RequiredCapability() (agent.Capability, error) {
	if strings.TrimSpace(c.Require) == "" {
		return "", nil
	}
	return agent.ParseCapability(strings.TrimSpace(c.Require))
}

// TotalAgents returns the number of agents the config requests.
func (c *Config) TotalAgents() int {
	total := 0
	for _, ac := range c.Agents {
		if ac.Count > 0 {
			total += ac.Count
		}
	}
	return total
}

// Validate checks the structure of the request. Provider kinds are checked
// by the supervisor against its catalog.
func (c *Config) Validate() error {
	if len(c.Agents) == 0 {
		return errors.NewValidationError("deployment requests no agents").
			WithField("agents").
			WithCause(errors.ErrNoAgents)
	}

	var errs []error
	for i, ac := range c.Agents {
		field := fmt.Sprintf("agents[%d]", i)
		if strings.TrimSpace(ac.Provider) == "" {
			errs = append(errs, errors.NewValidationError("provider is required").WithField(field+".provider"))
		}
		if ac.Count <= 0 {
			errs = append(errs, errors.NewValidationError("count must be positive").
				WithField(field+".count").
				WithValue(ac.Count))
		}
		if ac.Temperature != nil && (*ac.Temperature < 0 || *ac.Temperature > 2) {
			errs = append(errs, errors.NewValidationError("temperature must be between 0 and 2").
				WithField(field+".temperature").
				WithValue(*ac.Temperature))
		}
		if ac.MaxTokens < 0 {
			errs = append(errs, errors.NewValidationError("max_tokens must be non-negative").
				WithField(field+".max_tokens").
				WithValue(ac.MaxTokens))
		}
	}

	if c.MaxConcurrency < 0 {
		errs = append(errs, errors.NewValidationError("max_concurrency must be non-negative").
			WithField("max_concurrency").
			WithValue(c.MaxConcurrency))
	}
	if _, err := c.RequiredCapability(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// providerAliases maps accepted shorthand to provider kinds.
var providerAliases = map[string]string{
	"gpt":    "openai",
	"codex":  "openai",
	"gemini": "google",
}

// NormalizeProvider lower-cases kind and resolves aliases such as "gpt".
func NormalizeProvider(kind string) string {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if alias, ok := providerAliases[kind]; ok {
		return alias
	}
	return kind
}

// ParseAgents parses a comma-separated agent list such as
// "claude:2,openai:1". A provider without a count requests one agent.
func ParseAgents(spec string) ([]AgentConfig, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.NewValidationError("agent list is empty").
			WithField("agents").
			WithCause(errors.ErrNoAgents)
	}

	var agents []AgentConfig
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kind, countStr, hasCount := strings.Cut(part, ":")
		count := 1
		if hasCount {
			n, err := strconv.Atoi(strings.TrimSpace(countStr))
			if err != nil || n <= 0 {
				return nil, errors.NewValidationError("agent count must be a positive integer").
					WithField("agents").
					WithValue(part)
			}
			count = n
		}

		kind = NormalizeProvider(kind)
		if kind == "" {
			return nil, errors.NewValidationError("provider is required").
				WithField("agents").
				WithValue(part)
		}
		agents = append(agents, AgentConfig{Provider: kind, Count: count})
	}

	if len(agents) == 0 {
		return nil, errors.NewValidationError("agent list is empty").
			WithField("agents").
			WithCause(errors.ErrNoAgents)
	}
	return agents, nil
}

// Decode reads a YAML crew file. Unknown fields are rejected.
func Decode(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if err == io.EOF {
			return nil, errors.NewValidationError("crew file is empty").WithCause(errors.ErrNoAgents)
		}
		return nil, errors.NewValidationError("failed to parse crew file").WithCause(err)
	}

	for i := range cfg.Agents {
		cfg.Agents[i].Provider = NormalizeProvider(cfg.Agents[i].Provider)
	}
	return &cfg, nil
}

// LoadFile reads and decodes the crew file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read crew file: %w", err)
	}
	cfg, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Example returns a sample crew file used by `agentcrew init`.
func Example() ([]byte, error) {
	example := Config{
		Agents: []AgentConfig{
			{Provider: "claude", Count: 2},
			{Provider: "openai", Count: 1},
		},
		Prompt:         "Summarize the layout of this repository.",
		MaxConcurrency: 2,
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(example); err != nil {
		return nil, fmt.Errorf("failed to encode example crew file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode example crew file: %w", err)
	}
	return buf.Bytes(), nil
}
