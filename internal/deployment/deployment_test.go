package deployment

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mkykode/agentcrew/internal/agent"
	"github.com/mkykode/agentcrew/internal/errors"
)

func TestParseAgents(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    []AgentConfig
		wantErr error
	}{
		{
			name: "counts",
			spec: "claude:2,openai:1",
			want: []AgentConfig{{Provider: "claude", Count: 2}, {Provider: "openai", Count: 1}},
		},
		{
			name: "default count and aliases",
			spec: " Claude , gpt:3, gemini ",
			want: []AgentConfig{{Provider: "claude", Count: 1}, {Provider: "openai", Count: 3}, {Provider: "google", Count: 1}},
		},
		{
			name: "order preserved for repeats",
			spec: "openai:1,claude:1,openai:2",
			want: []AgentConfig{{Provider: "openai", Count: 1}, {Provider: "claude", Count: 1}, {Provider: "openai", Count: 2}},
		},
		{name: "empty", spec: "", wantErr: errors.ErrNoAgents},
		{name: "only commas", spec: ",,", wantErr: errors.ErrNoAgents},
		{name: "zero count", spec: "claude:0", wantErr: errors.ErrInvalidConfig},
		{name: "bad count", spec: "claude:two", wantErr: errors.ErrInvalidConfig},
		{name: "missing provider", spec: ":2", wantErr: errors.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAgents(tt.spec)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseAgents(%q) error = %v, want %v", tt.spec, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAgents(%q) error = %v", tt.spec, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseAgents(%q) = %+v, want %+v", tt.spec, got, tt.want)
			}
			for i := range got {
				if got[i].Provider != tt.want[i].Provider || got[i].Count != tt.want[i].Count {
					t.Errorf("agents[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	hot := 3.5
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
		field   string
	}{
		{
			name: "valid",
			cfg:  Config{Agents: []AgentConfig{{Provider: "claude", Count: 2}}, Prompt: "hi"},
		},
		{
			name:    "no agents",
			cfg:     Config{Prompt: "hi"},
			wantErr: errors.ErrNoAgents,
		},
		{
			name:    "zero count",
			cfg:     Config{Agents: []AgentConfig{{Provider: "claude", Count: 0}}},
			wantErr: errors.ErrInvalidConfig,
			field:   "agents[0].count",
		},
		{
			name:    "missing provider",
			cfg:     Config{Agents: []AgentConfig{{Provider: "claude", Count: 1}, {Count: 1}}},
			wantErr: errors.ErrInvalidConfig,
			field:   "agents[1].provider",
		},
		{
			name:    "temperature out of range",
			cfg:     Config{Agents: []AgentConfig{{Provider: "claude", Count: 1, Temperature: &hot}}},
			wantErr: errors.ErrInvalidConfig,
			field:   "agents[0].temperature",
		},
		{
			name:    "negative max tokens",
			cfg:     Config{Agents: []AgentConfig{{Provider: "claude", Count: 1, MaxTokens: -1}}},
			wantErr: errors.ErrInvalidConfig,
			field:   "agents[0].max_tokens",
		},
		{
			name:    "negative concurrency",
			cfg:     Config{Agents: []AgentConfig{{Provider: "claude", Count: 1}}, MaxConcurrency: -2},
			wantErr: errors.ErrInvalidConfig,
			field:   "max_concurrency",
		},
		{
			name: "known required capability",
			cfg:  Config{Agents: []AgentConfig{{Provider: "claude", Count: 1}}, Require: "gitOperations"},
		},
		{
			name:    "unknown required capability",
			cfg:     Config{Agents: []AgentConfig{{Provider: "claude", Count: 1}}, Require: "teleport"},
			wantErr: errors.ErrInvalidConfig,
			field:   "capability",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.field != "" && !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Validate() error %q should name %s", err, tt.field)
			}
		})
	}
}

func TestConfig_TotalAgents(t *testing.T) {
	cfg := Config{Agents: []AgentConfig{{Provider: "claude", Count: 2}, {Provider: "openai", Count: 1}}}
	if got := cfg.TotalAgents(); got != 3 {
		t.Errorf("TotalAgents() = %d, want 3", got)
	}
}

func TestConfig_RequiredCapability(t *testing.T) {
	tests := []struct {
		require string
		want    agent.Capability
	}{
		{"", ""},
		{"  ", ""},
		{"webAccess", agent.CapabilityWebAccess},
		{" TERMINALACCESS ", agent.CapabilityTerminalAccess},
	}
	for _, tt := range tests {
		t.Run(tt.require, func(t *testing.T) {
			cfg := Config{Require: tt.require}
			got, err := cfg.RequiredCapability()
			if err != nil || got != tt.want {
				t.Errorf("RequiredCapability() = (%q, %v), want %q", got, err, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	input := `
prompt: hello
max_concurrency: 2
require: codeGeneration
agents:
  - provider: Claude
    count: 2
    model: opus
  - provider: gpt
    count: 1
    temperature: 0.2
    max_tokens: 4096
`
	cfg, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if cfg.Prompt != "hello" || cfg.MaxConcurrency != 2 || cfg.Require != "codeGeneration" {
		t.Errorf("Decode() = %+v", cfg)
	}
	if len(cfg.Agents) != 2 {
		t.Fatalf("agents = %+v", cfg.Agents)
	}
	if cfg.Agents[0].Provider != "claude" || cfg.Agents[0].Model != "opus" {
		t.Errorf("agents[0] = %+v", cfg.Agents[0])
	}
	if cfg.Agents[1].Provider != "openai" || cfg.Agents[1].Temperature == nil || *cfg.Agents[1].Temperature != 0.2 {
		t.Errorf("agents[1] = %+v", cfg.Agents[1])
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("decoded config should be valid: %v", err)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", errors.ErrNoAgents},
		{"unknown field", "agents: []\nprompts: typo\n", errors.ErrInvalidConfig},
		{"malformed", "agents: [\n", errors.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crew.yaml")
	if err := os.WriteFile(path, []byte("agents:\n  - provider: google\n    count: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.TotalAgents() != 1 || cfg.Agents[0].Provider != "google" {
		t.Errorf("LoadFile() = %+v", cfg)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadFile(missing) should fail")
	}
}

func TestExample_RoundTrips(t *testing.T) {
	data, err := Example()
	if err != nil {
		t.Fatalf("Example() error = %v", err)
	}
	cfg, err := Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode(Example()) error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("example should be valid: %v", err)
	}
	if cfg.TotalAgents() != 3 {
		t.Errorf("example TotalAgents() = %d, want 3", cfg.TotalAgents())
	}
}
