// Package provider declares the provider variants an agent can be built from.
//
// A Variant is plain data: a capability row plus the CLI arguments used by the
// command transport. Adding a provider means registering one more Variant in a
// Catalog; the supervisor and registry never switch on provider kind.
package provider

import (
	"slices"
	"strings"
	"sync"

	"github.com/mkykode/agentcrew/internal/agent"
	"github.com/mkykode/agentcrew/internal/errors"
)

// Kind identifies a provider.
type Kind string

const (
	KindClaude Kind = "claude"
	KindOpenAI Kind = "openai"
	KindGoogle Kind = "google"
)

// Variant describes one provider.
type Variant struct {
	Kind         Kind
	DisplayName  string
	Capabilities agent.Capabilities
	// DefaultCommand is the CLI binary used when config does not name one.
	DefaultCommand string
	// Args builds the CLI arguments for a single prompt. model may be empty.
	Args func(model, prompt string) []string
}

// Validate reports whether the variant can be registered.
func (v Variant) Validate() error {
	if v.Kind == "" {
		return errors.NewValidationError("provider kind is required").WithField("kind")
	}
	if strings.ToLower(string(v.Kind)) != string(v.Kind) {
		return errors.NewValidationError("provider kind must be lower case").WithField("kind").WithValue(v.Kind)
	}
	if v.DisplayName == "" {
		return errors.NewValidationError("display name is required").WithField("display_name").WithValue(v.Kind)
	}
	return nil
}

// Claude returns the built-in claude variant.
func Claude() Variant {
	return Variant{
		Kind:        KindClaude,
		DisplayName: "Claude",
		Capabilities: agent.Capabilities{
			CodeGeneration: true,
			FileOperations: true,
			GitOperations:  true,
			TerminalAccess: true,
			WebAccess:      true,
		},
		DefaultCommand: "claude",
		Args: func(model, prompt string) []string {
			args := []string{"--print"}
			if model != "" {
				args = append(args, "--model", model)
			}
			return append(args, prompt)
		},
	}
}

// OpenAI returns the built-in openai variant, driven through the codex CLI.
func OpenAI() Variant {
	return Variant{
		Kind:        KindOpenAI,
		DisplayName: "OpenAI",
		Capabilities: agent.Capabilities{
			CodeGeneration: true,
		},
		DefaultCommand: "codex",
		Args: func(model, prompt string) []string {
			args := []string{"exec"}
			if model != "" {
				args = append(args, "--model", model)
			}
			return append(args, prompt)
		},
	}
}

// Google returns the built-in google variant, driven through the gemini CLI.
func Google() Variant {
	return Variant{
		Kind:        KindGoogle,
		DisplayName: "Google",
		Capabilities: agent.Capabilities{
			CodeGeneration: true,
			WebAccess:      true,
		},
		DefaultCommand: "gemini",
		Args: func(model, prompt string) []string {
			var args []string
			if model != "" {
				args = append(args, "--model", model)
			}
			return append(args, "-p", prompt)
		},
	}
}

// Catalog maps provider kinds to variants. It is safe for concurrent use.
type Catalog struct {
	mu       sync.RWMutex
	variants map[Kind]Variant
	order    []Kind
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{variants: make(map[Kind]Variant)}
}

// DefaultCatalog returns a catalog holding the claude, openai and google variants.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, v := range []Variant{Claude(), OpenAI(), Google()} {
		// built-ins are valid and distinct
		_ = c.Register(v)
	}
	return c
}

// Register adds a variant. Registering a kind twice fails.
func (c *Catalog) Register(v Variant) error {
	if err := v.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.variants[v.Kind]; exists {
		return errors.NewAlreadyExistsError("provider", string(v.Kind))
	}
	c.variants[v.Kind] = v
	c.order = append(c.order, v.Kind)
	return nil
}

// Lookup returns the variant for kind, matched case-insensitively.
func (c *Catalog) Lookup(kind string) (Variant, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.variants[Kind(strings.ToLower(strings.TrimSpace(kind)))]
	if !ok {
		return Variant{}, errors.NewValidationError("unknown provider").
			WithField("provider").
			WithValue(kind).
			WithCause(errors.ErrUnknownProvider)
	}
	return v, nil
}

// Kinds returns the registered kinds in registration order.
func (c *Catalog) Kinds() []Kind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order)
}
