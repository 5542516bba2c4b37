package registry

import (
	"github.com/gobwas/glob"

	"github.com/mkykode/agentcrew/internal/errors"
)

// Pattern selects agents by a glob over their id or provider, e.g. "claude-*"
// or "openai". The zero Pattern matches every agent.
type Pattern struct {
	raw string
	g   glob.Glob
}

// ParsePattern compiles raw. An empty raw yields the zero Pattern.
func ParsePattern(raw string) (Pattern, error) {
	if raw == "" {
		return Pattern{}, nil
	}
	g, err := glob.Compile(raw)
	if err != nil {
		return Pattern{}, errors.NewValidationError("invalid agent pattern").
			WithField("pattern").
			WithValue(raw).
			WithCause(err)
	}
	return Pattern{raw: raw, g: g}, nil
}

// String returns the pattern as given.
func (p Pattern) String() string { return p.raw }

// Exact reports whether the pattern names exactly the agent id.
func (p Pattern) Exact(id string) bool {
	return p.raw != "" && p.raw == id
}

// Match reports whether an agent with the given id and provider is selected.
func (p Pattern) Match(id, provider string) bool {
	if p.g == nil {
		return true
	}
	return p.raw == id || p.g.Match(id) || p.g.Match(provider)
}
