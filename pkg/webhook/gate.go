package webhook

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Gate decides whether an event type is forwarded at all. It is a pure
// deny-list: every event is enabled unless its name matches a disabled
// pattern. Patterns are glob-style ("group_*" disables all group events)
// and compiled once at construction; callers that want a deny-list change
// to take effect must restart the affected sessions.
type Gate struct {
	patterns []glob.Glob
	raw      []string
}

// NewGate compiles the disabled-event patterns into a gate.
func NewGate(disabled []string) (*Gate, error) {
	g := &Gate{raw: append([]string(nil), disabled...)}
	for _, p := range disabled {
		compiled, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid disabled callback pattern %q: %w", p, err)
		}
		g.patterns = append(g.patterns, compiled)
	}
	return g, nil
}

// IsEnabled reports whether events of the given name may be forwarded.
func (g *Gate) IsEnabled(event string) bool {
	for _, p := range g.patterns {
		if p.Match(event) {
			return false
		}
	}
	return true
}

// Disabled returns the configured deny-list patterns.
func (g *Gate) Disabled() []string {
	return append([]string(nil), g.raw...)
}
