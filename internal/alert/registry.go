package alert

import (
	"context"
	"fmt"

	"github.com/linnemanlabs/go-core/log"
)

// Registry routes alerts to the rule owning their source type. It is built
// once at startup and immutable afterwards: dispatch is a single map lookup,
// never sequential matching.
type Registry struct {
	rules  map[string]Rule
	logger log.Logger
}

// NewRegistry builds the dispatch table. Registering two rules for the same
// source type is a fatal configuration error, not a silent pick.
func NewRegistry(logger log.Logger, rules ...Rule) (*Registry, error) {
	if logger == nil {
		logger = log.Nop()
	}
	m := make(map[string]Rule, len(rules))
	for _, r := range rules {
		if _, dup := m[r.SourceType()]; dup {
			return nil, fmt.Errorf("duplicate rule registered for source type %q", r.SourceType())
		}
		m[r.SourceType()] = r
	}
	return &Registry{rules: m, logger: logger}, nil
}

// Evaluate dispatches the alert to its rule. An alert whose source type has
// no registered rule is returned unevaluated; that is a valid state and only
// logged as a warning.
func (g *Registry) Evaluate(ctx context.Context, al *Alert) (*Evaluation, error) {
	r, ok := g.rules[al.SourceType]
	if !ok {
		g.logger.Warn(ctx, "no rule registered for source type, alert not evaluated",
			"source_type", al.SourceType,
			"alert_id", al.ID,
		)
		return &Evaluation{}, nil
	}
	return r.Evaluate(ctx, al)
}

// Has reports whether a rule is registered for the source type.
func (g *Registry) Has(sourceType string) bool {
	_, ok := g.rules[sourceType]
	return ok
}

// Len returns the number of registered rules.
func (g *Registry) Len() int {
	return len(g.rules)
}
