package shared

import (
	"github.com/civitas-platform/civitas/internal/authz"
	"github.com/civitas-platform/civitas/internal/observability"
)

// Guard wraps the permission resolver with decision metrics. Evaluation stays
// pure; the guard only observes outcomes.
type Guard struct {
	resolver *authz.Resolver
	metrics  *observability.Metrics
}

// NewGuard constructs a Guard.
func NewGuard(resolver *authz.Resolver, metrics *observability.Metrics) *Guard {
	return &Guard{resolver: resolver, metrics: metrics}
}

// Resolver exposes the underlying resolver for composed checks.
func (g *Guard) Resolver() *authz.Resolver {
	return g.resolver
}

// Can evaluates an action and records the outcome.
func (g *Guard) Can(sub authz.Subject, obj authz.Object, action authz.Action) bool {
	allowed := g.resolver.Can(sub, obj, action)
	g.metrics.RecordDecision(string(obj.Resource), string(action), allowed)
	return allowed
}

// CanView evaluates read access and records the outcome.
func (g *Guard) CanView(sub authz.Subject, obj authz.Object) bool {
	allowed := g.resolver.CanView(sub, obj)
	g.metrics.RecordDecision(string(obj.Resource), string(authz.ActionRead), allowed)
	return allowed
}
