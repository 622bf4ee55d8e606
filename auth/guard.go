package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/locator/location"
)

// ScopePolicy maps provider names to the scope needed to query them.
type ScopePolicy struct {
	// Required maps a provider to its scope.
	Required map[string]string

	// Default is required for providers missing from Required.
	// Default: ScopeFine
	Default string
}

// DefaultScopePolicy requires ScopeCoarse for the network provider and
// ScopeFine for everything else.
func DefaultScopePolicy() ScopePolicy {
	return ScopePolicy{
		Required: map[string]string{
			location.GPS:     ScopeFine,
			location.Passive: ScopeFine,
			location.Network: ScopeCoarse,
		},
		Default: ScopeFine,
	}
}

// Scope returns the scope required for provider.
func (p ScopePolicy) Scope(provider string) string {
	if s, ok := p.Required[provider]; ok {
		return s
	}
	if p.Default == "" {
		return ScopeFine
	}
	return p.Default
}

// Guard is a location.Provider that checks the identity in the request
// context before delegating. Enabled checks and deregistration are not
// guarded.
type Guard struct {
	next   location.Provider
	policy ScopePolicy
}

// NewGuard wraps p. If p reports its own elapsed clock, so does the result.
func NewGuard(p location.Provider, policy ScopePolicy) location.Provider {
	g := &Guard{next: p, policy: policy}
	if ec, ok := p.(location.ElapsedClock); ok {
		return &elapsedGuard{Guard: g, clock: ec}
	}
	return g
}

// Authorize returns an error wrapping location.ErrPermissionDenied unless
// the identity in ctx may query provider.
func (g *Guard) Authorize(ctx context.Context, provider string) error {
	id := IdentityFromContext(ctx)
	scope := g.policy.Scope(provider)
	switch {
	case id == nil:
		return fmt.Errorf("%w: %w", location.ErrPermissionDenied, ErrMissingCredentials)
	case id.IsExpired():
		return fmt.Errorf("%w: %w", location.ErrPermissionDenied, ErrTokenExpired)
	case !id.HasScope(scope):
		return fmt.Errorf("%w: %w: %s requires %s", location.ErrPermissionDenied, ErrForbidden, provider, scope)
	}
	return nil
}

// LastKnown authorizes and delegates.
func (g *Guard) LastKnown(ctx context.Context, provider string) (*location.Location, error) {
	if err := g.Authorize(ctx, provider); err != nil {
		return nil, err
	}
	return g.next.LastKnown(ctx, provider)
}

// IsProviderEnabled delegates without authorization.
func (g *Guard) IsProviderEnabled(ctx context.Context, provider string) (bool, error) {
	return g.next.IsProviderEnabled(ctx, provider)
}

// RegisterSingleUpdate authorizes and delegates.
func (g *Guard) RegisterSingleUpdate(ctx context.Context, provider string, l location.Listener) (location.Registration, error) {
	if err := g.Authorize(ctx, provider); err != nil {
		return nil, err
	}
	return g.next.RegisterSingleUpdate(ctx, provider, l)
}

type elapsedGuard struct {
	*Guard
	clock location.ElapsedClock
}

func (g *elapsedGuard) ElapsedRealtime() time.Duration {
	return g.clock.ElapsedRealtime()
}
