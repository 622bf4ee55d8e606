package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/locator/location"
)

// Pinger is a backend that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports a backend unhealthy when Ping fails.
type PingChecker struct {
	name   string
	pinger Pinger
}

// NewPingChecker creates a checker named name around p.
func NewPingChecker(name string, p Pinger) *PingChecker {
	return &PingChecker{name: name, pinger: p}
}

// Name returns the name of this checker.
func (c *PingChecker) Name() string { return c.name }

// Check pings the backend.
func (c *PingChecker) Check(ctx context.Context) Result {
	if err := c.pinger.Ping(ctx); err != nil {
		return Unhealthy(fmt.Sprintf("%s unreachable", c.name), err)
	}
	return Healthy(fmt.Sprintf("%s reachable", c.name))
}

// ConnChecker reports a connection-oriented backend unhealthy when its
// connected func returns false. It fits clients like nats.Conn that track
// connection state without a round trip.
func ConnChecker(name string, connected func() bool) *CheckerFunc {
	return NewCheckerFunc(name, func(context.Context) Result {
		if !connected() {
			return Unhealthy(fmt.Sprintf("%s disconnected", name), ErrCheckFailed)
		}
		return Healthy(fmt.Sprintf("%s connected", name))
	})
}

// ProviderChecker reports which location providers are switched on.
//
// The result is healthy when every watched provider is enabled, degraded when
// only some are, and unhealthy when none are or the location service fails.
// A permission refusal is unhealthy too: no chain step can succeed without it.
type ProviderChecker struct {
	provider  location.Provider
	providers []string
}

// NewProviderChecker watches the named providers of p.
func NewProviderChecker(p location.Provider, providers ...string) *ProviderChecker {
	return &ProviderChecker{provider: p, providers: append([]string(nil), providers...)}
}

// Name returns the name of this checker.
func (c *ProviderChecker) Name() string { return "location_providers" }

// Check queries IsProviderEnabled for every watched provider.
func (c *ProviderChecker) Check(ctx context.Context) Result {
	details := make(map[string]any, len(c.providers))
	enabled := 0
	for _, name := range c.providers {
		on, err := c.provider.IsProviderEnabled(ctx, name)
		if err != nil {
			msg := fmt.Sprintf("provider %q check failed", name)
			if errors.Is(err, location.ErrPermissionDenied) {
				msg = "location permission denied"
			}
			return Unhealthy(msg, err).WithDetails(details)
		}
		details[name] = on
		if on {
			enabled++
		}
	}

	switch {
	case enabled == len(c.providers):
		return Healthy(fmt.Sprintf("%d providers enabled", enabled)).WithDetails(details)
	case enabled == 0:
		return Unhealthy("no providers enabled", ErrNoProvidersEnabled).WithDetails(details)
	default:
		return Degraded(fmt.Sprintf("%d of %d providers enabled", enabled, len(c.providers))).WithDetails(details)
	}
}
