package location

import "context"

// Provider is the platform location service.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: refusals must return or wrap ErrPermissionDenied.
//   - Context: LastKnown and IsProviderEnabled should honor cancellation.
type Provider interface {
	// LastKnown returns the cached fix for provider, or nil when there is none.
	LastKnown(ctx context.Context, provider string) (*Location, error)

	// IsProviderEnabled reports whether provider is switched on.
	IsProviderEnabled(ctx context.Context, provider string) (bool, error)

	// RegisterSingleUpdate registers l for at most one update from provider.
	RegisterSingleUpdate(ctx context.Context, provider string, l Listener) (Registration, error)
}

// Listener receives callbacks for a single-update registration. Callbacks may
// run on any goroutine and may arrive after the registration was removed.
type Listener struct {
	OnLocation         func(Location)
	OnProviderDisabled func(provider string)
}

// Registration is a handle to a registered Listener.
type Registration interface {
	// Deregister removes the listener. It is idempotent.
	Deregister() error
}
