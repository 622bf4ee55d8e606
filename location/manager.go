package location

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/jonwraymond/locator/observe"
	"github.com/jonwraymond/locator/resilience"
)

// Manager runs location requests and chains against a Provider.
// A Manager is safe for concurrent use; it holds no per-request state.
type Manager struct {
	provider   Provider
	validator  *Validator
	logger     observe.Logger
	middleware *observe.Middleware
}

type options struct {
	logger     observe.Logger
	middleware *observe.Middleware
	clock      Clock
	basis      ClockBasis
	basisSet   bool
}

// Option configures a Manager.
type Option func(*options)

// WithLogger sets the logger. Defaults to observe.NopLogger.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMiddleware sets the middleware wrapped around every chain step.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(o *options) { o.middleware = mw }
}

// WithClock sets the clock used for staleness checks.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithClockBasis forces the staleness clock basis instead of detecting it
// from the provider.
func WithClockBasis(b ClockBasis) Option {
	return func(o *options) {
		o.basis = b
		o.basisSet = true
	}
}

// NewManager returns a Manager for p.
func NewManager(p Provider, opts ...Option) *Manager {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = observe.NopLogger()
	}
	if o.middleware == nil {
		o.middleware = observe.NewMiddleware(nil, nil, o.logger)
	}

	ec, hasElapsed := p.(ElapsedClock)
	if !o.basisSet {
		o.basis = ClockWall
		if hasElapsed {
			o.basis = ClockElapsed
		}
	}
	if o.clock == nil && hasElapsed {
		o.clock = providerClock{ec}
	}

	return &Manager{
		provider:   p,
		validator:  NewValidator(o.clock, o.basis),
		logger:     o.logger,
		middleware: o.middleware,
	}
}

// Validator returns the staleness validator in use.
func (m *Manager) Validator() *Validator { return m.validator }

// LastKnown returns the provider's cached fix, or nil when it has none.
// A fix older than maxAge fails with ErrLocationTooOld; the *Error carries
// the rejected fix.
func (m *Manager) LastKnown(ctx context.Context, provider string, maxAge LocationTime) (*Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loc, err := m.provider.LastKnown(ctx, provider)
	if err != nil {
		return nil, translate(provider, err)
	}
	if loc == nil {
		return nil, nil
	}

	out := loc.clone()
	if !m.validator.IsFresh(*out, maxAge) {
		return nil, &Error{Kind: KindLocationTooOld, Provider: provider, Location: out}
	}
	return out, nil
}

// LiveOptions configures RequestLocation.
type LiveOptions struct {
	// Timeout bounds the wait for a fix. Unset waits until ctx is done.
	Timeout LocationTime

	// IgnoreDisabled makes a disabled provider yield no fix instead of
	// ErrProviderDisabled.
	IgnoreDisabled bool
}

// RequestLocation asks provider for one fresh fix.
//
// A disabled provider fails with ErrProviderDisabled before any listener is
// registered, or returns (nil, nil) when opts.IgnoreDisabled is set. Once
// registered, the request ends with the first of: a fix, a disabled
// notification for provider, the timeout (ErrRequestTimeout) or ctx being
// done (ctx.Err()). The listener is deregistered exactly once on every path.
func (m *Manager) RequestLocation(ctx context.Context, provider string, opts LiveOptions) (*Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	enabled, err := m.provider.IsProviderEnabled(ctx, provider)
	if err != nil {
		return nil, translate(provider, err)
	}
	if !enabled {
		if opts.IgnoreDisabled {
			return nil, nil
		}
		return nil, &Error{Kind: KindProviderDisabled, Provider: provider}
	}

	sub := &subscription{provider: provider, events: make(chan liveEvent, 1)}
	reg, err := m.provider.RegisterSingleUpdate(ctx, provider, sub.listener())
	if err != nil {
		return nil, translate(provider, err)
	}
	defer m.release(ctx, provider, reg)

	var loc *Location
	timeout := resilience.NewTimeout(resilience.TimeoutConfig{Timeout: opts.Timeout.Duration()})
	err = timeout.Execute(ctx, func(ctx context.Context) error {
		var werr error
		loc, werr = sub.wait(ctx)
		return werr
	})
	if errors.Is(err, resilience.ErrTimeout) {
		return nil, &Error{Kind: KindRequestTimeout, Provider: provider, Err: err}
	}
	if err != nil {
		return nil, err
	}
	return loc, nil
}

// release deregisters reg. Permission errors during teardown are expected on
// some platforms and dropped; anything else is logged.
func (m *Manager) release(ctx context.Context, provider string, reg Registration) {
	err := reg.Deregister()
	if err == nil || errors.Is(err, ErrPermissionDenied) {
		return
	}
	m.logger.Warn(ctx, "failed to deregister location listener",
		observe.Field{Key: "provider", Value: provider},
		observe.Field{Key: "error", Value: err.Error()},
	)
}

type liveEvent struct {
	loc *Location
	err error
}

// subscription is the single result slot for one live request. The first of
// a callback or the waiter giving up settles it; later callbacks are dropped.
type subscription struct {
	provider string
	settled  atomic.Bool
	events   chan liveEvent
}

func (s *subscription) deliver(ev liveEvent) {
	if s.settled.CompareAndSwap(false, true) {
		s.events <- ev
	}
}

func (s *subscription) listener() Listener {
	return Listener{
		OnLocation: func(loc Location) {
			s.deliver(liveEvent{loc: &loc})
		},
		OnProviderDisabled: func(p string) {
			if p != s.provider {
				return
			}
			s.deliver(liveEvent{err: &Error{Kind: KindProviderDisabled, Provider: p}})
		},
	}
}

func (s *subscription) wait(ctx context.Context) (*Location, error) {
	select {
	case ev := <-s.events:
		return ev.loc, ev.err
	case <-ctx.Done():
		if s.settled.CompareAndSwap(false, true) {
			return nil, ctx.Err()
		}
		// A callback won the race and is about to fill the slot.
		ev := <-s.events
		return ev.loc, ev.err
	}
}
