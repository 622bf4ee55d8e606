package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/locator/location"
	"github.com/jonwraymond/locator/store"
)

// Memory is an in-process location service.
type Memory struct {
	store store.Store
	boot  time.Time

	mu        sync.Mutex
	enabled   map[string]bool
	denied    bool
	listeners map[string]map[string]location.Listener
}

// NewMemory creates a service with the given providers enabled. A nil store
// keeps fixes in memory without expiry.
func NewMemory(s store.Store, enabled ...string) *Memory {
	if s == nil {
		s = store.NewMemory(store.Policy{})
	}
	m := &Memory{
		store:     s,
		boot:      time.Now(),
		enabled:   make(map[string]bool),
		listeners: make(map[string]map[string]location.Listener),
	}
	for _, p := range enabled {
		m.enabled[p] = true
	}
	return m
}

// Name returns "memory".
func (m *Memory) Name() string { return "memory" }

// ElapsedRealtime returns the time since the service started.
func (m *Memory) ElapsedRealtime() time.Duration {
	return time.Since(m.boot)
}

// LastKnown returns the latest published fix for provider.
func (m *Memory) LastKnown(ctx context.Context, provider string) (*location.Location, error) {
	if m.isDenied() {
		return nil, location.ErrPermissionDenied
	}
	return m.store.Get(ctx, provider)
}

// IsProviderEnabled reports whether provider is switched on.
func (m *Memory) IsProviderEnabled(_ context.Context, provider string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled[provider], nil
}

// RegisterSingleUpdate registers l for the next fix published for provider.
func (m *Memory) RegisterSingleUpdate(_ context.Context, provider string, l location.Listener) (location.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.denied {
		return nil, location.ErrPermissionDenied
	}

	id := uuid.NewString()
	if m.listeners[provider] == nil {
		m.listeners[provider] = make(map[string]location.Listener)
	}
	m.listeners[provider][id] = l
	return &memoryRegistration{m: m, provider: provider, id: id}, nil
}

// Publish records loc and hands it to every listener waiting on its
// provider. Unset timestamps are filled in from the service clocks.
func (m *Memory) Publish(ctx context.Context, loc location.Location) error {
	if err := store.ValidateProvider(loc.Provider); err != nil {
		return err
	}
	now := time.Now()
	if loc.Time.IsZero() {
		loc.Time = now
	}
	if loc.ElapsedRealtime == 0 {
		loc.ElapsedRealtime = m.ElapsedRealtime() - now.Sub(loc.Time)
	}

	m.mu.Lock()
	if !m.enabled[loc.Provider] {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", location.ErrProviderDisabled, loc.Provider)
	}
	waiting := m.listeners[loc.Provider]
	delete(m.listeners, loc.Provider)
	m.mu.Unlock()

	if err := m.store.Put(ctx, loc); err != nil {
		return err
	}

	for _, l := range waiting {
		if l.OnLocation != nil {
			l.OnLocation(loc)
		}
	}
	return nil
}

// SetEnabled switches provider on or off. Listeners waiting on a provider
// being switched off are notified; they stay registered until removed.
func (m *Memory) SetEnabled(provider string, enabled bool) {
	m.mu.Lock()
	was := m.enabled[provider]
	m.enabled[provider] = enabled
	var waiting []location.Listener
	if was && !enabled {
		for _, l := range m.listeners[provider] {
			waiting = append(waiting, l)
		}
	}
	m.mu.Unlock()

	for _, l := range waiting {
		if l.OnProviderDisabled != nil {
			l.OnProviderDisabled(provider)
		}
	}
}

// PublishStatus is SetEnabled with the Injector signature.
func (m *Memory) PublishStatus(provider string, enabled bool) error {
	if err := store.ValidateProvider(provider); err != nil {
		return err
	}
	m.SetEnabled(provider, enabled)
	return nil
}

// SetPermission grants or revokes location access.
func (m *Memory) SetPermission(granted bool) {
	m.mu.Lock()
	m.denied = !granted
	m.mu.Unlock()
}

// Providers returns the enabled providers.
func (m *Memory) Providers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for p, on := range m.enabled {
		if on {
			out = append(out, p)
		}
	}
	return out
}

// Listeners returns the number of listeners registered for provider.
func (m *Memory) Listeners(provider string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners[provider])
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

func (m *Memory) isDenied() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.denied
}

type memoryRegistration struct {
	m        *Memory
	provider string
	id       string
	once     sync.Once
}

// Deregister removes the listener. While permission is revoked the listener
// is still removed but ErrPermissionDenied is reported.
func (r *memoryRegistration) Deregister() error {
	var err error
	r.once.Do(func() {
		r.m.mu.Lock()
		defer r.m.mu.Unlock()
		delete(r.m.listeners[r.provider], r.id)
		if len(r.m.listeners[r.provider]) == 0 {
			delete(r.m.listeners, r.provider)
		}
		if r.m.denied {
			err = location.ErrPermissionDenied
		}
	})
	return err
}

var (
	_ Backend               = (*Memory)(nil)
	_ location.ElapsedClock = (*Memory)(nil)
)
