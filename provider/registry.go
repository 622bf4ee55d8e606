package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/jonwraymond/locator/location"
	"github.com/jonwraymond/locator/observe"
	"github.com/jonwraymond/locator/store"
)

// Backend is a location.Provider that can be selected by name.
type Backend interface {
	location.Provider
	Name() string
	Close() error
}

// Injector feeds fixes and provider switches into a backend. Both built-in
// backends implement it.
type Injector interface {
	Publish(ctx context.Context, loc location.Location) error
	PublishStatus(provider string, enabled bool) error
}

// Deps carries what a Factory may need to build a backend.
type Deps struct {
	Store  store.Store
	NATS   *nats.Conn
	Logger observe.Logger

	// Enabled lists providers enabled at start (memory backend) and the
	// default status for providers without one (nats backend: non-empty
	// means enabled by default).
	Enabled []string

	// Prefix is the NATS subject root.
	Prefix string
}

// Factory creates a Backend.
type Factory func(deps Deps) (Backend, error)

// ErrNATSRequired is returned by the nats factory without a connection.
var ErrNATSRequired = errors.New("provider: nats backend requires a connection")

// Registry manages backend factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// NewDefaultRegistry creates a registry with the memory and nats backends.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register("memory", func(d Deps) (Backend, error) {
		return NewMemory(d.Store, d.Enabled...), nil
	})
	_ = r.Register("nats", func(d Deps) (Backend, error) {
		if d.NATS == nil {
			return nil, ErrNATSRequired
		}
		return NewNATS(d.NATS, d.Store, NATSConfig{
			Prefix:         d.Prefix,
			DefaultEnabled: len(d.Enabled) > 0,
			Logger:         d.Logger,
		})
	})
	return r
}

// Register adds a backend factory.
func (r *Registry) Register(name string, factory Factory) error {
	if strings.TrimSpace(name) == "" || factory == nil {
		return errors.New("invalid backend registration")
	}
	name = strings.TrimSpace(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("backend %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates a backend by name.
func (r *Registry) Create(name string, deps Deps) (Backend, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("backend name is required")
	}

	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("backend %q is not registered", name)
	}

	return factory(deps)
}

// List returns registered backend names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
