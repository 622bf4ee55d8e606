package location

import (
	"context"
	"sync"
	"time"
)

// fakeProvider is a scripted Provider that records every external call.
type fakeProvider struct {
	mu sync.Mutex

	last     map[string]*Location
	lastErr  error
	disabled map[string]bool

	enabledErr    error
	registerErr   error
	deregisterErr error

	// onRegister runs synchronously inside RegisterSingleUpdate.
	onRegister func(l Listener)

	listeners map[int]Listener
	nextID    int

	calls           int
	registrations   int
	deregistrations int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		last:      make(map[string]*Location),
		disabled:  make(map[string]bool),
		listeners: make(map[int]Listener),
	}
}

func (f *fakeProvider) LastKnown(_ context.Context, provider string) (*Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.lastErr != nil {
		return nil, f.lastErr
	}
	return f.last[provider].clone(), nil
}

func (f *fakeProvider) IsProviderEnabled(_ context.Context, provider string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.enabledErr != nil {
		return false, f.enabledErr
	}
	return !f.disabled[provider], nil
}

func (f *fakeProvider) RegisterSingleUpdate(_ context.Context, _ string, l Listener) (Registration, error) {
	f.mu.Lock()
	f.calls++
	if f.registerErr != nil {
		f.mu.Unlock()
		return nil, f.registerErr
	}
	f.registrations++
	f.nextID++
	id := f.nextID
	f.listeners[id] = l
	hook := f.onRegister
	f.mu.Unlock()

	if hook != nil {
		hook(l)
	}
	return &fakeRegistration{f: f, id: id}, nil
}

// emit delivers loc to every registered listener.
func (f *fakeProvider) emit(loc Location) {
	for _, l := range f.active() {
		l.OnLocation(loc)
	}
}

func (f *fakeProvider) disable(provider string) {
	f.mu.Lock()
	f.disabled[provider] = true
	f.mu.Unlock()
	for _, l := range f.active() {
		l.OnProviderDisabled(provider)
	}
}

func (f *fakeProvider) active() []Listener {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Listener, 0, len(f.listeners))
	for _, l := range f.listeners {
		out = append(out, l)
	}
	return out
}

func (f *fakeProvider) counts() (calls, registrations, deregistrations int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.registrations, f.deregistrations
}

type fakeRegistration struct {
	f    *fakeProvider
	id   int
	once sync.Once
}

func (r *fakeRegistration) Deregister() error {
	r.once.Do(func() {
		r.f.mu.Lock()
		defer r.f.mu.Unlock()
		delete(r.f.listeners, r.id)
		r.f.deregistrations++
	})
	return r.f.deregisterErr
}

// fixedClock reports a constant time on both bases.
type fixedClock struct {
	now     time.Time
	elapsed time.Duration
}

func (c fixedClock) Now() time.Time                 { return c.now }
func (c fixedClock) ElapsedRealtime() time.Duration { return c.elapsed }

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixAt(provider string, age time.Duration) *Location {
	return &Location{
		Provider:  provider,
		Latitude:  52.52,
		Longitude: 13.405,
		Time:      testNow.Add(-age),
	}
}

func newTestManager(p Provider, opts ...Option) *Manager {
	opts = append([]Option{WithClock(fixedClock{now: testNow}), WithClockBasis(ClockWall)}, opts...)
	return NewManager(p, opts...)
}
