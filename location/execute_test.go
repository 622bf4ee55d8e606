package location

import (
	"context"
	"errors"
	"testing"
	"time"
)

var defaultFix = &Location{Provider: "default", Latitude: 48.8566, Longitude: 2.3522}

func TestExecute_Scenarios(t *testing.T) {
	t.Run("missing cached fix falls back to default", func(t *testing.T) {
		p := newFakeProvider()
		chain := NewBuilder().
			AddLastKnown(GPS, LocationTime{}, false, nil).
			SetDefault(defaultFix).
			Build()

		loc, err := newTestManager(p).Execute(context.Background(), chain)
		if err != nil || loc == nil || *loc != *defaultFix {
			t.Errorf("Execute() = (%v, %v), want default", loc, err)
		}
	})

	t.Run("stale cached fix falls through to live", func(t *testing.T) {
		p := newFakeProvider()
		p.last[GPS] = fixAt(GPS, time.Hour)
		live := *fixAt(GPS, 0)
		p.onRegister = func(Listener) { go p.emit(live) }

		chain := NewBuilder().
			AddLastKnown(GPS, NewLocationTime(10, Minutes), false, nil).
			AddLive(GPS, NewLocationTime(5, Seconds), nil).
			Build()

		loc, err := newTestManager(p).Execute(context.Background(), chain)
		if err != nil || loc == nil || *loc != live {
			t.Errorf("Execute() = (%v, %v), want live fix", loc, err)
		}
	})

	t.Run("empty chain returns default without provider calls", func(t *testing.T) {
		p := newFakeProvider()
		chain := NewBuilder().SetDefault(defaultFix).Build()

		loc, err := newTestManager(p).Execute(context.Background(), chain)
		if err != nil || loc == nil || *loc != *defaultFix {
			t.Errorf("Execute() = (%v, %v), want default", loc, err)
		}
		if calls, _, _ := p.counts(); calls != 0 {
			t.Errorf("provider calls = %d, want 0", calls)
		}
	})

	t.Run("disabled live provider with return default on error", func(t *testing.T) {
		p := newFakeProvider()
		p.disabled[GPS] = true
		chain := NewBuilder().
			AddLive(GPS, LocationTime{}, nil).
			SetDefault(defaultFix).
			SetReturnDefaultOnError(true).
			Build()

		loc, err := newTestManager(p).Execute(context.Background(), chain)
		if err != nil || loc == nil || *loc != *defaultFix {
			t.Errorf("Execute() = (%v, %v), want default", loc, err)
		}
	})
}

func TestExecute_FirstValueWins(t *testing.T) {
	p := newFakeProvider()
	p.last[Network] = fixAt(Network, time.Minute)
	p.last[GPS] = fixAt(GPS, time.Minute)

	chain := NewBuilder().
		AddLastKnown(Network, NewLocationTime(10, Minutes), false, nil).
		AddLastKnown(GPS, LocationTime{}, false, nil).
		AddLive(GPS, LocationTime{}, nil).
		Build()

	loc, err := newTestManager(p).Execute(context.Background(), chain)
	if err != nil || loc == nil || loc.Provider != Network {
		t.Fatalf("Execute() = (%v, %v), want network fix", loc, err)
	}
	if calls, regs, _ := p.counts(); calls != 1 || regs != 0 {
		t.Errorf("calls/registrations = %d/%d, want 1/0", calls, regs)
	}
}

func TestExecute_NoValueWithoutDefault(t *testing.T) {
	p := newFakeProvider()
	p.disabled[GPS] = true
	chain := NewBuilder().
		AddLastKnown(GPS, LocationTime{}, false, nil).
		AddLive(GPS, LocationTime{}, nil).
		Build()

	loc, err := newTestManager(p).Execute(context.Background(), chain)
	if loc != nil || err != nil {
		t.Errorf("Execute() = (%v, %v), want (nil, nil)", loc, err)
	}
}

func TestExecute_NullIsValid(t *testing.T) {
	p := newFakeProvider()
	p.last[Network] = fixAt(Network, 0)
	chain := NewBuilder().
		AddLastKnown(GPS, LocationTime{}, true, nil).
		AddLastKnown(Network, LocationTime{}, false, nil).
		SetDefault(defaultFix).
		Build()

	loc, err := newTestManager(p).Execute(context.Background(), chain)
	if loc != nil || err != nil {
		t.Errorf("Execute() = (%v, %v), want (nil, nil)", loc, err)
	}
	if calls, _, _ := p.counts(); calls != 1 {
		t.Errorf("provider calls = %d, want 1", calls)
	}
}

func TestExecute_Downgrades(t *testing.T) {
	tests := []struct {
		name  string
		setup func(p *fakeProvider)
		chain func(b *Builder) *Builder
	}{
		{
			name:  "last known too old",
			setup: func(p *fakeProvider) { p.last[GPS] = fixAt(GPS, time.Hour) },
			chain: func(b *Builder) *Builder { return b.AddLastKnown(GPS, NewLocationTime(1, Minutes), false, nil) },
		},
		{
			name:  "last known provider disabled",
			setup: func(p *fakeProvider) { p.lastErr = ErrProviderDisabled },
			chain: func(b *Builder) *Builder { return b.AddLastKnown(GPS, LocationTime{}, false, nil) },
		},
		{
			name:  "live timeout",
			setup: func(p *fakeProvider) {},
			chain: func(b *Builder) *Builder { return b.AddLive(GPS, NewLocationTime(10, Milliseconds), nil) },
		},
		{
			name:  "live provider disabled",
			setup: func(p *fakeProvider) { p.disabled[GPS] = true },
			chain: func(b *Builder) *Builder { return b.AddLive(GPS, LocationTime{}, nil) },
		},
		{
			name:  "filtered permission denial",
			setup: func(p *fakeProvider) { p.lastErr = ErrPermissionDenied },
			chain: func(b *Builder) *Builder {
				return b.AddLastKnown(GPS, LocationTime{}, false, IgnoreKinds(KindPermissionDenied))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider()
			tt.setup(p)
			chain := tt.chain(NewBuilder()).SetDefault(defaultFix).Build()

			loc, err := newTestManager(p).Execute(context.Background(), chain)
			if err != nil || loc == nil || *loc != *defaultFix {
				t.Errorf("Execute() = (%v, %v), want default", loc, err)
			}
		})
	}
}

func TestExecute_PermissionDeniedPropagates(t *testing.T) {
	p := newFakeProvider()
	p.registerErr = ErrPermissionDenied
	p.last[Network] = fixAt(Network, 0)

	chain := NewBuilder().
		AddLive(GPS, LocationTime{}, IgnoreKinds(KindRequestTimeout)).
		AddLastKnown(Network, LocationTime{}, false, nil).
		SetDefault(defaultFix).
		Build()

	loc, err := newTestManager(p).Execute(context.Background(), chain)
	if loc != nil {
		t.Errorf("Execute() location = %v, want nil", loc)
	}
	var le *Error
	if !errors.As(err, &le) || le.Kind != KindPermissionDenied || le.Provider != GPS {
		t.Errorf("Execute() error = %v, want permission denied for gps", err)
	}
}

func TestExecute_ReturnDefaultOnErrorAdvances(t *testing.T) {
	p := newFakeProvider()
	p.registerErr = ErrPermissionDenied
	p.last[Network] = fixAt(Network, 0)

	chain := NewBuilder().
		AddLive(GPS, LocationTime{}, nil).
		AddLastKnown(Network, LocationTime{}, false, nil).
		SetDefault(defaultFix).
		SetReturnDefaultOnError(true).
		Build()

	loc, err := newTestManager(p).Execute(context.Background(), chain)
	if err != nil || loc == nil || loc.Provider != Network {
		t.Errorf("Execute() = (%v, %v), want network fix from the next step", loc, err)
	}
}

func TestExecute_Idempotent(t *testing.T) {
	build := func() Chain {
		return NewBuilder().
			AddLastKnown(GPS, NewLocationTime(10, Minutes), false, nil).
			AddLive(Network, NewLocationTime(10, Milliseconds), nil).
			AddLastKnown(Passive, LocationTime{}, false, nil).
			SetDefault(defaultFix).
			Build()
	}
	setup := func() *fakeProvider {
		p := newFakeProvider()
		p.last[GPS] = fixAt(GPS, time.Hour)
		p.last[Passive] = fixAt(Passive, time.Hour)
		return p
	}

	chain := build()
	var results []*Location
	for _, c := range []Chain{chain, chain, build()} {
		p := setup()
		loc, err := newTestManager(p).Execute(context.Background(), c)
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if _, regs, deregs := p.counts(); regs != 1 || deregs != 1 {
			t.Errorf("registrations/deregistrations = %d/%d, want 1/1", regs, deregs)
		}
		results = append(results, loc)
	}

	for i, loc := range results {
		if loc == nil || *loc != *results[0] || loc.Provider != Passive {
			t.Errorf("run %d = %+v, want %+v", i, loc, results[0])
		}
	}
}

func TestGo_CancelStopsActiveStep(t *testing.T) {
	p := newFakeProvider()
	p.last[Network] = fixAt(Network, 0)
	registered := make(chan struct{})
	p.onRegister = func(Listener) { close(registered) }

	chain := NewBuilder().
		AddLive(GPS, LocationTime{}, IgnoreAll).
		AddLastKnown(Network, LocationTime{}, false, nil).
		SetDefault(defaultFix).
		SetReturnDefaultOnError(true).
		Build()

	f := newTestManager(p).Go(context.Background(), chain)
	<-registered
	f.Cancel()
	f.Cancel()

	loc, err := f.Result()
	if loc != nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("Result() = (%v, %v), want context.Canceled", loc, err)
	}
	calls, regs, deregs := p.counts()
	if regs != 1 || deregs != 1 {
		t.Errorf("registrations/deregistrations = %d/%d, want 1/1", regs, deregs)
	}
	// IsProviderEnabled and RegisterSingleUpdate only; the LastKnown step never ran.
	if calls != 2 {
		t.Errorf("provider calls = %d, want 2", calls)
	}
}

func TestFuture_Wait(t *testing.T) {
	p := newFakeProvider()
	registered := make(chan struct{})
	p.onRegister = func(Listener) { close(registered) }
	m := newTestManager(p)

	f := m.GoRequestLocation(context.Background(), GPS, LiveOptions{})
	defer f.Cancel()
	<-registered

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}

	select {
	case <-f.Done():
		t.Fatal("giving up on Wait must not end the request")
	default:
	}

	p.emit(*fixAt(GPS, 0))
	loc, err := f.Result()
	if err != nil || loc == nil {
		t.Errorf("Result() = (%v, %v), want fix", loc, err)
	}
}

func TestGoLastKnown(t *testing.T) {
	p := newFakeProvider()
	p.last[GPS] = fixAt(GPS, time.Minute)

	loc, err := newTestManager(p).GoLastKnown(context.Background(), GPS, OneHour()).Result()
	if err != nil || loc == nil || loc.Provider != GPS {
		t.Errorf("Result() = (%v, %v), want gps fix", loc, err)
	}
}
