package location

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/locator/observe"
)

func TestManager_LastKnown(t *testing.T) {
	maxAge := NewLocationTime(10, Minutes)

	t.Run("none", func(t *testing.T) {
		m := newTestManager(newFakeProvider())
		loc, err := m.LastKnown(context.Background(), GPS, maxAge)
		if loc != nil || err != nil {
			t.Errorf("LastKnown() = (%v, %v), want (nil, nil)", loc, err)
		}
	})

	t.Run("fresh", func(t *testing.T) {
		p := newFakeProvider()
		p.last[GPS] = fixAt(GPS, time.Minute)
		m := newTestManager(p)

		loc, err := m.LastKnown(context.Background(), GPS, maxAge)
		if err != nil {
			t.Fatalf("LastKnown() error = %v", err)
		}
		if *loc != *p.last[GPS] {
			t.Errorf("LastKnown() = %+v, want %+v", *loc, *p.last[GPS])
		}
		if loc == p.last[GPS] {
			t.Error("LastKnown() should return a copy")
		}
	})

	t.Run("stale carries the location", func(t *testing.T) {
		for _, age := range []time.Duration{10 * time.Minute, time.Hour} {
			p := newFakeProvider()
			p.last[GPS] = fixAt(GPS, age)
			m := newTestManager(p)

			loc, err := m.LastKnown(context.Background(), GPS, maxAge)
			if loc != nil {
				t.Errorf("age %v: LastKnown() location = %v, want nil", age, loc)
			}
			if !errors.Is(err, ErrLocationTooOld) {
				t.Fatalf("age %v: LastKnown() error = %v, want ErrLocationTooOld", age, err)
			}
			var le *Error
			if !errors.As(err, &le) || le.Location == nil || *le.Location != *p.last[GPS] {
				t.Errorf("age %v: error payload = %+v, want the stale location", age, le)
			}
		}
	})

	t.Run("no max age", func(t *testing.T) {
		p := newFakeProvider()
		p.last[GPS] = fixAt(GPS, 1000*time.Hour)
		loc, err := newTestManager(p).LastKnown(context.Background(), GPS, LocationTime{})
		if err != nil || loc == nil {
			t.Errorf("LastKnown() = (%v, %v), want location", loc, err)
		}
	})

	t.Run("permission denied", func(t *testing.T) {
		p := newFakeProvider()
		p.lastErr = ErrPermissionDenied
		_, err := newTestManager(p).LastKnown(context.Background(), GPS, maxAge)
		if KindOf(err) != KindPermissionDenied {
			t.Errorf("LastKnown() error = %v, want permission denied", err)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		p := newFakeProvider()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newTestManager(p).LastKnown(ctx, GPS, maxAge)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("LastKnown() error = %v, want context.Canceled", err)
		}
		if calls, _, _ := p.counts(); calls != 0 {
			t.Errorf("provider calls = %d, want 0", calls)
		}
	})
}

func TestManager_RequestLocation_Disabled(t *testing.T) {
	t.Run("require enabled", func(t *testing.T) {
		p := newFakeProvider()
		p.disabled[GPS] = true

		_, err := newTestManager(p).RequestLocation(context.Background(), GPS, LiveOptions{})
		if !errors.Is(err, ErrProviderDisabled) {
			t.Errorf("RequestLocation() error = %v, want ErrProviderDisabled", err)
		}
		if _, regs, _ := p.counts(); regs != 0 {
			t.Errorf("registrations = %d, want 0", regs)
		}
	})

	t.Run("ignore disabled", func(t *testing.T) {
		p := newFakeProvider()
		p.disabled[GPS] = true

		loc, err := newTestManager(p).RequestLocation(context.Background(), GPS, LiveOptions{IgnoreDisabled: true})
		if loc != nil || err != nil {
			t.Errorf("RequestLocation() = (%v, %v), want (nil, nil)", loc, err)
		}
		if _, regs, _ := p.counts(); regs != 0 {
			t.Errorf("registrations = %d, want 0", regs)
		}
	})

	t.Run("disabled while listening", func(t *testing.T) {
		p := newFakeProvider()
		p.onRegister = func(l Listener) {
			go p.disable(GPS)
		}

		_, err := newTestManager(p).RequestLocation(context.Background(), GPS, LiveOptions{Timeout: NewLocationTime(5, Seconds)})
		if !errors.Is(err, ErrProviderDisabled) {
			t.Errorf("RequestLocation() error = %v, want ErrProviderDisabled", err)
		}
		if _, regs, deregs := p.counts(); regs != 1 || deregs != 1 {
			t.Errorf("registrations/deregistrations = %d/%d, want 1/1", regs, deregs)
		}
	})

	t.Run("other provider disabled is ignored", func(t *testing.T) {
		p := newFakeProvider()
		fix := *fixAt(GPS, 0)
		p.onRegister = func(l Listener) {
			go func() {
				l.OnProviderDisabled(Network)
				l.OnLocation(fix)
			}()
		}

		loc, err := newTestManager(p).RequestLocation(context.Background(), GPS, LiveOptions{Timeout: NewLocationTime(5, Seconds)})
		if err != nil || loc == nil || *loc != fix {
			t.Errorf("RequestLocation() = (%v, %v), want %v", loc, err, fix)
		}
	})
}

func TestManager_RequestLocation_Delivered(t *testing.T) {
	p := newFakeProvider()
	fix := *fixAt(GPS, 0)
	p.onRegister = func(Listener) {
		go p.emit(fix)
	}

	loc, err := newTestManager(p).RequestLocation(context.Background(), GPS, LiveOptions{Timeout: NewLocationTime(5, Seconds)})
	if err != nil {
		t.Fatalf("RequestLocation() error = %v", err)
	}
	if *loc != fix {
		t.Errorf("RequestLocation() = %+v, want %+v", *loc, fix)
	}
	if _, regs, deregs := p.counts(); regs != 1 || deregs != 1 {
		t.Errorf("registrations/deregistrations = %d/%d, want 1/1", regs, deregs)
	}
}

func TestManager_RequestLocation_SynchronousCallback(t *testing.T) {
	p := newFakeProvider()
	fix := *fixAt(GPS, 0)
	p.onRegister = func(l Listener) {
		l.OnLocation(fix)
		l.OnLocation(*fixAt(Network, 0))
	}

	loc, err := newTestManager(p).RequestLocation(context.Background(), GPS, LiveOptions{})
	if err != nil || loc == nil || *loc != fix {
		t.Errorf("RequestLocation() = (%v, %v), want first fix", loc, err)
	}
}

func TestManager_RequestLocation_Timeout(t *testing.T) {
	p := newFakeProvider()
	timeout := NewLocationTime(20, Milliseconds)

	start := time.Now()
	_, err := newTestManager(p).RequestLocation(context.Background(), GPS, LiveOptions{Timeout: timeout})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrRequestTimeout) {
		t.Fatalf("RequestLocation() error = %v, want ErrRequestTimeout", err)
	}
	if elapsed < timeout.Duration() {
		t.Errorf("timed out after %v, before %v", elapsed, timeout.Duration())
	}
	if _, regs, deregs := p.counts(); regs != 1 || deregs != 1 {
		t.Errorf("registrations/deregistrations = %d/%d, want 1/1", regs, deregs)
	}
}

func TestManager_RequestLocation_Cancel(t *testing.T) {
	p := newFakeProvider()
	registered := make(chan Listener, 1)
	p.onRegister = func(l Listener) { registered <- l }

	ctx, cancel := context.WithCancel(context.Background())
	f := newTestManager(p).GoRequestLocation(ctx, GPS, LiveOptions{})

	l := <-registered
	cancel()

	loc, err := f.Result()
	if !errors.Is(err, context.Canceled) || loc != nil {
		t.Fatalf("Result() = (%v, %v), want context.Canceled", loc, err)
	}
	if _, regs, deregs := p.counts(); regs != 1 || deregs != 1 {
		t.Errorf("registrations/deregistrations = %d/%d, want 1/1", regs, deregs)
	}

	// A late callback must not block or resurrect the request.
	l.OnLocation(*fixAt(GPS, 0))
	l.OnProviderDisabled(GPS)
	if loc, err := f.Result(); loc != nil || !errors.Is(err, context.Canceled) {
		t.Errorf("Result() after late callback = (%v, %v)", loc, err)
	}
}

func TestManager_RequestLocation_CallerDeadline(t *testing.T) {
	p := newFakeProvider()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := newTestManager(p).RequestLocation(ctx, GPS, LiveOptions{Timeout: NewLocationTime(5, Seconds)})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RequestLocation() error = %v, want context.DeadlineExceeded", err)
	}
	if errors.Is(err, ErrRequestTimeout) {
		t.Error("the caller's deadline is not a request timeout")
	}
}

func TestManager_RequestLocation_RegisterDenied(t *testing.T) {
	p := newFakeProvider()
	p.registerErr = ErrPermissionDenied

	_, err := newTestManager(p).RequestLocation(context.Background(), GPS, LiveOptions{})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("RequestLocation() error = %v, want ErrPermissionDenied", err)
	}
	if _, _, deregs := p.counts(); deregs != 0 {
		t.Errorf("deregistrations = %d, want 0", deregs)
	}
}

func TestManager_RequestLocation_DeregisterErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantLog bool
	}{
		{"permission denied is dropped", ErrPermissionDenied, false},
		{"other errors are logged", errors.New("service gone"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider()
			p.deregisterErr = tt.err
			fix := *fixAt(GPS, 0)
			p.onRegister = func(Listener) { go p.emit(fix) }

			var logs bytes.Buffer
			m := newTestManager(p, WithLogger(observe.NewLoggerWithWriter("warn", &logs)))

			loc, err := m.RequestLocation(context.Background(), GPS, LiveOptions{})
			if err != nil || loc == nil {
				t.Fatalf("RequestLocation() = (%v, %v), teardown must not mask the result", loc, err)
			}
			if got := strings.Contains(logs.String(), "failed to deregister"); got != tt.wantLog {
				t.Errorf("logged = %v, want %v: %s", got, tt.wantLog, logs.String())
			}
		})
	}
}
