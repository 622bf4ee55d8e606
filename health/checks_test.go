package health

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jonwraymond/locator/location"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

// stubProvider answers IsProviderEnabled from a map; other methods are unused.
type stubProvider struct {
	location.Provider
	enabled map[string]bool
	err     error
}

func (p *stubProvider) IsProviderEnabled(_ context.Context, name string) (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	return p.enabled[name], nil
}

func TestPingChecker(t *testing.T) {
	down := errors.New("dial tcp: connection refused")

	tests := []struct {
		name   string
		err    error
		status Status
	}{
		{"reachable", nil, StatusHealthy},
		{"unreachable", down, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewPingChecker("valkey", stubPinger{err: tt.err})
			if c.Name() != "valkey" {
				t.Errorf("Name() = %q, want valkey", c.Name())
			}
			r := c.Check(context.Background())
			if r.Status != tt.status {
				t.Errorf("Status = %v, want %v", r.Status, tt.status)
			}
			if !errors.Is(r.Error, tt.err) {
				t.Errorf("Error = %v, want %v", r.Error, tt.err)
			}
		})
	}
}

func TestConnChecker(t *testing.T) {
	connected := true
	c := ConnChecker("nats", func() bool { return connected })

	if r := c.Check(context.Background()); r.Status != StatusHealthy {
		t.Errorf("connected: Status = %v, want healthy", r.Status)
	}
	connected = false
	r := c.Check(context.Background())
	if r.Status != StatusUnhealthy || !errors.Is(r.Error, ErrCheckFailed) {
		t.Errorf("disconnected: got (%v, %v), want (unhealthy, ErrCheckFailed)", r.Status, r.Error)
	}
}

func TestProviderChecker(t *testing.T) {
	tests := []struct {
		name    string
		enabled map[string]bool
		err     error
		status  Status
		wantErr error
	}{
		{
			name:    "all enabled",
			enabled: map[string]bool{location.GPS: true, location.Network: true},
			status:  StatusHealthy,
		},
		{
			name:    "some enabled",
			enabled: map[string]bool{location.Network: true},
			status:  StatusDegraded,
		},
		{
			name:    "none enabled",
			enabled: map[string]bool{},
			status:  StatusUnhealthy,
			wantErr: ErrNoProvidersEnabled,
		},
		{
			name:    "permission denied",
			err:     fmt.Errorf("query: %w", location.ErrPermissionDenied),
			status:  StatusUnhealthy,
			wantErr: location.ErrPermissionDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &stubProvider{enabled: tt.enabled, err: tt.err}
			r := NewProviderChecker(p, location.GPS, location.Network).Check(context.Background())
			if r.Status != tt.status {
				t.Errorf("Status = %v, want %v (%s)", r.Status, tt.status, r.Message)
			}
			if tt.wantErr != nil && !errors.Is(r.Error, tt.wantErr) {
				t.Errorf("Error = %v, want %v", r.Error, tt.wantErr)
			}
		})
	}
}

func TestProviderChecker_Details(t *testing.T) {
	p := &stubProvider{enabled: map[string]bool{location.GPS: true}}
	r := NewProviderChecker(p, location.GPS, location.Passive).Check(context.Background())

	if r.Details[location.GPS] != true || r.Details[location.Passive] != false {
		t.Errorf("Details = %v", r.Details)
	}
}
