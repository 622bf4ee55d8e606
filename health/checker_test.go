package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("Status.String() = %v, want %v", got, tt.want)
			}
			text, err := tt.status.MarshalText()
			if err != nil || string(text) != tt.want {
				t.Errorf("MarshalText() = (%q, %v), want %q", text, err, tt.want)
			}
		})
	}
}

func TestResultConstructors(t *testing.T) {
	testErr := errors.New("boom")

	tests := []struct {
		name   string
		result Result
		status Status
		err    error
	}{
		{"healthy", Healthy("ok"), StatusHealthy, nil},
		{"degraded", Degraded("slow"), StatusDegraded, nil},
		{"unhealthy", Unhealthy("down", testErr), StatusUnhealthy, testErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.result.Status != tt.status {
				t.Errorf("Status = %v, want %v", tt.result.Status, tt.status)
			}
			if !errors.Is(tt.result.Error, tt.err) {
				t.Errorf("Error = %v, want %v", tt.result.Error, tt.err)
			}
			if tt.result.Timestamp.IsZero() {
				t.Error("Timestamp should not be zero")
			}
		})
	}
}

func TestResult_With(t *testing.T) {
	r := Healthy("ok").
		WithDetails(map[string]any{"gps": true}).
		WithDuration(50 * time.Millisecond)

	if r.Details["gps"] != true {
		t.Errorf("Details = %v", r.Details)
	}
	if r.Duration != 50*time.Millisecond {
		t.Errorf("Duration = %v, want 50ms", r.Duration)
	}
}

func TestCheckerFunc(t *testing.T) {
	called := false
	checker := NewCheckerFunc("store", func(ctx context.Context) Result {
		called = true
		return Healthy("ok")
	})

	if checker.Name() != "store" {
		t.Errorf("Name() = %q, want store", checker.Name())
	}
	if r := checker.Check(context.Background()); r.Status != StatusHealthy {
		t.Errorf("Status = %v, want healthy", r.Status)
	}
	if !called {
		t.Error("function was not called")
	}
}
