package location

import "time"

// ClockBasis selects which timestamp of a Location is compared against the
// current time.
type ClockBasis int

const (
	// ClockWall compares Location.Time against the wall clock.
	ClockWall ClockBasis = iota
	// ClockElapsed compares Location.ElapsedRealtime against a monotonic
	// elapsed-since-boot clock.
	ClockElapsed
)

func (b ClockBasis) String() string {
	if b == ClockElapsed {
		return "elapsed"
	}
	return "wall"
}

// Clock supplies both time bases.
type Clock interface {
	Now() time.Time
	ElapsedRealtime() time.Duration
}

// ElapsedClock is implemented by providers that stamp fixes with their own
// monotonic clock. Managers built on such a provider default to ClockElapsed.
type ElapsedClock interface {
	ElapsedRealtime() time.Duration
}

var bootTime = time.Now()

type systemClock struct{}

func (systemClock) Now() time.Time                 { return time.Now() }
func (systemClock) ElapsedRealtime() time.Duration { return time.Since(bootTime) }

// SystemClock returns the process clock. Its elapsed reading starts at
// package initialization.
func SystemClock() Clock { return systemClock{} }

type providerClock struct{ ElapsedClock }

func (providerClock) Now() time.Time { return time.Now() }

// Validator decides whether a fix is fresh enough. The basis is fixed at
// construction.
type Validator struct {
	clock Clock
	basis ClockBasis
}

// NewValidator returns a Validator. A nil clock uses SystemClock.
func NewValidator(clock Clock, basis ClockBasis) *Validator {
	if clock == nil {
		clock = SystemClock()
	}
	return &Validator{clock: clock, basis: basis}
}

// Basis returns the clock basis in use.
func (v *Validator) Basis() ClockBasis { return v.basis }

// Age returns the time elapsed since loc was recorded. Under ClockElapsed a
// fix without an elapsed reading, or with one ahead of the clock, was stamped
// in another clock domain (a previous process, another host) and is aged by
// wall time instead.
func (v *Validator) Age(loc Location) time.Duration {
	if v.basis == ClockElapsed && loc.ElapsedRealtime != 0 {
		if age := v.clock.ElapsedRealtime() - loc.ElapsedRealtime; age >= 0 {
			return age
		}
	}
	return v.clock.Now().Sub(loc.Time)
}

// IsFresh reports whether loc is younger than maxAge. An unset maxAge
// accepts every fix.
func (v *Validator) IsFresh(loc Location, maxAge LocationTime) bool {
	if maxAge.IsZero() {
		return true
	}
	return v.Age(loc) < maxAge.Duration()
}
