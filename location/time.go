package location

import (
	"math"
	"time"
)

// Unit is the unit of a LocationTime.
type Unit int

const (
	Nanoseconds Unit = iota
	Microseconds
	Milliseconds
	Seconds
	Minutes
	Hours
	Days
)

// Duration returns the length of one unit.
func (u Unit) Duration() time.Duration {
	switch u {
	case Nanoseconds:
		return time.Nanosecond
	case Microseconds:
		return time.Microsecond
	case Milliseconds:
		return time.Millisecond
	case Seconds:
		return time.Second
	case Minutes:
		return time.Minute
	case Hours:
		return time.Hour
	case Days:
		return 24 * time.Hour
	default:
		return 0
	}
}

func (u Unit) String() string {
	switch u {
	case Nanoseconds:
		return "ns"
	case Microseconds:
		return "us"
	case Milliseconds:
		return "ms"
	case Seconds:
		return "s"
	case Minutes:
		return "m"
	case Hours:
		return "h"
	case Days:
		return "d"
	default:
		return "?"
	}
}

// LocationTime is a magnitude paired with a unit. It is used both as a
// maximum fix age and as a request timeout. The zero value means "not set".
type LocationTime struct {
	Value int64
	Unit  Unit
}

// NewLocationTime returns a LocationTime. Negative values are clamped to zero.
func NewLocationTime(value int64, unit Unit) LocationTime {
	if value < 0 {
		value = 0
	}
	return LocationTime{Value: value, Unit: unit}
}

// FromDuration expresses d in the coarsest unit that represents it exactly.
// Non-positive durations yield the zero LocationTime.
func FromDuration(d time.Duration) LocationTime {
	if d <= 0 {
		return LocationTime{}
	}
	for u := Days; u > Nanoseconds; u-- {
		if d%u.Duration() == 0 {
			return LocationTime{Value: int64(d / u.Duration()), Unit: u}
		}
	}
	return LocationTime{Value: int64(d), Unit: Nanoseconds}
}

// OneDay returns a LocationTime of one day.
func OneDay() LocationTime { return LocationTime{Value: 1, Unit: Days} }

// OneHour returns a LocationTime of one hour.
func OneHour() LocationTime { return LocationTime{Value: 1, Unit: Hours} }

// Duration converts t to a time.Duration. Values beyond the range of
// time.Duration saturate at its maximum.
func (t LocationTime) Duration() time.Duration {
	u := t.Unit.Duration()
	if t.Value <= 0 || u <= 0 {
		return 0
	}
	if t.Value > math.MaxInt64/int64(u) {
		return math.MaxInt64
	}
	return time.Duration(t.Value) * u
}

// IsZero reports whether t is unset.
func (t LocationTime) IsZero() bool {
	return t.Duration() == 0
}

func (t LocationTime) String() string {
	if t.IsZero() {
		return "none"
	}
	return t.Duration().String()
}
