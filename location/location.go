package location

import "time"

// Well-known provider names.
const (
	GPS     = "gps"
	Network = "network"
	Passive = "passive"
)

// Location is a single position fix.
type Location struct {
	Provider  string    `json:"provider"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Altitude  float64   `json:"altitude,omitempty"`
	Time      time.Time `json:"time"`

	// ElapsedRealtime is the provider's monotonic clock reading when the fix
	// was taken. Zero when the provider does not report one.
	ElapsedRealtime time.Duration `json:"elapsed_realtime_ns,omitempty"`
}

func (l *Location) clone() *Location {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
