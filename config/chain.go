package config

import (
	"fmt"
	"time"

	"github.com/jonwraymond/locator/location"
	"github.com/jonwraymond/locator/store"
)

// Step kinds as written in configuration.
const (
	StepLastKnown = "last_known"
	StepLive      = "live"
)

// ignoreAll in a step's ignore list suppresses every error kind.
const ignoreAll = "all"

// ChainConfig describes a location.Chain.
type ChainConfig struct {
	Steps                []StepConfig   `mapstructure:"steps"`
	Default              *DefaultConfig `mapstructure:"default"`
	ReturnDefaultOnError bool           `mapstructure:"return_default_on_error"`
}

// StepConfig describes one chain step. MaxAge and NullIsValid apply to
// last_known steps, Timeout to live steps.
type StepConfig struct {
	Kind        string        `mapstructure:"kind"`
	Provider    string        `mapstructure:"provider"`
	MaxAge      time.Duration `mapstructure:"max_age"`
	NullIsValid bool          `mapstructure:"null_is_valid"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// Ignore names error kinds (permission_denied, provider_disabled,
	// location_too_old, request_timeout, other) or "all".
	Ignore []string `mapstructure:"ignore"`
}

// DefaultConfig is the fallback location returned when no step produces one.
type DefaultConfig struct {
	Provider  string  `mapstructure:"provider"`
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
	Accuracy  float64 `mapstructure:"accuracy"`
}

func (s StepConfig) filter() (location.ErrorFilter, error) {
	if len(s.Ignore) == 0 {
		return nil, nil
	}
	kinds := make([]location.Kind, 0, len(s.Ignore))
	for _, name := range s.Ignore {
		if name == ignoreAll {
			return location.IgnoreAll, nil
		}
		k, err := location.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return location.IgnoreKinds(kinds...), nil
}

func (c ChainConfig) validate() []string {
	var errs []string
	if len(c.Steps) == 0 && c.Default == nil {
		errs = append(errs, "chain needs at least one step or a default")
	}
	for i, s := range c.Steps {
		prefix := fmt.Sprintf("chain.steps[%d]", i)
		switch s.Kind {
		case StepLastKnown:
			if s.MaxAge < 0 {
				errs = append(errs, prefix+".max_age must not be negative")
			}
		case StepLive:
			if s.Timeout < 0 {
				errs = append(errs, prefix+".timeout must not be negative")
			}
		default:
			errs = append(errs, fmt.Sprintf("%s.kind must be last_known or live, got %q", prefix, s.Kind))
		}
		if err := store.ValidateProvider(s.Provider); err != nil {
			errs = append(errs, fmt.Sprintf("%s.provider: %v", prefix, err))
		}
		if _, err := s.filter(); err != nil {
			errs = append(errs, fmt.Sprintf("%s.ignore: %v", prefix, err))
		}
	}
	return errs
}

// Build converts c into an immutable location.Chain.
func (c ChainConfig) Build() (location.Chain, error) {
	if errs := c.validate(); len(errs) > 0 {
		return location.Chain{}, fmt.Errorf("%w: %s", ErrInvalid, errs[0])
	}

	b := location.NewBuilder()
	for _, s := range c.Steps {
		filter, _ := s.filter()
		switch s.Kind {
		case StepLastKnown:
			b.AddLastKnown(s.Provider, location.FromDuration(s.MaxAge), s.NullIsValid, filter)
		case StepLive:
			b.AddLive(s.Provider, location.FromDuration(s.Timeout), filter)
		}
	}
	if d := c.Default; d != nil {
		b.SetDefault(&location.Location{
			Provider:  d.Provider,
			Latitude:  d.Latitude,
			Longitude: d.Longitude,
			Accuracy:  d.Accuracy,
		})
	}
	return b.SetReturnDefaultOnError(c.ReturnDefaultOnError).Build(), nil
}
