package location

import "slices"

// StepKind is the kind of a chain step.
type StepKind int

const (
	// StepLastKnown reads the provider's cached fix.
	StepLastKnown StepKind = iota
	// StepLive requests a fresh fix.
	StepLive
)

func (k StepKind) String() string {
	switch k {
	case StepLastKnown:
		return "last_known"
	case StepLive:
		return "live"
	default:
		return "unknown"
	}
}

// ErrorFilter reports whether a step error should be suppressed, letting the
// chain move on to the next step.
type ErrorFilter func(kind Kind, err error) bool

// IgnoreKinds returns a filter matching the given kinds. With no kinds it
// matches every error.
func IgnoreKinds(kinds ...Kind) ErrorFilter {
	if len(kinds) == 0 {
		return IgnoreAll
	}
	kinds = slices.Clone(kinds)
	return func(kind Kind, _ error) bool {
		return slices.Contains(kinds, kind)
	}
}

// IgnoreAll matches every error.
func IgnoreAll(Kind, error) bool { return true }

// Step is one source in a Chain.
type Step struct {
	Kind     StepKind
	Provider string

	// MaxAge and NullIsValid apply to StepLastKnown.
	MaxAge      LocationTime
	NullIsValid bool

	// Timeout applies to StepLive.
	Timeout LocationTime

	Filter ErrorFilter
}

// Chain is an immutable, reusable sequence of steps with fallback policy.
// Build one with Builder and run it with Manager.Execute.
type Chain struct {
	steps                []Step
	def                  *Location
	returnDefaultOnError bool
}

// Steps returns a copy of the chain's steps in trial order.
func (c Chain) Steps() []Step { return slices.Clone(c.steps) }

// Default returns a copy of the default location, or nil.
func (c Chain) Default() *Location { return c.def.clone() }

// ReturnDefaultOnError reports whether unfiltered step errors let the chain
// continue instead of failing.
func (c Chain) ReturnDefaultOnError() bool { return c.returnDefaultOnError }

// Builder accumulates steps for a Chain. The zero value is ready to use.
// Builder is not safe for concurrent use.
type Builder struct {
	chain Chain
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddLastKnown appends a cached-fix step. A zero maxAge disables the
// staleness check. With nullIsValid, a provider without a cached fix ends
// the chain with no location instead of moving on.
func (b *Builder) AddLastKnown(provider string, maxAge LocationTime, nullIsValid bool, filter ErrorFilter) *Builder {
	b.chain.steps = append(b.chain.steps, Step{
		Kind:        StepLastKnown,
		Provider:    provider,
		MaxAge:      maxAge,
		NullIsValid: nullIsValid,
		Filter:      filter,
	})
	return b
}

// AddLive appends a live request step. A zero timeout waits until the
// execution context is done.
func (b *Builder) AddLive(provider string, timeout LocationTime, filter ErrorFilter) *Builder {
	b.chain.steps = append(b.chain.steps, Step{
		Kind:     StepLive,
		Provider: provider,
		Timeout:  timeout,
		Filter:   filter,
	})
	return b
}

// SetDefault sets the location returned when no step yields one.
func (b *Builder) SetDefault(loc *Location) *Builder {
	b.chain.def = loc.clone()
	return b
}

// SetReturnDefaultOnError makes unfiltered step errors advance the chain
// rather than fail it.
func (b *Builder) SetReturnDefaultOnError(v bool) *Builder {
	b.chain.returnDefaultOnError = v
	return b
}

// Build returns the configured Chain. Later builder calls do not affect it.
func (b *Builder) Build() Chain {
	return Chain{
		steps:                slices.Clone(b.chain.steps),
		def:                  b.chain.def.clone(),
		returnDefaultOnError: b.chain.returnDefaultOnError,
	}
}
