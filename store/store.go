package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonwraymond/locator/location"
)

// MaxProviderLength is the maximum allowed length for a provider name.
const MaxProviderLength = 128

// Sentinel errors for store operations.
var (
	ErrInvalidProvider = errors.New("store: provider name is invalid")
	ErrProviderTooLong = errors.New("store: provider name exceeds max length")
)

// Store is the interface for last-known location storage.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Errors: Get returns (nil, nil) on miss; errors are reserved for backend failures.
type Store interface {
	// Get returns the latest fix for provider, or nil when there is none.
	Get(ctx context.Context, provider string) (*location.Location, error)

	// Put records loc as the latest fix for loc.Provider.
	Put(ctx context.Context, loc location.Location) error
}

// Policy configures retention.
type Policy struct {
	// TTL is how long a fix stays retrievable. Zero keeps fixes forever.
	TTL time.Duration
}

// DefaultPolicy keeps fixes for one day.
func DefaultPolicy() Policy {
	return Policy{TTL: location.OneDay().Duration()}
}

// ValidateProvider checks if a provider name can be used as a key.
func ValidateProvider(provider string) error {
	if strings.TrimSpace(provider) == "" {
		return ErrInvalidProvider
	}
	if len(provider) > MaxProviderLength {
		return ErrProviderTooLong
	}
	if strings.ContainsAny(provider, "\n\r*> ") {
		return ErrInvalidProvider
	}
	return nil
}

// Key returns the key a fix for provider is stored under.
// Format: location:last:<provider>
func Key(provider string) string {
	return "location:last:" + provider
}
