package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/locator/location"
)

// Tiered reads from the first store holding a fix and writes to every store.
// A hit in a lower tier is copied into the tiers above it.
type Tiered struct {
	tiers []Store
}

// NewTiered layers stores, fastest first.
func NewTiered(tiers ...Store) *Tiered {
	return &Tiered{tiers: tiers}
}

// Get returns the first fix found. A failing tier is skipped; its error is
// returned only if no tier has a fix.
func (t *Tiered) Get(ctx context.Context, provider string) (*location.Location, error) {
	var errs []error
	for i, s := range t.tiers {
		loc, err := s.Get(ctx, provider)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if loc == nil {
			continue
		}
		for _, upper := range t.tiers[:i] {
			_ = upper.Put(ctx, *loc)
		}
		return loc, nil
	}
	return nil, errors.Join(errs...)
}

// Put writes loc to every tier.
func (t *Tiered) Put(ctx context.Context, loc location.Location) error {
	var errs []error
	for i, s := range t.tiers {
		if err := s.Put(ctx, loc); err != nil {
			errs = append(errs, fmt.Errorf("tier %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

var _ Store = (*Tiered)(nil)
