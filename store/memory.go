package store

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/locator/location"
)

// Memory is an in-memory Store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	policy  Policy
	now     func() time.Time
}

type memoryEntry struct {
	loc       location.Location
	expiresAt time.Time // zero means no expiry
}

// NewMemory creates an in-memory store with the given policy.
func NewMemory(policy Policy) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		policy:  policy,
		now:     time.Now,
	}
}

// Get returns the latest fix for provider. Expired fixes are dropped lazily.
func (m *Memory) Get(_ context.Context, provider string) (*location.Location, error) {
	if err := ValidateProvider(provider); err != nil {
		return nil, err
	}

	m.mu.RLock()
	entry, ok := m.entries[provider]
	m.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		m.mu.Lock()
		if cur, ok := m.entries[provider]; ok && cur.expiresAt.Equal(entry.expiresAt) {
			delete(m.entries, provider)
		}
		m.mu.Unlock()
		return nil, nil
	}

	loc := entry.loc
	return &loc, nil
}

// Put records loc, replacing any earlier fix for the same provider.
func (m *Memory) Put(_ context.Context, loc location.Location) error {
	if err := ValidateProvider(loc.Provider); err != nil {
		return err
	}

	entry := memoryEntry{loc: loc}
	if m.policy.TTL > 0 {
		entry.expiresAt = m.now().Add(m.policy.TTL)
	}

	m.mu.Lock()
	m.entries[loc.Provider] = entry
	m.mu.Unlock()
	return nil
}

// Delete removes the fix for provider. Idempotent.
func (m *Memory) Delete(_ context.Context, provider string) error {
	m.mu.Lock()
	delete(m.entries, provider)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored fixes, including expired ones not yet
// dropped.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

var _ Store = (*Memory)(nil)
