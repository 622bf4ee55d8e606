package auth

import (
	"slices"
	"time"
)

// Location scopes.
const (
	// ScopeFine grants satellite-grade providers such as gps.
	ScopeFine = "location:fine"
	// ScopeCoarse grants network-grade providers.
	ScopeCoarse = "location:coarse"
)

// AuthMethod indicates how authentication was performed.
type AuthMethod string

const (
	AuthMethodNone      AuthMethod = "none"
	AuthMethodJWT       AuthMethod = "jwt"
	AuthMethodAnonymous AuthMethod = "anonymous"
)

// Identity represents an authenticated principal.
type Identity struct {
	// Principal is the unique identifier (e.g., device or user ID).
	Principal string

	// Scopes are the location scopes granted to this identity.
	Scopes []string

	// Method indicates how authentication was performed.
	Method AuthMethod

	// Claims contains the raw claims from the token.
	Claims map[string]any

	ExpiresAt time.Time
	IssuedAt  time.Time
}

// HasScope checks if the identity holds scope. ScopeFine implies ScopeCoarse.
func (id *Identity) HasScope(scope string) bool {
	if id == nil {
		return false
	}
	if slices.Contains(id.Scopes, scope) {
		return true
	}
	return scope == ScopeCoarse && slices.Contains(id.Scopes, ScopeFine)
}

// IsExpired checks if the identity has expired.
func (id *Identity) IsExpired() bool {
	if id.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(id.ExpiresAt)
}

// IsAnonymous returns true if this is an anonymous identity.
func (id *Identity) IsAnonymous() bool {
	return id.Method == AuthMethodAnonymous || id.Principal == ""
}

// AnonymousIdentity creates an identity without scopes.
func AnonymousIdentity() *Identity {
	return &Identity{
		Principal: "anonymous",
		Method:    AuthMethodAnonymous,
		Claims:    make(map[string]any),
	}
}
