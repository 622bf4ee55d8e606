package location

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies location failures.
type Kind int

const (
	// KindOther is any failure outside the named kinds.
	KindOther Kind = iota
	// KindPermissionDenied means the platform refused the operation.
	KindPermissionDenied
	// KindProviderDisabled means the provider is switched off.
	KindProviderDisabled
	// KindLocationTooOld means the cached fix failed the staleness check.
	KindLocationTooOld
	// KindRequestTimeout means no fix arrived before the request timeout.
	KindRequestTimeout
)

// Sentinel errors, one per Kind. *Error values match them with errors.Is.
var (
	ErrPermissionDenied = errors.New("location: permission denied")
	ErrProviderDisabled = errors.New("location: provider disabled")
	ErrLocationTooOld   = errors.New("location: location too old")
	ErrRequestTimeout   = errors.New("location: request timeout")
)

func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindProviderDisabled:
		return "provider_disabled"
	case KindLocationTooOld:
		return "location_too_old"
	case KindRequestTimeout:
		return "request_timeout"
	default:
		return "other"
	}
}

// ParseKind returns the Kind named s, as printed by Kind.String.
func ParseKind(s string) (Kind, error) {
	for k := KindOther; k <= KindRequestTimeout; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return KindOther, fmt.Errorf("location: unknown error kind %q", s)
}

func (k Kind) sentinel() error {
	switch k {
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindProviderDisabled:
		return ErrProviderDisabled
	case KindLocationTooOld:
		return ErrLocationTooOld
	case KindRequestTimeout:
		return ErrRequestTimeout
	default:
		return nil
	}
}

// Error is a classified location failure.
type Error struct {
	Kind     Kind
	Provider string

	// Location is the rejected fix for KindLocationTooOld.
	Location *Location

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := "location: " + e.Kind.String()
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Provider != "" {
		msg = fmt.Sprintf("%s (provider %q)", msg, e.Provider)
	}
	if e.Err != nil && e.Err != e.Kind.sentinel() {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Unclassified and nil errors are KindOther.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return sentinelKind(err)
}

func sentinelKind(err error) Kind {
	switch {
	case err == nil:
		return KindOther
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrProviderDisabled):
		return KindProviderDisabled
	case errors.Is(err, ErrLocationTooOld):
		return KindLocationTooOld
	case errors.Is(err, ErrRequestTimeout):
		return KindRequestTimeout
	default:
		return KindOther
	}
}

// isCancellation reports whether err came from the caller's context.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// translate attaches a Kind and provider name to an error returned by a
// Provider. Context errors and existing *Error values pass through.
func translate(provider string, err error) error {
	if err == nil || isCancellation(err) {
		return err
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	return &Error{Kind: sentinelKind(err), Provider: provider, Err: err}
}
