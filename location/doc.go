// Package location acquires a single location fix from an ordered chain of
// sources.
//
// Two single-source primitives wrap a platform Provider: Manager.LastKnown
// reads the cached fix with an optional staleness check, and
// Manager.RequestLocation registers a single-shot listener with an optional
// timeout. A Chain built with Builder composes these steps; Manager.Execute
// runs them strictly in sequence, downgrading expected failures to "try the
// next source" and falling back to a default location when every source is
// exhausted.
//
// Failures are reported as *Error values classified by Kind. Use errors.Is
// with ErrPermissionDenied, ErrProviderDisabled, ErrLocationTooOld or
// ErrRequestTimeout, or KindOf to switch on the kind.
//
// Every live registration is deregistered exactly once, whether the request
// ends with a fix, an error, a timeout or cancellation of its context.
package location
