// Package auth decides whether a caller may read locations.
//
// JWTAuthenticator turns an HS256 bearer token into an Identity carrying
// location scopes. Guard wraps a location.Provider and refuses queries for
// providers the identity in the request context lacks the scope for, so
// refusals surface through the location error taxonomy as
// location.ErrPermissionDenied.
package auth
