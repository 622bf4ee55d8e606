// Package provider implements location.Provider backends.
//
// Memory simulates a platform location service in process: fixes are
// published with Publish and providers are switched with SetEnabled. NATS
// follows fixes and provider status published on a NATS server. Both answer
// last-known queries from a store.Store.
//
// Registry creates backends by name from configuration.
package provider
