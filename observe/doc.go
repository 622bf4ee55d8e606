// Package observe provides observability primitives for location chains.
//
// It is a pure instrumentation library: it never talks to a location
// provider itself. The location package wires a Middleware around every
// chain step so that each attempt produces a span, a set of metrics and a
// structured log line.
package observe
