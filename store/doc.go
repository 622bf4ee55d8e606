// Package store keeps the most recent location fix per provider.
//
// Providers consult a Store to answer last-known queries. Memory is an
// in-process store, Valkey shares fixes between instances and Postgres keeps
// a fix history. Tiered layers several stores, reading from the first that
// has a fix and writing to all of them.
package store
