// Package engine is the facade of the tensor storage engine: the six
// public operations (CreateStore, Put, Get, Delete, List, Health) and the
// failure taxonomy they report.
//
// # Request flow
//
//	request → Engine → Registry resolves the store
//	                 → Router checks key ownership
//	                 → codec validates and assembles the value
//	                 → Table performs the mutation or read
//
// The engine is purely in-memory and never suspends; thread safety comes
// from the registry's lock and each store's striped table. Transports
// (HTTP today, anything later) stay thin: they decode requests, call one
// engine method, and flatten the structured error into the wire's
// (success, message) pair using KindOf.
//
// # Failure taxonomy
//
// Every failure is one of the sentinels in errors.go, wrapped with a
// human-readable message. None of them terminate the process; only
// resource exhaustion is fatal, and that is outside the engine's recovery
// responsibility.
package engine
