// Package shard implements key-space partitioning for the tensor store.
//
// # Overview
//
// The global key space is the full range of unsigned 64-bit integers. A
// deployment splits it into a fixed number of partitions and runs one store
// instance per partition; the Router is the instance-side view of that
// split. It answers exactly one question: does this key belong here?
//
// # Key ownership
//
// Ownership is modulo arithmetic over the key itself:
//
//	owner(key) = key % Range
//
// Every key maps to exactly one position for a given range, the verdict
// never changes for the lifetime of a store, and the positions [0, Range)
// jointly cover the whole key space. A request for a key the instance does
// not own fails with ErrOutOfRange before any table state is touched;
// routing the request to the right instance is the caller's concern, not
// the router's.
//
// # Concurrency
//
// Routers are immutable values with no internal state. All methods are pure
// computation and safe for concurrent use without coordination.
package shard
