// Package keytable implements the in-memory key space owned by a single
// store: a striped, thread-safe mapping from unsigned 64-bit keys to tensor
// values.
//
// # Overview
//
// Every store owns exactly one Table. The table is the only mutable state
// in the storage engine; everything around it (routing, validation) is pure
// computation. Entries are created and overwritten by Put, removed by
// Delete, enumerated by Keys and read by Get. There is no persistence: a
// table is created empty and its contents vanish with the process.
//
// # Concurrency
//
// Keys hash onto a fixed number of stripes, each guarded by its own
// RWMutex. Operations on the same key always land on the same stripe and
// are therefore linearizable with respect to each other; operations on
// different keys usually proceed in parallel. Tables share no state, so
// one store's traffic never blocks another's.
package keytable
