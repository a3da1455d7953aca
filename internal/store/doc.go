// Package store defines the named tensor namespaces served by an instance
// and the process-wide registry that owns them.
//
// # Overview
//
// A store pairs a name with a shard router and a key table:
//
//	┌──────────────────────────────────┐
//	│            Registry              │
//	├──────────────────────────────────┤
//	│  "embeddings" → Store            │
//	│  "weights"    → Store            │
//	│                 │                │
//	│                 ├── Router       │  which keys belong here
//	│                 └── Table        │  the keys themselves
//	└──────────────────────────────────┘
//
// The registry is append-mostly shared state with an explicit lifecycle:
// created empty at process start, populated only via Create, torn down at
// process shutdown. Store deletion is outside the protocol surface, so a
// store, once created, lives as long as the process.
//
// Name uniqueness is decided under a single lock; per-store key traffic is
// guarded by each store's own table so the registry never becomes a global
// bottleneck.
package store
