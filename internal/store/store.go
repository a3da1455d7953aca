package store

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/tensorkv/tensorkv/internal/keytable"
	"github.com/tensorkv/tensorkv/internal/shard"
)

// ErrAlreadyExists is returned when a store name is already registered.
// Exactly one creator wins a concurrent race on the same name; the rest
// receive this error.
var ErrAlreadyExists = errors.New("store already exists")

// Store is one named tensor namespace: a shard router fixing which slice of
// the key space this instance serves, and the key table holding it.
//
// A store's identity (name, position, range) is immutable after creation;
// only the table contents mutate. Stores are created through a Registry and
// live until the process exits.
type Store struct {
	Name   string          // Unique name within the registry
	Router shard.Router    // Key ownership, fixed at creation
	Table  *keytable.Table // The mutable key space
}

// Info is a point-in-time description of a store, safe to hand across API
// boundaries. Keys and Bytes are snapshots and may be stale by the time the
// caller reads them.
type Info struct {
	Name     string `json:"name"`
	Position uint64 `json:"position"`
	Range    uint64 `json:"range"`
	Keys     int    `json:"keys"`
	Bytes    uint64 `json:"bytes"`
}

// Info returns the store's current description.
func (s *Store) Info() Info {
	return Info{
		Name:     s.Name,
		Position: s.Router.Position,
		Range:    s.Router.Range,
		Keys:     s.Table.Len(),
		Bytes:    s.Table.NumBytes(),
	}
}

// Registry is the process-wide mapping from store name to store. It is
// created empty at startup, populated only via Create, and torn down with
// the process.
//
// Concurrency model:
//   - A single RWMutex guards the name map; Create takes the write lock and
//     decides uniqueness under it, so concurrent creates of the same name
//     serialize and exactly one wins.
//   - Resolve takes the read lock only long enough for the map lookup; all
//     key traffic then runs against the store's own table, so the registry
//     is never a per-request bottleneck.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]*Store
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store)}
}

// Create registers a new store under name, owning position of a key space
// split rng ways. Fails with ErrAlreadyExists when the name is taken and
// with shard.ErrInvalidRange when rng is zero or position lies outside
// [0, rng). The new store's table starts empty.
func (r *Registry) Create(name string, position, rng uint64) (*Store, error) {
	router, err := shard.New(position, rng)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.stores[name]; taken {
		return nil, errors.Wrapf(ErrAlreadyExists, "store %q", name)
	}
	s := &Store{
		Name:   name,
		Router: router,
		Table:  keytable.New(keytable.DefaultSlots),
	}
	r.stores[name] = s
	return s, nil
}

// Resolve returns the store registered under name, or false when no such
// store exists. All key operations are scoped to a resolved store.
func (r *Registry) Resolve(name string) (*Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[name]
	return s, ok
}

// Len returns the number of registered stores.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores)
}

// Infos returns a description of every registered store, in no particular
// order.
func (r *Registry) Infos() []Info {
	r.mu.RLock()
	stores := make([]*Store, 0, len(r.stores))
	for _, s := range r.stores {
		stores = append(stores, s)
	}
	r.mu.RUnlock()

	// Table snapshots are taken outside the registry lock; they only touch
	// per-store stripe locks.
	infos := make([]Info, 0, len(stores))
	for _, s := range stores {
		infos = append(infos, s.Info())
	}
	return infos
}
