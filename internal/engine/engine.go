package engine

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/tensorkv/tensorkv/internal/dtype"
	"github.com/tensorkv/tensorkv/internal/store"
	"github.com/tensorkv/tensorkv/internal/tensor"
)

// ServiceName identifies this service in health responses.
const ServiceName = "tensorkv"

// StatusHealthy is the static health status reported while the process is
// alive.
const StatusHealthy = "healthy"

// Observer receives one callback per completed engine operation, for
// metrics. Implementations must be safe for concurrent use and must not
// block; the engine calls them synchronously on the request path.
type Observer interface {
	Observe(op string, kind Kind, elapsed time.Duration)
}

// PutValue carries the raw fields of an incoming value, exactly as the wire
// delivers them. The engine hands them to the codec untouched; nothing is
// trusted until Assemble has cross-checked every field.
type PutValue struct {
	Shape     []uint64
	DType     dtype.T
	SizeCheck uint64
	KeyCheck  uint64
	Data      [][]byte
}

// Engine is the storage engine behind the protocol surface. It composes
// the store registry, shard router, value codec and key tables into the
// six public operations and owns the failure taxonomy; transports are thin
// wrappers around it.
//
// All methods are safe for concurrent use. Operations run to completion or
// are rejected at validation; none of them suspend, so no contexts are
// plumbed through (deadlines are the transport's concern).
type Engine struct {
	registry *store.Registry
	obs      Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver installs a per-operation metrics observer.
func WithObserver(obs Observer) Option {
	return func(e *Engine) { e.obs = obs }
}

// New creates an engine with an empty store registry.
func New(opts ...Option) *Engine {
	e := &Engine{registry: store.NewRegistry()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// observe reports a finished operation to the observer, if one is set.
func (e *Engine) observe(op string, start time.Time, err error) {
	if e.obs != nil {
		e.obs.Observe(op, KindOf(err), time.Since(start))
	}
}

// CreateStore registers a new store owning position of a key space split
// rng ways. Fails with ErrInvalidRange on an empty name, rng == 0 or
// position >= rng, and with ErrAlreadyExists when the name is taken.
func (e *Engine) CreateStore(name string, position, rng uint64) (err error) {
	defer func(start time.Time) { e.observe("create_store", start, err) }(time.Now())

	if name == "" {
		return errors.Wrap(ErrInvalidRange, "store name must not be empty")
	}
	_, err = e.registry.Create(name, position, rng)
	return err
}

// Put validates and stores a value under key in the named store.
//
// The pipeline: resolve the store, check key ownership, assemble and
// validate the value, then write it to the table. A put that returns nil
// is fully visible to any subsequent get of the same key.
func (e *Engine) Put(storeName string, key uint64, pv PutValue) (err error) {
	defer func(start time.Time) { e.observe("put", start, err) }(time.Now())

	st, ok := e.registry.Resolve(storeName)
	if !ok {
		return errors.Wrapf(ErrNotFound, "store %q", storeName)
	}
	if err := st.Router.Check(key); err != nil {
		return err
	}
	v, err := tensor.Assemble(key, pv.Shape, pv.DType, pv.SizeCheck, pv.KeyCheck, pv.Data)
	if err != nil {
		return err
	}
	st.Table.Put(key, v)
	return nil
}

// Get returns the value stored under key in the named store. An absent key
// is ErrNotFound, distinct from an empty-payload value. The stored value's
// integrity fields are re-verified before it is returned, so a corrupted
// table entry surfaces as ErrIntegrityMismatch or ErrSizeMismatch rather
// than as silently wrong data.
//
// The returned value is shared with the table; callers must treat it as
// read-only.
func (e *Engine) Get(storeName string, key uint64) (v *tensor.Value, err error) {
	defer func(start time.Time) { e.observe("get", start, err) }(time.Now())

	st, ok := e.registry.Resolve(storeName)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "store %q", storeName)
	}
	if err := st.Router.Check(key); err != nil {
		return nil, err
	}
	v, ok = st.Table.Get(key)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "key %d", key)
	}
	if err := tensor.Verify(key, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Delete removes the value stored under key in the named store. Deleting
// an absent key reports ErrNotFound; the store is unchanged either way.
func (e *Engine) Delete(storeName string, key uint64) (err error) {
	defer func(start time.Time) { e.observe("delete", start, err) }(time.Now())

	st, ok := e.registry.Resolve(storeName)
	if !ok {
		return errors.Wrapf(ErrNotFound, "store %q", storeName)
	}
	if err := st.Router.Check(key); err != nil {
		return err
	}
	if !st.Table.Delete(key) {
		return errors.Wrapf(ErrNotFound, "key %d", key)
	}
	return nil
}

// List returns a snapshot of the keys currently stored in the named store,
// each exactly once, in no particular order.
func (e *Engine) List(storeName string) (keys []uint64, err error) {
	defer func(start time.Time) { e.observe("list", start, err) }(time.Now())

	st, ok := e.registry.Resolve(storeName)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "store %q", storeName)
	}
	return st.Table.Keys(), nil
}

// Health returns the static health descriptor. It is stateless and always
// succeeds while the process is alive.
func (e *Engine) Health() (status, service string) {
	if e.obs != nil {
		e.obs.Observe("health", KindOK, 0)
	}
	return StatusHealthy, ServiceName
}

// Stores describes every registered store, for observability surfaces.
func (e *Engine) Stores() []store.Info {
	return e.registry.Infos()
}
