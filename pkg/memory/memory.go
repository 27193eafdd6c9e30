// Package memory implements the in-process key/collection store (C8):
// two well-known collections (users, rooms), a default private
// collection, and user-defined collections, with optional periodic
// snapshotting through a pluggable Storage collaborator.
//
// It is grounded on the teacher's pkg/agent/memory.go MemoryStore
// (mutex-guarded struct, json-marshal-based persistence, wrapped
// errors) and pkg/channels/wecom_app.go's tokenRefreshLoop
// (ticker + ctx.Done() cancellation) for the autosave loop.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

const (
	CollectionUsers   = "users"
	CollectionRooms   = "rooms"
	CollectionPrivate = "private"
)

// Storage is the persistence collaborator Memory saves through. It is
// a deliberately small interface: the core only ever needs to
// serialise/deserialise the whole memory object as a unit.
type Storage interface {
	SaveMemory(ctx context.Context, data map[string]map[string]interface{}) error
	LoadMemory(ctx context.Context) (map[string]map[string]interface{}, error)
}

// Memory is the process-wide key/collection store.
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string]interface{}
	storage     Storage

	autoSave bool
	cancel   context.CancelFunc
	stopped  chan struct{}
}

// New creates a Memory with the three reserved collections already
// present, optionally backed by storage (nil disables persistence).
func New(storage Storage) *Memory {
	return &Memory{
		collections: map[string]map[string]interface{}{
			CollectionUsers:   {},
			CollectionRooms:   {},
			CollectionPrivate: {},
		},
		storage: storage,
	}
}

// SetStorage attaches or replaces the persistence collaborator without
// disturbing any collections already held, used when a storage adapter
// is only resolved after Memory itself was constructed.
func (m *Memory) SetStorage(storage Storage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storage = storage
}

// HasStorage reports whether a persistence collaborator is attached.
func (m *Memory) HasStorage() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.storage != nil
}

// Set deep-copies value (via a JSON round trip, since value is
// arbitrary user data with no shared ownership contract) and stores it
// under key in collection, creating the collection if it is new.
func (m *Memory) Set(key string, value interface{}, collection string) error {
	if collection == "" {
		collection = CollectionPrivate
	}
	copied, err := deepCopy(value)
	if err != nil {
		return fmt.Errorf("memory: set %q/%q: %w", collection, key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collections[collection] == nil {
		m.collections[collection] = map[string]interface{}{}
	}
	m.collections[collection][key] = copied
	return nil
}

// Get returns the stored reference for key in collection (not a copy,
// per the data model invariant "get returns the stored reference").
func (m *Memory) Get(key string, collection string) (interface{}, bool) {
	if collection == "" {
		collection = CollectionPrivate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		return nil, false
	}
	v, ok := coll[key]
	return v, ok
}

// Unset removes key from collection.
func (m *Memory) Unset(key string, collection string) {
	if collection == "" {
		collection = CollectionPrivate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if coll, ok := m.collections[collection]; ok {
		delete(coll, key)
	}
}

// Clear empties every collection on this receiver. It intentionally
// operates on the receiver, not a package-level singleton.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.collections {
		m.collections[name] = map[string]interface{}{}
	}
}

// ToObject returns a snapshot of every collection, suitable for
// serialisation.
func (m *Memory) ToObject() map[string]map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]map[string]interface{}, len(m.collections))
	for name, coll := range m.collections {
		inner := make(map[string]interface{}, len(coll))
		for k, v := range coll {
			inner[k] = v
		}
		out[name] = inner
	}
	return out
}

// Save serialises memory through the storage collaborator. It does not
// stop or re-arm a running autosave loop: the StartAutoSave loop calls
// Save only after its timer has fired and re-arms the timer after Save
// returns, so the loop's own writes never overlap, but a direct Save
// call is not serialised against a save from a running loop.
func (m *Memory) Save(ctx context.Context) error {
	if m.storage == nil {
		return fmt.Errorf("memory: save: %w", ErrStorageUnavailable)
	}
	return m.storage.SaveMemory(ctx, m.ToObject())
}

// Load reads the storage collaborator's snapshot and merges it into
// current memory by collection-level shallow merge: loaded keys
// overwrite, keys absent from the snapshot are left untouched. Called
// once during lifecycle `starting`.
func (m *Memory) Load(ctx context.Context) error {
	if m.storage == nil {
		return fmt.Errorf("memory: load: %w", ErrStorageUnavailable)
	}
	loaded, err := m.storage.LoadMemory(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for name, coll := range loaded {
		if m.collections[name] == nil {
			m.collections[name] = map[string]interface{}{}
		}
		for k, v := range coll {
			m.collections[name][k] = v
		}
	}
	return nil
}

// ErrStorageUnavailable is returned when a memory operation requiring
// storage is attempted with no storage adapter registered.
var ErrStorageUnavailable = fmt.Errorf("storage adapter not registered")

func deepCopy(value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
