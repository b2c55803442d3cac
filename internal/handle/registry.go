// Package handle provides an integer-handle registry. Native callbacks can
// only carry a pointer-sized token across the engine boundary; the registry
// turns that token back into a live object without ever dereferencing freed
// memory. A lookup of a stale or unknown handle returns nothing.
package handle

import "sync"

// Handle is an opaque token exchanged with the ledger engine in place of an
// object reference. Zero is reserved and never issued.
type Handle uint64

// Registry maps handles to live values of type T. Handles are issued from a
// monotonic counter guarded by the same lock as insertion, so a handle can
// never alias two objects. Resolves run under a shared lock because engine
// callbacks arrive on many threads at once.
type Registry[T any] struct {
	mu   sync.RWMutex
	next Handle
	live map[Handle]T
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{live: make(map[Handle]T)}
}

// Register stores value and returns its freshly issued handle.
func (r *Registry[T]) Register(value T) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.live[r.next] = value
	return r.next
}

// Resolve returns the value registered under h. ok is false for unknown or
// removed handles; late engine callbacks legally resolve to nothing.
func (r *Registry[T]) Resolve(h Handle) (value T, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok = r.live[h]
	return value, ok
}

// Remove unregisters h. Removing an unknown handle is a no-op. A Resolve
// racing a Remove may return either outcome, never a torn value.
func (r *Registry[T]) Remove(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, h)
}

// Len returns the number of live entries.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.live)
}
