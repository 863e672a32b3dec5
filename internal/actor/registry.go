package actor

import (
	"sync"
)

// Factory builds the mailbox for a key on first reference. A returned error means the
// identity is not constructible; nothing is cached and every later reference fails the same way.
type Factory[K comparable, M any] func(key K) (*Mailbox[M], error)

// Registry resolves identities to mailboxes, creating them lazily.
// Concurrent first references to the same key resolve to the same mailbox.
type Registry[K comparable, M any] struct {
	mu      sync.Mutex
	entries map[K]*Mailbox[M]
	factory Factory[K, M]
}

// NewRegistry creates an empty registry
func NewRegistry[K comparable, M any](factory Factory[K, M]) *Registry[K, M] {
	return &Registry[K, M]{
		entries: make(map[K]*Mailbox[M]),
		factory: factory,
	}
}

// Get returns the mailbox for key, creating it if needed
func (r *Registry[K, M]) Get(key K) (*Mailbox[M], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if mb, ok := r.entries[key]; ok {
		return mb, nil
	}
	mb, err := r.factory(key)
	if err != nil {
		return nil, err
	}
	r.entries[key] = mb
	return mb, nil
}

// Lookup returns the mailbox for key only if it already exists
func (r *Registry[K, M]) Lookup(key K) (*Mailbox[M], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mb, ok := r.entries[key]
	return mb, ok
}

// Len returns the number of live entries
func (r *Registry[K, M]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
