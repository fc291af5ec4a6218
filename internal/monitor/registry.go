package monitor

import (
	"sync"

	"nodemonitor/internal/entity"
)

// Registry maps node identities to their canonical connections. It is
// the only state shared across connection actors, so every access goes
// through one mutex.
type Registry struct {
	mu        sync.Mutex
	delegates map[entity.DelegateKey]*Connection
}

// NewRegistry creates an empty identity registry.
func NewRegistry() *Registry {
	return &Registry{
		delegates: make(map[entity.DelegateKey]*Connection),
	}
}

// Resolve looks up the canonical connection for the given identity. If
// another live connection already owns the identity it is returned and
// the caller must bind to it; otherwise conn is registered as the
// canonical owner and nil is returned.
//
// The lookup and the registration happen under a single lock hold:
// splitting them would let two actors observing the same identity both
// register as canonical.
func (r *Registry) Resolve(key entity.DelegateKey, conn *Connection) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.delegates[key]; ok && existing != conn {
		if !existing.isStopped() {
			return existing
		}
		// The registered owner's event loop has terminated; its entry
		// is stale. The resolving connection takes over the slot.
	}

	r.delegates[key] = conn
	return nil
}

// Get returns the registered canonical connection for an identity, or
// nil.
func (r *Registry) Get(key entity.DelegateKey) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delegates[key]
}

// Len returns the number of registered identities.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.delegates)
}
