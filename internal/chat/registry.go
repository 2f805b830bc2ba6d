package chat

import (
	"slices"
	"sync"
)

// Registry tracks the authenticated connections that receive broadcasts
type Registry interface {
	// Add registers a connection
	Add(c *Conn)
	// RemoveMatching removes every connection for which match returns true
	// and reports how many were removed
	RemoveMatching(match func(*Conn) bool) int
	// Snapshot returns the current connections. The slice is a copy and
	// may be used after the registry changes.
	Snapshot() []*Conn
	// Count returns the number of registered connections
	Count() int
}

// SameAddress matches connections with the same peer and local address as c
func SameAddress(c *Conn) func(*Conn) bool {
	peer, local := c.PeerAddr(), c.LocalAddr()
	return func(other *Conn) bool {
		return other.PeerAddr() == peer && other.LocalAddr() == local
	}
}

// LockedRegistry is a Registry guarded by a single mutex
type LockedRegistry struct {
	mu    sync.Mutex
	conns []*Conn
}

// Ensure LockedRegistry implements Registry
var _ Registry = (*LockedRegistry)(nil)

// NewLockedRegistry creates an empty LockedRegistry
func NewLockedRegistry() *LockedRegistry {
	return &LockedRegistry{}
}

func (r *LockedRegistry) Add(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns = append(r.conns, c)
}

func (r *LockedRegistry) RemoveMatching(match func(*Conn) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	before := len(r.conns)
	r.conns = slices.DeleteFunc(r.conns, match)
	return before - len(r.conns)
}

func (r *LockedRegistry) Snapshot() []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.conns)
}

func (r *LockedRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
