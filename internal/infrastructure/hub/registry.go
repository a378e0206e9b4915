package hub

import (
	"fmt"
	"sync"
)

// Registry is the set of Active connections. The map never leaves this type;
// callers see snapshots.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
	}
}

// Register adds an Active connection and returns its id.
func (r *Registry) Register(conn *Connection) (string, error) {
	if state := conn.State(); state != StateActive {
		return "", fmt.Errorf("%w: %s is %s", ErrConnectionNotActive, conn.ID(), state)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[conn.ID()]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicateConnection, conn.ID())
	}
	r.connections[conn.ID()] = conn
	return conn.ID(), nil
}

// Unregister removes id and reports whether it was present.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[id]; !exists {
		return false
	}
	delete(r.connections, id)
	return true
}

func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.connections[id]
	return conn, exists
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// ForEach runs action on every connection for which match returns true (a nil
// match selects all). Matching happens under the read lock; action runs on a
// snapshot after the lock is released, so it may unregister connections or
// perform I/O. Returns the number of connections visited.
func (r *Registry) ForEach(match func(*Connection) bool, action func(*Connection)) int {
	r.mu.RLock()
	snapshot := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		if match == nil || match(conn) {
			snapshot = append(snapshot, conn)
		}
	}
	r.mu.RUnlock()

	for _, conn := range snapshot {
		action(conn)
	}
	return len(snapshot)
}

// Snapshot returns the current members.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		out = append(out, conn)
	}
	return out
}
