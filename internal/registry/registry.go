package registry

import (
	"sync"

	"github.com/DoyleJ11/battlefield-lobby/internal/engine"
)

// Binding is the room and identity a connection last joined with.
type Binding struct {
	Room     string
	Identity engine.Identity
}

// Registry maps live connection ids to their room binding. A connection is
// bound to at most one room at a time.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]Binding
}

func New() *Registry {
	return &Registry{bindings: make(map[string]Binding)}
}

// Bind records the binding for connID. Re-binding within the same room
// replaces the identity; binding to another room fails with ErrAlreadyBound.
func (r *Registry) Bind(connID, room string, id engine.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.bindings[connID]; ok && b.Room != room {
		return engine.ErrAlreadyBound
	}
	r.bindings[connID] = Binding{Room: room, Identity: id}
	return nil
}

// Unbind removes connID and returns what it was bound to. Only the first of
// several concurrent calls observes ok == true.
func (r *Registry) Unbind(connID string) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[connID]
	if ok {
		delete(r.bindings, connID)
	}
	return b, ok
}

// UnbindFrom removes connID only while it is still bound to room.
func (r *Registry) UnbindFrom(connID, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.bindings[connID]; ok && b.Room == room {
		delete(r.bindings, connID)
		return true
	}
	return false
}

func (r *Registry) Lookup(connID string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bindings[connID]
	return b, ok
}

// InRoom lists the connections bound to room.
func (r *Registry) InRoom(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, b := range r.bindings {
		if b.Room == room {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}
