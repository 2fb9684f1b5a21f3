// Package registry tracks entity existence and head pointers. Entities are
// permanent: registration is the only way in and there is no way out.
package registry

import (
	"strings"
	"sync"
	"time"
)

// Entity is the registry's record for one filament: identity, small
// denormalized fields, and the current head pointer.
type Entity struct {
	ID        string
	Type      string
	Scope     string
	CreatedAt time.Time
	// LastAuthor is the author of the most recent commit (or the
	// registering author while the entity is empty).
	LastAuthor string
	// HeadRef is the ref of the latest commit, empty while the entity has
	// no commits.
	HeadRef string
	// HeadIndex is the index of the latest commit, 0 while empty.
	HeadIndex uint64
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	// Scope matches entities whose scope starts with this prefix.
	Scope string
	// Type matches entities with exactly this type.
	Type string
}

// Registry is an insertion-ordered map of entity id to Entity.
// Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]Entity
	order    []string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entities: make(map[string]Entity)}
}

// Register creates an entity with an empty head. Returns false if the id
// is already registered; entities are never replaced.
func (r *Registry) Register(e Entity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entities[e.ID]; exists {
		return false
	}
	e.HeadRef = ""
	e.HeadIndex = 0
	r.entities[e.ID] = e
	r.order = append(r.order, e.ID)
	return true
}

// Get returns the entity for id.
func (r *Registry) Get(id string) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[id]
	return e, ok
}

// List returns entities matching the filter in insertion order. The order
// is not guaranteed meaningful; callers needing sorted output sort
// explicitly.
func (r *Registry) List(f Filter) []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entity
	for _, id := range r.order {
		e := r.entities[id]
		if f.Scope != "" && !strings.HasPrefix(e.Scope, f.Scope) {
			continue
		}
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// AdvanceHead moves the head pointer. Called exclusively by the commit log
// after a successful append; no other component may mutate heads.
// Returns false if the entity is not registered.
func (r *Registry) AdvanceHead(id, newRef string, newIndex uint64, authorRef string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entities[id]
	if !ok {
		return false
	}
	e.HeadRef = newRef
	e.HeadIndex = newIndex
	e.LastAuthor = authorRef
	r.entities[id] = e
	return true
}

// Restore inserts an entity with its head intact. Used when rebuilding
// in-memory state from the durable store; bypasses the empty-head rule of
// Register but still refuses duplicates.
func (r *Registry) Restore(e Entity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entities[e.ID]; exists {
		return false
	}
	r.entities[e.ID] = e
	r.order = append(r.order, e.ID)
	return true
}
