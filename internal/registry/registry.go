// Package registry tracks which managed process names currently own a live
// child process.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNameInUse is returned when a name is already held by another live owner.
var ErrNameInUse = errors.New("name already registered")

// Owner is the value associated with a registered name. Alive reports whether
// the owner still holds a running child; entries whose owner is no longer
// alive are treated as stale and may be replaced.
type Owner interface {
	Alive() bool
}

// Registry is a mutex guarded mapping of process name to live owner. The zero
// value is not usable; construct with New.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Owner
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Owner)}
}

// Register associates name with owner. Registering the same owner twice is a
// no-op. A different live owner for the same name yields ErrNameInUse.
func (r *Registry) Register(name string, owner Owner) error {
	if owner == nil {
		return fmt.Errorf("register %q: owner must not be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[name]; ok && existing != owner && existing.Alive() {
		return fmt.Errorf("register %q: %w", name, ErrNameInUse)
	}
	r.entries[name] = owner
	return nil
}

// Unregister removes name when it is still held by owner. It reports whether
// an entry was removed and is safe to call repeatedly.
func (r *Registry) Unregister(name string, owner Owner) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.entries[name]
	if !ok || existing != owner {
		return false
	}
	delete(r.entries, name)
	return true
}

// IsLive reports whether name is registered to an owner that is still alive.
func (r *Registry) IsLive(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.entries[name]
	return ok && owner.Alive()
}

// Lookup returns the owner registered under name.
func (r *Registry) Lookup(name string) (Owner, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.entries[name]
	return owner, ok
}

// Rename moves the entry stored under oldName to newName in a single critical
// section. Renaming an absent name is a no-op. The target must not be held by
// a different live owner.
func (r *Registry) Rename(oldName, newName string) error {
	if oldName == newName {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.entries[oldName]
	if !ok {
		return nil
	}
	if existing, taken := r.entries[newName]; taken && existing != owner && existing.Alive() {
		return fmt.Errorf("rename %q to %q: %w", oldName, newName, ErrNameInUse)
	}
	delete(r.entries, oldName)
	r.entries[newName] = owner
	return nil
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered names.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
