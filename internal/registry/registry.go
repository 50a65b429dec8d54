// Package registry implements the factory-registry pattern used for every
// kind of plugin descriptor in the pipeline (namespaces, package types,
// stages). It replaces the source's runtime directory scan: each
// descriptor's defining package calls Register from an init() (or from
// explicit wiring in cmd/feed) instead of being discovered reflectively.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hathitrust/feed/internal/ingesterr"
)

// Registry holds descriptors of one kind (Namespace, PackageType, Stage,
// ...), keyed by identifier. It is safe for concurrent use, though in
// practice all registration happens at startup before any worker goroutine
// is spawned.
type Registry[T any] struct {
	kind string

	mu    sync.RWMutex
	items map[string]T
}

func New[T any](kind string) *Registry[T] {
	return &Registry[T]{kind: kind, items: make(map[string]T)}
}

// Register adds a descriptor under identifier. A duplicate identifier is a
// programmer error discovered at startup, so it panics rather than
// returning an error — there is no sensible way to keep running with two
// conflicting descriptors for the same identifier.
func (r *Registry[T]) Register(identifier string, item T) {
	if identifier == "" {
		panic(fmt.Sprintf("registry(%s): empty identifier", r.kind))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[identifier]; exists {
		panic(fmt.Sprintf("registry(%s): duplicate identifier %q", r.kind, identifier))
	}
	r.items[identifier] = item
}

// Lookup returns the descriptor registered under identifier, or an
// UnknownSubclass error if none was registered.
func (r *Registry[T]) Lookup(identifier string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[identifier]
	if !ok {
		var zero T
		return zero, ingesterr.UnknownSubclassf(r.kind, identifier)
	}
	return item, nil
}

// Enumerate returns every registered identifier in a stable (sorted) order.
func (r *Registry[T]) Enumerate() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.items))
	for k := range r.items {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
