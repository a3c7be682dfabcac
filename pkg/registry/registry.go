package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

var (
	// ErrDuplicate reports a key that is already registered.
	ErrDuplicate = errors.New("duplicate registration")
	// ErrFrozen reports a registration attempt after startup completed.
	ErrFrozen = errors.New("registry is frozen")
)

// DuplicateError names the kind and key of a rejected registration.
type DuplicateError struct {
	Kind string
	Key  string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %q is already registered", e.Kind, e.Key)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

type entry[H any] struct {
	key     string
	handler H
}

// Registry is an ordered key to handler mapping.
//
// Registration happens during a single-threaded startup phase and ends with
// Freeze. Lookups after that are safe from any goroutine without locking
// because the registry is never written again.
type Registry[H any] struct {
	kind    string
	entries []entry[H]
	index   map[string]int
	frozen  atomic.Bool
}

// New creates an empty registry; kind names the entries in error messages.
func New[H any](kind string) *Registry[H] {
	return &Registry[H]{
		kind:  kind,
		index: make(map[string]int),
	}
}

// Register appends key in registration order. A duplicate key leaves the
// first registration untouched.
func (r *Registry[H]) Register(key string, handler H) error {
	if r.frozen.Load() {
		return fmt.Errorf("register %s %q: %w", r.kind, key, ErrFrozen)
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("register %s: key is required", r.kind)
	}
	if _, ok := r.index[key]; ok {
		return &DuplicateError{Kind: r.kind, Key: key}
	}

	r.index[key] = len(r.entries)
	r.entries = append(r.entries, entry[H]{key: key, handler: handler})
	return nil
}

// Freeze ends the registration phase.
func (r *Registry[H]) Freeze() {
	r.frozen.Store(true)
}

// Frozen reports whether Freeze was called.
func (r *Registry[H]) Frozen() bool {
	return r.frozen.Load()
}

// Lookup returns the handler registered under exactly key.
func (r *Registry[H]) Lookup(key string) (H, bool) {
	i, ok := r.index[key]
	if !ok {
		var zero H
		return zero, false
	}

	return r.entries[i].handler, true
}

// MatchPrefix returns the first registered key that prefixes data.
// Earlier registrations win over later, more specific ones.
func (r *Registry[H]) MatchPrefix(data string) (string, H, bool) {
	for _, e := range r.entries {
		if strings.HasPrefix(data, e.key) {
			return e.key, e.handler, true
		}
	}

	var zero H
	return "", zero, false
}

// Keys lists the registered keys in registration order.
func (r *Registry[H]) Keys() []string {
	keys := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		keys = append(keys, e.key)
	}

	return keys
}

// Len returns the number of registered entries.
func (r *Registry[H]) Len() int {
	return len(r.entries)
}
