// Package registry tracks the mount points widgets attach to.
//
// A host declares its mount points (the elements a page exposes) up front;
// widgets then resolve their selector against the registry when they are
// constructed, which is where the fail-fast attachment contract is enforced.
package registry

import (
	"slices"
	"sync"

	"golang.org/x/xerrors"
)

// ErrNotFound is returned when a selector resolves to no mount point.
var ErrNotFound = xerrors.New("mount point not found")

// Mount is a named place widgets attach to.
type Mount struct {
	Selector string
	widgets  []string
}

// Registry manages mount points and the widgets attached to them.
type Registry struct {
	mu     sync.RWMutex
	mounts map[string]*Mount
}

// New creates a registry holding the given mount points.
func New(selectors ...string) *Registry {
	r := &Registry{mounts: make(map[string]*Mount)}
	for _, s := range selectors {
		_ = r.Add(s)
	}
	return r
}

// Add declares a mount point. Adding an existing selector is a no-op.
func (r *Registry) Add(selector string) error {
	if selector == "" {
		return xerrors.New("selector required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.mounts[selector]; !ok {
		r.mounts[selector] = &Mount{Selector: selector}
	}
	return nil
}

// Remove drops a mount point and everything attached to it.
func (r *Registry) Remove(selector string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.mounts, selector)
}

// Has reports whether selector resolves to a mount point.
func (r *Registry) Has(selector string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.mounts[selector]
	return ok
}

// Attach records widget under selector. It fails with ErrNotFound when the
// selector does not resolve, and when the same widget is attached twice.
func (r *Registry) Attach(selector, widget string) error {
	if widget == "" {
		return xerrors.New("widget id required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.mounts[selector]
	if !ok {
		return xerrors.Errorf("selector %q: %w", selector, ErrNotFound)
	}
	if slices.Contains(m.widgets, widget) {
		return xerrors.Errorf("widget %s already attached to %q", widget, selector)
	}
	m.widgets = append(m.widgets, widget)
	return nil
}

// Detach removes widget from selector. Unknown pairs are ignored.
func (r *Registry) Detach(selector, widget string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.mounts[selector]
	if !ok {
		return
	}
	m.widgets = slices.DeleteFunc(m.widgets, func(w string) bool { return w == widget })
}

// Attached returns the widgets attached to selector, in attach order.
func (r *Registry) Attached(selector string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.mounts[selector]
	if !ok {
		return nil
	}
	return slices.Clone(m.widgets)
}

// Selectors returns every declared mount point, sorted.
func (r *Registry) Selectors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.mounts))
	for s := range r.mounts {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}
