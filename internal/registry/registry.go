package registry

import (
	"sync"
)

// Logger defines the logging interface used by the registry core.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Identifiable constrains registry elements to expose a unique key.
type Identifiable[K comparable] interface {
	Key() K
}

// Copyable is implemented by element types that can produce isolated
// copies. When an element implements it, the registry returns copies so
// callers can never mutate registry-held state.
type Copyable[E any] interface {
	DeepCopy() E
}

// ChangeListener observes registry-level element changes.
type ChangeListener[E any] interface {
	Added(element E)
	Updated(oldElement, newElement E)
	Removed(element E)
}

// entry pairs an element with the provider that owns it.
type entry[E any] struct {
	element  E
	provider Provider[E]
}

// Registry aggregates elements from providers and notifies change
// listeners. E is the element type, K its comparable UID type.
//
// All public methods are thread-safe.
type Registry[E Identifiable[K], K comparable] struct {
	logger Logger

	mu        sync.RWMutex
	providers []Provider[E]
	elements  map[K]entry[E]
	listeners []ChangeListener[E]
}

// New creates an empty registry.
func New[E Identifiable[K], K comparable](logger Logger) *Registry[E, K] {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Registry[E, K]{
		logger:   logger,
		elements: make(map[K]entry[E]),
	}
}

// AddProvider attaches a provider: its current elements are registered
// and future provider deltas are applied. Elements whose UID is already
// held by another provider are skipped with a warning (first provider
// wins). Attaching the same provider twice is a no-op.
func (r *Registry[E, K]) AddProvider(p Provider[E]) {
	if p == nil {
		return
	}
	r.mu.Lock()
	for _, existing := range r.providers {
		if existing == p {
			r.mu.Unlock()
			return
		}
	}
	r.providers = append(r.providers, p)
	r.mu.Unlock()

	p.AddProviderListener(r)
	for _, e := range p.All() {
		r.ElementAdded(p, e)
	}
}

// RemoveProvider detaches a provider and unregisters all elements it
// owns. Unknown providers are ignored.
func (r *Registry[E, K]) RemoveProvider(p Provider[E]) {
	if p == nil {
		return
	}
	r.mu.Lock()
	found := false
	for i, existing := range r.providers {
		if existing == p {
			r.providers = append(r.providers[:i], r.providers[i+1:]...)
			found = true
			break
		}
	}
	var removed []E
	if found {
		for uid, ent := range r.elements {
			if ent.provider == p {
				removed = append(removed, ent.element)
				delete(r.elements, uid)
			}
		}
	}
	r.mu.Unlock()
	if !found {
		return
	}

	p.RemoveProviderListener(r)
	for _, e := range removed {
		r.notify(func(l ChangeListener[E]) { l.Removed(r.isolate(e)) })
	}
}

// Get returns the element with the given UID.
func (r *Registry[E, K]) Get(uid K) (E, bool) {
	r.mu.RLock()
	ent, ok := r.elements[uid]
	r.mu.RUnlock()
	if !ok {
		var zero E
		return zero, false
	}
	return r.isolate(ent.element), true
}

// All returns a snapshot of every registered element.
func (r *Registry[E, K]) All() []E {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]E, 0, len(r.elements))
	for _, ent := range r.elements {
		out = append(out, r.isolate(ent.element))
	}
	return out
}

// Count returns the number of registered elements.
func (r *Registry[E, K]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.elements)
}

// AddChangeListener registers a change listener. Duplicate registrations
// are ignored.
func (r *Registry[E, K]) AddChangeListener(l ChangeListener[E]) {
	if l == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.listeners {
		if existing == l {
			return
		}
	}
	r.listeners = append(r.listeners, l)
}

// RemoveChangeListener unregisters a change listener.
func (r *Registry[E, K]) RemoveChangeListener(l ChangeListener[E]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.listeners {
		if existing == l {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

// ElementAdded implements ProviderListener. It registers a new element
// from the given provider, skipping UIDs already owned elsewhere.
func (r *Registry[E, K]) ElementAdded(p Provider[E], element E) {
	uid := element.Key()
	r.mu.Lock()
	if _, exists := r.elements[uid]; exists {
		r.mu.Unlock()
		r.logger.Warn("element ignored, uid already registered", "uid", uid)
		return
	}
	r.elements[uid] = entry[E]{element: element, provider: p}
	r.mu.Unlock()

	r.notify(func(l ChangeListener[E]) { l.Added(r.isolate(element)) })
}

// ElementUpdated implements ProviderListener. Updates are only accepted
// from the provider that owns the element. A changed UID is treated as
// remove-plus-add.
func (r *Registry[E, K]) ElementUpdated(p Provider[E], oldElement, newElement E) {
	oldUID := oldElement.Key()
	newUID := newElement.Key()
	if oldUID != newUID {
		r.ElementRemoved(p, oldElement)
		r.ElementAdded(p, newElement)
		return
	}

	r.mu.Lock()
	ent, ok := r.elements[oldUID]
	if !ok || ent.provider != p {
		r.mu.Unlock()
		r.logger.Warn("update ignored, element not owned by provider", "uid", oldUID)
		return
	}
	prev := ent.element
	r.elements[oldUID] = entry[E]{element: newElement, provider: p}
	r.mu.Unlock()

	r.notify(func(l ChangeListener[E]) { l.Updated(r.isolate(prev), r.isolate(newElement)) })
}

// ElementRemoved implements ProviderListener. Removals are only accepted
// from the provider that owns the element.
func (r *Registry[E, K]) ElementRemoved(p Provider[E], element E) {
	uid := element.Key()
	r.mu.Lock()
	ent, ok := r.elements[uid]
	if !ok || ent.provider != p {
		r.mu.Unlock()
		return
	}
	prev := ent.element
	delete(r.elements, uid)
	r.mu.Unlock()

	r.notify(func(l ChangeListener[E]) { l.Removed(r.isolate(prev)) })
}

// notify fans one change out to all listeners, outside the registry lock.
func (r *Registry[E, K]) notify(fn func(ChangeListener[E])) {
	r.mu.RLock()
	listeners := make([]ChangeListener[E], len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()

	for _, l := range listeners {
		r.safeNotify(l, fn)
	}
}

func (r *Registry[E, K]) safeNotify(l ChangeListener[E], fn func(ChangeListener[E])) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("change listener panic recovered", "panic", rec)
		}
	}()
	fn(l)
}

// isolate returns a deep copy when the element type supports it.
func (r *Registry[E, K]) isolate(e E) E {
	if c, ok := any(e).(Copyable[E]); ok {
		return c.DeepCopy()
	}
	return e
}
