package registry

import (
	"fmt"
	"sync"
)

// Provider supplies elements to a registry. Implementations push deltas
// to registered provider listeners after the initial All() handshake.
type Provider[E any] interface {
	All() []E
	AddProviderListener(l ProviderListener[E])
	RemoveProviderListener(l ProviderListener[E])
}

// ProviderListener observes element changes within a single provider.
type ProviderListener[E any] interface {
	ElementAdded(p Provider[E], element E)
	ElementUpdated(p Provider[E], oldElement, newElement E)
	ElementRemoved(p Provider[E], element E)
}

// Store persists managed elements as JSON documents in a namespace.
// Implemented by the storage package.
type Store interface {
	Put(namespace, key string, value any) error
	Get(namespace, key string, into any) error
	Delete(namespace, key string) error
	Keys(namespace string) ([]string, error)
}

// ManagedProvider is a Store-backed provider supporting runtime CRUD.
// Elements are serialised through a DTO type D so runtime-only fields
// (live state, resolved references) never hit the store.
//
// All public methods are thread-safe.
type ManagedProvider[E Identifiable[string], D any] struct {
	namespace string
	store     Store
	logger    Logger

	encode func(E) D
	decode func(D) (E, error)

	mu        sync.RWMutex
	elements  map[string]E
	listeners []ProviderListener[E]
}

// NewManagedProvider creates a managed provider persisting into the given
// store namespace. encode turns an element into its persisted DTO; decode
// rebuilds the element on load.
func NewManagedProvider[E Identifiable[string], D any](
	namespace string,
	store Store,
	logger Logger,
	encode func(E) D,
	decode func(D) (E, error),
) *ManagedProvider[E, D] {
	if logger == nil {
		logger = noopLogger{}
	}
	return &ManagedProvider[E, D]{
		namespace: namespace,
		store:     store,
		logger:    logger,
		encode:    encode,
		decode:    decode,
		elements:  make(map[string]E),
	}
}

// Load reads all persisted elements from the store. Call once on startup
// before attaching the provider to a registry; entries that fail to
// decode are skipped with an error log.
func (m *ManagedProvider[E, D]) Load() error {
	keys, err := m.store.Keys(m.namespace)
	if err != nil {
		return fmt.Errorf("listing %s: %w", m.namespace, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		var dto D
		if err := m.store.Get(m.namespace, key, &dto); err != nil {
			m.logger.Error("skipping unreadable entry", "namespace", m.namespace, "key", key, "error", err)
			continue
		}
		element, err := m.decode(dto)
		if err != nil {
			m.logger.Error("skipping undecodable entry", "namespace", m.namespace, "key", key, "error", err)
			continue
		}
		m.elements[key] = element
	}
	m.logger.Info("managed elements loaded", "namespace", m.namespace, "count", len(m.elements))
	return nil
}

// All implements Provider.
func (m *ManagedProvider[E, D]) All() []E {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]E, 0, len(m.elements))
	for _, e := range m.elements {
		out = append(out, e)
	}
	return out
}

// AddProviderListener implements Provider.
func (m *ManagedProvider[E, D]) AddProviderListener(l ProviderListener[E]) {
	if l == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.listeners {
		if existing == l {
			return
		}
	}
	m.listeners = append(m.listeners, l)
}

// RemoveProviderListener implements Provider.
func (m *ManagedProvider[E, D]) RemoveProviderListener(l ProviderListener[E]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.listeners {
		if existing == l {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

// Add persists and announces a new element. Returns ErrElementExists when
// the UID is already managed.
func (m *ManagedProvider[E, D]) Add(element E) error {
	uid := element.Key()
	m.mu.Lock()
	if _, exists := m.elements[uid]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrElementExists, uid)
	}
	if err := m.store.Put(m.namespace, uid, m.encode(element)); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("persisting %s: %w", uid, err)
	}
	m.elements[uid] = element
	m.mu.Unlock()

	m.notify(func(l ProviderListener[E]) { l.ElementAdded(m, element) })
	return nil
}

// Update persists and announces a changed element. Returns
// ErrElementNotFound when the UID is not managed.
func (m *ManagedProvider[E, D]) Update(element E) error {
	uid := element.Key()
	m.mu.Lock()
	old, exists := m.elements[uid]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrElementNotFound, uid)
	}
	if err := m.store.Put(m.namespace, uid, m.encode(element)); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("persisting %s: %w", uid, err)
	}
	m.elements[uid] = element
	m.mu.Unlock()

	m.notify(func(l ProviderListener[E]) { l.ElementUpdated(m, old, element) })
	return nil
}

// Remove deletes and announces removal of an element, returning it.
func (m *ManagedProvider[E, D]) Remove(uid string) (E, error) {
	m.mu.Lock()
	old, exists := m.elements[uid]
	if !exists {
		m.mu.Unlock()
		var zero E
		return zero, fmt.Errorf("%w: %s", ErrElementNotFound, uid)
	}
	if err := m.store.Delete(m.namespace, uid); err != nil {
		m.mu.Unlock()
		var zero E
		return zero, fmt.Errorf("deleting %s: %w", uid, err)
	}
	delete(m.elements, uid)
	m.mu.Unlock()

	m.notify(func(l ProviderListener[E]) { l.ElementRemoved(m, old) })
	return old, nil
}

// Get returns a managed element by UID.
func (m *ManagedProvider[E, D]) Get(uid string) (E, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.elements[uid]
	return e, ok
}

func (m *ManagedProvider[E, D]) notify(fn func(ProviderListener[E])) {
	m.mu.RLock()
	listeners := make([]ProviderListener[E], len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()
	for _, l := range listeners {
		fn(l)
	}
}
