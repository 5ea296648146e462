package things

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hearth-home/hearth-core/internal/events"
	"github.com/hearth-home/hearth-core/internal/registry"
)

// Logger is the minimal logging interface this package needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry holds all known things and their runtime statuses.
// Definitions come from providers; statuses live here and move through
// SetStatus, which publishes the corresponding events.
type Registry struct {
	logger  Logger
	bus     events.Publisher
	core    *registry.Registry[*Thing, string]
	managed *registry.ManagedProvider[*Thing, DTO]

	mu       sync.RWMutex
	statuses map[string]StatusInfo
}

// NewRegistry creates an empty thing registry publishing on bus. A nil
// bus disables event publication, a nil logger logs nothing.
func NewRegistry(bus events.Publisher, logger Logger) *Registry {
	if logger == nil {
		logger = noopLogger{}
	}
	r := &Registry{
		logger:   logger,
		bus:      bus,
		statuses: make(map[string]StatusInfo),
	}
	r.core = registry.New[*Thing, string](logger)
	r.core.AddChangeListener(lifecycleListener{r})
	return r
}

// lifecycleListener turns core registry deltas into thing lifecycle
// events and keeps the status table in step.
type lifecycleListener struct {
	r *Registry
}

func (l lifecycleListener) Added(t *Thing) {
	l.r.mu.Lock()
	if _, ok := l.r.statuses[t.Key()]; !ok {
		l.r.statuses[t.Key()] = StatusInfoOf(StatusUninitialized, DetailNone, "")
	}
	l.r.mu.Unlock()
	l.r.publish(NewAddedEvent(t))
}

func (l lifecycleListener) Updated(oldThing, newThing *Thing) {
	l.r.publish(NewUpdatedEvent(oldThing, newThing))
}

func (l lifecycleListener) Removed(t *Thing) {
	l.r.mu.Lock()
	delete(l.r.statuses, t.Key())
	l.r.mu.Unlock()
	l.r.publish(NewRemovedEvent(t))
}

// AddProvider attaches a thing provider, registering its things.
func (r *Registry) AddProvider(p registry.Provider[*Thing]) {
	r.core.AddProvider(p)
}

// RemoveProvider detaches a provider, unregistering its things.
func (r *Registry) RemoveProvider(p registry.Provider[*Thing]) {
	r.core.RemoveProvider(p)
}

// SetManagedProvider attaches the provider used for runtime CRUD.
func (r *Registry) SetManagedProvider(mp *registry.ManagedProvider[*Thing, DTO]) {
	r.managed = mp
	r.core.AddProvider(mp)
}

// AddChangeListener registers a registry-level listener.
func (r *Registry) AddChangeListener(l registry.ChangeListener[*Thing]) {
	r.core.AddChangeListener(l)
}

// RemoveChangeListener removes a registry-level listener.
func (r *Registry) RemoveChangeListener(l registry.ChangeListener[*Thing]) {
	r.core.RemoveChangeListener(l)
}

// Get returns the thing with its current status filled in.
func (r *Registry) Get(uid ThingUID) (*Thing, bool) {
	t, ok := r.core.Get(string(uid))
	if !ok {
		return nil, false
	}
	return r.withStatus(t), true
}

// All returns every thing, sorted by UID, statuses filled in.
func (r *Registry) All() []*Thing {
	all := r.core.All()
	for i, t := range all {
		all[i] = r.withStatus(t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UID < all[j].UID })
	return all
}

// Count returns the number of registered things.
func (r *Registry) Count() int { return r.core.Count() }

// Status returns the current status of the thing.
func (r *Registry) Status(uid ThingUID) (StatusInfo, bool) {
	if _, ok := r.core.Get(string(uid)); !ok {
		return StatusInfo{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.statuses[string(uid)]
	if !ok {
		return StatusInfoOf(StatusUninitialized, DetailNone, ""), true
	}
	return info, true
}

// Channel resolves a channel UID to its thing and channel definition.
func (r *Registry) Channel(uid ChannelUID) (*Thing, *Channel, bool) {
	t, ok := r.Get(uid.Thing())
	if !ok {
		return nil, nil, false
	}
	ch, ok := t.Channel(uid.ChannelID())
	if !ok {
		return nil, nil, false
	}
	return t, ch, true
}

// Add persists a new thing through the managed provider.
func (r *Registry) Add(t *Thing) error {
	if r.managed == nil {
		return ErrNoManagedProvider
	}
	validated, err := FromDTO(ToDTO(t))
	if err != nil {
		return err
	}
	// The DTO round trip aliases the caller's maps; store a copy.
	return r.managed.Add(validated.DeepCopy())
}

// Update persists a changed thing through the managed provider.
func (r *Registry) Update(t *Thing) error {
	if r.managed == nil {
		return ErrNoManagedProvider
	}
	validated, err := FromDTO(ToDTO(t))
	if err != nil {
		return err
	}
	return r.managed.Update(validated.DeepCopy())
}

// Remove deletes a managed thing, returning its definition.
func (r *Registry) Remove(uid ThingUID) (*Thing, error) {
	if r.managed == nil {
		return nil, ErrNoManagedProvider
	}
	return r.managed.Remove(string(uid))
}

// SetStatus moves a thing to a new status. A status event is always
// published; a statuschanged and an updated event follow only when the
// status actually changed. REMOVED is terminal.
func (r *Registry) SetStatus(uid ThingUID, info StatusInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	t, ok := r.core.Get(string(uid))
	if !ok {
		return fmt.Errorf("%w: %s", ErrThingNotFound, uid)
	}

	r.mu.Lock()
	current, ok := r.statuses[string(uid)]
	if !ok {
		current = StatusInfoOf(StatusUninitialized, DetailNone, "")
	}
	if current.Status == StatusRemoved {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s is REMOVED", ErrStatusTerminal, uid)
	}
	r.statuses[string(uid)] = info
	r.mu.Unlock()

	r.publish(NewStatusEvent(uid, info))
	if info != current {
		r.logger.Debug("thing status changed",
			"uid", string(uid), "from", string(current.Status), "to", string(info.Status))
		r.publish(NewStatusChangedEvent(uid, current, info))
		r.publish(NewUpdatedEvent(t, t))
	}
	return nil
}

// TriggerChannel publishes a trigger event for an existing channel.
func (r *Registry) TriggerChannel(channel ChannelUID, event string) error {
	if _, _, ok := r.Channel(channel); !ok {
		return fmt.Errorf("%w: %s", ErrChannelNotFound, channel)
	}
	r.publish(NewChannelTriggeredEvent(channel, event))
	return nil
}

func (r *Registry) withStatus(t *Thing) *Thing {
	r.mu.RLock()
	info, ok := r.statuses[t.Key()]
	r.mu.RUnlock()
	if !ok {
		info = StatusInfoOf(StatusUninitialized, DetailNone, "")
	}
	t.Status = info
	return t
}

func (r *Registry) publish(e events.Event) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(e); err != nil {
		r.logger.Warn("event publish failed", "type", e.Type(), "topic", e.Topic(), "error", err)
	}
}
