package items

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hearth-home/hearth-core/internal/events"
	"github.com/hearth-home/hearth-core/internal/registry"
	"github.com/hearth-home/hearth-core/internal/types"
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

// autoupdateNamespace is the metadata namespace vetoing command
// prediction when its value is "false".
const autoupdateNamespace = "autoupdate"

// Registry holds all known items and their runtime states. Definitions
// come from providers; states live here and move through UpdateState and
// SendCommand, which publish the corresponding events.
type Registry struct {
	logger  Logger
	bus     events.Publisher
	core    *registry.Registry[*Item, string]
	managed *registry.ManagedProvider[*Item, DTO]

	mu     sync.RWMutex
	states map[string]types.State
}

// NewRegistry creates an empty item registry publishing on bus. A nil
// bus disables event publication, a nil logger logs nothing.
func NewRegistry(bus events.Publisher, logger Logger) *Registry {
	if logger == nil {
		logger = noopLogger{}
	}
	r := &Registry{
		logger: logger,
		bus:    bus,
		states: make(map[string]types.State),
	}
	r.core = registry.New[*Item, string](logger)
	r.core.AddChangeListener(lifecycleListener{r})
	return r
}

// lifecycleListener turns core registry deltas into item lifecycle
// events and keeps the state table in step.
type lifecycleListener struct {
	r *Registry
}

func (l lifecycleListener) Added(it *Item) {
	l.r.mu.Lock()
	if _, ok := l.r.states[it.Name]; !ok {
		l.r.states[it.Name] = types.Null
	}
	l.r.mu.Unlock()
	l.r.publish(NewAddedEvent(it))
}

func (l lifecycleListener) Updated(oldItem, newItem *Item) {
	if oldItem.Name != newItem.Name {
		l.r.mu.Lock()
		if st, ok := l.r.states[oldItem.Name]; ok {
			l.r.states[newItem.Name] = st
			delete(l.r.states, oldItem.Name)
		}
		l.r.mu.Unlock()
	}
	l.r.publish(NewUpdatedEvent(oldItem, newItem))
}

func (l lifecycleListener) Removed(it *Item) {
	l.r.mu.Lock()
	delete(l.r.states, it.Name)
	l.r.mu.Unlock()
	l.r.publish(NewRemovedEvent(it))
}

// AddProvider attaches an item provider, registering its items.
func (r *Registry) AddProvider(p registry.Provider[*Item]) {
	r.core.AddProvider(p)
}

// RemoveProvider detaches a provider, unregistering its items.
func (r *Registry) RemoveProvider(p registry.Provider[*Item]) {
	r.core.RemoveProvider(p)
}

// SetManagedProvider attaches the provider used for runtime CRUD.
func (r *Registry) SetManagedProvider(mp *registry.ManagedProvider[*Item, DTO]) {
	r.managed = mp
	r.core.AddProvider(mp)
}

// AddChangeListener registers a registry-level listener.
func (r *Registry) AddChangeListener(l registry.ChangeListener[*Item]) {
	r.core.AddChangeListener(l)
}

// RemoveChangeListener removes a registry-level listener.
func (r *Registry) RemoveChangeListener(l registry.ChangeListener[*Item]) {
	r.core.RemoveChangeListener(l)
}

// Get returns the named item with its current state filled in.
func (r *Registry) Get(name string) (*Item, bool) {
	it, ok := r.core.Get(name)
	if !ok {
		return nil, false
	}
	return r.withState(it), true
}

// All returns every item, sorted by name, states filled in.
func (r *Registry) All() []*Item {
	all := r.core.All()
	for i, it := range all {
		all[i] = r.withState(it)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Count returns the number of registered items.
func (r *Registry) Count() int { return r.core.Count() }

// State returns the current state of the named item.
func (r *Registry) State(name string) (types.State, bool) {
	if _, ok := r.core.Get(name); !ok {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.states[name]
	if !ok || st == nil {
		return types.Null, true
	}
	return st, true
}

// GroupMembers returns the direct members of the named group, sorted by
// name.
func (r *Registry) GroupMembers(group string) []*Item {
	var members []*Item
	for _, it := range r.core.All() {
		if it.MemberOf(group) {
			members = append(members, r.withState(it))
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members
}

// Group returns the named group with members resolved.
func (r *Registry) Group(name string) (*GroupItem, error) {
	it, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, name)
	}
	if !it.IsGroup() {
		return nil, fmt.Errorf("%w: %s", ErrNotAGroup, name)
	}
	return &GroupItem{Item: it, Members: r.GroupMembers(name)}, nil
}

// Add persists a new item through the managed provider.
func (r *Registry) Add(item *Item) error {
	if r.managed == nil {
		return ErrNoManagedProvider
	}
	validated, err := FromDTO(ToDTO(item))
	if err != nil {
		return err
	}
	// The DTO round trip aliases the caller's maps; store a copy.
	return r.managed.Add(validated.DeepCopy())
}

// Update persists a changed item through the managed provider.
func (r *Registry) Update(item *Item) error {
	if r.managed == nil {
		return ErrNoManagedProvider
	}
	validated, err := FromDTO(ToDTO(item))
	if err != nil {
		return err
	}
	return r.managed.Update(validated.DeepCopy())
}

// Remove deletes a managed item, returning its definition.
func (r *Registry) Remove(name string) (*Item, error) {
	if r.managed == nil {
		return nil, ErrNoManagedProvider
	}
	return r.managed.Remove(name)
}

// UpdateState sets an item's state. A state event is always published;
// a statechanged event and group recomputation follow only when the
// state actually changed.
func (r *Registry) UpdateState(name string, st types.State) error {
	return r.updateState(name, st, "", make(map[string]bool))
}

// UpdateStateFrom is UpdateState with an event source attached, used by
// bridges to mark their own updates.
func (r *Registry) UpdateStateFrom(name string, st types.State, source string) error {
	return r.updateState(name, st, source, make(map[string]bool))
}

// SendCommand issues a command to an item. Group commands fan out to
// members. Unless vetoed by autoupdate metadata, the predicted resulting
// state is applied as an update.
func (r *Registry) SendCommand(name string, cmd types.Command) error {
	return r.sendCommand(name, cmd, "", make(map[string]bool))
}

// SendCommandFrom is SendCommand with an event source attached.
func (r *Registry) SendCommandFrom(name string, cmd types.Command, source string) error {
	return r.sendCommand(name, cmd, source, make(map[string]bool))
}

func (r *Registry) updateState(name string, st types.State, source string, visited map[string]bool) error {
	it, ok := r.core.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, name)
	}
	accepted, err := acceptState(it, st)
	if err != nil {
		return err
	}

	r.mu.Lock()
	old, ok := r.states[name]
	if !ok || old == nil {
		old = types.Null
	}
	r.states[name] = accepted
	r.mu.Unlock()

	r.publish(NewStateEvent(name, accepted, source))
	if types.Equal(old, accepted) {
		return nil
	}
	r.publish(NewStateChangedEvent(name, old, accepted))
	visited[name] = true
	r.recomputeGroups(it, visited)
	return nil
}

// recomputeGroups recalculates every group the item belongs to,
// cascading upward. The visited set makes membership cycles terminate.
func (r *Registry) recomputeGroups(member *Item, visited map[string]bool) {
	for _, name := range member.Groups {
		if visited[name] {
			continue
		}
		visited[name] = true

		group, ok := r.core.Get(name)
		if !ok || !group.IsGroup() {
			continue
		}
		agg, err := aggregatorFor(group)
		if err != nil {
			// Admission validates functions, so only hand-built items
			// can get here.
			r.logger.Warn("group function invalid, using equality",
				"group", name, "error", err)
			agg = aggregateEquality
		}

		members := r.GroupMembers(name)
		states := make([]types.State, len(members))
		for i, m := range members {
			states[i] = m.State
		}
		newState := agg(states)

		r.mu.Lock()
		old, ok := r.states[name]
		if !ok || old == nil {
			old = types.Null
		}
		changed := !types.Equal(old, newState)
		if changed {
			r.states[name] = newState
		}
		r.mu.Unlock()

		if changed {
			r.publish(NewGroupStateChangedEvent(name, member.Name, old, newState))
			r.recomputeGroups(group, visited)
		}
	}
}

func (r *Registry) sendCommand(name string, cmd types.Command, source string, visited map[string]bool) error {
	if cmd == nil {
		return fmt.Errorf("%w: nil command", ErrCommandNotAccepted)
	}
	it, ok := r.core.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, name)
	}
	if visited[name] {
		return nil
	}
	visited[name] = true

	if it.IsGroup() {
		if it.GroupType != "" && !types.AcceptsCommand(it.GroupType, cmd) {
			return fmt.Errorf("%w: %s on %s group %s", ErrCommandNotAccepted, cmd.Kind(), it.GroupType, name)
		}
		r.publish(NewCommandEvent(name, cmd, source))
		for _, m := range r.GroupMembers(name) {
			if err := r.sendCommand(m.Name, cmd, source, visited); err != nil {
				r.logger.Warn("group command not delivered",
					"group", name, "member", m.Name, "error", err)
			}
		}
		return nil
	}

	if !types.AcceptsCommand(it.Type, cmd) {
		return fmt.Errorf("%w: %s on %s item %s", ErrCommandNotAccepted, cmd.Kind(), it.Type, name)
	}
	r.publish(NewCommandEvent(name, cmd, source))

	if v, ok := it.MetadataValue(autoupdateNamespace); ok && v == "false" {
		return nil
	}
	predicted, ok := types.StateFromCommand(cmd)
	if !ok {
		return nil
	}
	return r.updateState(name, predicted, source, make(map[string]bool))
}

// acceptState normalises a state onto what the item's type can hold,
// converting into the primary kind when needed. Untyped groups accept
// anything.
func acceptState(it *Item, st types.State) (types.State, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: nil state", ErrStateNotAccepted)
	}
	if types.IsUnset(st) {
		return st, nil
	}

	typ := it.Type
	if it.IsGroup() {
		if it.GroupType == "" {
			return st, nil
		}
		typ = it.GroupType
	}

	if types.AcceptsState(typ, st) {
		return st, nil
	}
	if primary, ok := types.PrimaryStateKind(typ); ok {
		if converted, ok := types.StateAs(st, primary); ok {
			return converted, nil
		}
	}
	return nil, fmt.Errorf("%w: %s on %s item %s", ErrStateNotAccepted, st.Kind(), typ, it.Name)
}

func (r *Registry) withState(it *Item) *Item {
	r.mu.RLock()
	st, ok := r.states[it.Name]
	r.mu.RUnlock()
	if !ok || st == nil {
		st = types.Null
	}
	it.State = st
	return it
}

func (r *Registry) publish(e events.Event) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(e); err != nil {
		r.logger.Warn("event not published", "type", e.Type(), "topic", e.Topic(), "error", err)
	}
}
