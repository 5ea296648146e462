package rules

import (
	"sort"

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

// Registry holds all known rule definitions. Definitions come from
// providers; lifecycle status and execution live in the Engine, which
// listens for registry changes.
type Registry struct {
	logger  Logger
	bus     events.Publisher
	core    *registry.Registry[*Rule, string]
	managed *registry.ManagedProvider[*Rule, DTO]
}

// NewRegistry creates an empty rule registry publishing on bus. A nil
// bus disables event publication, a nil logger logs nothing.
func NewRegistry(bus events.Publisher, logger Logger) *Registry {
	if logger == nil {
		logger = noopLogger{}
	}
	r := &Registry{logger: logger, bus: bus}
	r.core = registry.New[*Rule, string](logger)
	r.core.AddChangeListener(lifecycleListener{r})
	return r
}

// lifecycleListener turns core registry deltas into rule lifecycle
// events.
type lifecycleListener struct {
	r *Registry
}

func (l lifecycleListener) Added(r *Rule) {
	l.r.publish(NewAddedEvent(r))
}

func (l lifecycleListener) Updated(oldRule, newRule *Rule) {
	l.r.publish(NewUpdatedEvent(oldRule, newRule))
}

func (l lifecycleListener) Removed(r *Rule) {
	l.r.publish(NewRemovedEvent(r))
}

// AddProvider attaches a rule provider, registering its rules.
func (r *Registry) AddProvider(p registry.Provider[*Rule]) {
	r.core.AddProvider(p)
}

// RemoveProvider detaches a provider, unregistering its rules.
func (r *Registry) RemoveProvider(p registry.Provider[*Rule]) {
	r.core.RemoveProvider(p)
}

// SetManagedProvider attaches the provider used for runtime CRUD.
func (r *Registry) SetManagedProvider(mp *registry.ManagedProvider[*Rule, DTO]) {
	r.managed = mp
	r.core.AddProvider(mp)
}

// AddChangeListener registers a registry-level listener.
func (r *Registry) AddChangeListener(l registry.ChangeListener[*Rule]) {
	r.core.AddChangeListener(l)
}

// RemoveChangeListener removes a registry-level listener.
func (r *Registry) RemoveChangeListener(l registry.ChangeListener[*Rule]) {
	r.core.RemoveChangeListener(l)
}

// Get returns the rule with the given UID.
func (r *Registry) Get(uid string) (*Rule, bool) {
	return r.core.Get(uid)
}

// All returns every rule, sorted by UID.
func (r *Registry) All() []*Rule {
	all := r.core.All()
	sort.Slice(all, func(i, j int) bool { return all[i].UID < all[j].UID })
	return all
}

// ByTag returns every rule carrying the tag, sorted by UID.
func (r *Registry) ByTag(tag string) []*Rule {
	var out []*Rule
	for _, rule := range r.All() {
		if rule.HasTag(tag) {
			out = append(out, rule)
		}
	}
	return out
}

// Count returns the number of registered rules.
func (r *Registry) Count() int { return r.core.Count() }

// Add persists a new rule through the managed provider. A missing UID
// is generated and set on the passed rule.
func (r *Registry) Add(rule *Rule) error {
	if r.managed == nil {
		return ErrNoManagedProvider
	}
	if err := rule.Normalize(); err != nil {
		return err
	}
	validated, err := FromDTO(ToDTO(rule))
	if err != nil {
		return err
	}
	// The DTO round trip aliases the caller's maps; store a copy.
	return r.managed.Add(validated.DeepCopy())
}

// Update persists a changed rule through the managed provider.
func (r *Registry) Update(rule *Rule) error {
	if r.managed == nil {
		return ErrNoManagedProvider
	}
	validated, err := FromDTO(ToDTO(rule))
	if err != nil {
		return err
	}
	return r.managed.Update(validated.DeepCopy())
}

// Remove deletes a managed rule, returning its definition.
func (r *Registry) Remove(uid string) (*Rule, error) {
	if r.managed == nil {
		return nil, ErrNoManagedProvider
	}
	return r.managed.Remove(uid)
}

func (r *Registry) publish(e events.Event) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(e); err != nil {
		r.logger.Warn("event publish failed", "type", e.Type(), "topic", e.Topic(), "error", err)
	}
}
