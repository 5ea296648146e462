package model

import (
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hearth-home/hearth-core/internal/items"
	"github.com/hearth-home/hearth-core/internal/registry"
	"github.com/hearth-home/hearth-core/internal/rules"
	"github.com/hearth-home/hearth-core/internal/things"
)

// Section names used in model files.
const (
	KindItems  = "items"
	KindThings = "things"
	KindRules  = "rules"
)

// parsed adapts a registry element to the model Element interface on
// the way out of Parse.
type parsed[E registry.Identifiable[string]] struct {
	element E
}

func (p parsed[E]) ModelKey() string { return p.element.Key() }

// yamlProvider is the shared half of the item, thing and rule model
// providers: the repository feeds it as a Listener, a registry drains
// it as a Provider. Elements are tracked per model so removing one file
// only removes its own elements.
type yamlProvider[E registry.Identifiable[string]] struct {
	kind   string
	logger Logger
	decode func(name string, node *yaml.Node, version int) (E, error)

	mu        sync.RWMutex
	elements  map[string]map[string]E // model name → element key → element
	listeners []registry.ProviderListener[E]
}

// Kind implements Listener.
func (p *yamlProvider[E]) Kind() string { return p.kind }

// SupportedVersions implements Listener.
func (p *yamlProvider[E]) SupportedVersions() []int { return []int{1, DefaultVersion} }

// Parse implements Listener.
func (p *yamlProvider[E]) Parse(name string, node *yaml.Node, version int) (Element, []error, []string) {
	element, err := p.decode(name, node, version)
	if err != nil {
		return nil, []error{err}, nil
	}
	return parsed[E]{element: element}, nil, nil
}

// Added implements Listener. An element whose key is already present in
// the same model replaces it and is announced as an update.
func (p *yamlProvider[E]) Added(modelName string, element Element) {
	e, ok := element.(parsed[E])
	if !ok {
		return
	}
	key := e.element.Key()

	p.mu.Lock()
	byKey := p.elements[modelName]
	if byKey == nil {
		byKey = make(map[string]E)
		p.elements[modelName] = byKey
	}
	old, existed := byKey[key]
	byKey[key] = e.element
	p.mu.Unlock()

	p.logger.Debug("model element added", "kind", p.kind, "model", modelName, "key", key)
	if existed {
		p.notify(func(l registry.ProviderListener[E]) { l.ElementUpdated(p, old, e.element) })
	} else {
		p.notify(func(l registry.ProviderListener[E]) { l.ElementAdded(p, e.element) })
	}
}

// Updated implements Listener. An update for an element this provider
// never saw is announced as an addition.
func (p *yamlProvider[E]) Updated(modelName string, element Element) {
	e, ok := element.(parsed[E])
	if !ok {
		return
	}
	key := e.element.Key()

	p.mu.Lock()
	byKey := p.elements[modelName]
	if byKey == nil {
		byKey = make(map[string]E)
		p.elements[modelName] = byKey
	}
	old, existed := byKey[key]
	byKey[key] = e.element
	p.mu.Unlock()

	if existed {
		p.notify(func(l registry.ProviderListener[E]) { l.ElementUpdated(p, old, e.element) })
	} else {
		p.notify(func(l registry.ProviderListener[E]) { l.ElementAdded(p, e.element) })
	}
}

// Removed implements Listener. The stored element is announced, not the
// re-parsed one, so listeners see exactly what they were given.
func (p *yamlProvider[E]) Removed(modelName string, element Element) {
	e, ok := element.(parsed[E])
	if !ok {
		return
	}
	key := e.element.Key()

	p.mu.Lock()
	byKey := p.elements[modelName]
	old, existed := byKey[key]
	if existed {
		delete(byKey, key)
		if len(byKey) == 0 {
			delete(p.elements, modelName)
		}
	}
	p.mu.Unlock()

	if existed {
		p.logger.Debug("model element removed", "kind", p.kind, "model", modelName, "key", key)
		p.notify(func(l registry.ProviderListener[E]) { l.ElementRemoved(p, old) })
	}
}

// All implements registry.Provider. Elements are ordered by model name,
// then key. Two models defining the same key both contribute; the
// registry keeps the first and logs the collision.
func (p *yamlProvider[E]) All() []E {
	p.mu.RLock()
	defer p.mu.RUnlock()

	models := make([]string, 0, len(p.elements))
	for name := range p.elements {
		models = append(models, name)
	}
	sort.Strings(models)

	var out []E
	for _, name := range models {
		byKey := p.elements[name]
		keys := make([]string, 0, len(byKey))
		for key := range byKey {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			out = append(out, byKey[key])
		}
	}
	return out
}

// AddProviderListener implements registry.Provider.
func (p *yamlProvider[E]) AddProviderListener(l registry.ProviderListener[E]) {
	if l == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.listeners {
		if existing == l {
			return
		}
	}
	p.listeners = append(p.listeners, l)
}

// RemoveProviderListener implements registry.Provider.
func (p *yamlProvider[E]) RemoveProviderListener(l registry.ProviderListener[E]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.listeners {
		if existing == l {
			p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
			return
		}
	}
}

func (p *yamlProvider[E]) notify(fn func(registry.ProviderListener[E])) {
	p.mu.RLock()
	listeners := make([]registry.ProviderListener[E], len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.RUnlock()
	for _, l := range listeners {
		fn(l)
	}
}

// YAMLItemProvider feeds item definitions out of model files into the
// item registry. Register it with the repository (AddListener) and the
// registry (AddProvider).
type YAMLItemProvider struct {
	yamlProvider[*items.Item]
}

// NewYAMLItemProvider creates the model-backed item provider. A nil
// logger logs nothing.
func NewYAMLItemProvider(logger Logger) *YAMLItemProvider {
	p := &YAMLItemProvider{}
	p.kind = KindItems
	p.logger = orNoop(logger)
	p.elements = make(map[string]map[string]*items.Item)
	p.decode = decodeItem
	return p
}

// YAMLThingProvider feeds thing definitions out of model files into the
// thing registry.
type YAMLThingProvider struct {
	yamlProvider[*things.Thing]
}

// NewYAMLThingProvider creates the model-backed thing provider. A nil
// logger logs nothing.
func NewYAMLThingProvider(logger Logger) *YAMLThingProvider {
	p := &YAMLThingProvider{}
	p.kind = KindThings
	p.logger = orNoop(logger)
	p.elements = make(map[string]map[string]*things.Thing)
	p.decode = decodeThing
	return p
}

// YAMLRuleProvider feeds rule definitions out of model files into the
// rule registry.
type YAMLRuleProvider struct {
	yamlProvider[*rules.Rule]
}

// NewYAMLRuleProvider creates the model-backed rule provider. A nil
// logger logs nothing.
func NewYAMLRuleProvider(logger Logger) *YAMLRuleProvider {
	p := &YAMLRuleProvider{}
	p.kind = KindRules
	p.logger = orNoop(logger)
	p.elements = make(map[string]map[string]*rules.Rule)
	p.decode = decodeRule
	return p
}

func decodeItem(name string, node *yaml.Node, version int) (*items.Item, error) {
	if version == 1 {
		var id struct {
			Name string `yaml:"name"`
		}
		if err := node.Decode(&id); err != nil || id.Name == "" {
			return nil, fmt.Errorf("item entry has no name")
		}
		name = id.Name
	}
	var dto items.DTO
	if err := node.Decode(&dto); err != nil {
		return nil, fmt.Errorf("item %q: %w", name, err)
	}
	dto.Name = name
	item, err := items.FromDTO(dto)
	if err != nil {
		return nil, fmt.Errorf("item %q: %w", name, err)
	}
	return item, nil
}

func decodeThing(name string, node *yaml.Node, version int) (*things.Thing, error) {
	if version == 1 {
		var id struct {
			UID string `yaml:"uid"`
		}
		if err := node.Decode(&id); err != nil || id.UID == "" {
			return nil, fmt.Errorf("thing entry has no uid")
		}
		name = id.UID
	}
	var dto things.DTO
	if err := node.Decode(&dto); err != nil {
		return nil, fmt.Errorf("thing %q: %w", name, err)
	}
	dto.UID = name
	thing, err := things.FromDTO(dto)
	if err != nil {
		return nil, fmt.Errorf("thing %q: %w", name, err)
	}
	return thing, nil
}

func decodeRule(name string, node *yaml.Node, version int) (*rules.Rule, error) {
	if version == 1 {
		var id struct {
			UID string `yaml:"uid"`
		}
		if err := node.Decode(&id); err != nil || id.UID == "" {
			return nil, fmt.Errorf("rule entry has no uid")
		}
		name = id.UID
	}
	var dto rules.DTO
	if err := node.Decode(&dto); err != nil {
		return nil, fmt.Errorf("rule %q: %w", name, err)
	}
	dto.UID = name
	rule, err := rules.FromDTO(dto)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", name, err)
	}
	return rule, nil
}

func orNoop(logger Logger) Logger {
	if logger == nil {
		return noopLogger{}
	}
	return logger
}

// ItemElement wraps an item for programmatic model edits. The name
// becomes the map key, so it is not serialised into the body.
type ItemElement struct {
	Item *items.Item
}

func (e ItemElement) ModelKey() string { return e.Item.Name }

func (e ItemElement) MarshalYAML() (any, error) { return items.ToDTO(e.Item), nil }

// ThingElement wraps a thing for programmatic model edits.
type ThingElement struct {
	Thing *things.Thing
}

func (e ThingElement) ModelKey() string { return string(e.Thing.UID) }

func (e ThingElement) MarshalYAML() (any, error) { return things.ToDTO(e.Thing), nil }

// RuleElement wraps a rule for programmatic model edits.
type RuleElement struct {
	Rule *rules.Rule
}

func (e RuleElement) ModelKey() string { return e.Rule.UID }

func (e RuleElement) MarshalYAML() (any, error) { return rules.ToDTO(e.Rule), nil }
