package model

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultVersion is the model format version the write path emits.
const DefaultVersion = 2

const (
	versionKey  = "version"
	readOnlyKey = "readOnly"
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

// Element is one parsed model element. ModelKey is its identity within
// a section: the map key in version 2 files, an embedded field in
// version 1 files.
type Element interface {
	ModelKey() string
}

// Listener reconciles one element kind ("items", "things", ...) out of
// model files. Parse turns a raw YAML node into an element, reporting
// errors (element unusable) and warnings (element usable); in version 2
// files name carries the map key, in version 1 files it is empty and
// the identity is embedded in the node.
//
// Notifications run under the repository lock: implementations must not
// call back into the repository.
type Listener interface {
	Kind() string
	SupportedVersions() []int
	Parse(name string, node *yaml.Node, version int) (Element, []error, []string)
	Added(modelName string, element Element)
	Updated(modelName string, element Element)
	Removed(modelName string, element Element)
}

// pathmodel is one file's snapshot: raw section nodes plus the
// bookkeeping needed to diff the next rewrite against it.
type pathmodel struct {
	version  int
	readOnly bool
	order    []string              // section names in file order
	sections map[string]*yaml.Node // section name → sequence (v1) / mapping (v2)
	errors   []string
	warnings []string

	warnedDeprecated bool
}

// Repository caches parsed model files and keeps listeners reconciled.
// One lock serializes file processing, edits and listener churn.
type Repository struct {
	dir    string
	logger Logger

	mu        sync.Mutex
	models    map[string]*pathmodel
	listeners map[string][]Listener
}

// NewRepository creates a repository writing programmatic edits under
// dir. A nil logger logs nothing.
func NewRepository(dir string, logger Logger) *Repository {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Repository{
		dir:       dir,
		logger:    logger,
		models:    make(map[string]*pathmodel),
		listeners: make(map[string][]Listener),
	}
}

// AddListener registers l for its kind and replays every cached model:
// l sees the same Added sequence it would have seen live.
func (r *Repository) AddListener(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := l.Kind()
	r.listeners[kind] = append(r.listeners[kind], l)

	for _, name := range r.modelNamesLocked() {
		m := r.models[name]
		if !supportsVersion(l, m.version) {
			continue
		}
		section := m.sections[kind]
		if section == nil {
			continue
		}
		r.warnDeprecatedLocked(name, m)
		elements := r.parseSectionLocked(l, section, m.version, name, m)
		for _, key := range sortedKeys(elements) {
			l.Added(name, elements[key])
		}
	}
}

// RemoveListener unregisters l. Cached elements are not removed from
// the listener's targets.
func (r *Repository) RemoveListener(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := l.Kind()
	kept := r.listeners[kind][:0]
	for _, existing := range r.listeners[kind] {
		if existing != l {
			kept = append(kept, existing)
		}
	}
	if len(kept) == 0 {
		delete(r.listeners, kind)
	} else {
		r.listeners[kind] = kept
	}
}

// ProcessFile parses one model file and reconciles listeners with the
// difference against the previous snapshot. A file that fails to parse,
// or carries a missing or unsupported version, leaves the previous
// snapshot (and its elements) in place with the failure recorded: a
// broken rewrite must not tear down a running model.
func (r *Repository) ProcessFile(name string, content []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// An empty file is a valid model holding no elements.
	if len(bytes.TrimSpace(content)) == 0 {
		r.applyLocked(name, &pathmodel{
			version:  DefaultVersion,
			sections: make(map[string]*yaml.Node),
		})
		return nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		r.recordFailureLocked(name, fmt.Sprintf("parsing failed: %v", err))
		return fmt.Errorf("model %s: %w", name, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		r.recordFailureLocked(name, "model root is not a mapping")
		return fmt.Errorf("%w: %s: root is not a mapping", ErrInvalidModel, name)
	}
	root := doc.Content[0]

	versionNode := mappingGet(root, versionKey)
	if versionNode == nil {
		r.recordFailureLocked(name, "model version is missing")
		return fmt.Errorf("%w: %s: version is missing", ErrUnsupportedVersion, name)
	}
	var version int
	if err := versionNode.Decode(&version); err != nil {
		r.recordFailureLocked(name, "model version is not a number")
		return fmt.Errorf("%w: %s: version is not a number", ErrUnsupportedVersion, name)
	}
	if version < 1 || version > DefaultVersion {
		msg := fmt.Sprintf("model version %d is not supported", version)
		r.recordFailureLocked(name, msg)
		return fmt.Errorf("%w: %s: %s", ErrUnsupportedVersion, name, msg)
	}

	next := &pathmodel{version: version, sections: make(map[string]*yaml.Node)}
	if roNode := mappingGet(root, readOnlyKey); roNode != nil {
		if err := roNode.Decode(&next.readOnly); err != nil {
			next.warnings = append(next.warnings, "readOnly is not a boolean, assuming false")
		}
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]
		if key == versionKey || key == readOnlyKey {
			continue
		}
		if _, dup := next.sections[key]; dup {
			next.warnings = append(next.warnings, fmt.Sprintf("section %q appears twice, last one wins", key))
		} else {
			next.order = append(next.order, key)
		}
		next.sections[key] = value
		if len(r.listeners[key]) == 0 {
			next.warnings = append(next.warnings, fmt.Sprintf("section %q has no registered handler", key))
		}
	}

	r.applyLocked(name, next)
	return nil
}

// RemoveFile drops a model and notifies listeners of every element it
// held. Unknown models are ignored.
func (r *Repository) RemoveFile(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.models[name]
	if !ok {
		return
	}
	r.logger.Info("removing model", "model", name)
	delete(r.models, name)

	for kind, listeners := range r.listeners {
		section := old.sections[kind]
		if section == nil {
			continue
		}
		for _, l := range listeners {
			elements := r.parseSectionLocked(l, section, old.version, name, nil)
			for _, key := range sortedKeys(elements) {
				l.Removed(name, elements[key])
			}
		}
	}
}

// Errors returns the errors recorded for a model during its last
// processing run.
func (r *Repository) Errors(modelName string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.models[modelName]; ok {
		return append([]string(nil), m.errors...)
	}
	return nil
}

// Warnings returns the warnings recorded for a model during its last
// processing run.
func (r *Repository) Warnings(modelName string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.models[modelName]; ok {
		return append([]string(nil), m.warnings...)
	}
	return nil
}

// ModelNames returns the names of all cached models, sorted.
func (r *Repository) ModelNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modelNamesLocked()
}

// AddElement adds an element to a model section and writes the file
// back. Unknown models are created as fresh version 2 files.
func (r *Repository) AddElement(modelName, kind string, element Element) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := element.ModelKey()
	if key == "" {
		return fmt.Errorf("%w: %s: element has no key", ErrElementNotFound, modelName)
	}
	m := r.models[modelName]
	if m == nil {
		m = &pathmodel{version: DefaultVersion, sections: make(map[string]*yaml.Node)}
		r.models[modelName] = m
	}
	if err := r.editableLocked(modelName, m); err != nil {
		return err
	}

	section := m.sections[kind]
	if section == nil {
		section = newMappingNode()
		m.sections[kind] = section
		m.order = append(m.order, kind)
	}
	if mappingGet(section, key) != nil {
		return fmt.Errorf("%w: %s %q in %s", ErrElementExists, kind, key, modelName)
	}
	node, err := encodeElement(element)
	if err != nil {
		return fmt.Errorf("model %s: encoding %s %q: %w", modelName, kind, key, err)
	}
	mappingSet(section, key, node)

	r.notifyEditLocked(modelName, kind, key, node, m, func(l Listener, e Element) { l.Added(modelName, e) })
	return r.writeModelLocked(modelName, m)
}

// UpdateElement replaces an element in a model section and writes the
// file back.
func (r *Repository) UpdateElement(modelName, kind string, element Element) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := element.ModelKey()
	m := r.models[modelName]
	if m == nil {
		return fmt.Errorf("%w: %s", ErrModelNotFound, modelName)
	}
	if err := r.editableLocked(modelName, m); err != nil {
		return err
	}
	section := m.sections[kind]
	if section == nil || mappingGet(section, key) == nil {
		return fmt.Errorf("%w: %s %q in %s", ErrElementNotFound, kind, key, modelName)
	}
	node, err := encodeElement(element)
	if err != nil {
		return fmt.Errorf("model %s: encoding %s %q: %w", modelName, kind, key, err)
	}
	mappingSet(section, key, node)

	r.notifyEditLocked(modelName, kind, key, node, m, func(l Listener, e Element) { l.Updated(modelName, e) })
	return r.writeModelLocked(modelName, m)
}

// RemoveElement deletes an element from a model section and writes the
// file back.
func (r *Repository) RemoveElement(modelName, kind, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.models[modelName]
	if m == nil {
		return fmt.Errorf("%w: %s", ErrModelNotFound, modelName)
	}
	if err := r.editableLocked(modelName, m); err != nil {
		return err
	}
	section := m.sections[kind]
	if section == nil {
		return fmt.Errorf("%w: %s %q in %s", ErrElementNotFound, kind, key, modelName)
	}
	node := mappingGet(section, key)
	if node == nil {
		return fmt.Errorf("%w: %s %q in %s", ErrElementNotFound, kind, key, modelName)
	}
	mappingDelete(section, key)

	r.notifyEditLocked(modelName, kind, key, node, m, func(l Listener, e Element) { l.Removed(modelName, e) })
	return r.writeModelLocked(modelName, m)
}

// editableLocked rejects edits against read-only and deprecated models.
// Failed-parse placeholders (version 0) become fresh v2 models.
func (r *Repository) editableLocked(modelName string, m *pathmodel) error {
	if m.readOnly {
		return fmt.Errorf("%w: %s", ErrModelReadOnly, modelName)
	}
	if m.version == 1 {
		return fmt.Errorf("%w: %s", ErrDeprecatedFormat, modelName)
	}
	if m.version == 0 {
		m.version = DefaultVersion
	}
	return nil
}

// notifyEditLocked re-parses an edited node through every listener of
// the section's kind and delivers the notification.
func (r *Repository) notifyEditLocked(modelName, kind, key string, node *yaml.Node, m *pathmodel, notify func(Listener, Element)) {
	for _, l := range r.listeners[kind] {
		if !supportsVersion(l, m.version) {
			continue
		}
		element, errs, warns := l.Parse(key, node, m.version)
		r.collectLocked(modelName, m, errs, warns)
		if element != nil {
			notify(l, element)
		}
	}
}

// applyLocked diffs next against the cached snapshot, notifies every
// registered listener, and replaces the snapshot.
func (r *Repository) applyLocked(name string, next *pathmodel) {
	old := r.models[name]
	if old == nil {
		r.logger.Info("adding model", "model", name, "version", next.version)
	} else {
		next.warnedDeprecated = old.warnedDeprecated
		r.logger.Debug("updating model", "model", name, "version", next.version)
	}

	for kind, listeners := range r.listeners {
		for _, l := range listeners {
			var oldElements map[string]Element
			if old != nil {
				oldElements = r.parseSectionLocked(l, old.sections[kind], old.version, name, nil)
			}
			newElements := r.parseSectionLocked(l, next.sections[kind], next.version, name, next)
			if len(oldElements) == 0 && len(newElements) == 0 {
				continue
			}

			var added, updated, removed []string
			for key, element := range newElements {
				oldElement, ok := oldElements[key]
				switch {
				case !ok:
					added = append(added, key)
				case !reflect.DeepEqual(oldElement, element):
					updated = append(updated, key)
				}
			}
			for key := range oldElements {
				if _, ok := newElements[key]; !ok {
					removed = append(removed, key)
				}
			}
			sort.Strings(added)
			sort.Strings(updated)
			sort.Strings(removed)

			if next.version == 1 && (len(added) > 0 || len(updated) > 0) {
				r.warnDeprecatedLocked(name, next)
			}
			for _, key := range added {
				l.Added(name, newElements[key])
			}
			for _, key := range updated {
				l.Updated(name, newElements[key])
			}
			for _, key := range removed {
				l.Removed(name, oldElements[key])
			}
		}
	}

	r.models[name] = next
}

// parseSectionLocked parses every element of one section through l.
// When m is non-nil, element errors and warnings are collected into it;
// a nil m parses silently (diff baselines, removals).
func (r *Repository) parseSectionLocked(l Listener, section *yaml.Node, version int, modelName string, m *pathmodel) map[string]Element {
	if section == nil || !supportsVersion(l, version) {
		return nil
	}
	elements := make(map[string]Element)

	add := func(name string, node *yaml.Node) {
		element, errs, warns := l.Parse(name, node, version)
		if m != nil {
			r.collectLocked(modelName, m, errs, warns)
		}
		if element == nil {
			return
		}
		key := element.ModelKey()
		if _, dup := elements[key]; dup && m != nil {
			r.collectLocked(modelName, m, nil, []string{
				fmt.Sprintf("duplicate %s %q, last one wins", l.Kind(), key),
			})
		}
		elements[key] = element
	}

	switch version {
	case 1:
		if section.Kind != yaml.SequenceNode {
			if m != nil {
				r.collectLocked(modelName, m, nil, []string{
					fmt.Sprintf("section %q is not a list, ignoring it", l.Kind()),
				})
			}
			return nil
		}
		for _, node := range section.Content {
			add("", node)
		}
	default:
		if section.Kind != yaml.MappingNode {
			if m != nil {
				r.collectLocked(modelName, m, nil, []string{
					fmt.Sprintf("section %q is not a map, ignoring it", l.Kind()),
				})
			}
			return nil
		}
		for i := 0; i+1 < len(section.Content); i += 2 {
			add(section.Content[i].Value, section.Content[i+1])
		}
	}
	return elements
}

// recordFailureLocked records a file-level failure without touching the
// previous snapshot. Files that never parsed get a placeholder so the
// failure is visible through Errors.
func (r *Repository) recordFailureLocked(name, msg string) {
	r.logger.Error("ignoring model", "model", name, "error", msg)
	m := r.models[name]
	if m == nil {
		m = &pathmodel{sections: make(map[string]*yaml.Node)}
		r.models[name] = m
	}
	m.errors = []string{msg}
}

func (r *Repository) collectLocked(modelName string, m *pathmodel, errs []error, warns []string) {
	for _, err := range errs {
		r.logger.Warn("model element rejected", "model", modelName, "error", err)
		m.errors = append(m.errors, err.Error())
	}
	for _, warn := range warns {
		r.logger.Info("model warning", "model", modelName, "warning", warn)
		m.warnings = append(m.warnings, warn)
	}
}

func (r *Repository) warnDeprecatedLocked(name string, m *pathmodel) {
	if m.version != 1 || m.warnedDeprecated {
		return
	}
	m.warnedDeprecated = true
	r.logger.Warn("model uses a deprecated format version, consider migrating to version 2",
		"model", name, "version", m.version)
}

// writeModelLocked rewrites a model file from its snapshot: version
// first, then every section in original order, including the ones no
// listener understands. The write is atomic (temp + rename); the
// dot-prefixed temp name keeps the watcher from picking it up.
func (r *Repository) writeModelLocked(name string, m *pathmodel) error {
	root := newMappingNode()
	versionNode, err := scalarNode(m.version)
	if err != nil {
		return fmt.Errorf("model %s: %w", name, err)
	}
	mappingSet(root, versionKey, versionNode)
	for _, kind := range m.order {
		if section := m.sections[kind]; section != nil {
			mappingSet(root, kind, section)
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("model %s: encoding: %w", name, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("model %s: encoding: %w", name, err)
	}

	path := filepath.Join(r.dir, filepath.FromSlash(name))
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("model %s: %w", name, err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("model %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("model %s: %w", name, err)
	}
	r.logger.Debug("model written", "model", name, "bytes", buf.Len())
	return nil
}

func (r *Repository) modelNamesLocked() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func supportsVersion(l Listener, version int) bool {
	for _, v := range l.SupportedVersions() {
		if v == version {
			return true
		}
	}
	return false
}

func sortedKeys(elements map[string]Element) []string {
	keys := make([]string, 0, len(elements))
	for key := range elements {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// encodeElement renders an element as a YAML node, honoring its
// MarshalYAML implementation so identity fields stay out of the body.
func encodeElement(element Element) (*yaml.Node, error) {
	node := &yaml.Node{}
	if err := node.Encode(element); err != nil {
		return nil, err
	}
	return node, nil
}

func newMappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

// mappingGet returns the value node for key, or nil. With duplicate
// keys the last one wins, matching the parse semantics.
func mappingGet(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	var found *yaml.Node
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			found = m.Content[i+1]
		}
	}
	return found
}

// mappingSet replaces the value for key or appends a new pair.
func mappingSet(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	m.Content = append(m.Content, keyNode, value)
}

// mappingDelete removes the pair for key, reporting whether it existed.
func mappingDelete(m *yaml.Node, key string) bool {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content = append(m.Content[:i], m.Content[i+2:]...)
			return true
		}
	}
	return false
}

func scalarNode(v any) (*yaml.Node, error) {
	node := &yaml.Node{}
	if err := node.Encode(v); err != nil {
		return nil, err
	}
	return node, nil
}
