package items

import (
	"fmt"
	"regexp"

	"github.com/hearth-home/hearth-core/internal/types"
)

// nameRE is the set of legal item names. Names double as topic segments
// and script identifiers, so no separators or spaces.
var nameRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateName checks an item name against the naming rule.
func ValidateName(name string) error {
	if !nameRE.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Metadata is one namespaced annotation on an item, e.g. the autoupdate
// veto or a persistence hint.
type Metadata struct {
	Value  string         `json:"value,omitempty" yaml:"value,omitempty"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// GroupFunction names the aggregation applied to a group's members.
// Params carry the function's state parameters as wire text, parsed
// against the group's base type (e.g. AND with ["ON", "OFF"]).
type GroupFunction struct {
	Name   string   `json:"name" yaml:"name"`
	Params []string `json:"params,omitempty" yaml:"params,omitempty"`
}

// Item is a named, typed value definition. The runtime state lives in
// the registry; the State field is filled in on items the registry hands
// out and is ignored on the way in.
type Item struct {
	// Identity
	Name string         `json:"name"`
	Type types.ItemType `json:"type"`

	// Presentation
	Label    string   `json:"label,omitempty"`
	Category string   `json:"category,omitempty"`
	Icon     string   `json:"icon,omitempty"`
	Tags     []string `json:"tags,omitempty"`

	// Groups this item is a member of, by group item name.
	Groups []string `json:"groups,omitempty"`

	// Metadata by namespace.
	Metadata map[string]Metadata `json:"metadata,omitempty"`

	// ChannelLink binds the item to a thing channel UID.
	ChannelLink string `json:"channelLink,omitempty"`

	// Group definition, only meaningful when Type is Group. GroupType is
	// the base item type members aggregate into; Function defaults to
	// state equality when nil.
	GroupType types.ItemType `json:"groupType,omitempty"`
	Function  *GroupFunction `json:"function,omitempty"`

	// State is the current runtime state, Null until first update.
	State types.State `json:"-"`
}

// NewItem creates a validated item of the given type.
func NewItem(name string, t types.ItemType) (*Item, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if !validItemType(t) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, t)
	}
	return &Item{Name: name, Type: t, State: types.Null}, nil
}

func validItemType(t types.ItemType) bool {
	for _, known := range types.AllItemTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Key returns the registry identifier, the item name.
func (i *Item) Key() string { return i.Name }

// IsGroup reports whether the item is a group.
func (i *Item) IsGroup() bool { return i.Type == types.ItemTypeGroup }

// MetadataValue returns the value of a metadata namespace, if present.
func (i *Item) MetadataValue(namespace string) (string, bool) {
	md, ok := i.Metadata[namespace]
	if !ok {
		return "", false
	}
	return md.Value, true
}

// HasTag reports whether the item carries the given tag.
func (i *Item) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// MemberOf reports whether the item directly belongs to the named group.
func (i *Item) MemberOf(group string) bool {
	for _, g := range i.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// DeepCopy creates a complete independent copy of the Item. All map and
// slice fields are cloned so modifications to the copy do not affect the
// original.
func (i *Item) DeepCopy() *Item {
	if i == nil {
		return nil
	}

	cpy := *i

	if i.Tags != nil {
		cpy.Tags = make([]string, len(i.Tags))
		copy(cpy.Tags, i.Tags)
	}
	if i.Groups != nil {
		cpy.Groups = make([]string, len(i.Groups))
		copy(cpy.Groups, i.Groups)
	}
	if i.Metadata != nil {
		cpy.Metadata = make(map[string]Metadata, len(i.Metadata))
		for ns, md := range i.Metadata {
			cpy.Metadata[ns] = Metadata{Value: md.Value, Config: deepCopyMap(md.Config)}
		}
	}
	if i.Function != nil {
		fn := GroupFunction{Name: i.Function.Name}
		if i.Function.Params != nil {
			fn.Params = make([]string, len(i.Function.Params))
			copy(fn.Params, i.Function.Params)
		}
		cpy.Function = &fn
	}
	// State values are immutable, the reference copy is safe.

	return &cpy
}

// deepCopyMap creates a deep copy of a map[string]any, recursively
// copying nested maps and slices.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}
