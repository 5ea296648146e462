package items

import (
	"fmt"

	"github.com/hearth-home/hearth-core/internal/registry"
	"github.com/hearth-home/hearth-core/internal/types"
)

// StoreNamespace is the storage namespace managed item definitions are
// persisted under.
const StoreNamespace = "managed_items"

// DTO is the persisted form of an item definition, shared by the managed
// store (JSON) and the YAML model files. The item name is the document
// key respectively the YAML map key, so it is not serialised in YAML.
type DTO struct {
	Name        string                 `json:"name"                yaml:"-"`
	Type        string                 `json:"type"                yaml:"type"`
	Label       string                 `json:"label,omitempty"     yaml:"label,omitempty"`
	Category    string                 `json:"category,omitempty"  yaml:"category,omitempty"`
	Icon        string                 `json:"icon,omitempty"      yaml:"icon,omitempty"`
	Tags        []string               `json:"tags,omitempty"      yaml:"tags,omitempty"`
	Groups      []string               `json:"groups,omitempty"    yaml:"groups,omitempty"`
	GroupType   string                 `json:"groupType,omitempty" yaml:"groupType,omitempty"`
	Function    *GroupFunctionDTO      `json:"function,omitempty"  yaml:"function,omitempty"`
	ChannelLink string                 `json:"channel,omitempty"   yaml:"channel,omitempty"`
	Metadata    map[string]MetadataDTO `json:"metadata,omitempty"  yaml:"metadata,omitempty"`
}

// GroupFunctionDTO is the persisted form of a group function.
type GroupFunctionDTO struct {
	Name   string   `json:"name"             yaml:"name"`
	Params []string `json:"params,omitempty" yaml:"params,omitempty"`
}

// MetadataDTO is the persisted form of one metadata namespace.
type MetadataDTO struct {
	Value  string         `json:"value,omitempty"  yaml:"value,omitempty"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// ToDTO converts an item definition to its persisted form. Runtime state
// is dropped.
func ToDTO(i *Item) DTO {
	d := DTO{
		Name:        i.Name,
		Type:        string(i.Type),
		Label:       i.Label,
		Category:    i.Category,
		Icon:        i.Icon,
		Tags:        i.Tags,
		Groups:      i.Groups,
		GroupType:   string(i.GroupType),
		ChannelLink: i.ChannelLink,
	}
	if i.Function != nil {
		d.Function = &GroupFunctionDTO{Name: i.Function.Name, Params: i.Function.Params}
	}
	if i.Metadata != nil {
		d.Metadata = make(map[string]MetadataDTO, len(i.Metadata))
		for ns, md := range i.Metadata {
			d.Metadata[ns] = MetadataDTO{Value: md.Value, Config: md.Config}
		}
	}
	return d
}

// FromDTO rebuilds and validates an item definition. Group function
// configuration is checked here so bad definitions are rejected on the
// way in rather than failing during aggregation.
func FromDTO(d DTO) (*Item, error) {
	it, err := NewItem(d.Name, types.ItemType(d.Type))
	if err != nil {
		return nil, err
	}
	it.Label = d.Label
	it.Category = d.Category
	it.Icon = d.Icon
	it.Tags = d.Tags
	it.Groups = d.Groups
	it.ChannelLink = d.ChannelLink
	if d.Metadata != nil {
		it.Metadata = make(map[string]Metadata, len(d.Metadata))
		for ns, md := range d.Metadata {
			it.Metadata[ns] = Metadata{Value: md.Value, Config: md.Config}
		}
	}

	if d.GroupType != "" || d.Function != nil {
		if !it.IsGroup() {
			return nil, fmt.Errorf("%w: %s declares group settings", ErrNotAGroup, d.Name)
		}
	}
	if it.IsGroup() {
		if d.GroupType != "" {
			base := types.ItemType(d.GroupType)
			if !validItemType(base) || base == types.ItemTypeGroup {
				return nil, fmt.Errorf("%w: group base type %q on %s", ErrInvalidType, d.GroupType, d.Name)
			}
			it.GroupType = base
		}
		if d.Function != nil {
			it.Function = &GroupFunction{Name: d.Function.Name, Params: d.Function.Params}
			if _, err := aggregatorFor(it); err != nil {
				return nil, err
			}
		}
	}
	return it, nil
}

// NewManagedProvider creates the store-backed provider for runtime item
// CRUD. Call Load before attaching it to the registry.
func NewManagedProvider(store registry.Store, logger registry.Logger) *registry.ManagedProvider[*Item, DTO] {
	return registry.NewManagedProvider[*Item, DTO](
		StoreNamespace, store, logger,
		func(i *Item) DTO { return ToDTO(i) },
		FromDTO,
	)
}
