package things

import (
	"fmt"

	"github.com/hearth-home/hearth-core/internal/registry"
)

// StoreNamespace is the storage namespace managed thing definitions are
// persisted under.
const StoreNamespace = "managed_things"

// DTO is the persisted form of a thing definition, shared by the managed
// store (JSON) and the YAML model files. The UID is the document key
// respectively the YAML map key, so it is not serialised in YAML.
type DTO struct {
	UID      string         `json:"uid"                yaml:"-"`
	Label    string         `json:"label,omitempty"    yaml:"label,omitempty"`
	Bridge   string         `json:"bridge,omitempty"   yaml:"bridge,omitempty"`
	Config   map[string]any `json:"config,omitempty"   yaml:"config,omitempty"`
	Channels []ChannelDTO   `json:"channels,omitempty" yaml:"channels,omitempty"`
}

// ChannelDTO is the persisted form of one channel.
type ChannelDTO struct {
	ID     string         `json:"id"               yaml:"id"`
	Kind   string         `json:"kind"             yaml:"kind"`
	Label  string         `json:"label,omitempty"  yaml:"label,omitempty"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// ToDTO converts a thing definition to its persisted form. Runtime
// status is dropped.
func ToDTO(t *Thing) DTO {
	d := DTO{
		UID:    string(t.UID),
		Label:  t.Label,
		Bridge: string(t.BridgeUID),
		Config: t.Config,
	}
	if t.Channels != nil {
		d.Channels = make([]ChannelDTO, len(t.Channels))
		for i, ch := range t.Channels {
			d.Channels[i] = ChannelDTO{ID: ch.ID, Kind: ch.Kind, Label: ch.Label, Config: ch.Config}
		}
	}
	return d
}

// FromDTO rebuilds and validates a thing definition.
func FromDTO(d DTO) (*Thing, error) {
	t, err := NewThing(d.UID)
	if err != nil {
		return nil, err
	}
	t.Label = d.Label
	t.Config = d.Config
	if d.Bridge != "" {
		bridge, err := ParseThingUID(d.Bridge)
		if err != nil {
			return nil, fmt.Errorf("%s: bridge: %w", d.UID, err)
		}
		t.BridgeUID = bridge
	}

	seen := make(map[string]bool, len(d.Channels))
	for _, ch := range d.Channels {
		if !segmentRE.MatchString(ch.ID) {
			return nil, fmt.Errorf("%w: id %q on %s", ErrInvalidChannel, ch.ID, d.UID)
		}
		if seen[ch.ID] {
			return nil, fmt.Errorf("%w: duplicate id %q on %s", ErrInvalidChannel, ch.ID, d.UID)
		}
		seen[ch.ID] = true
		if !validChannelKind(ch.Kind) {
			return nil, fmt.Errorf("%w: kind %q on %s:%s", ErrInvalidChannel, ch.Kind, d.UID, ch.ID)
		}
		t.Channels = append(t.Channels, Channel{
			ID:     ch.ID,
			Kind:   ch.Kind,
			Label:  ch.Label,
			Config: ch.Config,
		})
	}
	return t, nil
}

// NewManagedProvider creates the store-backed provider for runtime thing
// CRUD. Call Load before attaching it to the registry.
func NewManagedProvider(store registry.Store, logger registry.Logger) *registry.ManagedProvider[*Thing, DTO] {
	return registry.NewManagedProvider[*Thing, DTO](
		StoreNamespace, store, logger,
		func(t *Thing) DTO { return ToDTO(t) },
		FromDTO,
	)
}
