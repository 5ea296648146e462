package things

import (
	"fmt"

	"github.com/hearth-home/hearth-core/internal/types"
)

// Status is a thing's lifecycle state.
type Status string

// Thing statuses.
const (
	StatusUninitialized Status = "UNINITIALIZED"
	StatusInitializing  Status = "INITIALIZING"
	StatusOnline        Status = "ONLINE"
	StatusOffline       Status = "OFFLINE"
	StatusRemoving      Status = "REMOVING"
	StatusRemoved       Status = "REMOVED"
)

// AllStatuses returns every valid status.
func AllStatuses() []Status {
	return []Status{
		StatusUninitialized, StatusInitializing, StatusOnline,
		StatusOffline, StatusRemoving, StatusRemoved,
	}
}

// StatusDetail qualifies a status.
type StatusDetail string

// Status details.
const (
	DetailNone               StatusDetail = "NONE"
	DetailHandlerMissing     StatusDetail = "HANDLER_MISSING"
	DetailCommunicationError StatusDetail = "COMMUNICATION_ERROR"
	DetailConfigurationError StatusDetail = "CONFIGURATION_ERROR"
	DetailBridgeOffline      StatusDetail = "BRIDGE_OFFLINE"
	DetailDisabled           StatusDetail = "DISABLED"
)

// AllStatusDetails returns every valid status detail.
func AllStatusDetails() []StatusDetail {
	return []StatusDetail{
		DetailNone, DetailHandlerMissing, DetailCommunicationError,
		DetailConfigurationError, DetailBridgeOffline, DetailDisabled,
	}
}

// StatusInfo is a status with its detail and an optional free-form
// description.
type StatusInfo struct {
	Status      Status       `json:"status"`
	Detail      StatusDetail `json:"statusDetail"`
	Description string       `json:"description,omitempty"`
}

// StatusInfoOf builds a StatusInfo, defaulting the detail to NONE.
func StatusInfoOf(status Status, detail StatusDetail, description string) StatusInfo {
	if detail == "" {
		detail = DetailNone
	}
	return StatusInfo{Status: status, Detail: detail, Description: description}
}

// Validate checks the status and detail values.
func (si StatusInfo) Validate() error {
	if !validStatus(si.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, si.Status)
	}
	if !validStatusDetail(si.Detail) {
		return fmt.Errorf("%w: detail %q", ErrInvalidStatus, si.Detail)
	}
	return nil
}

func validStatus(s Status) bool {
	for _, known := range AllStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

func validStatusDetail(d StatusDetail) bool {
	for _, known := range AllStatusDetails() {
		if d == known {
			return true
		}
	}
	return false
}

// Channel is an addressable point on a thing. Kind names the item type
// a linked item should have; trigger channels carry no state and use
// kind "Trigger".
type Channel struct {
	ID     string         `json:"id" yaml:"id"`
	Kind   string         `json:"kind" yaml:"kind"`
	Label  string         `json:"label,omitempty" yaml:"label,omitempty"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// ChannelKindTrigger marks a stateless channel that emits trigger
// events instead of states.
const ChannelKindTrigger = "Trigger"

// validChannelKind accepts linkable item types (not Group) and Trigger.
func validChannelKind(kind string) bool {
	if kind == ChannelKindTrigger {
		return true
	}
	it := types.ItemType(kind)
	if it == types.ItemTypeGroup {
		return false
	}
	for _, known := range types.AllItemTypes() {
		if it == known {
			return true
		}
	}
	return false
}

// Thing is a device instance definition. Status is runtime state owned
// by the registry and is not part of the stored definition.
type Thing struct {
	UID       ThingUID       `json:"uid"`
	Label     string         `json:"label,omitempty"`
	BridgeUID ThingUID       `json:"bridge,omitempty"`
	Config    map[string]any `json:"config,omitempty"`
	Channels  []Channel      `json:"channels,omitempty"`

	Status StatusInfo `json:"-"`
}

// NewThing creates a thing after validating the UID.
func NewThing(uid string) (*Thing, error) {
	parsed, err := ParseThingUID(uid)
	if err != nil {
		return nil, err
	}
	return &Thing{
		UID:    parsed,
		Status: StatusInfoOf(StatusUninitialized, DetailNone, ""),
	}, nil
}

// Key returns the thing UID as the registry key.
func (t *Thing) Key() string { return string(t.UID) }

// Channel returns the channel with the given id.
func (t *Thing) Channel(id string) (*Channel, bool) {
	for i := range t.Channels {
		if t.Channels[i].ID == id {
			return &t.Channels[i], true
		}
	}
	return nil, false
}

// ChannelUIDs returns the full UIDs of all channels.
func (t *Thing) ChannelUIDs() []ChannelUID {
	uids := make([]ChannelUID, len(t.Channels))
	for i, ch := range t.Channels {
		uids[i] = NewChannelUID(t.UID, ch.ID)
	}
	return uids
}

// DeepCopy returns an independent copy of the thing.
func (t *Thing) DeepCopy() *Thing {
	if t == nil {
		return nil
	}
	cpy := *t
	cpy.Config = deepCopyMap(t.Config)
	if t.Channels != nil {
		cpy.Channels = make([]Channel, len(t.Channels))
		for i, ch := range t.Channels {
			cpy.Channels[i] = ch
			cpy.Channels[i].Config = deepCopyMap(ch.Config)
		}
	}
	return &cpy
}

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
