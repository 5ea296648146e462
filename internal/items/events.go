package items

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hearth-home/hearth-core/internal/events"
	"github.com/hearth-home/hearth-core/internal/types"
)

// Item event types.
const (
	EventTypeState             = "ItemStateEvent"
	EventTypeStateChanged      = "ItemStateChangedEvent"
	EventTypeCommand           = "ItemCommandEvent"
	EventTypeGroupStateChanged = "GroupItemStateChangedEvent"
	EventTypeAdded             = "ItemAddedEvent"
	EventTypeUpdated           = "ItemUpdatedEvent"
	EventTypeRemoved           = "ItemRemovedEvent"
)

// StatePayload is the JSON body of state and command events.
type StatePayload struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// StateChangedPayload is the JSON body of statechanged events.
type StateChangedPayload struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	OldType  string `json:"oldType"`
	OldValue string `json:"oldValue"`
}

// UpdatedPayload is the JSON body of item updated events.
type UpdatedPayload struct {
	Old DTO `json:"old"`
	New DTO `json:"new"`
}

func topic(name, suffix string) string {
	return "hearth/items/" + name + "/" + suffix
}

// SplitTopic breaks an item event topic "hearth/items/<name>/<suffix>"
// into its name and suffix. ok is false for topics of any other shape,
// including group statechanged topics which carry the member as an
// extra segment.
func SplitTopic(eventTopic string) (name, suffix string, ok bool) {
	parts := strings.Split(eventTopic, "/")
	if len(parts) != 4 || parts[0] != "hearth" || parts[1] != "items" {
		return "", "", false
	}
	if parts[2] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[2], parts[3], true
}

// SplitGroupTopic breaks a group statechanged topic
// "hearth/items/<group>/<member>/statechanged" into group and member.
func SplitGroupTopic(eventTopic string) (group, member string, ok bool) {
	parts := strings.Split(eventTopic, "/")
	if len(parts) != 5 || parts[0] != "hearth" || parts[1] != "items" || parts[4] != "statechanged" {
		return "", "", false
	}
	if parts[2] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[2], parts[3], true
}

func marshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// NewStateEvent reports an item's state after an update, changed or not.
func NewStateEvent(name string, st types.State, source string) events.Event {
	return events.Base{
		EventType:    EventTypeState,
		EventTopic:   topic(name, "state"),
		EventPayload: marshal(StatePayload{Type: st.Kind(), Value: st.Format()}),
		EventSource:  source,
	}
}

// NewStateChangedEvent reports an item state transition.
func NewStateChangedEvent(name string, oldState, newState types.State) events.Event {
	return events.Base{
		EventType:  EventTypeStateChanged,
		EventTopic: topic(name, "statechanged"),
		EventPayload: marshal(StateChangedPayload{
			Type:     newState.Kind(),
			Value:    newState.Format(),
			OldType:  oldState.Kind(),
			OldValue: oldState.Format(),
		}),
	}
}

// NewGroupStateChangedEvent reports a group state transition caused by
// one member's change. The member rides in the topic.
func NewGroupStateChangedEvent(group, member string, oldState, newState types.State) events.Event {
	return events.Base{
		EventType:  EventTypeGroupStateChanged,
		EventTopic: topic(group, member+"/statechanged"),
		EventPayload: marshal(StateChangedPayload{
			Type:     newState.Kind(),
			Value:    newState.Format(),
			OldType:  oldState.Kind(),
			OldValue: oldState.Format(),
		}),
	}
}

// NewCommandEvent reports a command sent to an item.
func NewCommandEvent(name string, cmd types.Command, source string) events.Event {
	return events.Base{
		EventType:    EventTypeCommand,
		EventTopic:   topic(name, "command"),
		EventPayload: marshal(StatePayload{Type: cmd.Kind(), Value: cmd.Format()}),
		EventSource:  source,
	}
}

// NewAddedEvent reports an item joining the registry.
func NewAddedEvent(item *Item) events.Event {
	return events.Base{
		EventType:    EventTypeAdded,
		EventTopic:   topic(item.Name, "added"),
		EventPayload: marshal(ToDTO(item)),
	}
}

// NewUpdatedEvent reports an item definition change.
func NewUpdatedEvent(oldItem, newItem *Item) events.Event {
	return events.Base{
		EventType:    EventTypeUpdated,
		EventTopic:   topic(newItem.Name, "updated"),
		EventPayload: marshal(UpdatedPayload{Old: ToDTO(oldItem), New: ToDTO(newItem)}),
	}
}

// NewRemovedEvent reports an item leaving the registry.
func NewRemovedEvent(item *Item) events.Event {
	return events.Base{
		EventType:    EventTypeRemoved,
		EventTopic:   topic(item.Name, "removed"),
		EventPayload: marshal(ToDTO(item)),
	}
}

// DecodeStatePayload rebuilds the state carried by a state or
// statechanged event payload.
func DecodeStatePayload(payload string) (types.State, error) {
	var p StatePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("items: decoding state payload: %w", err)
	}
	return types.StateFromKind(p.Type, p.Value)
}

// DecodeStateChangedPayload rebuilds both sides of a statechanged event
// payload.
func DecodeStateChangedPayload(payload string) (oldState, newState types.State, err error) {
	var p StateChangedPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, nil, fmt.Errorf("items: decoding statechanged payload: %w", err)
	}
	if oldState, err = types.StateFromKind(p.OldType, p.OldValue); err != nil {
		return nil, nil, err
	}
	if newState, err = types.StateFromKind(p.Type, p.Value); err != nil {
		return nil, nil, err
	}
	return oldState, newState, nil
}

// DecodeCommandPayload rebuilds the command carried by a command event
// payload.
func DecodeCommandPayload(payload string) (types.Command, error) {
	var p StatePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("items: decoding command payload: %w", err)
	}
	return types.CommandFromKind(p.Type, p.Value)
}
