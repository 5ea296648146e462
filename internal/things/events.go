package things

import (
	"encoding/json"
	"fmt"

	"github.com/hearth-home/hearth-core/internal/events"
)

// Thing event types.
const (
	EventTypeStatus           = "ThingStatusInfoEvent"
	EventTypeStatusChanged    = "ThingStatusInfoChangedEvent"
	EventTypeAdded            = "ThingAddedEvent"
	EventTypeUpdated          = "ThingUpdatedEvent"
	EventTypeRemoved          = "ThingRemovedEvent"
	EventTypeChannelTriggered = "ChannelTriggeredEvent"
)

// StatusChangedPayload is the JSON body of statuschanged events.
type StatusChangedPayload struct {
	New StatusInfo `json:"new"`
	Old StatusInfo `json:"old"`
}

// UpdatedPayload is the JSON body of thing updated events.
type UpdatedPayload struct {
	Old DTO `json:"old"`
	New DTO `json:"new"`
}

// TriggeredPayload is the JSON body of channel trigger events.
type TriggeredPayload struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
}

func topic(uid ThingUID, suffix string) string {
	return "hearth/things/" + string(uid) + "/" + suffix
}

func marshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// NewStatusEvent reports a thing's status after SetStatus, changed or
// not.
func NewStatusEvent(uid ThingUID, info StatusInfo) events.Event {
	return events.Base{
		EventType:    EventTypeStatus,
		EventTopic:   topic(uid, "status"),
		EventPayload: marshal(info),
	}
}

// NewStatusChangedEvent reports a thing status transition.
func NewStatusChangedEvent(uid ThingUID, oldInfo, newInfo StatusInfo) events.Event {
	return events.Base{
		EventType:    EventTypeStatusChanged,
		EventTopic:   topic(uid, "statuschanged"),
		EventPayload: marshal(StatusChangedPayload{New: newInfo, Old: oldInfo}),
	}
}

// NewAddedEvent reports a thing joining the registry.
func NewAddedEvent(t *Thing) events.Event {
	return events.Base{
		EventType:    EventTypeAdded,
		EventTopic:   topic(t.UID, "added"),
		EventPayload: marshal(ToDTO(t)),
	}
}

// NewUpdatedEvent reports a thing definition change.
func NewUpdatedEvent(oldThing, newThing *Thing) events.Event {
	return events.Base{
		EventType:    EventTypeUpdated,
		EventTopic:   topic(newThing.UID, "updated"),
		EventPayload: marshal(UpdatedPayload{Old: ToDTO(oldThing), New: ToDTO(newThing)}),
	}
}

// NewRemovedEvent reports a thing leaving the registry.
func NewRemovedEvent(t *Thing) events.Event {
	return events.Base{
		EventType:    EventTypeRemoved,
		EventTopic:   topic(t.UID, "removed"),
		EventPayload: marshal(ToDTO(t)),
	}
}

// NewChannelTriggeredEvent reports a stateless channel firing.
func NewChannelTriggeredEvent(channel ChannelUID, event string) events.Event {
	return events.Base{
		EventType:    EventTypeChannelTriggered,
		EventTopic:   "hearth/channels/" + string(channel) + "/triggered",
		EventPayload: marshal(TriggeredPayload{Event: event, Channel: string(channel)}),
	}
}

// DecodeStatusPayload rebuilds the status carried by a status event.
func DecodeStatusPayload(payload string) (StatusInfo, error) {
	var info StatusInfo
	if err := json.Unmarshal([]byte(payload), &info); err != nil {
		return StatusInfo{}, fmt.Errorf("things: decoding status payload: %w", err)
	}
	if err := info.Validate(); err != nil {
		return StatusInfo{}, err
	}
	return info, nil
}

// DecodeTriggeredPayload rebuilds the body of a channel trigger event.
func DecodeTriggeredPayload(payload string) (TriggeredPayload, error) {
	var p TriggeredPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return TriggeredPayload{}, fmt.Errorf("things: decoding triggered payload: %w", err)
	}
	return p, nil
}

// DecodeStatusChangedPayload rebuilds both sides of a status transition.
func DecodeStatusChangedPayload(payload string) (oldInfo, newInfo StatusInfo, err error) {
	var p StatusChangedPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return StatusInfo{}, StatusInfo{}, fmt.Errorf("things: decoding statuschanged payload: %w", err)
	}
	return p.Old, p.New, nil
}
