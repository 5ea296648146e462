package rules

import (
	"encoding/json"
	"fmt"

	"github.com/hearth-home/hearth-core/internal/events"
)

// Rule event types.
const (
	EventTypeStatus  = "RuleStatusInfoEvent"
	EventTypeAdded   = "RuleAddedEvent"
	EventTypeUpdated = "RuleUpdatedEvent"
	EventTypeRemoved = "RuleRemovedEvent"
)

// UpdatedPayload is the JSON body of rule updated events.
type UpdatedPayload struct {
	Old DTO `json:"old"`
	New DTO `json:"new"`
}

func topic(uid, suffix string) string {
	return "hearth/rules/" + uid + "/" + suffix
}

func marshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// NewStatusEvent reports a rule's lifecycle status.
func NewStatusEvent(uid string, info StatusInfo) events.Event {
	return events.Base{
		EventType:    EventTypeStatus,
		EventTopic:   topic(uid, "state"),
		EventPayload: marshal(info),
	}
}

// NewAddedEvent reports a rule joining the registry.
func NewAddedEvent(r *Rule) events.Event {
	return events.Base{
		EventType:    EventTypeAdded,
		EventTopic:   topic(r.UID, "added"),
		EventPayload: marshal(ToDTO(r)),
	}
}

// NewUpdatedEvent reports a rule definition change.
func NewUpdatedEvent(oldRule, newRule *Rule) events.Event {
	return events.Base{
		EventType:    EventTypeUpdated,
		EventTopic:   topic(newRule.UID, "updated"),
		EventPayload: marshal(UpdatedPayload{Old: ToDTO(oldRule), New: ToDTO(newRule)}),
	}
}

// NewRemovedEvent reports a rule leaving the registry.
func NewRemovedEvent(r *Rule) events.Event {
	return events.Base{
		EventType:    EventTypeRemoved,
		EventTopic:   topic(r.UID, "removed"),
		EventPayload: marshal(ToDTO(r)),
	}
}

// DecodeStatusPayload rebuilds the status carried by a rule state event.
func DecodeStatusPayload(payload string) (StatusInfo, error) {
	var info StatusInfo
	if err := json.Unmarshal([]byte(payload), &info); err != nil {
		return StatusInfo{}, fmt.Errorf("rules: decoding status payload: %w", err)
	}
	return info, nil
}
