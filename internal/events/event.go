package events

import "strings"

// Event is a single occurrence distributed over the bus.
type Event interface {
	// Type names the event kind, e.g. "ItemStateChangedEvent".
	Type() string
	// Topic addresses the event, e.g. "hearth/items/Kitchen_Light/statechanged".
	Topic() string
	// Payload carries the event body as JSON text.
	Payload() string
	// Source identifies the originator, empty when unknown.
	Source() string
}

// Publisher accepts events for distribution. *Bus implements it; domain
// packages depend on this instead of the full bus.
type Publisher interface {
	Publish(Event) error
}

// Base is a ready-made Event implementation for embedding in concrete
// event types.
type Base struct {
	EventType    string
	EventTopic   string
	EventPayload string
	EventSource  string
}

// Type implements Event.
func (b Base) Type() string { return b.EventType }

// Topic implements Event.
func (b Base) Topic() string { return b.EventTopic }

// Payload implements Event.
func (b Base) Payload() string { return b.EventPayload }

// Source implements Event.
func (b Base) Source() string { return b.EventSource }

// TopicMatches reports whether topic matches pattern. Patterns use
// "/"-separated segments with MQTT-style wildcards: "+" matches exactly
// one segment, a trailing "#" matches any remainder (including none).
func TopicMatches(pattern, topic string) bool {
	if pattern == "" || pattern == "#" {
		return true
	}
	pp := strings.Split(pattern, "/")
	tp := strings.Split(topic, "/")
	for i, seg := range pp {
		if seg == "#" {
			return i == len(pp)-1
		}
		if i >= len(tp) {
			return false
		}
		if seg != "+" && seg != tp[i] {
			return false
		}
	}
	return len(pp) == len(tp)
}
