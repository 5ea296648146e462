package handlers

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hearth-home/hearth-core/internal/events"
	"github.com/hearth-home/hearth-core/internal/items"
	"github.com/hearth-home/hearth-core/internal/rules"
	"github.com/hearth-home/hearth-core/internal/things"
)

// busTrigger is the shared core of every event-driven trigger: it
// subscribes to the bus on Attach and feeds matching events to the rule
// callback.
type busTrigger struct {
	typeUID  string
	moduleID string
	bus      *events.Bus
	types    []string
	match    func(ev events.Event) (map[string]any, bool)

	mu sync.Mutex
	cb rules.TriggerCallback
}

// TypeUID implements rules.Handler.
func (t *busTrigger) TypeUID() string { return t.typeUID }

// SubscribedEventTypes implements events.Subscriber.
func (t *busTrigger) SubscribedEventTypes() []string { return t.types }

// Receive implements events.Subscriber.
func (t *busTrigger) Receive(ev events.Event) {
	t.mu.Lock()
	cb := t.cb
	t.mu.Unlock()
	if cb == nil {
		return
	}
	if outputs, ok := t.match(ev); ok {
		cb.Triggered(t.moduleID, outputs)
	}
}

// Attach implements rules.TriggerHandler.
func (t *busTrigger) Attach(cb rules.TriggerCallback) error {
	t.mu.Lock()
	t.cb = cb
	t.mu.Unlock()
	t.bus.Subscribe(t)
	return nil
}

// Detach implements rules.TriggerHandler.
func (t *busTrigger) Detach() {
	t.bus.Unsubscribe(t)
	t.mu.Lock()
	t.cb = nil
	t.mu.Unlock()
}

// newItemStateUpdateTrigger fires on every state update of one item,
// optionally filtered to a specific state.
func newItemStateUpdateTrigger(f *CoreFactory, m rules.Module) (*busTrigger, error) {
	itemName, err := configString(m.Config, "itemName")
	if err != nil {
		return nil, err
	}
	stateFilter := optString(m.Config, "state")
	wantTopic := "hearth/items/" + itemName + "/state"
	return &busTrigger{
		typeUID:  TypeItemStateUpdateTrigger,
		moduleID: m.ID,
		bus:      f.bus,
		types:    []string{items.EventTypeState},
		match: func(ev events.Event) (map[string]any, bool) {
			if ev.Topic() != wantTopic {
				return nil, false
			}
			st, err := items.DecodeStatePayload(ev.Payload())
			if err != nil {
				return nil, false
			}
			if stateFilter != "" && st.Format() != stateFilter {
				return nil, false
			}
			return map[string]any{"itemName": itemName, "state": st}, true
		},
	}, nil
}

// newItemStateChangeTrigger fires when one item's state actually
// changes, optionally filtered by old and new state.
func newItemStateChangeTrigger(f *CoreFactory, m rules.Module) (*busTrigger, error) {
	itemName, err := configString(m.Config, "itemName")
	if err != nil {
		return nil, err
	}
	oldFilter := optString(m.Config, "previousState")
	newFilter := optString(m.Config, "state")
	wantTopic := "hearth/items/" + itemName + "/statechanged"
	return &busTrigger{
		typeUID:  TypeItemStateChangeTrigger,
		moduleID: m.ID,
		bus:      f.bus,
		types:    []string{items.EventTypeStateChanged},
		match: func(ev events.Event) (map[string]any, bool) {
			if ev.Topic() != wantTopic {
				return nil, false
			}
			oldState, newState, err := items.DecodeStateChangedPayload(ev.Payload())
			if err != nil {
				return nil, false
			}
			if oldFilter != "" && oldState.Format() != oldFilter {
				return nil, false
			}
			if newFilter != "" && newState.Format() != newFilter {
				return nil, false
			}
			return map[string]any{"itemName": itemName, "state": newState, "oldState": oldState}, true
		},
	}, nil
}

// newItemCommandTrigger fires when one item receives a command,
// optionally filtered to a specific command.
func newItemCommandTrigger(f *CoreFactory, m rules.Module) (*busTrigger, error) {
	itemName, err := configString(m.Config, "itemName")
	if err != nil {
		return nil, err
	}
	cmdFilter := optString(m.Config, "command")
	wantTopic := "hearth/items/" + itemName + "/command"
	return &busTrigger{
		typeUID:  TypeItemCommandTrigger,
		moduleID: m.ID,
		bus:      f.bus,
		types:    []string{items.EventTypeCommand},
		match: func(ev events.Event) (map[string]any, bool) {
			if ev.Topic() != wantTopic {
				return nil, false
			}
			cmd, err := items.DecodeCommandPayload(ev.Payload())
			if err != nil {
				return nil, false
			}
			if cmdFilter != "" && cmd.Format() != cmdFilter {
				return nil, false
			}
			return map[string]any{"itemName": itemName, "command": cmd}, true
		},
	}, nil
}

// newGroupStateChangeTrigger fires when any member of a group changes
// state, optionally filtered by the member's new state.
func newGroupStateChangeTrigger(f *CoreFactory, m rules.Module) (*busTrigger, error) {
	groupName, err := configString(m.Config, "groupName")
	if err != nil {
		return nil, err
	}
	stateFilter := optString(m.Config, "state")
	prefix := "hearth/items/" + groupName + "/"
	const suffix = "/statechanged"
	return &busTrigger{
		typeUID:  TypeGroupStateChangeTrigger,
		moduleID: m.ID,
		bus:      f.bus,
		types:    []string{items.EventTypeGroupStateChanged},
		match: func(ev events.Event) (map[string]any, bool) {
			topic := ev.Topic()
			if !strings.HasPrefix(topic, prefix) || !strings.HasSuffix(topic, suffix) {
				return nil, false
			}
			member := strings.TrimSuffix(strings.TrimPrefix(topic, prefix), suffix)
			if member == "" || strings.Contains(member, "/") {
				return nil, false
			}
			oldState, newState, err := items.DecodeStateChangedPayload(ev.Payload())
			if err != nil {
				return nil, false
			}
			if stateFilter != "" && newState.Format() != stateFilter {
				return nil, false
			}
			return map[string]any{
				"itemName":   groupName,
				"memberName": member,
				"state":      newState,
				"oldState":   oldState,
			}, true
		},
	}, nil
}

// newThingStatusChangeTrigger fires on thing status transitions,
// optionally filtered by old and new status.
func newThingStatusChangeTrigger(f *CoreFactory, m rules.Module) (*busTrigger, error) {
	uidText, err := configString(m.Config, "thingUID")
	if err != nil {
		return nil, err
	}
	uid, err := things.ParseThingUID(uidText)
	if err != nil {
		return nil, fmt.Errorf("%w: thingUID: %v", rules.ErrBadConfig, err)
	}
	statusFilter := optString(m.Config, "status")
	prevFilter := optString(m.Config, "previousStatus")
	wantTopic := "hearth/things/" + string(uid) + "/statuschanged"
	return &busTrigger{
		typeUID:  TypeThingStatusChangeTrigger,
		moduleID: m.ID,
		bus:      f.bus,
		types:    []string{things.EventTypeStatusChanged},
		match: func(ev events.Event) (map[string]any, bool) {
			if ev.Topic() != wantTopic {
				return nil, false
			}
			oldInfo, newInfo, err := things.DecodeStatusChangedPayload(ev.Payload())
			if err != nil {
				return nil, false
			}
			if statusFilter != "" && string(newInfo.Status) != statusFilter {
				return nil, false
			}
			if prevFilter != "" && string(oldInfo.Status) != prevFilter {
				return nil, false
			}
			return map[string]any{
				"thingUID":  string(uid),
				"status":    newInfo,
				"oldStatus": oldInfo,
			}, true
		},
	}, nil
}

// newChannelEventTrigger fires when a trigger channel emits an event,
// optionally filtered to a specific event string.
func newChannelEventTrigger(f *CoreFactory, m rules.Module) (*busTrigger, error) {
	uidText, err := configString(m.Config, "channelUID")
	if err != nil {
		return nil, err
	}
	channel, err := things.ParseChannelUID(uidText)
	if err != nil {
		return nil, fmt.Errorf("%w: channelUID: %v", rules.ErrBadConfig, err)
	}
	eventFilter := optString(m.Config, "event")
	wantTopic := "hearth/channels/" + string(channel) + "/triggered"
	return &busTrigger{
		typeUID:  TypeChannelEventTrigger,
		moduleID: m.ID,
		bus:      f.bus,
		types:    []string{things.EventTypeChannelTriggered},
		match: func(ev events.Event) (map[string]any, bool) {
			if ev.Topic() != wantTopic {
				return nil, false
			}
			p, err := things.DecodeTriggeredPayload(ev.Payload())
			if err != nil {
				return nil, false
			}
			if eventFilter != "" && p.Event != eventFilter {
				return nil, false
			}
			return map[string]any{"channel": string(channel), "event": p.Event}, true
		},
	}, nil
}

// systemStartTrigger fires exactly once, when its rule is attached
// during engine start (or re-initialization).
type systemStartTrigger struct {
	moduleID string

	mu    sync.Mutex
	fired bool
}

func newSystemStartTrigger(m rules.Module) *systemStartTrigger {
	return &systemStartTrigger{moduleID: m.ID}
}

// TypeUID implements rules.Handler.
func (t *systemStartTrigger) TypeUID() string { return TypeSystemStartTrigger }

// Attach implements rules.TriggerHandler.
func (t *systemStartTrigger) Attach(cb rules.TriggerCallback) error {
	t.mu.Lock()
	if t.fired {
		t.mu.Unlock()
		return nil
	}
	t.fired = true
	t.mu.Unlock()
	cb.Triggered(t.moduleID, map[string]any{})
	return nil
}

// Detach implements rules.TriggerHandler.
func (t *systemStartTrigger) Detach() {}
