package mqtt

import "fmt"

// Topic prefixes. Outbound event topics mirror the internal event bus
// addressing, so a broker subscriber sees the same topics as an
// in-process one; inbound write topics carry a "/set" suffix to keep
// them disjoint from the canonical outbound topics.
const (
	// TopicRoot prefixes every topic this node publishes or subscribes.
	TopicRoot = "hearth"

	// TopicPrefixItems is the base for item topics.
	TopicPrefixItems = "hearth/items"

	// TopicPrefixThings is the base for thing topics.
	TopicPrefixThings = "hearth/things"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "hearth/system"
)

// Topics provides builders for broker topics. Using these helpers keeps
// topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.ItemState("Kitchen_Light")
//	// Returns: "hearth/items/Kitchen_Light/state"
type Topics struct{}

// ItemState returns the retained canonical state topic for an item.
//
// Example: hearth/items/Kitchen_Light/state
func (Topics) ItemState(name string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixItems, name)
}

// ItemStateChanged returns the state transition topic for an item.
//
// Example: hearth/items/Kitchen_Light/statechanged
func (Topics) ItemStateChanged(name string) string {
	return fmt.Sprintf("%s/%s/statechanged", TopicPrefixItems, name)
}

// ItemCommandSet returns the inbound command topic for an item. External
// clients publish wire text ("ON", "42.5") here to command the item.
//
// Example: hearth/items/Kitchen_Light/command/set
func (Topics) ItemCommandSet(name string) string {
	return fmt.Sprintf("%s/%s/command/set", TopicPrefixItems, name)
}

// ItemStateSet returns the inbound state update topic for an item.
// External clients publish wire text here to report the item's state.
//
// Example: hearth/items/Kitchen_Light/state/set
func (Topics) ItemStateSet(name string) string {
	return fmt.Sprintf("%s/%s/state/set", TopicPrefixItems, name)
}

// ThingStatus returns the status topic for a thing.
//
// Example: hearth/things/mqtt:topic:porch/status
func (Topics) ThingStatus(uid string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixThings, uid)
}

// SystemStatus returns the runtime status topic carrying online/offline
// payloads and the LWT.
//
// Example: hearth/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllItemCommandSets returns a pattern matching all inbound item commands.
//
// Pattern: hearth/items/+/command/set
func (Topics) AllItemCommandSets() string {
	return fmt.Sprintf("%s/+/command/set", TopicPrefixItems)
}

// AllItemStateSets returns a pattern matching all inbound item state
// updates.
//
// Pattern: hearth/items/+/state/set
func (Topics) AllItemStateSets() string {
	return fmt.Sprintf("%s/+/state/set", TopicPrefixItems)
}

// AllItemStates returns a pattern matching all canonical item states.
//
// Pattern: hearth/items/+/state
func (Topics) AllItemStates() string {
	return fmt.Sprintf("%s/+/state", TopicPrefixItems)
}

// AllThingStatuses returns a pattern matching all thing status topics.
//
// Pattern: hearth/things/+/status
func (Topics) AllThingStatuses() string {
	return fmt.Sprintf("%s/+/status", TopicPrefixThings)
}

// AllTopics returns a pattern matching every topic under the root.
// Use with caution - this receives ALL traffic.
//
// Pattern: hearth/#
func (Topics) AllTopics() string {
	return TopicRoot + "/#"
}
