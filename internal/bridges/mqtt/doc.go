// Package mqtt mirrors the runtime event bus onto an external MQTT
// broker and feeds broker writes back through the item registry.
//
// # Architecture
//
// The bridge sits between two buses and translates in both directions:
//
//	┌─────────────────┐              ┌─────────────────┐
//	│    event bus    │   Subscribe  │   MQTT Bridge   │   paho
//	│   (internal)    │─────────────►│   (this pkg)    │◄────────► broker
//	└─────────────────┘              └─────────────────┘
//	        ▲                                │
//	        └────── SendCommand/UpdateState ─┘
//
// # Topic Layout
//
// Outbound topics are the bus topics themselves, so a broker subscriber
// sees the runtime's own addressing:
//
//	hearth/items/<name>/state          retained, last known state
//	hearth/items/<name>/statechanged   state transitions
//	hearth/things/<uid>/status         retained, thing status
//
// Inbound writes use a disjoint "/set" suffix, which is what keeps the
// bridge from consuming its own publications:
//
//	hearth/items/<name>/command/set    command as wire text ("ON", "42.5")
//	hearth/items/<name>/state/set      state as wire text
//
// Inbound payloads are plain state text parsed against the item's type.
// Malformed payloads and writes to unknown items are logged and dropped.
//
// # Retained State
//
// State and thing status publications are retained so late subscribers
// see the current picture immediately. On every (re)connect the bridge
// republishes all item states, repairing whatever the broker missed
// while the runtime was away. Group aggregates refresh their retained
// state topic whenever a member change moves the group.
//
// # Key Types
//
//   - Bridge: the translator; Start subscribes both sides, Stop detaches.
//   - BrokerClient: narrow broker surface, satisfied by the
//     infrastructure mqtt client.
//   - Options: construction parameters.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Outbound publishes
// run on a single worker goroutine so broker stalls never block the
// event bus dispatcher.
package mqtt
