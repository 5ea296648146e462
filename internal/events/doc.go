// Package events provides the in-process event bus connecting every Hearth
// subsystem: item state flows, thing status, rule lifecycle, and the
// outward-facing bridges all communicate through it.
//
// # Architecture
//
//	┌───────────┐   Publish    ┌──────────────────────────┐
//	│ items     │ ───────────▶ │           Bus            │
//	│ things    │              │                          │
//	│ rules     │              │  buffered queue          │
//	│ bridges   │              │       │                  │
//	└───────────┘              │       ▼                  │
//	                           │  dispatcher goroutine    │
//	┌───────────┐  Receive     │       │                  │
//	│ rules     │ ◀────────────│  type-filtered fan-out   │
//	│ persist.  │              │  (publish order kept)    │
//	│ mqtt      │              └──────────────────────────┘
//	│ websocket │
//	└───────────┘
//
// # Key Types
//
//   - Event: type + topic + JSON payload + source
//   - Subscriber: receives events, optionally filtered by event type
//   - Bus: buffered queue drained by a single dispatcher goroutine
//
// # Ordering and Safety
//
// A single dispatcher goroutine drains the queue, so subscribers observe
// events in global publish order. A panicking subscriber is recovered and
// logged; it never stalls dispatch. Publish never blocks: when the queue
// is full the event is dropped and counted.
package events
