// Package items provides the item model and the item registry: named,
// typed values (Switch, Dimmer, Number, ...) with group aggregation,
// metadata, state updates and command handling.
//
// # Architecture
//
//	┌────────────┐   ┌──────────────────┐   ┌─────────────────┐
//	│ providers  │──▶│     Registry     │──▶│   event bus     │
//	│ (model,    │   │  items + states  │   │ state / command │
//	│  managed)  │   │  group functions │   │ lifecycle       │
//	└────────────┘   └──────────────────┘   └─────────────────┘
//
// Items arrive from providers (YAML models, the managed store). The
// registry tracks each item's runtime state separately from its
// definition: UpdateState emits state and statechanged events and
// recomputes every group the item belongs to; SendCommand emits a
// command event and, unless vetoed by autoupdate metadata, predicts and
// applies the resulting state.
//
// # Key Types
//
//   - Item: the definition (name, type, label, groups, metadata, link).
//   - GroupItem: a group with its members resolved.
//   - Registry: lookup, CRUD via the managed provider, state handling.
//
// # Thread Safety
//
// Registry is safe for concurrent use. Items returned by the registry
// are deep copies; mutating them never affects registry state.
package items
