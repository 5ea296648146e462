// Package things provides the thing model and the thing registry:
// device instances addressed by structured UIDs, carrying configuration
// and channels, with a runtime status lifecycle.
//
// # Architecture
//
//	┌────────────┐   ┌──────────────────┐   ┌──────────────────┐
//	│ providers  │──▶│     Registry     │──▶│    event bus     │
//	│ (model,    │   │ things + status  │   │ status / channel │
//	│  managed)  │   │                  │   │ lifecycle        │
//	└────────────┘   └──────────────────┘   └──────────────────┘
//
// Thing definitions arrive from providers (YAML models, the managed
// store). The registry tracks each thing's runtime status separately
// from its definition: SetStatus emits status, statuschanged and
// updated events; TriggerChannel emits channel trigger events for
// stateless channels.
//
// # Key Types
//
//   - ThingUID, ChannelUID: structured identifiers (binding:type:id).
//   - Thing: the definition (UID, label, bridge, configuration, channels).
//   - StatusInfo: runtime status with detail and description.
//   - Registry: lookup, CRUD via the managed provider, status handling.
//
// # Thread Safety
//
// Registry is safe for concurrent use. Things returned by the registry
// are deep copies; mutating them never affects registry state.
package things
