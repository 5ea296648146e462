// Package registry provides the generic provider-based registry core used
// by the item, thing, and rule registries.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────────┐
//	│                       Registry[E, K]                            │
//	│                                                                 │
//	│   Provider A ──┐                                                │
//	│   Provider B ──┼──▶ element map (K → E, owning provider)        │
//	│   Managed   ───┘        │                                       │
//	│                         ▼                                       │
//	│                 ChangeListener fan-out (Added/Updated/Removed)  │
//	└────────────────────────────────────────────────────────────────┘
//
// A registry aggregates elements from any number of providers: model-file
// providers, a storage-backed managed provider for runtime CRUD, or test
// fixtures. Providers announce their elements when attached and push
// deltas afterwards; the registry indexes elements by UID, resolves
// conflicts (first provider wins), and fans changes out to registered
// change listeners.
//
// # Key Types
//
//   - Registry: the aggregating core
//   - Provider: an element source
//   - ManagedProvider: a Store-backed provider offering Add/Update/Remove
//   - ChangeListener: observer of registry-level changes
//
// # Thread Safety
//
// All public methods are thread-safe. Listener callbacks are invoked
// outside the registry lock and panics in listeners are recovered, so a
// misbehaving observer cannot corrupt or deadlock the registry.
package registry
