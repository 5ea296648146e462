// Package handlers implements the built-in module handler set for the
// rule engine: item, thing, system and timer triggers, state and time
// conditions, and item command, state and rule control actions.
//
// CoreFactory serves all built-in module types. Triggers watch the
// event bus or the scheduler; conditions read live item state; actions
// drive the item registry and the engine.
//
// All handlers are safe for concurrent use; Detach is idempotent and
// safe to call on a never-attached handler.
package handlers
