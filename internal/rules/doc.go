// Package rules provides the rule model, the rule registry and the
// engine that dispatches module handlers: triggers fire, conditions
// gate, actions run.
//
// # Architecture
//
//	┌────────────┐   ┌──────────┐   ┌─────────────────────────┐
//	│ providers  │──▶│ Registry │──▶│         Engine          │
//	│ (model,    │   └──────────┘   │ statuses + executors    │
//	│  managed)  │                  │                         │
//	└────────────┘                  │ factories ─▶ handlers   │
//	                                │  trigger ─▶ conditions  │
//	                                │            ─▶ actions   │
//	                                └─────────────────────────┘
//
// Rules arrive from providers. The engine resolves each rule's modules
// against registered handler factories; rules whose factories are
// missing park on HANDLER_MISSING_ERROR until one appears. Initialized
// rules sit IDLE with their triggers attached; a firing trigger queues
// a run on the rule's executor, which evaluates conditions and runs
// actions one rule execution at a time.
//
// # Key Types
//
//   - Rule, Module: the definition (triggers/conditions/actions).
//   - TriggerHandler, ConditionHandler, ActionHandler, HandlerFactory:
//     the handler contract, implemented by the handlers package.
//   - Registry: lookup plus CRUD via the managed provider.
//   - Engine: status tracking, per-rule serialized execution.
//
// # Thread Safety
//
// Registry and Engine are safe for concurrent use. Rule executions are
// serialized per rule; different rules run concurrently.
package rules
