package rules

// TriggerCallback is handed to a trigger handler on Attach. The handler
// calls Triggered whenever its trigger fires; outputs become the run
// context for that execution.
type TriggerCallback interface {
	Triggered(triggerID string, outputs map[string]any)
}

// Handler is the common surface of all module handlers.
type Handler interface {
	// TypeUID returns the module type this handler implements.
	TypeUID() string
}

// TriggerHandler watches for its trigger condition and reports firings
// through the attached callback.
type TriggerHandler interface {
	Handler

	// Attach starts the handler and registers the callback to fire into.
	Attach(cb TriggerCallback) error

	// Detach stops the handler; no callbacks fire after it returns.
	Detach()
}

// ConditionHandler decides whether a triggered rule may run.
type ConditionHandler interface {
	Handler

	// Evaluate reports whether the condition holds. Inputs are the
	// module's declared inputs resolved against the run context;
	// runContext is the full context of the execution.
	Evaluate(inputs map[string]any, runContext map[string]any) bool
}

// ActionHandler performs one action of a rule.
type ActionHandler interface {
	Handler

	// Execute runs the action. Returned outputs are merged into the run
	// context under "<moduleID>.<key>"; a non-nil error aborts the
	// remaining actions of the run.
	Execute(inputs map[string]any, runContext map[string]any) (map[string]any, error)
}

// HandlerFactory creates handlers for a set of module types. Factories
// register with the engine; a factory appearing later revives rules
// parked on HANDLER_MISSING_ERROR.
type HandlerFactory interface {
	// Types returns the module type UIDs this factory serves.
	Types() []string

	// Create builds a handler for the given module of the given rule.
	// The result must implement TriggerHandler, ConditionHandler or
	// ActionHandler as appropriate for the module's role.
	Create(rule *Rule, module Module) (Handler, error)

	// Release disposes the handler previously created for the module,
	// freeing any resources it holds.
	Release(ruleUID, moduleID string)
}
