package rules

import "errors"

var (
	// ErrRuleNotFound is returned when the requested rule is not present
	// in the registry.
	ErrRuleNotFound = errors.New("rules: rule not found")

	// ErrInvalidRule is returned when a rule definition fails validation.
	ErrInvalidRule = errors.New("rules: invalid rule")

	// ErrNotInitialized is returned by RunNow when the rule is disabled
	// or its handlers are not resolved.
	ErrNotInitialized = errors.New("rules: rule not initialized")

	// ErrBadConfig marks a module configuration a handler factory cannot
	// use; rules park on CONFIGURATION_ERROR instead of
	// HANDLER_INITIALIZING_ERROR.
	ErrBadConfig = errors.New("rules: invalid module configuration")

	// ErrRunAborted is returned when an action handler fails and the
	// remaining actions are skipped.
	ErrRunAborted = errors.New("rules: run aborted")

	// ErrEngineClosed is returned for operations on a closed engine.
	ErrEngineClosed = errors.New("rules: engine closed")

	// ErrNoManagedProvider is returned by CRUD operations when the
	// registry was built without a managed provider.
	ErrNoManagedProvider = errors.New("rules: no managed provider")
)
