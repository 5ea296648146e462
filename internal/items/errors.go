package items

import "errors"

// Item errors.
var (
	// ErrItemNotFound indicates the named item is not in the registry.
	ErrItemNotFound = errors.New("items: item not found")

	// ErrInvalidName indicates an item name outside [a-zA-Z_][a-zA-Z0-9_]*.
	ErrInvalidName = errors.New("items: invalid item name")

	// ErrInvalidType indicates an unknown item type.
	ErrInvalidType = errors.New("items: invalid item type")

	// ErrNotAGroup indicates a group operation on a non-group item.
	ErrNotAGroup = errors.New("items: item is not a group")

	// ErrStateNotAccepted indicates a state the item's type cannot hold
	// and cannot be converted into.
	ErrStateNotAccepted = errors.New("items: state not accepted")

	// ErrCommandNotAccepted indicates a command the item's type cannot
	// handle.
	ErrCommandNotAccepted = errors.New("items: command not accepted")

	// ErrInvalidGroupFunction indicates a group aggregation function that
	// is unknown or misconfigured.
	ErrInvalidGroupFunction = errors.New("items: invalid group function")

	// ErrNoManagedProvider indicates registry CRUD without a configured
	// managed provider.
	ErrNoManagedProvider = errors.New("items: no managed provider configured")
)
