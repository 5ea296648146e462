package types

import "errors"

var (
	// ErrInvalidValue is returned when a value is out of range for its type.
	ErrInvalidValue = errors.New("types: invalid value")

	// ErrUnknownItemType is returned when an item type name is not recognised.
	ErrUnknownItemType = errors.New("types: unknown item type")

	// ErrParse is returned when text cannot be parsed into any state or
	// command the item type accepts.
	ErrParse = errors.New("types: cannot parse")
)
