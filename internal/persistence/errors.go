package persistence

import "errors"

// Persistence errors.
var (
	// ErrUnknownStrategy indicates a strategy name other than
	// everyChange, everyUpdate or cron.
	ErrUnknownStrategy = errors.New("persistence: unknown strategy")

	// ErrUnknownItem indicates a last-state query for an item the
	// registry does not know, so its stored samples cannot be typed.
	ErrUnknownItem = errors.New("persistence: unknown item")

	// ErrBadSample indicates a stored sample whose raw type cannot be
	// converted back into an item state.
	ErrBadSample = errors.New("persistence: unsupported sample type")
)
