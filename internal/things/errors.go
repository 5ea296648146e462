package things

import "errors"

// Thing errors.
var (
	// ErrThingNotFound indicates the thing UID is not in the registry.
	ErrThingNotFound = errors.New("things: thing not found")

	// ErrInvalidUID indicates a UID with fewer than three segments or a
	// segment outside [A-Za-z0-9_-]+.
	ErrInvalidUID = errors.New("things: invalid UID")

	// ErrInvalidChannel indicates a channel with a bad id, an unknown
	// kind, or a duplicate id within its thing.
	ErrInvalidChannel = errors.New("things: invalid channel")

	// ErrChannelNotFound indicates the channel UID resolves to no
	// registered channel.
	ErrChannelNotFound = errors.New("things: channel not found")

	// ErrInvalidStatus indicates an unknown status or status detail.
	ErrInvalidStatus = errors.New("things: invalid status")

	// ErrStatusTerminal indicates a status transition away from REMOVED,
	// which is final.
	ErrStatusTerminal = errors.New("things: thing status is terminal")

	// ErrNoManagedProvider indicates registry CRUD without a configured
	// managed provider.
	ErrNoManagedProvider = errors.New("things: no managed provider configured")
)
