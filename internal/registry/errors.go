package registry

import "errors"

var (
	// ErrElementExists is returned when adding an element whose UID is
	// already managed.
	ErrElementExists = errors.New("registry: element already exists")

	// ErrElementNotFound is returned when updating or removing an element
	// that is not managed.
	ErrElementNotFound = errors.New("registry: element not found")
)
