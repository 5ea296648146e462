package model

import "errors"

// Model errors.
var (
	// ErrModelNotFound indicates an edit against a model the repository
	// has never seen.
	ErrModelNotFound = errors.New("model: model not found")

	// ErrElementNotFound indicates an edit against an element missing
	// from its section.
	ErrElementNotFound = errors.New("model: element not found")

	// ErrElementExists indicates an add for a key already present in the
	// section.
	ErrElementExists = errors.New("model: element already exists")

	// ErrModelReadOnly indicates an edit against a model marked readOnly.
	ErrModelReadOnly = errors.New("model: model is read-only")

	// ErrDeprecatedFormat indicates an edit against a version 1 model;
	// the write path emits version 2 only.
	ErrDeprecatedFormat = errors.New("model: deprecated model format is read-only")

	// ErrUnsupportedVersion indicates a model file whose version is
	// missing or outside the supported range.
	ErrUnsupportedVersion = errors.New("model: unsupported model version")

	// ErrInvalidModel indicates a model file that is not a YAML mapping.
	ErrInvalidModel = errors.New("model: invalid model file")
)
