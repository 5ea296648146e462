package events

import "errors"

var (
	// ErrNilEvent is returned when a nil event is published.
	ErrNilEvent = errors.New("events: nil event")

	// ErrBusClosed is returned when publishing after Stop.
	ErrBusClosed = errors.New("events: bus closed")

	// ErrQueueFull is returned when the publish queue is saturated and the
	// event was dropped.
	ErrQueueFull = errors.New("events: queue full")
)
