package mqtt

import "errors"

// Sentinel errors for broker operations; match with errors.Is. The
// operation errors (publish, subscribe, unsubscribe, connect) are
// usually wrapped with the underlying paho error or a timeout note.
var (
	// ErrDisabled is returned by Connect when the mqtt section of the
	// config has enabled: false.
	ErrDisabled = errors.New("mqtt: disabled in configuration")

	// ErrNotConnected is returned for operations on a client whose
	// broker connection is down.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed wraps a failed initial dial.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS rejects QoS levels outside 0..2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic rejects an empty topic or filter.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
