package influxdb

import "errors"

// Sentinel errors for the time-series backend; match with errors.Is.
// Batched writes fail asynchronously and surface through the SetOnError
// callback rather than these sentinels.
var (
	// ErrDisabled is returned by Connect when the influxdb section of
	// the config has enabled: false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrNotConnected is returned for operations before Connect or
	// after Close.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed wraps a failed initial health probe.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed wraps a synchronous write rejection.
	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrQueryFailed wraps a failed last-value query.
	ErrQueryFailed = errors.New("influxdb: query failed")
)
