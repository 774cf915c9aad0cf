package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled")

	ErrNotConnected     = errors.New("influxdb: not connected")
	ErrConnectionFailed = errors.New("influxdb: connect failed")

	// ErrWriteFailed wraps batch failures reported through SetOnError.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
