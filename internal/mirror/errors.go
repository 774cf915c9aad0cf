package mirror

import "errors"

var (
	// ErrInvalidPayload is returned when a set message cannot be decoded for
	// the target state.
	ErrInvalidPayload = errors.New("mirror: invalid payload")

	// ErrReadOnly is returned when a set message targets a state that is not
	// writable.
	ErrReadOnly = errors.New("mirror: state is read-only")

	// ErrUnknownState is returned when a set message targets a state that
	// does not exist.
	ErrUnknownState = errors.New("mirror: unknown state")

	// ErrRunning is returned by Run when the mirror is already running.
	ErrRunning = errors.New("mirror: already running")
)
