package gateway

import "errors"

// Domain errors for gateway sessions.
var (
	// ErrAuth is returned when the gateway rejects the login credentials.
	// It is fatal: retrying with the same password cannot succeed.
	ErrAuth = errors.New("gateway: authentication rejected")

	// ErrConnection is returned when the session is closed or the gateway
	// cannot be reached. The watchdog treats it as transient.
	ErrConnection = errors.New("gateway: connection failed")

	// ErrCommand is returned when the gateway rejects or times out a command.
	ErrCommand = errors.New("gateway: command failed")

	// ErrUnknownDriver is returned by Open for an unregistered driver name.
	ErrUnknownDriver = errors.New("gateway: unknown driver")
)
