// Package gateway defines the session abstraction the bridge consumes to talk
// to a KLF-200 style actuator gateway.
//
// The wire protocol (TLS transport, frame codec, login handshake) is provided
// by a driver registered with Register, in the same way database/sql drivers
// are. The bridge only ever sees an authenticated Session and the device
// objects it exposes: products, scenes and groups.
//
// # Session lifetime
//
// A Session is created by Dialer.Login and closes exactly once, either through
// Logout or because the connection dropped. Done is closed at that moment and
// Err reports whether the close was caused by an error. Device objects
// obtained from a session stop emitting notifications once it is closed and
// their commands fail with ErrConnection.
package gateway
