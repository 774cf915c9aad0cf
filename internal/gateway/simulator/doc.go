// Package simulator is an in-memory gateway driver.
//
// It keeps a device model (products, scenes, groups and the gateway's own
// state) and hands out sessions that behave like real ones: objects fetched
// from a session stop notifying once it closes, commands on a closed session
// fail with gateway.ErrConnection, and every inbound frame kind the bridge
// reacts to is emitted. Tests drive it through the exported control methods;
// importing the package registers the "simulator" driver with a small demo
// installation.
package simulator
