// Package link binds device object properties to store states.
//
// A push link copies property changes into the store as acknowledged values.
// A pull link turns unacknowledged (external) writes into device commands and
// acknowledges them. Every link owns exactly one subscription and releases it
// exactly once on Dispose.
//
// Handlers never run on the notifying goroutine: they are posted to the
// Dispatcher so that all link activity is serialised, and a handler that runs
// after its link was disposed does nothing.
package link
