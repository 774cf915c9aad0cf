// Package watchdog owns the gateway session.
//
// The Watchdog logs in, hands each new session to an Initializer as a
// Generation, and waits for the session to close. A close, clean or not,
// stops the generation's refresher, clears info.connection and disposes
// everything registered with the generation before the next login is
// attempted. Logins are retried with a fixed delay until one succeeds or the
// process shuts down; a rejected password ends Run with gateway.ErrAuth.
//
// Teardown and initialisation run on the dispatch queue so they never
// interleave with link handlers.
package watchdog
