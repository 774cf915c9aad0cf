// Package bridge initialises a gateway session generation: it enables the
// house status monitor, sets the gateway clock, reconciles scenes, groups and
// products into the store, binds the gateway channel and starts the periodic
// refresher.
//
// The Bridge is the watchdog.Initializer of the service. Everything it creates
// is registered on the generation, so the watchdog can release it when the
// session ends.
package bridge
