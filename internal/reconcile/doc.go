// Package reconcile keeps the store channels of a device collection in step
// with the objects the gateway reports.
//
// A Reconciler is built from a Catalog describing the states of one
// collection (products, scenes, groups). Reconcile runs a full pass: it purges
// channels of objects that no longer exist, creates the channel and states of
// every live object, writes their current values and binds their links.
// AddOne and RemoveOne do the same for a single object. Failures on
// individual nodes are logged and never abort a pass; running a pass again
// repairs them.
package reconcile
