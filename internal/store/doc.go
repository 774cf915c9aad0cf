// Package store is the hierarchical state store the bridge mirrors devices
// into.
//
// Nodes are addressed by dot-separated IDs such as "products.1.targetPosition".
// Channels group states; states carry metadata and a current value with an
// acknowledgement flag. A write with ack=false is a request from an external
// controller, a write with ack=true reports confirmed device state.
//
// The tree lives in memory. An optional Persister (SQLitePersister in
// production) makes it durable across restarts.
package store
