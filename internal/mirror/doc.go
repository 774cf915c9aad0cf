// Package mirror exposes the state tree over MQTT.
//
// Every accepted store write is published, retained, as
//
//	{"val": 50, "ack": true, "ts": "2026-10-19T12:00:00Z"}
//
// on <prefix>/state/<path>. Messages on <prefix>/set/<path> become
// unacknowledged writes to writable states, which the bridge's pull links then
// turn into gateway commands. Payloads may be a bare JSON value (80, true,
// "text"), an object carrying "val", or unquoted text for string states.
//
// Publishing happens on the mirror's own goroutine. Pending values are
// coalesced per state so a slow broker never holds up the dispatch queue and
// only the latest value of a state is sent.
package mirror
