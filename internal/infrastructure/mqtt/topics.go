package mqtt

import "strings"

// Topic segments below the configured prefix.
const (
	idSep = "."

	segmentState  = "state"
	segmentSet    = "set"
	segmentBridge = "bridge"
)

// Topics builds the bridge's MQTT topics. Store IDs map onto topic levels:
// products.1.currentPosition becomes <prefix>/state/products/1/currentPosition.
//
//	topics := mqtt.Topics{Prefix: "klf200"}
//	topics.State("products.1.currentPosition")
//	// Returns: "klf200/state/products/1/currentPosition"
type Topics struct {
	Prefix string
}

// State returns the retained state topic of a store state.
//
// Example: klf200/state/products/1/currentPosition
func (t Topics) State(id string) string {
	return t.join(segmentState, id)
}

// Set returns the command topic of a store state.
//
// Example: klf200/set/products/1/targetPosition
func (t Topics) Set(id string) string {
	return t.join(segmentSet, id)
}

// AllSets returns a pattern matching every command topic.
//
// Pattern: klf200/set/#
func (t Topics) AllSets() string {
	return t.Prefix + "/" + segmentSet + "/#"
}

// BridgeStatus returns the online/offline status topic of the bridge.
//
// Example: klf200/bridge/status
func (t Topics) BridgeStatus() string {
	return t.Prefix + "/" + segmentBridge + "/status"
}

// SetID extracts the store ID from a command topic. ok is false for topics
// outside the command tree.
func (t Topics) SetID(topic string) (id string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Prefix+"/"+segmentSet+"/")
	if !found || rest == "" {
		return "", false
	}
	return strings.ReplaceAll(rest, "/", idSep), true
}

func (t Topics) join(segment, id string) string {
	return t.Prefix + "/" + segment + "/" + strings.ReplaceAll(id, idSep, "/")
}
