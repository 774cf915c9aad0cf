package store

import "time"

// Value types for StateMeta.Type.
const (
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeString  = "string"
)

// NodeKind distinguishes channels from states.
type NodeKind string

// Node kinds.
const (
	KindChannel NodeKind = "channel"
	KindState   NodeKind = "state"
)

// ChannelMeta describes a channel node.
type ChannelMeta struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// StateMeta describes a state node.
type StateMeta struct {
	Name   string            `json:"name"`
	Role   string            `json:"role"`
	Type   string            `json:"type"`
	Read   bool              `json:"read"`
	Write  bool              `json:"write"`
	Unit   string            `json:"unit,omitempty"`
	Min    *float64          `json:"min,omitempty"`
	Max    *float64          `json:"max,omitempty"`
	States map[string]string `json:"states,omitempty"`
	Def    any               `json:"def,omitempty"`
	Desc   string            `json:"desc,omitempty"`
}

// State is the current value of a state node.
type State struct {
	Value     any       `json:"val"`
	Ack       bool      `json:"ack"`
	Timestamp time.Time `json:"ts"`
}

// Change is one accepted write.
type Change struct {
	ID    string
	State State
}

// Record is one persisted node, as loaded by a Persister.
type Record struct {
	ID      string
	Kind    NodeKind
	Channel ChannelMeta
	Meta    StateMeta
	State   *State
}

// Bounds returns a pointer pair for StateMeta.Min and StateMeta.Max.
func Bounds(minV, maxV float64) (*float64, *float64) {
	return &minV, &maxV
}
