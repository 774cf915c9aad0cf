// Package transcode maps gateway-native value encodings to the semantic values
// kept in the state store, and back.
//
// Every conversion is pure and total over the domain of its Kind. Input outside
// that domain fails with ErrInvalidValue; the caller decides whether the update
// is dropped.
//
// # Kinds
//
//   - Percent: device fraction in [0,1] <-> store integer percentage 0-100 (rounded)
//   - Integer: bounded integers such as raw 16-bit positions or order numbers
//   - Enum: integer codes restricted to a label table
//   - Bool, Text: pass-through with type coercion
//   - Timestamp: time.Time <-> RFC 3339 string
//   - HexBytes: serial numbers <-> "aa:bb:cc" strings
//   - JSON: structured values (product lists) <-> JSON text
//
// Percentage round trips lose sub-percent precision; this is accepted.
package transcode
