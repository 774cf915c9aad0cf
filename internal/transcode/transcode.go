package transcode

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Conversion constants.
const (
	// percentScale converts a device fraction into a store percentage.
	percentScale = 100

	// MaxRaw is the largest raw 16-bit position or parameter value.
	MaxRaw = 0xFFFF

	// MaxByte is the largest single-byte code.
	MaxByte = 0xFF
)

type kindID int

const (
	kindPercent kindID = iota + 1
	kindInteger
	kindEnum
	kindBool
	kindText
	kindTimestamp
	kindHexBytes
	kindJSON
)

// Kind declares the domain of a value and how it is encoded on each side.
// Construct kinds with the package variables or Integer and Enum.
type Kind struct {
	id     kindID
	name   string
	min    int
	max    int
	labels map[int]string
}

// Predefined kinds.
var (
	Percent   = Kind{id: kindPercent, name: "percent", min: 0, max: percentScale}
	Raw       = Integer("raw", 0, MaxRaw)
	Byte      = Integer("byte", 0, MaxByte)
	Bool      = Kind{id: kindBool, name: "bool"}
	Text      = Kind{id: kindText, name: "text"}
	Timestamp = Kind{id: kindTimestamp, name: "timestamp"}
	HexBytes  = Kind{id: kindHexBytes, name: "hexbytes"}
	JSON      = Kind{id: kindJSON, name: "json"}
)

// Integer returns a kind for integers in [minValue, maxValue].
func Integer(name string, minValue, maxValue int) Kind {
	return Kind{id: kindInteger, name: name, min: minValue, max: maxValue}
}

// Enum returns a kind whose domain is exactly the codes of the label table.
func Enum(name string, labels map[int]string) Kind {
	return Kind{id: kindEnum, name: name, labels: labels}
}

// Name returns the kind's name, used in log fields.
func (k Kind) Name() string {
	return k.name
}

// ValueType returns the store value type: "number", "string" or "boolean".
func (k Kind) ValueType() string {
	switch k.id {
	case kindPercent, kindInteger, kindEnum:
		return "number"
	case kindBool:
		return "boolean"
	default:
		return "string"
	}
}

// Bounds returns the numeric range of the store value, if any.
func (k Kind) Bounds() (minValue, maxValue float64, ok bool) {
	switch k.id {
	case kindPercent, kindInteger:
		return float64(k.min), float64(k.max), true
	case kindEnum:
		if len(k.labels) == 0 {
			return 0, 0, false
		}
		codes := k.codes()
		return float64(codes[0]), float64(codes[len(codes)-1]), true
	default:
		return 0, 0, false
	}
}

// States returns the enum label table keyed by the decimal code, the shape
// expected by store metadata. It returns nil for non-enum kinds.
func (k Kind) States() map[string]string {
	if k.id != kindEnum {
		return nil
	}
	out := make(map[string]string, len(k.labels))
	for code, label := range k.labels {
		out[strconv.Itoa(code)] = label
	}
	return out
}

// Label returns the label of an enum code.
func (k Kind) Label(code int) (string, bool) {
	label, ok := k.labels[code]
	return label, ok
}

func (k Kind) codes() []int {
	codes := make([]int, 0, len(k.labels))
	for code := range k.labels {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// ToStore converts a device-native value into its store representation.
func ToStore(k Kind, raw any) (any, error) {
	switch k.id {
	case kindPercent:
		f, err := cast.ToFloat64E(raw)
		if err != nil || math.IsNaN(f) || f < 0 || f > 1 {
			return nil, invalid(k, raw)
		}
		return int(math.Round(f * percentScale)), nil

	case kindInteger, kindEnum:
		return k.checkInt(raw)

	case kindBool:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return nil, invalid(k, raw)
		}
		return b, nil

	case kindText:
		s, err := cast.ToStringE(raw)
		if err != nil {
			return nil, invalid(k, raw)
		}
		return s, nil

	case kindTimestamp:
		switch v := raw.(type) {
		case time.Time:
			return v.UTC().Format(time.RFC3339), nil
		case string:
			if _, err := time.Parse(time.RFC3339, v); err != nil {
				return nil, invalid(k, raw)
			}
			return v, nil
		}
		return nil, invalid(k, raw)

	case kindHexBytes:
		b, ok := raw.([]byte)
		if !ok {
			return nil, invalid(k, raw)
		}
		return formatHex(b), nil

	case kindJSON:
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, invalid(k, raw)
		}
		return string(data), nil
	}

	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidValue, k.name)
}

// ToDevice converts a store value into the device-native encoding.
func ToDevice(k Kind, value any) (any, error) {
	switch k.id {
	case kindPercent:
		f, err := cast.ToFloat64E(value)
		if err != nil || math.IsNaN(f) || f < 0 || f > percentScale {
			return nil, invalid(k, value)
		}
		return f / percentScale, nil

	case kindInteger, kindEnum:
		return k.checkInt(value)

	case kindBool:
		b, err := cast.ToBoolE(value)
		if err != nil {
			return nil, invalid(k, value)
		}
		return b, nil

	case kindText:
		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, invalid(k, value)
		}
		return s, nil

	case kindTimestamp:
		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, invalid(k, value)
		}
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, invalid(k, value)
		}
		return ts, nil

	case kindHexBytes:
		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, invalid(k, value)
		}
		b, err := hex.DecodeString(strings.ReplaceAll(s, ":", ""))
		if err != nil {
			return nil, invalid(k, value)
		}
		return b, nil

	case kindJSON:
		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, invalid(k, value)
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, invalid(k, value)
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidValue, k.name)
}

// checkInt coerces v to an int and checks it against the kind's domain.
// Fractional numbers are rejected rather than truncated.
func (k Kind) checkInt(v any) (int, error) {
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, invalid(k, v)
	}
	n := int(f)

	if k.id == kindEnum {
		if _, ok := k.labels[n]; !ok {
			return 0, invalid(k, v)
		}
		return n, nil
	}

	if n < k.min || n > k.max {
		return 0, invalid(k, v)
	}
	return n, nil
}

func invalid(k Kind, v any) error {
	return fmt.Errorf("%w: %v (%T) for kind %s", ErrInvalidValue, v, v, k.name)
}

func formatHex(b []byte) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = hex.EncodeToString([]byte{c})
	}
	return strings.Join(parts, ":")
}
