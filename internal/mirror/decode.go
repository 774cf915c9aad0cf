package mirror

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"github.com/nerrad567/klf200-bridge/internal/store"
)

// DecodeSet converts a set payload into a value for a state described by
// meta. Numbers are range-checked against meta's bounds.
func DecodeSet(payload []byte, meta store.StateMeta) (any, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}

	var r gjson.Result
	if gjson.Valid(text) {
		r = gjson.Parse(text)
		if r.IsObject() {
			r = r.Get("val")
			if !r.Exists() {
				return nil, fmt.Errorf("%w: object without val", ErrInvalidPayload)
			}
		}
	} else {
		r = gjson.Result{Type: gjson.String, Str: text, Raw: text}
	}

	switch meta.Type {
	case store.TypeNumber:
		return decodeNumber(r, meta)
	case store.TypeBoolean:
		return decodeBool(r)
	case store.TypeString:
		if r.Type == gjson.Null {
			return nil, fmt.Errorf("%w: null", ErrInvalidPayload)
		}
		return r.String(), nil
	default:
		return r.Value(), nil
	}
}

func decodeNumber(r gjson.Result, meta store.StateMeta) (any, error) {
	var f float64
	switch r.Type {
	case gjson.Number:
		f = r.Num
	case gjson.String:
		v, err := cast.ToFloat64E(strings.TrimSpace(r.Str))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidPayload, r.Str)
		}
		f = v
	default:
		return nil, fmt.Errorf("%w: %s is not a number", ErrInvalidPayload, r.Raw)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, f)
	}
	if meta.Min != nil && f < *meta.Min {
		return nil, fmt.Errorf("%w: %v below minimum %v", ErrInvalidPayload, f, *meta.Min)
	}
	if meta.Max != nil && f > *meta.Max {
		return nil, fmt.Errorf("%w: %v above maximum %v", ErrInvalidPayload, f, *meta.Max)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int(f), nil
	}
	return f, nil
}

func decodeBool(r gjson.Result) (any, error) {
	switch r.Type {
	case gjson.True, gjson.False:
		return r.Bool(), nil
	case gjson.Number:
		return r.Num != 0, nil
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(r.Str)) {
		case "on":
			return true, nil
		case "off":
			return false, nil
		}
		b, err := cast.ToBoolE(r.Str)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a boolean", ErrInvalidPayload, r.Str)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: %s is not a boolean", ErrInvalidPayload, r.Raw)
	}
}
