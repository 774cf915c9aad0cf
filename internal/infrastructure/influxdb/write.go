package influxdb

import (
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/spf13/cast"
)

// Measurement holds every recorded state value.
const Measurement = "klf200_state"

// StatePoint builds the point recording value for the store state id.
//
// Numbers are stored in the float field "value", booleans in the boolean
// field "state". The state ID is split into tags so series can be filtered
// per collection or object:
//
//	products.1.currentPosition → namespace=products object=1 field=currentPosition
//
// Parameters:
//   - id: Store state ID
//   - value: The state value
//   - ts: The state timestamp
//
// Returns:
//   - *write.Point: The point, or nil when value is neither numeric nor boolean
//   - bool: Whether a point was built
func StatePoint(id string, value any, ts time.Time) (*write.Point, bool) {
	fields := make(map[string]interface{}, 1)
	switch v := value.(type) {
	case bool:
		fields["state"] = v
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		fields["value"] = cast.ToFloat64(v)
	default:
		return nil, false
	}

	return write.NewPoint(Measurement, stateTags(id), fields, ts), true
}

func stateTags(id string) map[string]string {
	tags := map[string]string{"id": id}
	parts := strings.Split(id, ".")
	switch len(parts) {
	case 1:
		tags["field"] = parts[0]
	case 2:
		tags["namespace"] = parts[0]
		tags["field"] = parts[1]
	default:
		tags["namespace"] = parts[0]
		tags["object"] = strings.Join(parts[1:len(parts)-1], ".")
		tags["field"] = parts[len(parts)-1]
	}
	return tags
}

// WriteState records a state value. The write is non-blocking; points are
// batched and sent asynchronously.
//
// Returns:
//   - bool: false when the client is disconnected or the value is not recordable
//
// Example:
//
//	client.WriteState("products.1.currentPosition", 50, time.Now())
func (c *Client) WriteState(id string, value any, ts time.Time) bool {
	if !c.IsConnected() {
		return false
	}

	point, ok := StatePoint(id, value, ts)
	if !ok {
		return false
	}
	c.writeAPI.WritePoint(point)
	return true
}
