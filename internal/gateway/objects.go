package gateway

import (
	"context"

	"github.com/nerrad567/klf200-bridge/internal/event"
)

// Property names reported in PropertyChange notifications.
const (
	PropName                  = "Name"
	PropCategory              = "Category"
	PropTypeID                = "TypeID"
	PropSubType               = "SubType"
	PropCurrentPosition       = "CurrentPosition"
	PropCurrentPositionRaw    = "CurrentPositionRaw"
	PropTargetPosition        = "TargetPosition"
	PropTargetPositionRaw     = "TargetPositionRaw"
	PropFP1CurrentPositionRaw = "FP1CurrentPositionRaw"
	PropFP2CurrentPositionRaw = "FP2CurrentPositionRaw"
	PropFP3CurrentPositionRaw = "FP3CurrentPositionRaw"
	PropFP4CurrentPositionRaw = "FP4CurrentPositionRaw"
	PropNodeVariation         = "NodeVariation"
	PropOrder                 = "Order"
	PropPlacement             = "Placement"
	PropPowerSaveMode         = "PowerSaveMode"
	PropProductType           = "ProductType"
	PropRemainingTime         = "RemainingTime"
	PropRunStatus             = "RunStatus"
	PropSerialNumber          = "SerialNumber"
	PropState                 = "State"
	PropStatusReply           = "StatusReply"
	PropTimeStamp             = "TimeStamp"
	PropVelocity              = "Velocity"
	PropIsRunning             = "IsRunning"
	PropProducts              = "Products"
	PropGroupType             = "GroupType"
)

// PropertyChange is emitted when a device object property changes, either
// because of an inbound notification or a command completion.
type PropertyChange struct {
	Property string
	Value    any
}

// Object is the common surface of products, scenes and groups.
type Object interface {
	// ID returns the identifier, unique within the object's collection.
	ID() int

	// Name returns the user-assigned name.
	Name() string

	// Property returns the current value of a named property.
	Property(name string) (any, bool)

	// OnPropertyChanged registers a handler for property changes.
	OnPropertyChanged(fn func(PropertyChange)) *event.Subscription
}

// Product is a single actuator (window opener, roller shutter, ...).
type Product interface {
	Object

	// TypeID returns the actuator type code.
	TypeID() int

	// SetTargetPosition moves the product to a position fraction in [0,1].
	SetTargetPosition(ctx context.Context, fraction float64) error

	// SetOrder changes the custom sort order.
	SetOrder(ctx context.Context, order int) error

	// SetPlacement changes the placement (0 = house, otherwise room number).
	SetPlacement(ctx context.Context, placement int) error

	// SetNodeVariation changes the node variation code.
	SetNodeVariation(ctx context.Context, variation int) error

	// Stop stops the current movement.
	Stop(ctx context.Context) error

	// Wink lets the product signal itself.
	Wink(ctx context.Context) error
}

// Scene is a stored set of product positions that can be run as a whole.
type Scene interface {
	Object

	// IsRunning reports whether the scene is currently executing.
	IsRunning() bool

	// Run starts the scene with the given velocity code.
	Run(ctx context.Context, velocity int) error

	// Stop stops a running scene.
	Stop(ctx context.Context) error
}

// Group is a set of products addressed together.
type Group interface {
	Object

	// SetTargetPosition moves every member to a position fraction in [0,1].
	SetTargetPosition(ctx context.Context, fraction float64, velocity int) error

	// SetOrder changes the custom sort order.
	SetOrder(ctx context.Context, order int) error

	// SetPlacement changes the placement.
	SetPlacement(ctx context.Context, placement int) error

	// Stop stops every member.
	Stop(ctx context.Context) error
}

// Collection is the live set of one kind of device object.
type Collection[T Object] interface {
	// All returns the objects sorted by ID.
	All() []T

	// Get returns the object with the given ID.
	Get(id int) (T, bool)

	// OnAdded registers a handler for newly discovered or changed objects.
	OnAdded(fn func(id int)) *event.Subscription

	// OnRemoved registers a handler for objects the gateway no longer reports.
	OnRemoved(fn func(id int)) *event.Subscription
}

// SceneMember is one product entry of a scene.
type SceneMember struct {
	NodeID         int `json:"nodeId"`
	ParameterID    int `json:"parameterId"`
	ParameterValue int `json:"parameterValue"`
}

// Position encoding used by the gateway for main and functional parameters.
const (
	// RawPositionMax is the raw value of a fully closed (100%) position.
	RawPositionMax = 0xC800

	// RawUnknown marks a parameter the actuator does not report.
	RawUnknown = 0xF7FF
)

// FractionToRaw converts a position fraction in [0,1] to the raw encoding.
func FractionToRaw(fraction float64) int {
	return int(fraction*RawPositionMax + 0.5)
}

// RawToFraction converts a raw position to a fraction. Values outside the
// position range report ok=false.
func RawToFraction(raw int) (fraction float64, ok bool) {
	if raw < 0 || raw > RawPositionMax {
		return 0, false
	}
	return float64(raw) / RawPositionMax, true
}
