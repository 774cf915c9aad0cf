package reconcile

import "github.com/nerrad567/klf200-bridge/internal/transcode"

// Enum kinds shared by the catalogs.
var (
	nodeVariationKind = transcode.Enum("nodeVariation", map[int]string{
		0: "NotSet", 1: "TopHung", 2: "Kip", 3: "FlatRoof", 4: "SkyLight",
	})

	powerSaveModeKind = transcode.Enum("powerSaveMode", map[int]string{
		0: "AlwaysAlive", 1: "LowPowerMode",
	})

	runStatusKind = transcode.Enum("runStatus", map[int]string{
		0: "ExecutionCompleted", 1: "ExecutionFailed", 2: "ExecutionActive",
	})

	nodeStateKind = transcode.Enum("state", map[int]string{
		0: "NonExecuting", 1: "Error", 2: "NotUsed", 3: "WaitingForPower",
		4: "Executing", 5: "Done", 255: "Unknown",
	})

	velocityKind = transcode.Enum("velocity", map[int]string{
		0: "Default", 1: "Silent", 2: "Fast", 255: "NotAvailable",
	})

	groupTypeKind = transcode.Enum("groupType", map[int]string{
		0: "UserGroup", 1: "Room", 2: "House", 3: "All",
	})

	statusReplyKind = transcode.Enum("statusReply", map[int]string{
		0: "Unknown", 1: "Ok", 2: "NoContact", 3: "ManuallyOperated",
		4: "Blocked", 5: "WrongSystemKey", 6: "PriorityLevelLocked",
		7: "ReachedWrongPosition", 8: "ErrorDuringExecution", 9: "NoExecution",
		10: "Calibrating", 11: "PowerConsumptionTooHigh", 12: "PowerConsumptionTooLow",
		13: "LockPositionOpen", 14: "MotionTimeTooLongCommunicationEnded",
		15: "ThermalProtection", 16: "ProductNotOperational", 17: "FilterMaintenanceNeeded",
		18: "BatteryLevel", 19: "TargetModified", 20: "ModeNotImplemented",
		21: "CommandIncompatibleToMovement", 22: "UserAction", 23: "DeadBoltError",
		24: "AutomaticCycleEngaged", 25: "WrongLoadConnected", 26: "ColourNotReachable",
		27: "TargetNotReachable", 28: "BadIndexReceived", 29: "CommandOverruled",
		30: "NodeWaitingForPower",
		223: "InformationCode", 224: "ParameterLimited", 225: "LimitationByLocalUser",
		226: "LimitationByUser", 227: "LimitationByRain", 228: "LimitationByTimer",
		230: "LimitationByUps", 231: "LimitationByUnknownDevice", 234: "LimitationBySAAC",
		235: "LimitationByWind", 236: "LimitationByMyself", 237: "LimitationByAutomaticCycle",
		238: "LimitationByEmergency",
	})

	typeIDKind = transcode.Enum("typeID", map[int]string{
		0: "NO_TYPE", 1: "VenetianBlind", 2: "RollerShutter", 3: "Awning",
		4: "WindowOpener", 5: "GarageOpener", 6: "Light", 7: "GateOpener",
		8: "RollingDoorOpener", 9: "Lock", 10: "Blind", 12: "Beacon",
		13: "DualShutter", 14: "HeatingTemperatureInterface", 15: "OnOffSwitch",
		16: "HorizontalAwning", 17: "ExternalVentianBlind", 18: "LouvreBlind",
		19: "CurtainTrack", 20: "VentilationPoint", 21: "ExteriorHeating",
		22: "HeatPump", 23: "IntrusionAlarm", 24: "SwingingShutter",
	})

	subTypeKind = transcode.Integer("subType", 0, 0x3F)
)

// channelRole maps an actuator type to the role of its channel.
func channelRole(typeID int) string {
	switch typeID {
	case 1, 2, 10, 13, 17, 18, 19, 24:
		return "blind"
	case 3, 16:
		return "awning"
	case 4, 20:
		return "window"
	case 5, 7, 8:
		return "gate"
	case 6:
		return "light"
	case 9:
		return "lock"
	default:
		return ""
	}
}

// levelRole maps an actuator type to the role of its position states.
func levelRole(typeID int) string {
	if role := channelRole(typeID); role != "" {
		return "level." + role
	}
	return "level"
}
