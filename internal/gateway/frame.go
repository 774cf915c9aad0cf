package gateway

import "time"

// FrameKind classifies inbound frames. The set is closed: drivers map every
// protocol command onto one of these kinds, FrameOther included.
type FrameKind int

// Frame kinds.
const (
	FrameOther FrameKind = iota
	FrameGetStateConfirm
	FrameRebootConfirm
	FrameCommandConfirm
	FrameNodeStateNotification
	FrameNodeInformationNotification
	FrameRunStatusNotification
	FrameRemainingTimeNotification
	FrameSessionFinishedNotification
	FrameSceneInformationNotification
	FrameGroupInformationNotification
)

var frameKindNames = map[FrameKind]string{
	FrameOther:                        "other",
	FrameGetStateConfirm:              "get_state_cfm",
	FrameRebootConfirm:                "reboot_cfm",
	FrameCommandConfirm:               "command_cfm",
	FrameNodeStateNotification:        "node_state_ntf",
	FrameNodeInformationNotification:  "node_information_ntf",
	FrameRunStatusNotification:        "run_status_ntf",
	FrameRemainingTimeNotification:    "remaining_time_ntf",
	FrameSessionFinishedNotification:  "session_finished_ntf",
	FrameSceneInformationNotification: "scene_information_ntf",
	FrameGroupInformationNotification: "group_information_ntf",
}

// String returns the log name of the kind.
func (k FrameKind) String() string {
	if name, ok := frameKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Frame is an inbound protocol frame after decoding.
type Frame struct {
	Kind       FrameKind
	Command    uint16
	NodeID     int
	ReceivedAt time.Time
}
