package domain

// ControlMessage is an inbound request from a UI component to the scheduler.
type ControlMessage string

const (
	MsgSyncQueue ControlMessage = "syncQueue"
	MsgForceSync ControlMessage = "forceSync"
	MsgStartSync ControlMessage = "startSync"
	MsgStopSync  ControlMessage = "stopSync"
)

func (m ControlMessage) Valid() bool {
	switch m {
	case MsgSyncQueue, MsgForceSync, MsgStartSync, MsgStopSync:
		return true
	}
	return false
}
