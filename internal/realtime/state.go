package realtime

type ConnState int

const (
	StateConnecting ConnState = iota
	StateAuthenticated
	StateActive
	StateDisconnected
	StateReconnecting
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// EventNotification is the only event the server pushes.
const EventNotification = "notification"
