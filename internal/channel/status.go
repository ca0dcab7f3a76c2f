package channel

// Status is the lifecycle state of the channel.
type Status int

const (
	// StatusStopped means no socket handle is live.
	StatusStopped Status = iota
	// StatusStarting means a socket exists and the handshake is in flight.
	StatusStarting
	// StatusStarted means the agent session reported it finished initializing.
	StatusStarted
)

// String returns the string representation of a Status.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "STOPPED"
	case StatusStarting:
		return "STARTING"
	case StatusStarted:
		return "STARTED"
	default:
		return "UNKNOWN"
	}
}
