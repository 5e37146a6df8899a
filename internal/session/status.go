package session

// StatusCode is the outcome of ReceiveNextMessage.
type StatusCode int

const (
	StatusOK StatusCode = iota
	StatusTimeout
	StatusDisconnected
)

func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTimeout:
		return "timeout"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
