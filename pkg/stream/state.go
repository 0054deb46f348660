package stream

// State is the lifecycle of a server-push connection.
type State int32

const (
	Disconnected State = iota
	Connecting
	Streaming
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// MarshalText lets State appear as a string in JSON status messages.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Subscription is a live server-push connection. Handlers registered with
// OnMessage receive each event payload in delivery order. Close releases the
// connection; calling it more than once is harmless.
type Subscription interface {
	OnMessage(func([]byte))
	Close() error
}

// StateNotifier is implemented by subscriptions that report lifecycle
// changes.
type StateNotifier interface {
	OnState(func(State))
}
