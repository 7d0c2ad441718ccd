package core

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateStreaming
	StateShuttingDown
)

var AllStates = []State{StateDisconnected, StateConnecting, StateStreaming, StateShuttingDown}

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

type Signal int

const (
	SignalConnect Signal = iota
	SignalSubscribed
	SignalConnectFailed
	SignalEvent
	SignalStreamClosed
	SignalShutdown
)

func (s Signal) String() string {
	switch s {
	case SignalConnect:
		return "connect"
	case SignalSubscribed:
		return "subscribed"
	case SignalConnectFailed:
		return "connect_failed"
	case SignalEvent:
		return "event"
	case SignalStreamClosed:
		return "stream_closed"
	case SignalShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Next is the watch loop transition function. ok is false when sig is not valid in s,
// in which case s is returned unchanged.
func Next(s State, sig Signal) (next State, ok bool) {
	if s == StateShuttingDown {
		return s, sig == SignalShutdown
	}
	if sig == SignalShutdown {
		return StateShuttingDown, true
	}

	switch {
	case s == StateDisconnected && sig == SignalConnect:
		return StateConnecting, true
	case s == StateConnecting && sig == SignalSubscribed:
		return StateStreaming, true
	case s == StateConnecting && sig == SignalConnectFailed:
		return StateDisconnected, true
	case s == StateStreaming && sig == SignalEvent:
		return StateStreaming, true
	case s == StateStreaming && sig == SignalStreamClosed:
		return StateDisconnected, true
	}
	return s, false
}
