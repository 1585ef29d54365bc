package enum

type ConnectionState string

const (
	ConnectionDisconnected  ConnectionState = "disconnected"
	ConnectionConnecting    ConnectionState = "connecting"
	ConnectionAuthenticated ConnectionState = "authenticated"
	ConnectionFaulted       ConnectionState = "faulted"
)

func (s ConnectionState) String() string {
	return string(s)
}

type LoopState string

const (
	LoopIdle       LoopState = "idle"
	LoopConnecting LoopState = "connecting"
	LoopPolling    LoopState = "polling"
	LoopSleeping   LoopState = "sleeping"
	LoopStopped    LoopState = "stopped"
)

func (s LoopState) String() string {
	return string(s)
}
