package supervisor

// State is the supervisor lifecycle phase. It only ever moves forward.
type State int32

const (
	StateInit State = iota
	StateSpawning
	StateRunning
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateSpawning:
		return "spawning"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Shutdown triggers, used in log records and metrics labels.
const (
	TriggerExit   = "exit"
	TriggerSignal = "signal"
	TriggerProbe  = "probe"
	TriggerStream = "stream"
	TriggerFault  = "fault"
	TriggerSpawn  = "spawn"
)
