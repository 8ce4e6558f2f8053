package supervisor

// State is the lifecycle state of the spawned instance
type State string

const (
	StateIdle     State = "idle"     // No spawned process, ready to start
	StateStarting State = "starting" // Spawned, startup grace period in progress
	StateRunning  State = "running"  // Spawned process running
	StateStopping State = "stopping" // Graceful stop requested, waiting for exit
)

func (s State) String() string {
	return string(s)
}
