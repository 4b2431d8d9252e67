package minicluster

// State is where a MiniCluster is in its lifecycle. Transitions only go
// forward: NotStarted, Starting, then Running or Failed, then Stopped.
type State int

const (
	NotStarted State = iota
	Starting
	Running
	// Failed means Start returned an error. Whatever it had launched is still
	// managed and goes away on Stop.
	Failed
	Stopped
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Failed:
		return "failed"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}
