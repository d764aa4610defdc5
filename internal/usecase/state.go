package usecase

// State is the scan loop's current phase.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateFiltering
	StateBuffering
	StateClassifying
	StatePersisting
	StateSleeping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateFetching:
		return "FETCHING"
	case StateFiltering:
		return "FILTERING"
	case StateBuffering:
		return "BUFFERING"
	case StateClassifying:
		return "CLASSIFYING"
	case StatePersisting:
		return "PERSISTING"
	case StateSleeping:
		return "SLEEPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}
