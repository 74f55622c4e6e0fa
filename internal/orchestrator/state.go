package orchestrator

// State is the orchestrator's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateProduction
	StateDevelopment
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProduction:
		return "production"
	case StateDevelopment:
		return "development"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}
