package chat

// State is a step of a single Handle invocation.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateComposing
	StateAwaitingModel
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateComposing:
		return "composing"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
