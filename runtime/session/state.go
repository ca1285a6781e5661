package session

// State is the externally visible phase of a call session.
type State int32

const (
	// StateIdle means no STT stream is open or opening.
	StateIdle State = iota
	// StateListening means an STT stream is open or opening and no
	// response is in flight.
	StateListening
	// StateResponding means a final transcript is being answered.
	StateResponding
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateResponding:
		return "responding"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
