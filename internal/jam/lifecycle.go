package jam

// Status is the generation lifecycle state of one channel. Transitions are
// total-ordered per channel and only the coordinator performs them.
type Status int

const (
	StatusIdle Status = iota
	StatusRequesting
	StatusGenerating
	StatusSwapping
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRequesting:
		return "requesting"
	case StatusGenerating:
		return "generating"
	case StatusSwapping:
		return "swapping"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Active reports whether the channel has work in flight. Failed and
// Cancelled are terminal-transient and count as inactive.
func (s Status) Active() bool {
	switch s {
	case StatusRequesting, StatusGenerating, StatusSwapping:
		return true
	}
	return false
}

// validNext encodes the per-channel state machine:
//
//	Idle -> Requesting -> Generating -> Swapping -> Idle   (success)
//	Requesting -> Idle                                      (arbiter busy)
//	Generating -> Failed -> Idle                            (service error)
//	Requesting|Generating -> Cancelled -> Idle              (explicit cancel)
var validNext = map[Status][]Status{
	StatusIdle:       {StatusRequesting},
	StatusRequesting: {StatusGenerating, StatusIdle, StatusCancelled},
	StatusGenerating: {StatusSwapping, StatusFailed, StatusCancelled},
	StatusSwapping:   {StatusIdle},
	StatusFailed:     {StatusIdle},
	StatusCancelled:  {StatusIdle},
}

// canTransition reports whether from -> to is a legal lifecycle step.
func canTransition(from, to Status) bool {
	for _, s := range validNext[from] {
		if s == to {
			return true
		}
	}
	return false
}
