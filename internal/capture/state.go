package capture

// State is a CaptureSession state.
type State int

// Session states.
const (
	StateIdle State = iota
	StatePermissionPending
	StatePermissionDenied
	StatePreviewBinding
	StatePreviewActive
	StateCapturing
	StateCaptured
	StateSaved
	StateCaptureError
)

var stateNames = map[State]string{
	StateIdle:              "idle",
	StatePermissionPending: "permission_pending",
	StatePermissionDenied:  "permission_denied",
	StatePreviewBinding:    "preview_binding",
	StatePreviewActive:     "preview_active",
	StateCapturing:         "capturing",
	StateCaptured:          "captured",
	StateSaved:             "saved",
	StateCaptureError:      "capture_error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StatePermissionDenied || s == StateSaved || s == StateCaptureError
}

// Active reports whether s is a non-terminal state other than Idle.
func (s State) Active() bool {
	return s != StateIdle && !s.Terminal()
}

// transitions lists the legal successors of each state. Cancel (any active
// state to Idle) is handled separately.
var transitions = map[State][]State{
	StateIdle:              {StatePermissionPending},
	StatePermissionPending: {StatePreviewBinding, StatePermissionDenied},
	StatePreviewBinding:    {StatePreviewActive, StateCaptureError},
	StatePreviewActive:     {StateCapturing},
	StateCapturing:         {StateCaptured, StateCaptureError},
	StateCaptured:          {StateSaved, StateCaptureError},
}

// canTransition reports whether from -> to is a legal transition.
func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
