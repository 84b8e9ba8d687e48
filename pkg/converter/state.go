package converter

// State is a step of the conversion state machine
type State int

const (
	StateIdle State = iota
	StateUploading
	StateProcessing
	StateTranscribing
	StateGenerating
	StateComplete
	StateFailed
)

// String returns the lower-case stage name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateProcessing:
		return "processing"
	case StateTranscribing:
		return "transcribing"
	case StateGenerating:
		return "generating"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions can happen
func (s State) IsTerminal() bool {
	return s == StateComplete || s == StateFailed
}

// Percent is the progress value announced when entering the state
func (s State) Percent() int {
	switch s {
	case StateUploading:
		return 20
	case StateProcessing:
		return 40
	case StateTranscribing:
		return 70
	case StateGenerating:
		return 90
	case StateComplete:
		return 100
	default:
		return 0
	}
}

// canTransition allows forward moves through the pipeline (skipping is
// allowed for the fallback path) and Failed from any non-terminal state.
func (s State) canTransition(next State) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	return next > s
}

// Progress is emitted to observers on every transition
type Progress struct {
	Stage   State  `json:"stage"`
	Percent int    `json:"progress"`
	Message string `json:"message"`
}

// Observer receives progress events in emission order
type Observer interface {
	OnProgress(p Progress)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(p Progress)

// OnProgress calls f(p)
func (f ObserverFunc) OnProgress(p Progress) {
	f(p)
}

// Recorder keeps every event it receives
type Recorder struct {
	Events []Progress
}

// OnProgress appends p
func (r *Recorder) OnProgress(p Progress) {
	r.Events = append(r.Events, p)
}

// Stages returns the recorded stages in order
func (r *Recorder) Stages() []State {
	stages := make([]State, len(r.Events))
	for i, e := range r.Events {
		stages[i] = e.Stage
	}
	return stages
}

// Last returns the most recent event
func (r *Recorder) Last() (Progress, bool) {
	if len(r.Events) == 0 {
		return Progress{}, false
	}
	return r.Events[len(r.Events)-1], true
}
