package harness

// State is the furthest verification step a run has passed.
type State int

// States in the order a run passes through them.
const (
	NotStarted State = iota
	ImportVerified
	EDAVerified
	EncoderVerified
	SplitVerified
	TrainVerified
	Done
)

var stateNames = [...]string{
	NotStarted:      "not-started",
	ImportVerified:  "import-verified",
	EDAVerified:     "eda-verified",
	EncoderVerified: "encoder-verified",
	SplitVerified:   "split-verified",
	TrainVerified:   "train-verified",
	Done:            "done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Next returns the state that follows s. Done is terminal.
func (s State) Next() State {
	if s >= Done {
		return Done
	}
	return s + 1
}
