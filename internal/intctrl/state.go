package intctrl

// TriggerMode selects edge or level signalling for a line.
type TriggerMode uint8

const (
	ModeEdge TriggerMode = iota
	ModeLevel
)

// Polarity selects the active signal level for a line.
type Polarity uint8

const (
	ActiveHigh Polarity = iota
	ActiveLow
)

// StateFlags is the option set carried by a LineState.
type StateFlags uint32

const (
	// FlagEnabled enables the line. When clear, every other field of the
	// state is ignored and the line is programmed fully masked.
	FlagEnabled StateFlags = 1 << iota

	// FlagLowestPriority delivers to the lowest-priority processor among
	// the targets rather than all of them.
	FlagLowestPriority

	// FlagWake marks the line as a system wake source.
	FlagWake

	// FlagDebounce requests input debouncing on controllers that have it.
	FlagDebounce
)

// LineState is the architecture-neutral configuration of one interrupt
// line, produced by the kernel and consumed by Controller.SetLineState.
type LineState struct {
	Mode             TriggerMode
	Polarity         Polarity
	Flags            StateFlags
	Vector           uint8
	Target           Target
	Output           Line
	HardwarePriority uint32
}

// Enabled reports whether the state asks for the line to be unmasked.
func (s *LineState) Enabled() bool {
	return s.Flags&FlagEnabled != 0
}
