package intctrl

// Processor is a read-only snapshot of one processor from enumeration.
type Processor struct {
	PhysicalID    uint32
	LogicalFlatID uint32
	FirmwareID    uint32
	Flags         ProcessorFlags
	ParkedAddress uint64
}

// ProcessorFlags describes the state of an enumerated processor.
type ProcessorFlags uint32

const (
	// ProcessorPresent marks a processor the firmware reports as usable.
	ProcessorPresent ProcessorFlags = 1 << iota
)

// Message is one MSI/MSI-X (address, data) pair.
type Message struct {
	Address uint64
	Data    uint64
}

// Controller is the contract every interrupt controller family implements.
// One Controller instance exists per physical chip; operations on the
// processor-local unit may be called through any chip's instance and always
// act on the calling processor.
//
// Calls from the same processor are assumed serialized by the caller; the
// per-processor command path carries no internal lock.
type Controller interface {
	// InitializeIoUnit maps the chip, discovers its line count, reports
	// its lines, and masks every line so nothing fires before explicit
	// configuration.
	InitializeIoUnit() error

	// SetLineState configures or masks one line. The optional resource
	// data is controller-specific and may be nil.
	SetLineState(line Line, state *LineState, resourceData []byte) error

	// MaskLine changes exactly the mask state of a previously configured
	// line, leaving vector, destination, and mode untouched. This is the
	// fast runtime path, distinct from full reprogramming.
	MaskLine(line Line, enable bool)

	// RequestInterrupt generates a software-requested interrupt on the
	// given line toward the target processors.
	RequestInterrupt(line Line, vector uint32, target Target) error

	// EnumerateProcessors fills buf with a description of every processor
	// and returns the count. If buf cannot hold every entry it returns
	// ErrBufferTooSmall and writes nothing.
	EnumerateProcessors(buf []Processor) (int, error)

	// InitializeLocalUnit resets and enables the calling processor's
	// local unit and returns its hardware identifier.
	InitializeLocalUnit() (uint32, error)

	// SetLocalUnitAddressing sets the calling processor's addressing
	// mode. Returns ErrNotSupported if the hardware refuses the
	// configuration.
	SetLocalUnitAddressing(target Target) error

	// StartProcessor sends the start sequence directing the identified
	// processor to begin executing at the given physical address. Success
	// means the commands were accepted locally, not that the target is
	// running.
	StartProcessor(id uint32, jumpAddress uint64) error

	// GetMessageInformation computes count contiguous message-signaled
	// interrupt pairs starting at vector. It is stateless and independent
	// of any particular chip.
	GetMessageInformation(vector, count uint64, target Target, output Line, flags StateFlags) ([]Message, error)
}

// FastEOISender is implemented by controllers with a cheap end-of-interrupt
// path that needs no vector. The registry prefers it over EOISender.
type FastEOISender interface {
	FastEndOfInterrupt()
}

// EOISender is implemented by controllers whose end-of-interrupt needs the
// completed vector.
type EOISender interface {
	EndOfInterrupt(vector uint32)
}

// InterruptBeginner is implemented by controllers that must be told when
// interrupt dispatch begins.
type InterruptBeginner interface {
	BeginInterrupt() (vector uint32, err error)
}

// StateSaver is implemented by controllers with per-processor context that
// survives deep power transitions.
type StateSaver interface {
	SaveState(buf []byte) error
	RestoreState(buf []byte) error
}
