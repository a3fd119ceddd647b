package intctrl

import (
	"fmt"
	"log/slog"
	"sync"
)

// LineRangeType classifies a registered run of interrupt lines.
type LineRangeType uint8

const (
	// LinesStandardPin are ordinary controller input pins with GSIs.
	LinesStandardPin LineRangeType = iota

	// LinesProcessorLocal are fixed per-processor slots.
	LinesProcessorLocal

	// LinesSoftwareOnly are artificial lines with no hardware pin, such
	// as the IPI line.
	LinesSoftwareOnly

	// LinesOutput are lines a controller drives into another controller
	// or the processor.
	LinesOutput
)

func (t LineRangeType) String() string {
	switch t {
	case LinesStandardPin:
		return "standard-pin"
	case LinesProcessorLocal:
		return "processor-local"
	case LinesSoftwareOnly:
		return "software-only"
	case LinesOutput:
		return "output"
	}
	return fmt.Sprintf("line-range-type(%d)", uint8(t))
}

// GSINone marks a line range with no global system interrupt numbering.
const GSINone uint32 = 0xFFFFFFFF

// LineRange describes a contiguous run of lines [First, Last) on one
// controller.
type LineRange struct {
	Type       LineRangeType
	Controller uint32
	First      int32
	Last       int32

	// GSIBase numbers the first line of a standard-pin range, or GSINone.
	GSIBase uint32

	// OutputController names the destination controller of an output
	// range.
	OutputController uint32
}

// ControllerDescription is the registration record for one physical chip.
type ControllerDescription struct {
	Controller      Controller
	Identifier      uint32
	ProcessorCount  int
	PriorityCount   int
	SaveContextSize int
}

// Registry collects controller and line registrations made at discovery
// time. It stands in for the kernel's generic interrupt layer.
type Registry struct {
	log *slog.Logger

	mu          sync.Mutex
	controllers []ControllerDescription
	lines       []LineRange
}

// NewRegistry returns an empty registry logging through log. A nil log
// uses the default logger.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{log: log}
}

// RegisterController records a controller description. Identifiers must be
// unique across chips.
func (r *Registry) RegisterController(desc ControllerDescription) error {
	if desc.Controller == nil {
		return fmt.Errorf("register controller %#x: %w: nil controller", desc.Identifier, ErrInvalidParameter)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.controllers {
		if existing.Identifier == desc.Identifier {
			return fmt.Errorf("register controller %#x: %w: duplicate identifier", desc.Identifier, ErrInvalidParameter)
		}
	}
	r.controllers = append(r.controllers, desc)

	r.log.Info("registered interrupt controller",
		"id", desc.Identifier,
		"processors", desc.ProcessorCount,
		"priorities", desc.PriorityCount)

	return nil
}

// RegisterLines records a line-range description for an already registered
// controller.
func (r *Registry) RegisterLines(lr LineRange) error {
	if lr.Last <= lr.First {
		return fmt.Errorf("register lines [%d, %d): %w: empty range", lr.First, lr.Last, ErrInvalidParameter)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, lr)

	r.log.Debug("registered interrupt lines",
		"controller", lr.Controller,
		"type", lr.Type.String(),
		"first", lr.First,
		"last", lr.Last,
		"gsiBase", lr.GSIBase)

	return nil
}

// Controllers returns a snapshot of the registered controllers.
func (r *Registry) Controllers() []ControllerDescription {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ControllerDescription, len(r.controllers))
	copy(out, r.controllers)
	return out
}

// Lines returns a snapshot of the registered line ranges.
func (r *Registry) Lines() []LineRange {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LineRange, len(r.lines))
	copy(out, r.lines)
	return out
}

// EndOfInterrupt signals completion of the given vector on the identified
// controller. The fast path is preferred when the controller offers both.
func (r *Registry) EndOfInterrupt(controllerID, vector uint32) error {
	r.mu.Lock()
	var ctrl Controller
	for _, desc := range r.controllers {
		if desc.Identifier == controllerID {
			ctrl = desc.Controller
			break
		}
	}
	r.mu.Unlock()

	if ctrl == nil {
		return fmt.Errorf("end of interrupt on controller %#x: %w", controllerID, ErrNotInitialized)
	}

	if fast, ok := ctrl.(FastEOISender); ok {
		fast.FastEndOfInterrupt()
		return nil
	}
	if eoi, ok := ctrl.(EOISender); ok {
		eoi.EndOfInterrupt(vector)
		return nil
	}
	return fmt.Errorf("end of interrupt on controller %#x: %w", controllerID, ErrNotImplemented)
}
