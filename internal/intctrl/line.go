// Package intctrl defines the architecture-neutral interrupt controller
// interface: interrupt line and target descriptions, line state, the
// Controller contract implemented by each hardware family, and the registry
// that collects controller and line-range registrations at discovery time.
package intctrl

import "fmt"

// Line identifies one interrupt source or sink. It is a sealed sum type:
// a line is either a global system interrupt number or a line local to a
// specific controller.
type Line interface {
	isLine()
	String() string
}

// GSI is a platform-wide interrupt number, independent of the owning chip.
type GSI uint32

func (GSI) isLine()          {}
func (g GSI) String() string { return fmt.Sprintf("gsi:%d", uint32(g)) }

// LocalLine names a line on a specific controller. Negative and small line
// numbers address fixed processor-local slots; lines at and above a
// controller's pin offset address its shared redirection table.
type LocalLine struct {
	Controller uint32
	Line       int32
}

func (LocalLine) isLine() {}
func (l LocalLine) String() string {
	return fmt.Sprintf("ctrl:%#x line:%d", l.Controller, l.Line)
}

// CPUController is the pseudo controller identifier naming the processor
// itself as the destination of output lines.
const CPUController uint32 = 0xFFFFFFFF

// Output lines of the processor on this architecture.
const (
	CPULineNormal int32 = 0
	CPULineNMI    int32 = 1
	CPULineSMI    int32 = 2
	CPULineExtInt int32 = 3

	CPULineFirst = CPULineNormal
	CPULineLast  = CPULineExtInt + 1
)

// CPULine returns the output line for the given processor input pin.
func CPULine(line int32) Line {
	return LocalLine{Controller: CPUController, Line: line}
}
