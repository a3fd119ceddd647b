package apic

import (
	"fmt"

	"github.com/meridian-os/platform/internal/intctrl"
)

// convertToRTE maps an abstract line state to the 64-bit redirection table
// format, split into its high (destination) and low (control) halves. The
// same encoding serves the I/O APIC redirection table, the local vector
// table, and MSI message construction.
//
// A disabled state always yields the canonical masked pattern regardless of
// every other field. The function is pure except for reading the local
// identifier when the target is Self.
func (p *Platform) convertToRTE(state *intctrl.LineState) (high, low uint32, err error) {
	if !state.Enabled() {
		return 0, maskedRTE, nil
	}

	low = uint32(state.Vector)

	mode, err := outputDeliveryMode(state.Output, state.Flags)
	if err != nil {
		return 0, 0, err
	}
	low |= mode

	switch t := state.Target.(type) {
	case intctrl.All:
		high = 0xFF << destinationShift

	case intctrl.Physical:
		high = uint32(t) << destinationShift

	case intctrl.Self:
		win, werr := p.localWindow()
		if werr != nil {
			return 0, 0, werr
		}
		high = readLocal(win, regID)

	case intctrl.LogicalCluster:
		high = (t.ID<<clusterShift | t.Mask) << destinationShift
		low |= logicalDelivery

	case intctrl.LogicalFlat:
		high = uint32(t) << destinationShift
		low |= logicalDelivery

	case intctrl.AllButSelf:
		// Legal bit pattern, but only meaningful in the command
		// register; persistent RTEs must not carry a shorthand.
		low |= shorthandAllButSelf

	default:
		return 0, 0, fmt.Errorf("apic: convert line state: %w: no target", intctrl.ErrInvalidParameter)
	}

	if state.Mode == intctrl.ModeLevel {
		low |= levelTriggered
	}
	if state.Polarity == intctrl.ActiveLow {
		low |= activeLow
	}

	return high, low, nil
}

// outputDeliveryMode classifies a state's output line into delivery mode
// bits. Only the processor's Normal, NMI, and SMI inputs are expressible.
func outputDeliveryMode(output intctrl.Line, flags intctrl.StateFlags) (uint32, error) {
	local, ok := output.(intctrl.LocalLine)
	if !ok || local.Controller != intctrl.CPUController {
		return 0, fmt.Errorf("apic: output %v: %w", output, intctrl.ErrInvalidParameter)
	}

	switch local.Line {
	case intctrl.CPULineNormal:
		if flags&intctrl.FlagLowestPriority != 0 {
			return deliverLowest, nil
		}
		return deliverFixed, nil

	case intctrl.CPULineNMI:
		return deliverNMI, nil

	case intctrl.CPULineSMI:
		return deliverSMI, nil
	}

	return 0, fmt.Errorf("apic: output %s: %w", output, intctrl.ErrInvalidParameter)
}
