package apic

import (
	"errors"
	"testing"

	"github.com/meridian-os/platform/internal/intctrl"
)

func TestConvertToRTEDisabledIsCanonicalMask(t *testing.T) {
	rig := newTestRig(t, rigConfig{})

	// Every other field is ignored when the state is disabled; the result
	// is always the fully masked pattern.
	states := []*intctrl.LineState{
		{},
		{Vector: 0x41, Target: intctrl.Physical(5), Output: cpuNormal()},
		{
			Mode:     intctrl.ModeLevel,
			Polarity: intctrl.ActiveLow,
			Flags:    intctrl.FlagLowestPriority | intctrl.FlagWake,
			Vector:   0xFE,
			Target:   intctrl.All{},
			Output:   cpuNormal(),
		},
	}
	for _, state := range states {
		high, low, err := rig.platform.convertToRTE(state)
		if err != nil {
			t.Fatalf("convertToRTE(%+v): %v", state, err)
		}
		if high != 0 || low != maskedRTE {
			t.Errorf("convertToRTE(%+v) = %#x, %#x, want 0, %#x", state, high, low, uint32(maskedRTE))
		}
	}
}

func TestConvertToRTEEncodings(t *testing.T) {
	rig := newTestRig(t, rigConfig{})

	tests := []struct {
		name  string
		state *intctrl.LineState
		high  uint32
		low   uint32
	}{
		{
			name:  "physical fixed edge",
			state: enabledState(0x45, intctrl.Physical(3)),
			high:  3 << destinationShift,
			low:   0x45,
		},
		{
			name: "lowest priority",
			state: &intctrl.LineState{
				Flags:  intctrl.FlagEnabled | intctrl.FlagLowestPriority,
				Vector: 0x45,
				Target: intctrl.Physical(3),
				Output: cpuNormal(),
			},
			high: 3 << destinationShift,
			low:  0x45 | deliverLowest,
		},
		{
			name: "nmi output",
			state: &intctrl.LineState{
				Flags:  intctrl.FlagEnabled,
				Vector: 0x02,
				Target: intctrl.Physical(1),
				Output: intctrl.CPULine(intctrl.CPULineNMI),
			},
			high: 1 << destinationShift,
			low:  0x02 | deliverNMI,
		},
		{
			name: "smi output",
			state: &intctrl.LineState{
				Flags:  intctrl.FlagEnabled,
				Vector: 0x31,
				Target: intctrl.Physical(0),
				Output: intctrl.CPULine(intctrl.CPULineSMI),
			},
			high: 0,
			low:  0x31 | deliverSMI,
		},
		{
			name:  "logical flat",
			state: enabledState(0x50, intctrl.LogicalFlat(0x0C)),
			high:  0x0C << destinationShift,
			low:   0x50 | logicalDelivery,
		},
		{
			name:  "logical cluster",
			state: enabledState(0x51, intctrl.LogicalCluster{ID: 2, Mask: 3}),
			high:  (2<<clusterShift | 3) << destinationShift,
			low:   0x51 | logicalDelivery,
		},
		{
			name:  "all processors",
			state: enabledState(0x52, intctrl.All{}),
			high:  0xFF << destinationShift,
			low:   0x52,
		},
		{
			name:  "self reads local identifier",
			state: enabledState(0x53, intctrl.Self{}),
			high:  0, // simulated local unit has hardware identifier zero
			low:   0x53,
		},
		{
			name:  "all but self rides shorthand bits",
			state: enabledState(0x54, intctrl.AllButSelf{}),
			high:  0,
			low:   0x54 | shorthandAllButSelf,
		},
		{
			name: "level triggered active low",
			state: &intctrl.LineState{
				Mode:     intctrl.ModeLevel,
				Polarity: intctrl.ActiveLow,
				Flags:    intctrl.FlagEnabled,
				Vector:   0x60,
				Target:   intctrl.Physical(2),
				Output:   cpuNormal(),
			},
			high: 2 << destinationShift,
			low:  0x60 | levelTriggered | activeLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			high, low, err := rig.platform.convertToRTE(tt.state)
			if err != nil {
				t.Fatalf("convertToRTE: %v", err)
			}
			if high != tt.high || low != tt.low {
				t.Errorf("convertToRTE = %#x, %#x, want %#x, %#x", high, low, tt.high, tt.low)
			}
		})
	}
}

func TestConvertToRTERejectsBadStates(t *testing.T) {
	rig := newTestRig(t, rigConfig{})

	tests := []struct {
		name  string
		state *intctrl.LineState
	}{
		{
			name: "nil target",
			state: &intctrl.LineState{
				Flags:  intctrl.FlagEnabled,
				Vector: 0x40,
				Output: cpuNormal(),
			},
		},
		{
			name: "nil output",
			state: &intctrl.LineState{
				Flags:  intctrl.FlagEnabled,
				Vector: 0x40,
				Target: intctrl.Physical(0),
			},
		},
		{
			name: "output not a processor line",
			state: &intctrl.LineState{
				Flags:  intctrl.FlagEnabled,
				Vector: 0x40,
				Target: intctrl.Physical(0),
				Output: intctrl.LocalLine{Controller: 7, Line: 0},
			},
		},
		{
			name: "extint output not expressible",
			state: &intctrl.LineState{
				Flags:  intctrl.FlagEnabled,
				Vector: 0x40,
				Target: intctrl.Physical(0),
				Output: intctrl.CPULine(intctrl.CPULineExtInt),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := rig.platform.convertToRTE(tt.state)
			if !errors.Is(err, intctrl.ErrInvalidParameter) {
				t.Errorf("convertToRTE error = %v, want ErrInvalidParameter", err)
			}
		})
	}
}
