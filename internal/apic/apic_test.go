package apic

import (
	"io"
	"log/slog"
	"testing"

	"github.com/meridian-os/platform/internal/apic/apicsim"
	"github.com/meridian-os/platform/internal/hw"
	"github.com/meridian-os/platform/internal/intctrl"
	"github.com/meridian-os/platform/internal/madt"
)

const (
	testLAPICBase  = 0xFEE00000
	testIOAPICBase = 0xFEC00000
)

// testRig wires a platform to simulated register files so the driver runs
// its full hardware sequences against observable state.
type testRig struct {
	platform *Platform
	registry *intctrl.Registry
	lapic    *apicsim.LocalAPIC
	chips    map[uint8]*apicsim.IOAPIC
}

type rigConfig struct {
	processors int
	chips      []madt.IOAPIC
	chipLines  uint32

	// waitBudget bounds the driver's poll loops; tests never spin forever.
	waitBudget int
}

func newTestRig(t *testing.T, cfg rigConfig) *testRig {
	t.Helper()

	if cfg.processors == 0 {
		cfg.processors = 1
	}
	if cfg.chipLines == 0 {
		cfg.chipLines = 24
	}
	if cfg.waitBudget == 0 {
		cfg.waitBudget = 1000
	}

	madtCfg := madt.Config{LocalAPICAddress: testLAPICBase}
	for i := 0; i < cfg.processors; i++ {
		madtCfg.LocalAPICs = append(madtCfg.LocalAPICs, madt.LocalAPIC{
			ProcessorID: uint8(i),
			ID:          uint8(i),
			Enabled:     true,
		})
	}
	madtCfg.IOAPICs = append(madtCfg.IOAPICs, cfg.chips...)

	table, err := madt.Parse(madt.Build(madtCfg))
	if err != nil {
		t.Fatalf("parse built table: %v", err)
	}

	rig := &testRig{
		lapic: apicsim.NewLocalAPIC(0),
		chips: make(map[uint8]*apicsim.IOAPIC),
	}

	mapper := hw.NewTableMapper()
	mapper.Add(testLAPICBase, rig.lapic)
	for _, chip := range cfg.chips {
		sim := apicsim.NewIOAPIC(chip.ID, cfg.chipLines)
		rig.chips[chip.ID] = sim
		mapper.Add(chip.Address, sim)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rig.platform, err = NewPlatform(PlatformConfig{
		Table:      table,
		Mapper:     mapper,
		Log:        log,
		WaitBudget: cfg.waitBudget,
	})
	if err != nil {
		t.Fatalf("new platform: %v", err)
	}
	rig.registry = intctrl.NewRegistry(log)
	return rig
}

// discover runs firmware-table discovery and fails the test on error.
func (r *testRig) discover(t *testing.T) {
	t.Helper()
	if err := Discover(r.platform, r.registry); err != nil {
		t.Fatalf("discover: %v", err)
	}
}

// controller returns the registered controller with the given identifier.
func (r *testRig) controller(t *testing.T, id uint32) intctrl.Controller {
	t.Helper()
	for _, desc := range r.registry.Controllers() {
		if desc.Identifier == id {
			return desc.Controller
		}
	}
	t.Fatalf("controller %#x not registered", id)
	return nil
}

func cpuNormal() intctrl.Line { return intctrl.CPULine(intctrl.CPULineNormal) }

func enabledState(vector uint8, target intctrl.Target) *intctrl.LineState {
	return &intctrl.LineState{
		Flags:  intctrl.FlagEnabled,
		Vector: vector,
		Target: target,
		Output: cpuNormal(),
	}
}
