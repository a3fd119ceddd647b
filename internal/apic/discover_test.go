package apic

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/meridian-os/platform/internal/hw"
	"github.com/meridian-os/platform/internal/intctrl"
	"github.com/meridian-os/platform/internal/madt"
)

func TestDiscoverRegistersEachChip(t *testing.T) {
	rig := newTestRig(t, rigConfig{
		processors: 2,
		chips: []madt.IOAPIC{
			{ID: 4, Address: testIOAPICBase, GSIBase: 0},
			{ID: 5, Address: testIOAPICBase + 0x1000, GSIBase: 24},
		},
	})
	rig.discover(t)

	controllers := rig.registry.Controllers()
	if len(controllers) != 2 {
		t.Fatalf("got %d controllers, want 2", len(controllers))
	}

	// All processors ride the first chip's registration.
	first, second := controllers[0], controllers[1]
	if first.Identifier != 4 || second.Identifier != 5 {
		t.Errorf("identifiers = %#x, %#x, want 4, 5", first.Identifier, second.Identifier)
	}
	if first.ProcessorCount != 2 {
		t.Errorf("first chip processor count = %d, want 2", first.ProcessorCount)
	}
	if second.ProcessorCount != 0 {
		t.Errorf("second chip processor count = %d, want 0", second.ProcessorCount)
	}
	for _, desc := range controllers {
		if desc.PriorityCount != apicPriorityCount {
			t.Errorf("chip %#x priority count = %d, want %d",
				desc.Identifier, desc.PriorityCount, apicPriorityCount)
		}
	}
}

func TestDiscoverPseudoLinesOnlyOnFirstChip(t *testing.T) {
	rig := newTestRig(t, rigConfig{
		processors: 2,
		chips: []madt.IOAPIC{
			{ID: 4, Address: testIOAPICBase, GSIBase: 0},
			{ID: 5, Address: testIOAPICBase + 0x1000, GSIBase: 24},
		},
	})
	rig.discover(t)
	for _, id := range []uint32{4, 5} {
		if err := rig.controller(t, id).InitializeIoUnit(); err != nil {
			t.Fatalf("InitializeIoUnit(%d): %v", id, err)
		}
	}

	want := []intctrl.LineRange{
		{Type: intctrl.LinesProcessorLocal, Controller: 4, First: 0, Last: lvtLineCount, GSIBase: intctrl.GSINone},
		{Type: intctrl.LinesSoftwareOnly, Controller: 4, First: ipiLine, Last: ipiLine + 1, GSIBase: intctrl.GSINone},
		{
			Type:             intctrl.LinesOutput,
			Controller:       4,
			First:            intctrl.CPULineFirst,
			Last:             intctrl.CPULineLast,
			GSIBase:          intctrl.GSINone,
			OutputController: intctrl.CPUController,
		},
		{Type: intctrl.LinesStandardPin, Controller: 4, First: pinLineOffset, Last: pinLineOffset + 24, GSIBase: 0},
		{Type: intctrl.LinesStandardPin, Controller: 5, First: pinLineOffset, Last: pinLineOffset + 24, GSIBase: 24},
	}
	if diff := cmp.Diff(want, rig.registry.Lines()); diff != "" {
		t.Errorf("line ranges mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoverDuplicateChipIdentifier(t *testing.T) {
	rig := newTestRig(t, rigConfig{
		processors: 1,
		chips: []madt.IOAPIC{
			{ID: 4, Address: testIOAPICBase, GSIBase: 0},
			{ID: 4, Address: testIOAPICBase + 0x1000, GSIBase: 24},
		},
	})

	err := Discover(rig.platform, rig.registry)
	if !errors.Is(err, intctrl.ErrInvalidParameter) {
		t.Fatalf("Discover error = %v, want ErrInvalidParameter", err)
	}
	// The first chip's registration survives.
	if got := len(rig.registry.Controllers()); got != 1 {
		t.Errorf("got %d controllers after failed discovery, want 1", got)
	}
}

func TestDiscoverWithoutTableRegistersNothing(t *testing.T) {
	p, err := NewPlatform(PlatformConfig{
		Mapper: hw.NewTableMapper(),
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewPlatform: %v", err)
	}

	registry := intctrl.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := Discover(p, registry); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got := len(registry.Controllers()); got != 0 {
		t.Errorf("got %d controllers without a table, want 0", got)
	}
}

func TestDiscoverWithoutProcessorsRegistersNothing(t *testing.T) {
	table, err := madt.Parse(madt.Build(madt.Config{
		IOAPICs: []madt.IOAPIC{{ID: 4, Address: testIOAPICBase}},
	}))
	if err != nil {
		t.Fatalf("parse built table: %v", err)
	}

	p, err := NewPlatform(PlatformConfig{
		Table:  table,
		Mapper: hw.NewTableMapper(),
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewPlatform: %v", err)
	}

	registry := intctrl.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := Discover(p, registry); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got := len(registry.Controllers()); got != 0 {
		t.Errorf("got %d controllers without processors, want 0", got)
	}
}

func TestEnumerateProcessors(t *testing.T) {
	rig := newTestRig(t, rigConfig{
		processors: 3,
		chips:      []madt.IOAPIC{{ID: 4, Address: testIOAPICBase, GSIBase: 0}},
	})
	rig.discover(t)
	ctrl := rig.controller(t, 4)

	buf := make([]intctrl.Processor, 4)
	count, err := ctrl.EnumerateProcessors(buf)
	if err != nil {
		t.Fatalf("EnumerateProcessors: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}

	want := []intctrl.Processor{
		{PhysicalID: 0, LogicalFlatID: 1 << 0, FirmwareID: 0, Flags: intctrl.ProcessorPresent},
		{PhysicalID: 1, LogicalFlatID: 1 << 1, FirmwareID: 1, Flags: intctrl.ProcessorPresent},
		{PhysicalID: 2, LogicalFlatID: 1 << 2, FirmwareID: 2, Flags: intctrl.ProcessorPresent},
	}
	if diff := cmp.Diff(want, buf[:count]); diff != "" {
		t.Errorf("processors mismatch (-want +got):\n%s", diff)
	}
}

func TestEnumerateProcessorsBufferTooSmall(t *testing.T) {
	rig := newTestRig(t, rigConfig{
		processors: 3,
		chips:      []madt.IOAPIC{{ID: 4, Address: testIOAPICBase, GSIBase: 0}},
	})
	rig.discover(t)
	ctrl := rig.controller(t, 4)

	sentinel := intctrl.Processor{PhysicalID: 0xDEAD}
	buf := []intctrl.Processor{sentinel, sentinel}
	_, err := ctrl.EnumerateProcessors(buf)
	if !errors.Is(err, intctrl.ErrBufferTooSmall) {
		t.Fatalf("EnumerateProcessors error = %v, want ErrBufferTooSmall", err)
	}
	for i, p := range buf {
		if p != sentinel {
			t.Errorf("buf[%d] written despite short buffer: %+v", i, p)
		}
	}
}

func TestEnumerateProcessorsHighIdentifierHasNoFlatID(t *testing.T) {
	madtCfg := madt.Config{
		LocalAPICAddress: testLAPICBase,
		LocalAPICs: []madt.LocalAPIC{
			{ProcessorID: 0, ID: 0, Enabled: true},
			{ProcessorID: 1, ID: 9, Enabled: false}, // beyond the 8-bit flat space
		},
	}
	table, err := madt.Parse(madt.Build(madtCfg))
	if err != nil {
		t.Fatalf("parse built table: %v", err)
	}
	p, err := NewPlatform(PlatformConfig{
		Table:  table,
		Mapper: hw.NewTableMapper(),
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewPlatform: %v", err)
	}

	buf := make([]intctrl.Processor, 2)
	if _, err := p.enumerateProcessors(buf); err != nil {
		t.Fatalf("enumerateProcessors: %v", err)
	}
	want := intctrl.Processor{PhysicalID: 9, LogicalFlatID: 0, FirmwareID: 1}
	if diff := cmp.Diff(want, buf[1]); diff != "" {
		t.Errorf("processor mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistryEndOfInterruptUsesFastPath(t *testing.T) {
	rig, ctrl := oneChipRig(t)
	if _, err := ctrl.InitializeLocalUnit(); err != nil {
		t.Fatalf("InitializeLocalUnit: %v", err)
	}

	if err := rig.registry.EndOfInterrupt(4, 0x30); err != nil {
		t.Fatalf("EndOfInterrupt: %v", err)
	}
	if got := rig.lapic.EOICount(); got != 1 {
		t.Errorf("EOI count = %d, want 1", got)
	}
}
