package apic

import (
	"fmt"

	"github.com/meridian-os/platform/internal/intctrl"
)

// Discover walks the platform's firmware table once, creates one IOAPIC
// controller per chip entry, and registers each with the registry. The
// first chip carries the processor count; registration stops at the first
// failure without rolling back chips already registered.
//
// A platform without a firmware table, or a table reporting no processors,
// registers nothing and is not an error: the machine simply has no APIC.
func Discover(p *Platform, registry *intctrl.Registry) error {
	if p.table == nil {
		p.log.Debug("no firmware table; skipping apic discovery")
		return nil
	}

	processorCount := len(p.table.LocalAPICs)
	if processorCount == 0 {
		p.log.Debug("firmware table reports no processors; skipping apic discovery")
		return nil
	}

	for _, chip := range p.table.IOAPICs {
		id := uint32(chip.ID)
		p.claimFirstChip(id)

		controller := &IOAPIC{
			platform: p,
			registry: registry,
			id:       id,
			physical: chip.Address,
			gsiBase:  chip.GSIBase,
		}

		err := registry.RegisterController(intctrl.ControllerDescription{
			Controller:     controller,
			Identifier:     id,
			ProcessorCount: processorCount,
			PriorityCount:  apicPriorityCount,
		})
		if err != nil {
			return fmt.Errorf("apic: register io unit %#x: %w", id, err)
		}

		// All processors ride the first chip's registration.
		processorCount = 0
	}

	return nil
}

// enumerateProcessors re-walks the firmware table. The walk is not cached;
// the table is the single source of truth. If buf cannot hold every
// processor, nothing is written.
func (p *Platform) enumerateProcessors(buf []intctrl.Processor) (int, error) {
	if p.table == nil {
		return 0, fmt.Errorf("apic: enumerate processors: %w", intctrl.ErrNotInitialized)
	}

	count := len(p.table.LocalAPICs)
	if count > len(buf) {
		return 0, fmt.Errorf("apic: enumerate %d processors into %d slots: %w",
			count, len(buf), intctrl.ErrBufferTooSmall)
	}

	for i, lapic := range p.table.LocalAPICs {
		desc := intctrl.Processor{
			PhysicalID: uint32(lapic.ID),
			FirmwareID: uint32(lapic.ProcessorID),
		}
		if lapic.ID < 8 {
			desc.LogicalFlatID = 1 << lapic.ID
		}
		if lapic.Enabled {
			desc.Flags |= intctrl.ProcessorPresent
		}
		buf[i] = desc
	}

	return count, nil
}
