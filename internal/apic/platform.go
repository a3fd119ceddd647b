// Package apic implements the reference interrupt controller driver for the
// local APIC and I/O APIC family. One Platform context carries the firmware
// table, the shared local-APIC window, and the identity of the first
// discovered chip; one IOAPIC controller exists per physical chip.
package apic

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/meridian-os/platform/internal/hw"
	"github.com/meridian-os/platform/internal/intctrl"
	"github.com/meridian-os/platform/internal/madt"
)

// PlatformConfig carries everything a Platform needs. Table may be nil when
// the firmware reports no APIC; discovery then registers nothing.
type PlatformConfig struct {
	Table  *madt.Table
	Mapper hw.Mapper
	Log    *slog.Logger

	// WaitBudget bounds every register poll loop, counted in reads. Zero
	// spins forever, the synchronous hardware-wait behavior kernels use.
	// A stuck controller with a nonzero budget surfaces as
	// ErrNotResponding.
	WaitBudget int
}

// Platform is the owned context that replaces the ambient globals of the
// original design: the firmware table pointer, the single shared local-APIC
// mapping, and the first-chip identity. It is threaded explicitly through
// discovery and every local-unit and I/O-unit entry point.
type Platform struct {
	log        *slog.Logger
	mapper     hw.Mapper
	table      *madt.Table
	waitBudget int

	mu           sync.Mutex
	local        hw.Window32
	firstChip    uint32
	hasFirstChip bool
}

// NewPlatform builds a Platform from the given configuration.
func NewPlatform(cfg PlatformConfig) (*Platform, error) {
	if cfg.Mapper == nil {
		return nil, fmt.Errorf("apic: new platform: %w: nil mapper", intctrl.ErrInvalidParameter)
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Platform{
		log:        log,
		mapper:     cfg.Mapper,
		table:      cfg.Table,
		waitBudget: cfg.WaitBudget,
	}, nil
}

// localWindow returns the shared local-APIC window, mapping it on first use.
// All local units sit at the same physical address on this architecture, so
// the mapping is created at most once per platform.
func (p *Platform) localWindow() (hw.Window32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.local != nil {
		return p.local, nil
	}
	if p.table == nil {
		return nil, fmt.Errorf("apic: local unit: %w", intctrl.ErrNotInitialized)
	}

	win, err := p.mapper.Map(p.table.LocalAPICAddress, localAPICWindowSize)
	if err != nil {
		return nil, fmt.Errorf("apic: map local unit at 0x%x: %v: %w",
			p.table.LocalAPICAddress, err, intctrl.ErrInsufficientResources)
	}
	p.local = win
	return win, nil
}

// claimFirstChip records the first discovered chip, which advertises the
// processor-local pseudo lines on behalf of the shared local unit.
func (p *Platform) claimFirstChip(id uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hasFirstChip {
		return false
	}
	p.firstChip = id
	p.hasFirstChip = true
	return true
}

func (p *Platform) isFirstChip(id uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasFirstChip && p.firstChip == id
}

// spin polls done until it reports true, within the platform's wait budget.
// These waits are intentionally non-cancelable: a controller that never
// settles is failed hardware, not a cancelable operation.
func (p *Platform) spin(what string, done func() bool) error {
	for i := 0; ; i++ {
		if done() {
			return nil
		}
		if p.waitBudget > 0 && i >= p.waitBudget {
			return fmt.Errorf("apic: %s: %w", what, intctrl.ErrNotResponding)
		}
	}
}
