package apicsim

import "sync"

const (
	ioSelectOffset = 0x00
	ioDataOffset   = 0x10

	ioRegID       = 0x00
	ioRegVersion  = 0x01
	ioRegFirstRTE = 0x10

	ioRTEMasked = 1 << 16
)

// RegWrite is one recorded write through the data window.
type RegWrite struct {
	Register uint32
	Value    uint32
}

// IOAPIC models the chip's indirect select+data register window and its
// redirection table.
type IOAPIC struct {
	mu       sync.Mutex
	id       uint8
	lines    uint32
	selected uint32
	regs     map[uint32]uint32

	writes []RegWrite

	// tornDestination records any high-half (destination) write observed
	// while the entry's low half was unmasked.
	tornDestination bool
}

// NewIOAPIC returns a model with the given identifier and input line count.
func NewIOAPIC(id uint8, lines uint32) *IOAPIC {
	return &IOAPIC{
		id:    id,
		lines: lines,
		regs:  make(map[uint32]uint32),
	}
}

func (io *IOAPIC) Read32(offset uint64) uint32 {
	io.mu.Lock()
	defer io.mu.Unlock()

	switch offset {
	case ioSelectOffset:
		return io.selected
	case ioDataOffset:
		return io.readRegLocked(io.selected)
	}
	return 0
}

func (io *IOAPIC) Write32(offset uint64, value uint32) {
	io.mu.Lock()
	defer io.mu.Unlock()

	switch offset {
	case ioSelectOffset:
		io.selected = value
	case ioDataOffset:
		io.writeRegLocked(io.selected, value)
	}
}

func (io *IOAPIC) readRegLocked(reg uint32) uint32 {
	switch reg {
	case ioRegID:
		return uint32(io.id) << 24
	case ioRegVersion:
		return 0x11 | (io.lines-1)<<16
	}
	return io.regs[reg]
}

func (io *IOAPIC) writeRegLocked(reg, value uint32) {
	io.writes = append(io.writes, RegWrite{Register: reg, Value: value})

	if reg >= ioRegFirstRTE && (reg-ioRegFirstRTE)%2 == 1 {
		// Destination half. The paired low half must be masked or the
		// chip could act on a half-updated entry.
		if io.regs[reg-1]&ioRTEMasked == 0 {
			io.tornDestination = true
		}
	}

	if reg == ioRegID || reg == ioRegVersion {
		return
	}
	io.regs[reg] = value
}

// RTE returns the full 64-bit redirection entry for one line.
func (io *IOAPIC) RTE(line uint32) uint64 {
	io.mu.Lock()
	defer io.mu.Unlock()
	reg := ioRegFirstRTE + line*2
	return uint64(io.regs[reg+1])<<32 | uint64(io.regs[reg])
}

// Writes returns the data-window write log in order.
func (io *IOAPIC) Writes() []RegWrite {
	io.mu.Lock()
	defer io.mu.Unlock()
	out := make([]RegWrite, len(io.writes))
	copy(out, io.writes)
	return out
}

// TornDestination reports whether any destination write landed on an
// unmasked entry.
func (io *IOAPIC) TornDestination() bool {
	io.mu.Lock()
	defer io.mu.Unlock()
	return io.tornDestination
}
