// Package apicsim provides software models of the local-APIC and I/O-APIC
// register files. They implement the hw.Window32 contract so the real
// driver code runs against them unchanged in tests and in the simulator
// command.
package apicsim

import "sync"

// Register indices of the modeled local unit, matching the 16-byte register
// spacing of the hardware (offset = index << 4).
const (
	lapicRegID           = 0x02
	lapicRegVersion      = 0x03
	lapicRegEOI          = 0x0B
	lapicRegLogicalDest  = 0x0D
	lapicRegDestFormat   = 0x0E
	lapicRegSpurious     = 0x0F
	lapicRegIRRBase      = 0x20
	lapicRegCommandLow   = 0x30
	lapicRegCommandHigh  = 0x31
	lapicRegCount        = 0x40
)

const (
	cmdVectorMask      = 0xFF
	cmdDeliveryMask    = 0x700
	cmdDeliverFixed    = 0x000
	cmdDeliverNMI      = 0x400
	cmdLogicalDelivery = 1 << 11
	cmdShorthandShift  = 18
	cmdShorthandMask   = 3 << cmdShorthandShift
	shorthandNone      = 0
	shorthandSelf      = 1
	shorthandAll       = 2
)

// IPI is one recorded command-register send.
type IPI struct {
	High uint32
	Low  uint32
}

// LocalAPIC models the per-processor local unit register file. Commands
// complete instantly: the delivery-pending bit always reads clear, and
// sends that include the local processor latch the vector into the
// pending-interrupt bitmap, which is what the driver's self-IPI wait
// observes.
type LocalAPIC struct {
	mu   sync.Mutex
	regs [lapicRegCount]uint32

	ipis     []IPI
	eoiCount int

	// rejectLogical makes logical-destination writes fail to latch, for
	// exercising the driver's read-back verification.
	rejectLogical bool
}

// NewLocalAPIC returns a model reporting the given hardware identifier and
// a version in the accepted 0x1X family.
func NewLocalAPIC(id uint8) *LocalAPIC {
	l := &LocalAPIC{}
	l.regs[lapicRegID] = uint32(id) << 24
	l.regs[lapicRegVersion] = 0x00060014
	l.regs[lapicRegDestFormat] = 0xFFFFFFFF
	return l
}

// SetVersion overrides the version register, to model unexpected hardware.
func (l *LocalAPIC) SetVersion(version uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.regs[lapicRegVersion] = version
}

// SetRejectLogical makes the logical destination register refuse writes.
func (l *LocalAPIC) SetRejectLogical(reject bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rejectLogical = reject
}

func (l *LocalAPIC) Read32(offset uint64) uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	reg := offset >> 4
	if reg >= lapicRegCount {
		return 0
	}
	return l.regs[reg]
}

func (l *LocalAPIC) Write32(offset uint64, value uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	reg := offset >> 4
	if reg >= lapicRegCount {
		return
	}

	switch reg {
	case lapicRegEOI:
		l.eoiCount++

	case lapicRegLogicalDest:
		if !l.rejectLogical {
			l.regs[reg] = value
		}

	case lapicRegCommandLow:
		// The low write triggers the send. Delivery is instantaneous,
		// so the pending bit is never stored.
		l.regs[reg] = value &^ uint32(1<<12)
		l.deliverLocked(IPI{High: l.regs[lapicRegCommandHigh], Low: value})

	default:
		l.regs[reg] = value
	}
}

func (l *LocalAPIC) deliverLocked(ipi IPI) {
	l.ipis = append(l.ipis, ipi)

	mode := ipi.Low & cmdDeliveryMask
	if mode != cmdDeliverFixed && mode != cmdDeliverNMI {
		// INIT and STARTUP commands have no interrupt to latch.
		return
	}
	if !l.targetsSelfLocked(ipi) {
		return
	}

	vector := ipi.Low & cmdVectorMask
	l.regs[lapicRegIRRBase+vector/32] |= 1 << (vector % 32)
}

func (l *LocalAPIC) targetsSelfLocked(ipi IPI) bool {
	switch (ipi.Low & cmdShorthandMask) >> cmdShorthandShift {
	case shorthandSelf, shorthandAll:
		return true
	case shorthandNone:
		if ipi.Low&cmdLogicalDelivery != 0 {
			return ipi.High != 0 && l.regs[lapicRegLogicalDest]&ipi.High == ipi.High
		}
		return ipi.High == l.regs[lapicRegID]
	}
	return false
}

// IPIs returns every command sent so far, in order.
func (l *LocalAPIC) IPIs() []IPI {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]IPI, len(l.ipis))
	copy(out, l.ipis)
	return out
}

// EOICount returns how many end-of-interrupt writes were observed.
func (l *LocalAPIC) EOICount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.eoiCount
}

// Pending reports whether the vector's bit is set in the pending bitmap.
func (l *LocalAPIC) Pending(vector uint32) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.regs[lapicRegIRRBase+vector/32]&(1<<(vector%32)) != 0
}

// Register exposes one raw register value for assertions.
func (l *LocalAPIC) Register(index uint32) uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index >= lapicRegCount {
		return 0
	}
	return l.regs[index]
}
