package apic

import (
	"fmt"
	"time"

	"github.com/meridian-os/platform/internal/hw"
	"github.com/meridian-os/platform/internal/intctrl"
)

// startupSettleDelay is the pause between INIT and its deassert while the
// target processor comes out of reset.
const startupSettleDelay = 10 * time.Millisecond

// lvtResetSlots are the fixed local slots masked during reset, paired with
// register order. Masked LVTs still need a syntactically valid vector; some
// hardware raises an error interrupt for a zero vector even when masked, so
// each slot gets a distinct placeholder starting at 0x80.
var lvtResetSlots = []localRegister{
	regLVTTimer,
	regLVTThermal,
	regLVTPerformance,
	regLVTLInt0,
	regLVTLInt1,
	regLVTError,
	regLVTCMCI,
}

func readLocal(win hw.Window32, reg localRegister) uint32 {
	return win.Read32(reg.offset())
}

func writeLocal(win hw.Window32, reg localRegister, value uint32) {
	win.Write32(reg.offset(), value)
}

// initializeLocalUnit maps the shared window if needed, resets the calling
// processor's unit, and returns the identifier read back from hardware.
func (p *Platform) initializeLocalUnit() (uint32, error) {
	win, err := p.localWindow()
	if err != nil {
		return 0, err
	}

	if err := p.resetLocalUnit(win); err != nil {
		return 0, err
	}

	id := readLocal(win, regID) >> destinationShift
	p.log.Debug("local unit initialized", "id", id)
	return id, nil
}

func (p *Platform) resetLocalUnit(win hw.Window32) error {
	version := readLocal(win, regVersion)
	if version&versionFamilyMask != versionFamily {
		return fmt.Errorf("apic: local unit version %#x: %w", version&0xFF, intctrl.ErrVersionMismatch)
	}

	// Software-enable the unit while programming the spurious vector; both
	// live in the same register and must change together.
	spurious := readLocal(win, regSpurious)
	spurious &^= spuriousVectorMask
	spurious |= apicSoftwareEnable | spuriousVector
	writeLocal(win, regSpurious, spurious)

	// Mask every fixed slot, leaving the delivery routing bits alone.
	for i, reg := range lvtResetSlots {
		lvt := readLocal(win, reg) & deliveryModeMask
		lvt |= rteMasked | uint32(0x80+i)
		writeLocal(win, reg, lvt)
	}

	writeLocal(win, regTimerInitialCount, 0)
	return nil
}

// setLocalUnitAddressing programs the calling processor's addressing mode.
// The spurious vector is parked on a benign value while the destination
// registers change, then restored; some parts mis-deliver during the switch
// otherwise. The write is read back and verified, since hardware silently
// ignores destination values it cannot represent.
func (p *Platform) setLocalUnitAddressing(target intctrl.Target) error {
	win, err := p.localWindow()
	if err != nil {
		return err
	}

	savedSpurious := readLocal(win, regSpurious)
	writeLocal(win, regSpurious, (savedSpurious&^uint32(spuriousVectorMask))|spuriousVector)
	defer writeLocal(win, regSpurious, savedSpurious)

	switch t := target.(type) {
	case intctrl.Physical:
		// Physical targeting leaves the logical registers parked in
		// clustered mode with an empty destination.
		writeLocal(win, regDestFormat, logicalClusteredModel)
		writeLocal(win, regLogicalDest, 0)

	case intctrl.LogicalFlat:
		writeLocal(win, regDestFormat, logicalFlatModel)
		logicalDest := uint32(t) << destinationShift
		writeLocal(win, regLogicalDest, logicalDest)
		if readLocal(win, regLogicalDest) != logicalDest {
			return fmt.Errorf("apic: flat destination %#x not latched: %w", logicalDest, intctrl.ErrNotSupported)
		}

	case intctrl.LogicalCluster:
		writeLocal(win, regDestFormat, logicalClusteredModel)
		logicalDest := (t.ID<<clusterShift | t.Mask) << destinationShift
		writeLocal(win, regLogicalDest, logicalDest)
		if readLocal(win, regLogicalDest) != logicalDest {
			return fmt.Errorf("apic: clustered destination %#x not latched: %w", logicalDest, intctrl.ErrNotSupported)
		}

	default:
		return fmt.Errorf("apic: addressing %s: %w", target, intctrl.ErrInvalidParameter)
	}

	return nil
}

// requestInterrupt issues an IPI. Only the artificial IPI pseudo-line is
// backed by hardware here; every other line is refused.
//
// IPIs from one processor serialize through its single command register, so
// the pending wait is correct only when calls from the same processor are
// serialized by the caller.
func (p *Platform) requestInterrupt(line intctrl.Line, vector uint32, target intctrl.Target) error {
	local, ok := line.(intctrl.LocalLine)
	if !ok || local.Line != ipiLine {
		return fmt.Errorf("apic: request interrupt on %s: %w", line, intctrl.ErrNotSupported)
	}

	win, err := p.localWindow()
	if err != nil {
		return err
	}

	ipiLow := vector | edgeTriggered
	if vector == nmiVector {
		ipiLow |= deliverNMI
	}

	var ipiHigh uint32
	targetingSelf := false
	switch t := target.(type) {
	case intctrl.Physical:
		ipiLow |= physicalDelivery
		ipiHigh = uint32(t) << destinationShift
		if ipiHigh == readLocal(win, regID) {
			targetingSelf = true
		}

	case intctrl.LogicalFlat:
		ipiLow |= logicalDelivery
		ipiHigh = uint32(t) << destinationShift
		if readLocal(win, regLogicalDest)&ipiHigh == ipiHigh {
			targetingSelf = true
		}

	case intctrl.LogicalCluster:
		ipiLow |= logicalDelivery
		ipiHigh = t.ID<<(destinationShift+clusterShift) | t.Mask<<destinationShift
		if readLocal(win, regLogicalDest)&ipiHigh == ipiHigh {
			targetingSelf = true
		}

	case intctrl.All:
		targetingSelf = true
		ipiLow |= shorthandAll

	case intctrl.AllButSelf:
		ipiLow |= shorthandAllButSelf

	case intctrl.Self:
		targetingSelf = true
		ipiLow |= shorthandSelf

	default:
		return fmt.Errorf("apic: request interrupt: %w: nil target", intctrl.ErrInvalidParameter)
	}

	// Wait out any previously pending send.
	err = p.spin("command register busy", func() bool {
		return readLocal(win, regCommandLow)&deliveryPending == 0
	})
	if err != nil {
		return err
	}

	// The low write triggers the send, so the destination goes first.
	writeLocal(win, regCommandHigh, ipiHigh)
	writeLocal(win, regCommandLow, ipiLow)

	// A self-targeted IPI is observable: wait for the vector's bit in the
	// pending-interrupt bitmap, 32 vectors per register.
	if targetingSelf {
		irrReg := regInterruptRequest + localRegister(vector/32)
		irrMask := uint32(1) << (vector % 32)
		err = p.spin("self IPI not pending", func() bool {
			return readLocal(win, irrReg)&irrMask != 0
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// startProcessor runs the INIT-SIPI-SIPI bring-up handshake. Success means
// the local send logic accepted all four commands, not that the target
// began executing.
func (p *Platform) startProcessor(id uint32, jumpAddress uint64) error {
	// The SIPI vector can only express page-aligned addresses within the
	// low megabyte; refuse anything else before touching the hardware.
	if jumpAddress&^uint64(startupCodeMask) != 0 {
		return fmt.Errorf("apic: startup address 0x%x not SIPI-encodable: %w", jumpAddress, intctrl.ErrNotSupported)
	}

	win, err := p.localWindow()
	if err != nil {
		return err
	}

	waitIdle := func() error {
		return p.spin("startup command pending", func() bool {
			return readLocal(win, regCommandLow)&deliveryPending == 0
		})
	}

	if err := waitIdle(); err != nil {
		return err
	}

	writeLocal(win, regCommandHigh, id<<destinationShift)

	initIPI := uint32(deliverINIT | physicalDelivery | levelAssert | edgeTriggered)
	writeLocal(win, regCommandLow, initIPI)
	if err := waitIdle(); err != nil {
		return err
	}

	time.Sleep(startupSettleDelay)

	deassert := uint32(deliverINIT | physicalDelivery | levelDeassert | levelTriggered)
	writeLocal(win, regCommandLow, deassert)
	if err := waitIdle(); err != nil {
		return err
	}

	startupIPI := uint32(jumpAddress&startupCodeMask) >> startupCodeShift
	startupIPI |= deliverStartup | physicalDelivery | levelAssert | edgeTriggered

	writeLocal(win, regCommandLow, startupIPI)
	if err := waitIdle(); err != nil {
		return err
	}

	writeLocal(win, regCommandLow, startupIPI)

	p.log.Info("started processor", "id", id, "jump", fmt.Sprintf("0x%x", jumpAddress))
	return nil
}

// fastEndOfInterrupt retires the in-service interrupt with a single write.
func (p *Platform) fastEndOfInterrupt() {
	p.mu.Lock()
	win := p.local
	p.mu.Unlock()
	if win == nil {
		return
	}
	writeLocal(win, regEndOfInterrupt, 0)
}
