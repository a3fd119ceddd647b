package apic

import (
	"fmt"
	"sync"

	"github.com/meridian-os/platform/internal/hw"
	"github.com/meridian-os/platform/internal/intctrl"
)

// IOAPIC drives one physical I/O APIC chip and implements the controller
// contract for it. Local-unit operations act on the calling processor
// through the shared platform context, matching the registration model
// where every chip's controller exposes the whole function surface.
type IOAPIC struct {
	platform *Platform
	registry *intctrl.Registry

	id       uint32
	physical uint64
	gsiBase  uint32

	// mu serializes access to the indirect select+data window. The
	// two-register sequence is not atomic in hardware, so every pair of
	// accesses runs under the lock.
	mu        sync.Mutex
	win       hw.Window32
	lineCount uint32
}

// ID returns the chip's firmware identifier.
func (c *IOAPIC) ID() uint32 { return c.id }

// GSIBase returns the chip's global system interrupt base.
func (c *IOAPIC) GSIBase() uint32 { return c.gsiBase }

// LineCount returns the number of input pins, discovered from the version
// register during InitializeIoUnit.
func (c *IOAPIC) LineCount() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lineCount
}

// InitializeIoUnit maps the chip once, discovers its table size, reports
// its line ranges, and masks every entry so nothing can fire before
// explicit configuration.
func (c *IOAPIC) InitializeIoUnit() error {
	c.mu.Lock()
	if c.win == nil {
		win, err := c.platform.mapper.Map(c.physical, ioAPICWindowSize)
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("apic: map io unit %#x at 0x%x: %v: %w",
				c.id, c.physical, err, intctrl.ErrInsufficientResources)
		}
		c.win = win

		version := c.readRegisterLocked(ioAPICRegVersion)
		c.lineCount = (version&ioVersionMaxEntryMask)>>ioVersionMaxEntryShift + 1
		c.mu.Unlock()

		if err := c.describeLines(); err != nil {
			return err
		}
	} else {
		c.mu.Unlock()
	}

	lineCount := c.LineCount()
	for line := uint32(0); line < lineCount; line++ {
		c.writeRTE(line, maskedRTE)
	}

	c.platform.log.Debug("io unit initialized", "id", c.id, "lines", lineCount)
	return nil
}

// SetLineState configures one line. Fixed local slots overwrite only the
// vector and mask bits, the artificial IPI line is accepted without
// hardware effect, and chip pins get a full redirection entry.
func (c *IOAPIC) SetLineState(line intctrl.Line, state *intctrl.LineState, resourceData []byte) error {
	local, ok := line.(intctrl.LocalLine)
	if !ok {
		return fmt.Errorf("apic: set state of %s: %w", line, intctrl.ErrInvalidParameter)
	}

	high, low, err := c.platform.convertToRTE(state)
	if err != nil {
		return err
	}

	switch {
	case local.Line >= 0 && local.Line < lvtLineCount:
		return c.setLVTState(local.Line, low)

	case local.Line == ipiLine:
		// Software-only; nothing to program.
		return nil

	case local.Line >= pinLineOffset && uint32(local.Line-pinLineOffset) < c.LineCount():
		c.writeRTE(uint32(local.Line-pinLineOffset), uint64(high)<<32|uint64(low))
		return nil
	}

	return fmt.Errorf("apic: set state of %s: %w", line, intctrl.ErrInvalidParameter)
}

// setLVTState programs one fixed local slot. LVTs carry no trigger-mode or
// polarity fields, so only the vector and mask bits of the encoded value
// apply; the slot's existing delivery routing is preserved, as is the
// periodic bit of the timer.
func (c *IOAPIC) setLVTState(line int32, low uint32) error {
	var reg localRegister
	keep := uint32(deliveryModeMask)

	switch line {
	case lineTimer:
		reg = regLVTTimer
		keep |= lvtTimerPeriodic
	case lineThermal:
		reg = regLVTThermal
	case linePerformance:
		reg = regLVTPerformance
	case lineLInt0:
		reg = regLVTLInt0
	case lineLInt1:
		reg = regLVTLInt1
	case lineError:
		reg = regLVTError
	case lineCMCI:
		reg = regLVTCMCI
	default:
		return fmt.Errorf("apic: local line %d: %w", line, intctrl.ErrNotImplemented)
	}

	win, err := c.platform.localWindow()
	if err != nil {
		return err
	}

	value := readLocal(win, reg) & keep
	value |= low & (vectorMask | rteMasked)
	writeLocal(win, reg, value)
	return nil
}

// MaskLine flips exactly the mask bit of a chip pin, leaving vector,
// destination, and mode intact. This is the fast runtime path; full
// reprogramming goes through SetLineState.
func (c *IOAPIC) MaskLine(line intctrl.Line, enable bool) {
	local, ok := line.(intctrl.LocalLine)
	if !ok || local.Line < pinLineOffset {
		return
	}
	index := uint32(local.Line - pinLineOffset)
	if index >= c.LineCount() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.readRTELocked(index)
	entry &^= uint64(rteMasked)
	if !enable {
		entry |= rteMasked
	}
	c.writeRTELocked(index, entry)
}

// RequestInterrupt issues a software-requested interrupt on the artificial
// IPI line.
func (c *IOAPIC) RequestInterrupt(line intctrl.Line, vector uint32, target intctrl.Target) error {
	return c.platform.requestInterrupt(line, vector, target)
}

// EnumerateProcessors re-walks the firmware table and fills buf.
func (c *IOAPIC) EnumerateProcessors(buf []intctrl.Processor) (int, error) {
	return c.platform.enumerateProcessors(buf)
}

// InitializeLocalUnit resets and enables the calling processor's local unit.
func (c *IOAPIC) InitializeLocalUnit() (uint32, error) {
	return c.platform.initializeLocalUnit()
}

// SetLocalUnitAddressing programs the calling processor's addressing mode.
func (c *IOAPIC) SetLocalUnitAddressing(target intctrl.Target) error {
	return c.platform.setLocalUnitAddressing(target)
}

// StartProcessor sends the INIT-SIPI-SIPI sequence to another processor.
func (c *IOAPIC) StartProcessor(id uint32, jumpAddress uint64) error {
	return c.platform.startProcessor(id, jumpAddress)
}

// GetMessageInformation computes message-signaled interrupt pairs.
func (c *IOAPIC) GetMessageInformation(vector, count uint64, target intctrl.Target, output intctrl.Line, flags intctrl.StateFlags) ([]intctrl.Message, error) {
	return c.platform.getMessageInformation(vector, count, target, output, flags)
}

// FastEndOfInterrupt retires the current interrupt with one register write.
func (c *IOAPIC) FastEndOfInterrupt() {
	c.platform.fastEndOfInterrupt()
}

// describeLines reports this chip's line ranges. The processor-local and
// software-only pseudo lines are shared across the whole package and are
// advertised only by the first chip discovered.
func (c *IOAPIC) describeLines() error {
	if c.platform.isFirstChip(c.id) {
		err := c.registry.RegisterLines(intctrl.LineRange{
			Type:       intctrl.LinesProcessorLocal,
			Controller: c.id,
			First:      0,
			Last:       lvtLineCount,
			GSIBase:    intctrl.GSINone,
		})
		if err != nil {
			return err
		}

		err = c.registry.RegisterLines(intctrl.LineRange{
			Type:       intctrl.LinesSoftwareOnly,
			Controller: c.id,
			First:      ipiLine,
			Last:       ipiLine + 1,
			GSIBase:    intctrl.GSINone,
		})
		if err != nil {
			return err
		}

		err = c.registry.RegisterLines(intctrl.LineRange{
			Type:             intctrl.LinesOutput,
			Controller:       c.id,
			First:            intctrl.CPULineFirst,
			Last:             intctrl.CPULineLast,
			GSIBase:          intctrl.GSINone,
			OutputController: intctrl.CPUController,
		})
		if err != nil {
			return err
		}
	}

	return c.registry.RegisterLines(intctrl.LineRange{
		Type:       intctrl.LinesStandardPin,
		Controller: c.id,
		First:      pinLineOffset,
		Last:       pinLineOffset + int32(c.lineCount),
		GSIBase:    c.gsiBase,
	})
}

// readRegisterLocked performs one select+data read. Callers hold mu.
func (c *IOAPIC) readRegisterLocked(reg uint32) uint32 {
	c.win.Write32(ioRegSelect, reg)
	return c.win.Read32(ioRegData)
}

// writeRegisterLocked performs one select+data write. Callers hold mu.
func (c *IOAPIC) writeRegisterLocked(reg, value uint32) {
	c.win.Write32(ioRegSelect, reg)
	c.win.Write32(ioRegData, value)
}

func (c *IOAPIC) readRTE(entry uint32) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readRTELocked(entry)
}

func (c *IOAPIC) readRTELocked(entry uint32) uint64 {
	reg := uint32(ioAPICRegFirstRTE) + entry*ioAPICRTESize
	low := uint64(c.readRegisterLocked(reg))
	high := uint64(c.readRegisterLocked(reg + 1))
	return high<<32 | low
}

func (c *IOAPIC) writeRTE(entry uint32, value uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeRTELocked(entry, value)
}

// writeRTELocked writes one redirection entry in mask-low, high, real-low
// order, so the chip never observes a half-updated destination on an
// unmasked line.
func (c *IOAPIC) writeRTELocked(entry uint32, value uint64) {
	reg := uint32(ioAPICRegFirstRTE) + entry*ioAPICRTESize
	c.writeRegisterLocked(reg, maskedRTE)
	c.writeRegisterLocked(reg+1, uint32(value>>32))
	c.writeRegisterLocked(reg, uint32(value))
}

var (
	_ intctrl.Controller    = (*IOAPIC)(nil)
	_ intctrl.FastEOISender = (*IOAPIC)(nil)
)
