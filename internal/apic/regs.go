package apic

// Local APIC registers. The hardware spaces registers 16 bytes apart; the
// byte offset of a register is its index shifted left by four.
type localRegister uint32

const (
	regID                localRegister = 0x02
	regVersion           localRegister = 0x03
	regTaskPriority      localRegister = 0x08
	regEndOfInterrupt    localRegister = 0x0B
	regLogicalDest       localRegister = 0x0D
	regDestFormat        localRegister = 0x0E
	regSpurious          localRegister = 0x0F
	regInService         localRegister = 0x10
	regInterruptRequest  localRegister = 0x20
	regErrorStatus       localRegister = 0x28
	regLVTCMCI           localRegister = 0x2F
	regCommandLow        localRegister = 0x30
	regCommandHigh       localRegister = 0x31
	regLVTTimer          localRegister = 0x32
	regLVTThermal        localRegister = 0x33
	regLVTPerformance    localRegister = 0x34
	regLVTLInt0          localRegister = 0x35
	regLVTLInt1          localRegister = 0x36
	regLVTError          localRegister = 0x37
	regTimerInitialCount localRegister = 0x38
	regTimerCurrentCount localRegister = 0x39
	regTimerDivide       localRegister = 0x3E
)

func (r localRegister) offset() uint64 { return uint64(r) << 4 }

const (
	localAPICWindowSize = 0x1000
	ioAPICWindowSize    = 0x1000

	// Version register family check: accepted hardware reads 0x1X.
	versionFamilyMask = 0xF0
	versionFamily     = 0x10

	// Spurious vector register.
	apicSoftwareEnable = 1 << 8
	spuriousVectorMask = 0xFF
	spuriousVector     = 0xFF

	// Delivery mode field of RTEs, LVTs, and the command register.
	deliverFixed     = 0x000
	deliverLowest    = 0x100
	deliverSMI       = 0x200
	deliverNMI       = 0x400
	deliverINIT      = 0x500
	deliverStartup   = 0x600
	deliverExtInt    = 0x700
	deliveryModeMask = 0x700

	physicalDelivery = 0x0000
	logicalDelivery  = 1 << 11
	deliveryPending  = 1 << 12
	activeLow        = 1 << 13
	levelAssert      = 1 << 14
	levelDeassert    = 0
	levelTriggered   = 1 << 15
	edgeTriggered    = 0
	rteMasked        = 1 << 16
	lvtTimerPeriodic = 1 << 17

	// Command register destination shorthands.
	shorthandSelf       = 1 << 18
	shorthandAll        = 2 << 18
	shorthandAllButSelf = 3 << 18

	destinationShift = 24
	clusterShift     = 4

	logicalFlatModel      = 0xFFFFFFFF
	logicalClusteredModel = 0x0FFFFFFF

	vectorMask = 0xFF

	// maskedRTE is the canonical fully masked entry: mask bit set, benign
	// placeholder vector, every delivery and polarity bit zero.
	maskedRTE = rteMasked | vectorMask

	// nmiVector rides the NMI delivery mode when requested as an IPI.
	nmiVector = 0x02

	// The SIPI vector field encodes bits 12..19 of the jump address.
	startupCodeMask  = 0x000FF000
	startupCodeShift = 12

	// apicPriorityCount is the number of hardware task priority classes.
	apicPriorityCount = 16
)

// Fixed processor-local lines, in controller numbering.
const (
	lineTimer int32 = iota
	lineThermal
	linePerformance
	lineLInt0
	lineLInt1
	lineError
	lineCMCI
	lvtLineCount
)

const (
	// ipiLine is the artificial software-only line IPIs are requested on.
	ipiLine int32 = 0x10

	// pinLineOffset is where the chip's physical input pins begin in
	// controller numbering. Lines below it name processor-local slots.
	pinLineOffset int32 = 0x20
)

// I/O APIC registers, reached through the indirect select+data window.
const (
	ioRegSelect = 0x00
	ioRegData   = 0x10

	ioAPICRegID       = 0x00
	ioAPICRegVersion  = 0x01
	ioAPICRegFirstRTE = 0x10

	// One RTE occupies two consecutive register indices.
	ioAPICRTESize = 2

	ioVersionMaxEntryMask  = 0x00FF0000
	ioVersionMaxEntryShift = 16
)

// MSI address and data encoding.
const (
	msiAddressBaseMask      = 0xFFF00000
	msiAddressDestIDMask    = 0x000FF000
	msiAddressDestIDShift   = 12
	msiAddressRedirection   = 0x00000008
	msiAddressLogicalMode   = 0x00000004

	msiDataLevelTriggered = 0x00008000
	msiDataEdgeTriggered  = 0x00000000
	msiDataLevelAssert    = 0x00004000
	msiDataDeliverFixed   = 0x00000000
	msiDataDeliverLowest  = 0x00000100
	msiDataDeliverSMI     = 0x00000200
	msiDataDeliverNMI     = 0x00000400
	msiDataVectorMask     = 0x000000FF
)
