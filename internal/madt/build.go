package madt

import (
	"bytes"
	"encoding/binary"
)

// Config describes the platform topology a built table should report.
type Config struct {
	LocalAPICAddress uint32

	LocalAPICs []LocalAPIC
	IOAPICs    []IOAPIC
	Overrides  []Override

	OEM OEMInfo
}

// OEMInfo mirrors the ACPI table header OEM fields.
type OEMInfo struct {
	OEMID           [6]byte
	OEMTableID      [8]byte
	OEMRevision     uint32
	CreatorID       [4]byte
	CreatorRevision uint32
}

// DefaultOEMInfo returns placeholder table header metadata.
func DefaultOEMInfo() OEMInfo {
	return OEMInfo{
		OEMID:           [6]byte{'M', 'E', 'R', 'I', 'D', 'N'},
		OEMTableID:      [8]byte{'M', 'E', 'R', 'I', 'D', 'A', 'P', 'C'},
		OEMRevision:     1,
		CreatorID:       [4]byte{'M', 'R', 'D', 'N'},
		CreatorRevision: 1,
	}
}

// Build fabricates a well-formed MADT, header included. Tests and the
// simulator use it to stand in for firmware.
func Build(cfg Config) []byte {
	if cfg.LocalAPICAddress == 0 {
		cfg.LocalAPICAddress = 0xFEE00000
	}
	if cfg.OEM == (OEMInfo{}) {
		cfg.OEM = DefaultOEMInfo()
	}

	body := &bytes.Buffer{}
	binary.Write(body, binary.LittleEndian, cfg.LocalAPICAddress)
	binary.Write(body, binary.LittleEndian, uint32(1)) // PC-AT compatible

	for _, lapic := range cfg.LocalAPICs {
		body.WriteByte(entryLocalAPIC)
		body.WriteByte(localAPICLength)
		body.WriteByte(lapic.ProcessorID)
		body.WriteByte(lapic.ID)
		flags := uint32(0)
		if lapic.Enabled {
			flags = localAPICEnabled
		}
		binary.Write(body, binary.LittleEndian, flags)
	}

	for _, chip := range cfg.IOAPICs {
		body.WriteByte(entryIOAPIC)
		body.WriteByte(ioAPICLength)
		body.WriteByte(chip.ID)
		body.WriteByte(0)
		binary.Write(body, binary.LittleEndian, uint32(chip.Address))
		binary.Write(body, binary.LittleEndian, chip.GSIBase)
	}

	for _, ovr := range cfg.Overrides {
		body.WriteByte(entryOverride)
		body.WriteByte(overrideLength)
		body.WriteByte(ovr.Bus)
		body.WriteByte(ovr.IRQ)
		binary.Write(body, binary.LittleEndian, ovr.GSI)
		binary.Write(body, binary.LittleEndian, ovr.Flags)
	}

	table := make([]byte, 36+body.Len())
	copy(table[0:4], Signature)
	binary.LittleEndian.PutUint32(table[4:8], uint32(len(table)))
	table[8] = 1 // revision
	copy(table[10:16], cfg.OEM.OEMID[:])
	copy(table[16:24], cfg.OEM.OEMTableID[:])
	binary.LittleEndian.PutUint32(table[24:28], cfg.OEM.OEMRevision)
	copy(table[28:32], cfg.OEM.CreatorID[:])
	binary.LittleEndian.PutUint32(table[32:36], cfg.OEM.CreatorRevision)
	copy(table[36:], body.Bytes())

	table[9] = checksum(table)
	return table
}

func checksum(b []byte) byte {
	var sum uint8
	for _, v := range b {
		sum += v
	}
	return byte(0 - sum)
}
