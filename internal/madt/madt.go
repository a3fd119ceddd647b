// Package madt walks the firmware's Multiple APIC Description Table: an
// opaque length-prefixed sequence of variable-size records following a
// standard ACPI table header. Only the record types the interrupt layer
// needs are decoded; everything else is skipped by length.
package madt

import (
	"encoding/binary"
	"fmt"
)

const (
	// Signature is the ACPI table signature of the MADT.
	Signature = "APIC"

	headerSize = 44 // 36-byte ACPI header + LAPIC address + flags

	entryLocalAPIC uint8 = 0
	entryIOAPIC    uint8 = 1
	entryOverride  uint8 = 2

	localAPICLength = 8
	ioAPICLength    = 12
	overrideLength  = 10

	// localAPICEnabled is the enabled bit of a local-APIC entry's flags.
	localAPICEnabled uint32 = 1
)

// LocalAPIC is one processor entry.
type LocalAPIC struct {
	ProcessorID uint8
	ID          uint8
	Enabled     bool
}

// IOAPIC is one I/O chip entry.
type IOAPIC struct {
	ID      uint8
	Address uint64
	GSIBase uint32
}

// Override is one interrupt source override entry. The interrupt layer
// carries these through to callers; the APIC driver itself ignores them.
type Override struct {
	Bus   uint8
	IRQ   uint8
	GSI   uint32
	Flags uint16
}

// Table is the decoded MADT.
type Table struct {
	LocalAPICAddress uint64
	Flags            uint32

	LocalAPICs []LocalAPIC
	IOAPICs    []IOAPIC
	Overrides  []Override
}

// Parse decodes a full MADT, header included. Records with unknown types
// or unexpected lengths are skipped, matching firmware-walk convention.
func Parse(table []byte) (*Table, error) {
	if len(table) < headerSize {
		return nil, fmt.Errorf("madt: table truncated at %d bytes", len(table))
	}
	if string(table[0:4]) != Signature {
		return nil, fmt.Errorf("madt: bad signature %q", table[0:4])
	}
	length := binary.LittleEndian.Uint32(table[4:8])
	if int(length) > len(table) || length < headerSize {
		return nil, fmt.Errorf("madt: header length %d outside table of %d bytes", length, len(table))
	}

	out := &Table{
		LocalAPICAddress: uint64(binary.LittleEndian.Uint32(table[36:40])),
		Flags:            binary.LittleEndian.Uint32(table[40:44]),
	}

	body := table[headerSize:length]
	for len(body) >= 2 {
		typ, recLen := body[0], int(body[1])
		if recLen < 2 || recLen > len(body) {
			return nil, fmt.Errorf("madt: record type %d with bad length %d", typ, recLen)
		}
		rec := body[:recLen]

		switch {
		case typ == entryLocalAPIC && recLen == localAPICLength:
			flags := binary.LittleEndian.Uint32(rec[4:8])
			out.LocalAPICs = append(out.LocalAPICs, LocalAPIC{
				ProcessorID: rec[2],
				ID:          rec[3],
				Enabled:     flags&localAPICEnabled != 0,
			})

		case typ == entryIOAPIC && recLen == ioAPICLength:
			out.IOAPICs = append(out.IOAPICs, IOAPIC{
				ID:      rec[2],
				Address: uint64(binary.LittleEndian.Uint32(rec[4:8])),
				GSIBase: binary.LittleEndian.Uint32(rec[8:12]),
			})

		case typ == entryOverride && recLen == overrideLength:
			out.Overrides = append(out.Overrides, Override{
				Bus:   rec[2],
				IRQ:   rec[3],
				GSI:   binary.LittleEndian.Uint32(rec[4:8]),
				Flags: binary.LittleEndian.Uint16(rec[8:10]),
			})
		}

		body = body[recLen:]
	}

	return out, nil
}
