package madt

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildParseRoundTrip(t *testing.T) {
	cfg := Config{
		LocalAPICAddress: 0xFEE00000,
		LocalAPICs: []LocalAPIC{
			{ProcessorID: 0, ID: 0, Enabled: true},
			{ProcessorID: 1, ID: 1, Enabled: true},
			{ProcessorID: 2, ID: 7, Enabled: false},
		},
		IOAPICs: []IOAPIC{
			{ID: 4, Address: 0xFEC00000, GSIBase: 0},
			{ID: 5, Address: 0xFEC01000, GSIBase: 24},
		},
		Overrides: []Override{
			{Bus: 0, IRQ: 0, GSI: 2, Flags: 0},
			{Bus: 0, IRQ: 9, GSI: 9, Flags: 0xF},
		},
	}

	table, err := Parse(Build(cfg))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := &Table{
		LocalAPICAddress: 0xFEE00000,
		Flags:            1,
		LocalAPICs:       cfg.LocalAPICs,
		IOAPICs:          cfg.IOAPICs,
		Overrides:        cfg.Overrides,
	}
	if diff := cmp.Diff(want, table); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildChecksum(t *testing.T) {
	raw := Build(Config{LocalAPICs: []LocalAPIC{{Enabled: true}}})

	var sum uint8
	for _, b := range raw {
		sum += b
	}
	if sum != 0 {
		t.Errorf("table bytes sum to %#x, want 0", sum)
	}
}

func TestParseSkipsUnknownRecords(t *testing.T) {
	raw := Build(Config{
		LocalAPICs: []LocalAPIC{{ProcessorID: 0, ID: 0, Enabled: true}},
		IOAPICs:    []IOAPIC{{ID: 4, Address: 0xFEC00000}},
	})

	// Splice an unknown record type between header and body; the parser
	// must step over it by length.
	unknown := []byte{0x42, 6, 0xAA, 0xBB, 0xCC, 0xDD}
	spliced := append([]byte{}, raw[:44]...)
	spliced = append(spliced, unknown...)
	spliced = append(spliced, raw[44:]...)
	spliced[4] = byte(len(spliced)) // table length fits in one byte here

	table, err := Parse(spliced)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(table.LocalAPICs) != 1 || len(table.IOAPICs) != 1 {
		t.Errorf("got %d local units and %d chips, want 1 and 1",
			len(table.LocalAPICs), len(table.IOAPICs))
	}
}

func TestParseRejectsMalformedTables(t *testing.T) {
	good := Build(Config{LocalAPICs: []LocalAPIC{{Enabled: true}}})

	badSignature := append([]byte{}, good...)
	copy(badSignature[0:4], "XXXX")

	badLength := append([]byte{}, good...)
	badLength[4] = byte(len(badLength) + 10)

	badRecord := append([]byte{}, good...)
	badRecord[45] = 200 // record length past the end of the table

	tests := []struct {
		name string
		raw  []byte
		msg  string
	}{
		{name: "truncated", raw: good[:20], msg: "truncated"},
		{name: "bad signature", raw: badSignature, msg: "signature"},
		{name: "length past end", raw: badLength, msg: "length"},
		{name: "record length past end", raw: badRecord, msg: "bad length"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			if err == nil {
				t.Fatal("Parse accepted malformed table")
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("Parse error = %q, want mention of %q", err, tt.msg)
			}
		})
	}
}

func TestParseIgnoresTrailingGarbageBeyondLength(t *testing.T) {
	raw := Build(Config{LocalAPICs: []LocalAPIC{{ProcessorID: 1, ID: 1, Enabled: true}}})
	padded := append(append([]byte{}, raw...), 0xDE, 0xAD)

	table, err := Parse(padded)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(table.LocalAPICs) != 1 {
		t.Errorf("got %d local units, want 1", len(table.LocalAPICs))
	}
}
