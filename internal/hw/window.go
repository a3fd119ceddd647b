// Package hw provides typed access to memory-mapped register windows.
//
// Interrupt controller drivers never touch memory directly; they go through
// a Window32 handed out by a Mapper. On a real machine the Mapper is backed
// by /dev/mem, in tests it is backed by software register-file models.
package hw

import (
	"encoding/binary"
	"fmt"
)

// Window32 is a mapped run of 32-bit hardware registers. Offsets are byte
// offsets from the start of the window.
type Window32 interface {
	Read32(offset uint64) uint32
	Write32(offset uint64, value uint32)
}

// Mapper maps physical register windows into the process.
type Mapper interface {
	Map(physical uint64, size uint64) (Window32, error)
}

// MemWindow is a plain byte-backed register window with no side effects on
// access. Device models use it for regions that behave like ordinary memory.
type MemWindow struct {
	mem []byte
}

// NewMemWindow returns a zeroed window of the given size in bytes.
func NewMemWindow(size uint64) *MemWindow {
	return &MemWindow{mem: make([]byte, size)}
}

func (w *MemWindow) Read32(offset uint64) uint32 {
	if offset+4 > uint64(len(w.mem)) {
		return 0
	}
	return binary.LittleEndian.Uint32(w.mem[offset:])
}

func (w *MemWindow) Write32(offset uint64, value uint32) {
	if offset+4 > uint64(len(w.mem)) {
		return
	}
	binary.LittleEndian.PutUint32(w.mem[offset:], value)
}

// Bytes exposes the backing storage, mainly for tests.
func (w *MemWindow) Bytes() []byte { return w.mem }

// MapperFunc adapts a function to the Mapper interface.
type MapperFunc func(physical uint64, size uint64) (Window32, error)

func (f MapperFunc) Map(physical uint64, size uint64) (Window32, error) {
	return f(physical, size)
}

// TableMapper hands out pre-registered windows by physical base address.
type TableMapper struct {
	windows map[uint64]Window32
}

// NewTableMapper returns an empty TableMapper.
func NewTableMapper() *TableMapper {
	return &TableMapper{windows: make(map[uint64]Window32)}
}

// Add registers a window at the given physical base.
func (m *TableMapper) Add(physical uint64, w Window32) {
	m.windows[physical] = w
}

func (m *TableMapper) Map(physical uint64, size uint64) (Window32, error) {
	w, ok := m.windows[physical]
	if !ok {
		return nil, fmt.Errorf("hw: no window registered at 0x%x", physical)
	}
	return w, nil
}

var (
	_ Window32 = (*MemWindow)(nil)
	_ Mapper   = (*TableMapper)(nil)
	_ Mapper   = MapperFunc(nil)
)
