//go:build linux

package hw

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DevMem maps physical register windows through /dev/mem. Mappings are
// uncached from the driver's point of view; reads and writes go through
// atomic loads and stores so the compiler cannot elide or reorder them.
type DevMem struct {
	f *os.File
}

// OpenDevMem opens /dev/mem for register mapping. Requires CAP_SYS_RAWIO.
func OpenDevMem() (*DevMem, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("hw: open /dev/mem: %w", err)
	}
	return &DevMem{f: f}, nil
}

// Map maps the register window at the given physical address. The mapping
// lives until the process exits; interrupt controller windows are never torn
// down.
func (d *DevMem) Map(physical uint64, size uint64) (Window32, error) {
	page := uint64(unix.Getpagesize())
	base := physical &^ (page - 1)
	span := ((physical + size + page - 1) &^ (page - 1)) - base

	mem, err := unix.Mmap(int(d.f.Fd()), int64(base), int(span),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("hw: mmap 0x%x (+0x%x): %w", base, span, err)
	}

	return &mmapWindow{mem: mem, skew: physical - base, size: size}, nil
}

// Close releases the /dev/mem handle. Existing mappings stay valid.
func (d *DevMem) Close() error {
	return d.f.Close()
}

type mmapWindow struct {
	mem  []byte
	skew uint64
	size uint64
}

func (w *mmapWindow) Read32(offset uint64) uint32 {
	if offset+4 > w.size {
		return 0
	}
	p := (*uint32)(unsafe.Pointer(&w.mem[w.skew+offset]))
	return atomic.LoadUint32(p)
}

func (w *mmapWindow) Write32(offset uint64, value uint32) {
	if offset+4 > w.size {
		return
	}
	p := (*uint32)(unsafe.Pointer(&w.mem[w.skew+offset]))
	atomic.StoreUint32(p, value)
}

var _ Mapper = (*DevMem)(nil)
