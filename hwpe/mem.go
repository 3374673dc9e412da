package hwpe

import (
	"os"
	"sync/atomic"
	"unsafe"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/LynnColeArt/nnx"
)

// Mem is a register window mapped from a physical memory device such as
// /dev/mem. Accesses are 32-bit atomic loads and stores, which the
// compiler never merges or reorders.
type Mem struct {
	f     *os.File
	m     mmap.MMap
	words []uint32
}

// OpenMem maps size bytes of path starting at physical address base.
// base need not be page aligned.
func OpenMem(path string, base int64, size int) (*Mem, error) {
	if size <= 0 || size%4 != 0 {
		return nil, nnx.NewInvalidArgErrorf("OpenMem", "window size %d must be a positive multiple of 4", size)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, nnx.NewDeviceError("OpenMem", "open "+path, err)
	}

	page := int64(os.Getpagesize())
	aligned := base &^ (page - 1)
	delta := int(base - aligned)
	m, err := mmap.MapRegion(f, size+delta, mmap.RDWR, 0, aligned)
	if err != nil {
		f.Close()
		return nil, nnx.NewDeviceError("OpenMem", "mmap "+path, err)
	}
	return &Mem{f: f, m: m, words: wordsOf(m[delta : delta+size])}, nil
}

func wordsOf(b []byte) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
}

// Read implements Device.
func (m *Mem) Read(offset uint32) uint32 {
	return atomic.LoadUint32(&m.words[offset/4])
}

// Write implements Device.
func (m *Mem) Write(offset uint32, value uint32) {
	atomic.StoreUint32(&m.words[offset/4], value)
}

// Close unmaps the window.
func (m *Mem) Close() error {
	err := m.m.Unmap()
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}
