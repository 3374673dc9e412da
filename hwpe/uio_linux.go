//go:build linux
// +build linux

package hwpe

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/LynnColeArt/nnx"
)

// UIO is an accelerator exposed through a Linux userspace I/O node. Map 0
// of the node is the HWPE register window and the node's interrupt is the
// completion event.
type UIO struct {
	fd    int
	mem   []byte
	words []uint32

	mu  sync.Mutex
	err error
}

// OpenUIO opens a /dev/uioN node and maps size bytes of its first map.
func OpenUIO(path string, size int) (*UIO, error) {
	if size <= 0 || size%4 != 0 {
		return nil, nnx.NewInvalidArgErrorf("OpenUIO", "window size %d must be a positive multiple of 4", size)
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, nnx.NewDeviceError("OpenUIO", "open "+path, err)
	}
	// map N is selected by an offset of N pages
	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, nnx.NewDeviceError("OpenUIO", "mmap "+path, err)
	}
	return &UIO{fd: fd, mem: mem, words: wordsOf(mem)}, nil
}

// Read implements Device.
func (u *UIO) Read(offset uint32) uint32 {
	return atomic.LoadUint32(&u.words[offset/4])
}

// Write implements Device.
func (u *UIO) Write(offset uint32, value uint32) {
	atomic.StoreUint32(&u.words[offset/4], value)
}

// WaitAndClear re-enables the interrupt and blocks until it fires. A
// failed wait returns immediately and the error is kept for Err; later
// waits return at once. The kernel counts interrupts per open node, so
// one raised before the call is not lost.
func (u *UIO) WaitAndClear() {
	if u.Err() != nil {
		return
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], 1)
	if _, err := unix.Write(u.fd, buf[:]); err != nil {
		u.setErr(err)
		return
	}
	for {
		_, err := unix.Read(u.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			u.setErr(err)
		}
		return
	}
}

func (u *UIO) setErr(err error) {
	u.mu.Lock()
	u.err = nnx.NewDeviceError("WaitAndClear", "uio interrupt wait", err)
	u.mu.Unlock()
}

// Err returns the last interrupt wait error, if any.
func (u *UIO) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

// Close unmaps the window and closes the node.
func (u *UIO) Close() error {
	err := unix.Munmap(u.mem)
	if cerr := unix.Close(u.fd); err == nil {
		err = cerr
	}
	return err
}
