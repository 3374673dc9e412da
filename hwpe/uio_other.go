//go:build !linux
// +build !linux

package hwpe

import "github.com/LynnColeArt/nnx"

// UIO is only available on linux.
type UIO struct{}

// OpenUIO always fails outside linux.
func OpenUIO(path string, size int) (*UIO, error) {
	return nil, nnx.ErrNoMMIO
}

func (u *UIO) Read(offset uint32) uint32         { return 0 }
func (u *UIO) Write(offset uint32, value uint32) {}
func (u *UIO) WaitAndClear()                     {}
func (u *UIO) Err() error                        { return nnx.ErrNoMMIO }
func (u *UIO) Close() error                      { return nil }
