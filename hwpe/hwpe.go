// Package hwpe implements the command register protocol shared by the
// accelerators, on top of an injected register interface.
package hwpe

import (
	"github.com/LynnColeArt/nnx"
)

// Device is a window of 32-bit registers addressed by byte offset.
// Implementations must not reorder accesses.
type Device interface {
	Read(offset uint32) uint32
	Write(offset uint32, value uint32)
}

// Command register offsets
const (
	RegTrigger    = 0x00
	RegAcquire    = 0x04
	RegFinished   = 0x08
	RegStatus     = 0x0c
	RegRunningJob = 0x10
	RegSoftClear  = 0x14
	RegSwSync     = 0x18
	RegUriscyImem = 0x1c

	// First job configuration register
	RegJobBase = 0x20
)

// Trigger register values
const (
	TriggerRun    = 0 // commit the job and start it
	TriggerCommit = 1 // commit without starting
)

// Status is the raw queue status register.
type Status uint32

const (
	StatusEmpty Status = 0x000
	StatusFull  Status = 0x101
)

// InFlight returns the number of occupied queue slots.
func (s Status) InFlight() int {
	return int(s&1) + int(s>>8&1)
}

// Dev drives the HWPE command registers of one accelerator.
type Dev struct {
	dev Device
}

// New wraps a register window. dev must not be nil.
func New(dev Device) *Dev {
	if dev == nil {
		panic(nnx.ErrNilDevice)
	}
	return &Dev{dev: dev}
}

// Device returns the underlying register window.
func (h *Dev) Device() Device { return h.dev }

// Status reads the queue status register.
func (h *Dev) Status() Status {
	return Status(h.dev.Read(RegStatus))
}

// Empty reports whether no job is queued or running.
func (h *Dev) Empty() bool { return h.Status() == StatusEmpty }

// Full reports whether both queue slots are taken.
func (h *Dev) Full() bool { return h.Status() == StatusFull }

// InFlight returns the number of queued and running jobs.
func (h *Dev) InFlight() int { return h.Status().InFlight() }

// LastTaskID returns the id of the most recently started job.
func (h *Dev) LastTaskID() uint8 {
	return uint8(h.dev.Read(RegRunningJob))
}

// Acquire reserves a queue slot and returns its job id. ok is false when
// the queue is full; the caller may retry.
func (h *Dev) Acquire() (id uint8, ok bool) {
	v := int32(h.dev.Read(RegAcquire))
	if v < 0 || v > 0xff {
		return 0, false
	}
	return uint8(v), true
}

// TaskRegWrite writes job configuration word idx.
func (h *Dev) TaskRegWrite(idx int, value uint32) {
	h.dev.Write(RegJobBase+uint32(idx)*4, value)
}

// TaskRegRead reads job configuration word idx.
func (h *Dev) TaskRegRead(idx int) uint32 {
	return h.dev.Read(RegJobBase + uint32(idx)*4)
}

// WriteTask writes a register image word by word in ascending order.
func (h *Dev) WriteTask(words []uint32) {
	for i, w := range words {
		h.TaskRegWrite(i, w)
	}
}

// ReleaseAndRun commits the acquired job and starts it.
func (h *Dev) ReleaseAndRun() {
	h.dev.Write(RegTrigger, TriggerRun)
}

// Commit commits the acquired job without starting it.
func (h *Dev) Commit() {
	h.dev.Write(RegTrigger, TriggerCommit)
}

// SoftClear resets the queue and the job id counter.
func (h *Dev) SoftClear() {
	h.dev.Write(RegSoftClear, 0)
}
