// Package bsp holds the platform side of the driver: cluster bring-up
// around a batch of jobs and the blocking wait on the completion event.
package bsp

import (
	"github.com/LynnColeArt/nnx"
	"github.com/LynnColeArt/nnx/hwpe"
)

// Waiter suspends the caller until the accelerator raises its completion
// event, then clears the event. Wakes are broadcast: callers must re-check
// the condition they wait for.
type Waiter interface {
	WaitAndClear()
}

// WaiterFunc adapts a function to Waiter.
type WaiterFunc func()

// WaitAndClear calls f.
func (f WaiterFunc) WaitAndClear() { f() }

// ErrWaiter is a Waiter that can fail, such as an interrupt read on a
// device node. Err is sticky: once it is non-nil, blocking loops stop.
type ErrWaiter interface {
	Waiter
	Err() error
}

// Conf is the bring-up configuration.
type Conf struct {
	// Interconnect stall cycles the accelerator may cause, 0-255
	MaxStall uint8
}

// DefaultConf returns the configuration used by the reference platforms.
func DefaultConf() Conf {
	return Conf{MaxStall: nnx.DefaultMaxStall}
}

// Platform brackets a batch of jobs.
type Platform interface {
	Open(conf Conf) error
	Close() error
}

// Cluster control HWPE register and its fields
const (
	RegHWPE = 0x18

	HWPECGEnableMask = 0x800
	HWPESelectMask   = 0x2000 // neureka family only
	HWPEHCIPrioMask  = 0x100
	HWPEMaxStallMask = 0xff
)

// Cluster programs the cluster control unit of a PULP cluster.
type Cluster struct {
	ctrl hwpe.Device
	// Set the accelerator select bit (neureka family)
	Select bool
}

// NewCluster returns a Cluster driving the cluster control window ctrl.
func NewCluster(ctrl hwpe.Device, selectAccel bool) *Cluster {
	if ctrl == nil {
		panic(nnx.ErrNilDevice)
	}
	return &Cluster{ctrl: ctrl, Select: selectAccel}
}

func (c *Cluster) update(clear, set uint32) {
	v := c.ctrl.Read(RegHWPE)
	c.ctrl.Write(RegHWPE, v&^clear|set)
}

// Open enables the accelerator clock, routes the shared memory to the
// accelerator with priority and programs the max stall.
func (c *Cluster) Open(conf Conf) error {
	set := uint32(HWPECGEnableMask | HWPEHCIPrioMask)
	if c.Select {
		set |= HWPESelectMask
	}
	c.update(HWPEMaxStallMask, set|uint32(conf.MaxStall))
	return nil
}

// Close gates the accelerator clock, gives the memory priority back to
// the cores and resets the max stall.
func (c *Cluster) Close() error {
	clear := uint32(HWPECGEnableMask | HWPEHCIPrioMask | HWPEMaxStallMask)
	if c.Select {
		clear |= HWPESelectMask
	}
	c.update(clear, 0)
	return nil
}

// Nop is a Platform with nothing to configure, used with the simulator.
type Nop struct{}

func (Nop) Open(Conf) error { return nil }
func (Nop) Close() error    { return nil }
