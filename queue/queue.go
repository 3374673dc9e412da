// Package queue implements job dispatch and completion tracking over the
// accelerator's hardware job queue.
//
// The device hands out an 8-bit job id on acquire and exposes the id of the
// most recently started job. Completion of a job is inferred from that id
// together with the queue occupancy, modulo 256.
//
// A Queue is meant for a single producer. Acquiring an id and writing the
// matching register image must not interleave with another dispatcher; use
// Serialized when several goroutines share a device.
package queue

import (
	"log"

	"github.com/LynnColeArt/nnx"
	"github.com/LynnColeArt/nnx/bsp"
	"github.com/LynnColeArt/nnx/hwpe"
)

// Handle identifies a dispatched job.
type Handle interface {
	JobID() uint8
}

// Task is a job that can be dispatched.
type Task interface {
	Handle
	Registers() []uint32
	Assign(id uint8)
}

// ID is a bare job id, for callers that keep only the id after dispatch.
type ID uint8

// JobID implements Handle.
func (id ID) JobID() uint8 { return uint8(id) }

// Queue dispatches jobs to one accelerator.
type Queue struct {
	dev          *hwpe.Dev
	waiter       bsp.Waiter
	platform     bsp.Platform
	depth        int
	conservative bool
	logger       *log.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithConservativeResolve treats an empty queue as the only completion
// signal, for devices whose running job register cannot be trusted.
func WithConservativeResolve(on bool) Option {
	return func(q *Queue) { q.conservative = on }
}

// WithDepth sets the number of hardware queue slots. The status register
// only reports occupancy, so a one slot queue is full with one job.
func WithDepth(n int) Option {
	return func(q *Queue) { q.depth = n }
}

// WithLogger traces dispatch and resolution.
func WithLogger(l *log.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// New returns a Queue over dev that suspends on w. Both must be non-nil.
func New(dev *hwpe.Dev, w bsp.Waiter, opts ...Option) *Queue {
	if dev == nil {
		panic(nnx.ErrNilDevice)
	}
	if w == nil {
		panic(nnx.NewInvalidArgError("queue.New", "nil waiter"))
	}
	q := &Queue{dev: dev, waiter: w, depth: 2}
	for _, o := range opts {
		o(q)
	}
	if q.depth < 1 || q.depth > 2 {
		panic(nnx.NewInvalidArgErrorf("queue.New", "queue depth %d", q.depth))
	}
	return q
}

func (q *Queue) logf(format string, args ...interface{}) {
	if q.logger != nil {
		q.logger.Printf(format, args...)
	}
}

// Conservative reports whether only an empty queue counts as completion.
func (q *Queue) Conservative() bool { return q.conservative }

// Dev returns the HWPE the queue drives.
func (q *Queue) Dev() *hwpe.Dev { return q.dev }

// Open brings the platform up and clears the accelerator.
func (q *Queue) Open(p bsp.Platform, conf bsp.Conf) error {
	if p == nil {
		p = bsp.Nop{}
	}
	if err := p.Open(conf); err != nil {
		return nnx.NewDeviceError("queue.Open", "platform open", err)
	}
	q.platform = p
	q.dev.SoftClear()
	q.logf("queue: open, max stall %d", conf.MaxStall)
	return nil
}

// Close clears the accelerator and shuts the platform down.
func (q *Queue) Close() error {
	q.dev.SoftClear()
	p := q.platform
	q.platform = nil
	if p == nil {
		return nil
	}
	if err := p.Close(); err != nil {
		return nnx.NewDeviceError("queue.Close", "platform close", err)
	}
	q.logf("queue: closed")
	return nil
}

// DispatchCheck reports whether the queue has a free slot.
func (q *Queue) DispatchCheck() bool {
	st := q.dev.Status()
	return st != hwpe.StatusFull && st.InFlight() < q.depth
}

// err returns the sticky failure of the waiter, if it reports one.
func (q *Queue) err() error {
	if ew, ok := q.waiter.(bsp.ErrWaiter); ok {
		return ew.Err()
	}
	return nil
}

func (q *Queue) wait() error {
	q.waiter.WaitAndClear()
	return q.err()
}

// DispatchWait blocks until the queue has a free slot. It fails once the
// waiter reports an error.
func (q *Queue) DispatchWait() error {
	for !q.DispatchCheck() {
		if err := q.wait(); err != nil {
			return err
		}
	}
	return nil
}

// Dispatch acquires a job id, writes the register image and starts the
// job. It returns false without side effects when the queue is full.
func (q *Queue) Dispatch(t Task) bool {
	id, ok := q.dev.Acquire()
	if !ok {
		return false
	}
	t.Assign(id)
	q.dev.WriteTask(t.Registers())
	q.dev.ReleaseAndRun()
	q.logf("queue: dispatched job %d", id)
	return true
}

// DispatchBlocking waits for a free slot and dispatches t. When the
// acquire still fails the slot frees up only on a completion, so it waits
// for the next event before retrying.
func (q *Queue) DispatchBlocking(t Task) error {
	for {
		if err := q.DispatchWait(); err != nil {
			return err
		}
		if q.Dispatch(t) {
			return nil
		}
		if err := q.wait(); err != nil {
			return err
		}
	}
}

// ResolveCheck reports whether the job h has finished.
//
// With last the id of the most recently started job, h is still pending
// when last is the id just before it (h has not started) or when last is
// h itself and the queue is not empty (h may still be running).
func (q *Queue) ResolveCheck(h Handle) bool {
	if q.conservative {
		return q.dev.Empty()
	}
	return resolved(q.dev.LastTaskID(), h.JobID(), q.dev.Empty())
}

func resolved(last, id uint8, empty bool) bool {
	if last == id-1 {
		return false
	}
	if last == id && !empty {
		return false
	}
	return true
}

// ResolveWait blocks until h has finished.
func (q *Queue) ResolveWait(h Handle) error {
	for !q.ResolveCheck(h) {
		if err := q.wait(); err != nil {
			return err
		}
	}
	q.logf("queue: resolved job %d", h.JobID())
	return nil
}

// Drain blocks until every dispatched job has finished.
func (q *Queue) Drain() error {
	for !q.dev.Empty() {
		if err := q.wait(); err != nil {
			return err
		}
	}
	return nil
}

// InFlight returns the number of queued and running jobs.
func (q *Queue) InFlight() int {
	return q.dev.InFlight()
}
