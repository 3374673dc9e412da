package hwpe

import (
	"sync"
)

// jobWindowWords bounds the job configuration window of the simulator.
const jobWindowWords = 64

// Job is a register image accepted by the simulator.
type Job struct {
	ID        uint8
	Registers []uint32
}

// Sim is an in-memory model of the HWPE command interface: a FIFO of
// queued jobs whose head is running, an 8-bit wrapping id counter and a
// completion event. It implements Device and the blocking event wait.
//
// By default a wait with nothing pending completes the running job, so a
// single goroutine can drive the whole protocol. With WithManualCompletion
// jobs only finish through Complete and waits block until they do.
type Sim struct {
	mu   sync.Mutex
	cond *sync.Cond

	depth      int
	window     [jobWindowWords]uint32
	nextID     uint8
	acquired   bool
	acquiredID uint8

	queue   []Job
	started bool
	running uint8

	finished uint32
	events   int
	spurious int
	history  []Job

	manual    bool
	brokenID  bool
	keepTrace bool
}

// SimOption configures a Sim.
type SimOption func(*Sim)

// WithQueueDepth sets the number of queue slots (1 or 2).
func WithQueueDepth(n int) SimOption {
	return func(s *Sim) { s.depth = n }
}

// WithManualCompletion makes jobs finish only through Complete.
func WithManualCompletion() SimOption {
	return func(s *Sim) { s.manual = true }
}

// WithBrokenJobID makes the running job register read as zero, like the
// simulation model of the neureka family.
func WithBrokenJobID() SimOption {
	return func(s *Sim) { s.brokenID = true }
}

// WithHistory records every finished job.
func WithHistory() SimOption {
	return func(s *Sim) { s.keepTrace = true }
}

// NewSim returns an empty simulator with a two slot queue.
func NewSim(opts ...SimOption) *Sim {
	s := &Sim{depth: 2}
	for _, o := range opts {
		o(s)
	}
	if s.depth < 1 {
		s.depth = 1
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Read implements Device.
func (s *Sim) Read(offset uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch offset {
	case RegAcquire:
		if s.acquired {
			return uint32(s.acquiredID)
		}
		if len(s.queue) >= s.depth {
			return 0xffffffff
		}
		s.acquired = true
		s.acquiredID = s.nextID
		s.nextID++
		return uint32(s.acquiredID)
	case RegStatus:
		return uint32(s.status())
	case RegRunningJob:
		if s.brokenID {
			return 0
		}
		return uint32(s.running)
	case RegFinished:
		return s.finished
	}
	if idx, ok := windowIndex(offset); ok {
		return s.window[idx]
	}
	return 0
}

// Write implements Device.
func (s *Sim) Write(offset uint32, value uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch offset {
	case RegTrigger:
		s.trigger(value == TriggerRun)
		return
	case RegSoftClear:
		s.clear()
		return
	}
	if idx, ok := windowIndex(offset); ok {
		s.window[idx] = value
	}
}

func windowIndex(offset uint32) (int, bool) {
	if offset < RegJobBase || offset%4 != 0 {
		return 0, false
	}
	idx := int(offset-RegJobBase) / 4
	return idx, idx < jobWindowWords
}

func (s *Sim) status() Status {
	switch len(s.queue) {
	case 0:
		return StatusEmpty
	case 1:
		return 0x001
	default:
		return StatusFull
	}
}

func (s *Sim) trigger(run bool) {
	if s.acquired {
		regs := make([]uint32, jobWindowWords)
		copy(regs, s.window[:])
		s.queue = append(s.queue, Job{ID: s.acquiredID, Registers: regs})
		s.acquired = false
		if len(s.queue) == 1 {
			s.running = s.queue[0].ID
		}
	}
	if run {
		s.started = true
	}
}

func (s *Sim) clear() {
	s.queue = nil
	s.acquired = false
	s.nextID = 0
	s.running = 0
	s.started = false
	s.events = 0
	s.window = [jobWindowWords]uint32{}
	s.cond.Broadcast()
}

// complete finishes the running job. Callers hold s.mu.
func (s *Sim) complete() (Job, bool) {
	if len(s.queue) == 0 || !s.started {
		return Job{}, false
	}
	j := s.queue[0]
	s.queue = s.queue[1:]
	if len(s.queue) > 0 {
		s.running = s.queue[0].ID
	}
	s.finished++
	s.events++
	if s.keepTrace {
		s.history = append(s.history, j)
	}
	s.cond.Broadcast()
	return j, true
}

// Complete finishes the running job and raises the completion event.
func (s *Sim) Complete() (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complete()
}

// CompleteAll finishes every queued job and returns how many ran.
func (s *Sim) CompleteAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for {
		if _, ok := s.complete(); !ok {
			return n
		}
		n++
	}
}

// SpuriousWakes makes the next n waits return without any job finishing.
func (s *Sim) SpuriousWakes(n int) {
	s.mu.Lock()
	s.spurious += n
	s.mu.Unlock()
}

// WaitAndClear blocks until a completion event is pending and clears it.
func (s *Sim) WaitAndClear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.spurious > 0 {
		s.spurious--
		return
	}
	if s.events == 0 && !s.manual {
		s.complete()
	}
	for s.events == 0 && s.manual {
		s.cond.Wait()
	}
	s.events = 0
}

// SetNextID moves the id counter, to start a run close to the wrap.
func (s *Sim) SetNextID(id uint8) {
	s.mu.Lock()
	s.nextID = id
	s.mu.Unlock()
}

// Queued returns the number of committed jobs not yet finished.
func (s *Sim) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Finished returns the number of jobs completed since creation.
func (s *Sim) Finished() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.finished)
}

// History returns the finished jobs in completion order. Empty unless the
// simulator was created WithHistory.
func (s *Sim) History() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, len(s.history))
	copy(out, s.history)
	return out
}
