package queue

import "sync"

// Serialized guards a Queue for use by several goroutines. Blocking calls
// hold the lock only while touching the device, so one producer waiting
// for a slot does not stall others checking completion.
//
// A completion event wakes a single reader on some waiters, a UIO node
// for one. Only one goroutine calls the waiter at a time; the others sleep
// until it returns and then re-check.
type Serialized struct {
	mu sync.Mutex
	q  *Queue

	wmu     sync.Mutex
	woken   *sync.Cond
	epoch   uint64
	waiting bool
	err     error
}

// NewSerialized wraps q.
func NewSerialized(q *Queue) *Serialized {
	s := &Serialized{q: q}
	s.woken = sync.NewCond(&s.wmu)
	return s
}

// Dispatch is Queue.Dispatch under the lock.
func (s *Serialized) Dispatch(t Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.Dispatch(t)
}

// DispatchBlocking waits for a slot and dispatches t.
func (s *Serialized) DispatchBlocking(t Task) error {
	for {
		e := s.current()
		if s.Dispatch(t) {
			return nil
		}
		if err := s.wait(e); err != nil {
			return err
		}
	}
}

// ResolveCheck is Queue.ResolveCheck under the lock.
func (s *Serialized) ResolveCheck(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.ResolveCheck(h)
}

// ResolveWait blocks until h has finished.
func (s *Serialized) ResolveWait(h Handle) error {
	for {
		e := s.current()
		if s.ResolveCheck(h) {
			return nil
		}
		if err := s.wait(e); err != nil {
			return err
		}
	}
}

func (s *Serialized) current() uint64 {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.epoch
}

// wait returns once an event taken after epoch was read. Events are
// latched by the waiter, so one arriving before the call is not lost.
func (s *Serialized) wait(epoch uint64) error {
	s.wmu.Lock()
	for s.epoch == epoch && s.waiting {
		s.woken.Wait()
	}
	if s.epoch != epoch {
		err := s.err
		s.wmu.Unlock()
		return err
	}
	s.waiting = true
	s.wmu.Unlock()

	err := s.q.wait()

	s.wmu.Lock()
	s.waiting = false
	s.epoch++
	s.err = err
	s.woken.Broadcast()
	s.wmu.Unlock()
	return err
}
