package capture

import (
	"sync"

	"nutritrack/classifier"
)

// Slot is a single-slot mailbox: publishing overwrites an unconsumed value,
// so the consumer always works on the latest one.
type Slot[T any] struct {
	mu      sync.Mutex
	val     *T
	dropped uint64
	ready   chan struct{}
}

func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{ready: make(chan struct{}, 1)}
}

// FrameSlot carries camera frames to the classifier producer.
type FrameSlot = Slot[classifier.Frame]

func NewFrameSlot() *FrameSlot { return NewSlot[classifier.Frame]() }

func (s *Slot[T]) Publish(v T) {
	s.mu.Lock()
	if s.val != nil {
		s.dropped++
	}
	s.val = &v
	s.mu.Unlock()
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Ready fires after a Publish. A receive does not guarantee Take succeeds.
func (s *Slot[T]) Ready() <-chan struct{} { return s.ready }

func (s *Slot[T]) Take() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.val == nil {
		var zero T
		return zero, false
	}
	v := *s.val
	s.val = nil
	return v, true
}

// Clear drops any pending value.
func (s *Slot[T]) Clear() {
	s.mu.Lock()
	s.val = nil
	s.mu.Unlock()
	select {
	case <-s.ready:
	default:
	}
}

// Dropped counts values overwritten before they were consumed.
func (s *Slot[T]) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
