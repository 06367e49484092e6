// Package handle implements reference-counted ownership for values that must
// stay valid as long as anything derived from them is still reachable.
//
// A Root owns a value and an optional closer. A Shared value is derived from a
// parent Retainer and keeps that parent alive until its own count drops to
// zero. A Ref is a single caller-facing hold on either of them.
package handle

import (
	"errors"
	"sync"
)

// ErrClosed is returned when a handle is used after its last hold was released.
var ErrClosed = errors.New("handle is closed")

// Retainer is a counted node in the ownership graph.
type Retainer interface {
	// Retain adds a hold. It fails with ErrClosed once the count reached zero.
	Retain() error
	// Release drops a hold. The node is torn down when the count reaches zero.
	Release() error
}

// Handle is a Retainer that exposes the value it keeps alive.
type Handle[T any] interface {
	Retainer
	Get() (T, error)
}

// Root owns a value with no parent.
type Root[T any] struct {
	mu     sync.Mutex
	refs   int
	value  T
	closer func(T) error
}

// NewRoot returns a Root holding one reference to value. closer may be nil.
func NewRoot[T any](value T, closer func(T) error) *Root[T] {
	return &Root[T]{refs: 1, value: value, closer: closer}
}

// Get returns the owned value.
func (r *Root[T]) Get() (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refs == 0 {
		var zero T
		return zero, ErrClosed
	}
	return r.value, nil
}

// Retain implements Retainer.
func (r *Root[T]) Retain() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refs == 0 {
		return ErrClosed
	}
	r.refs++
	return nil
}

// Release implements Retainer. The closer runs once, outside the lock.
func (r *Root[T]) Release() error {
	r.mu.Lock()
	if r.refs == 0 {
		r.mu.Unlock()
		return ErrClosed
	}
	r.refs--
	if r.refs > 0 {
		r.mu.Unlock()
		return nil
	}

	value, closer := r.value, r.closer
	var zero T
	r.value, r.closer = zero, nil
	r.mu.Unlock()

	if closer == nil {
		return nil
	}
	return closer(value)
}

// Refs reports the current number of holds.
func (r *Root[T]) Refs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs
}

// Shared is a value derived from a parent that it keeps alive.
type Shared[T any] struct {
	mu     sync.Mutex
	refs   int
	value  T
	parent Retainer
}

// Share retains parent and derives a value from it. If derive fails the
// parent is released again, leaving its count unchanged.
func Share[T any](parent Retainer, derive func() (T, error)) (*Shared[T], error) {
	if err := parent.Retain(); err != nil {
		return nil, err
	}

	value, err := derive()
	if err != nil {
		_ = parent.Release()
		return nil, err
	}

	return &Shared[T]{refs: 1, value: value, parent: parent}, nil
}

// Get returns the derived value.
func (s *Shared[T]) Get() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 {
		var zero T
		return zero, ErrClosed
	}
	return s.value, nil
}

// Retain implements Retainer.
func (s *Shared[T]) Retain() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 {
		return ErrClosed
	}
	s.refs++
	return nil
}

// Release implements Retainer. Dropping the last hold releases the parent.
func (s *Shared[T]) Release() error {
	s.mu.Lock()
	if s.refs == 0 {
		s.mu.Unlock()
		return ErrClosed
	}
	s.refs--
	if s.refs > 0 {
		s.mu.Unlock()
		return nil
	}

	parent := s.parent
	var zero T
	s.value, s.parent = zero, nil
	s.mu.Unlock()

	return parent.Release()
}

// Refs reports the current number of holds.
func (s *Shared[T]) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

// Parent returns a fresh hold on the parent. The caller must release it.
func (s *Shared[T]) Parent() (Retainer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 {
		return nil, ErrClosed
	}
	if err := s.parent.Retain(); err != nil {
		return nil, err
	}
	return s.parent, nil
}
