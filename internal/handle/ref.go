package handle

import (
	"runtime"
	"sync/atomic"
)

// Ref is one caller-facing hold on a Handle. Closing a Ref drops its hold
// exactly once; other Refs and derived values keep the Handle alive.
type Ref[T any] struct {
	h      Handle[T]
	closed atomic.Bool
}

// Own wraps an existing hold on h. The Ref takes over that hold.
func Own[T any](h Handle[T]) *Ref[T] {
	return &Ref[T]{h: h}
}

// Get returns the value behind the Ref.
func (r *Ref[T]) Get() (T, error) {
	if r.closed.Load() {
		var zero T
		return zero, ErrClosed
	}
	return r.h.Get()
}

// Close drops the hold. It is safe to call more than once.
func (r *Ref[T]) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	return r.h.Release()
}

// Closed reports whether Close was called.
func (r *Ref[T]) Closed() bool {
	return r.closed.Load()
}

// Owned reports whether the value has no parent.
func (r *Ref[T]) Owned() bool {
	_, ok := r.h.(*Root[T])
	return ok
}

// Clone returns a new Ref holding the same Handle.
func (r *Ref[T]) Clone() (*Ref[T], error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if err := r.h.Retain(); err != nil {
		return nil, err
	}
	return Own(r.h), nil
}

// Retainer exposes the underlying Handle for callers that need to keep it
// alive without going through a Ref, such as background tasks.
func (r *Ref[T]) Retainer() (Retainer, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if err := r.h.Retain(); err != nil {
		return nil, err
	}
	return r.h, nil
}

// Derive creates a value borrowed from parent. The returned Ref keeps the
// parent's Handle alive even after the parent Ref itself is closed.
func Derive[P, T any](parent *Ref[P], derive func(P) (T, error)) (*Ref[T], error) {
	if parent.closed.Load() {
		return nil, ErrClosed
	}

	shared, err := Share(parent.h, func() (T, error) {
		value, err := parent.h.Get()
		if err != nil {
			var zero T
			return zero, err
		}
		return derive(value)
	})
	if err != nil {
		return nil, err
	}
	return Own[T](shared), nil
}

// Sibling derives a new value that shares r's parent rather than r itself,
// so chains of resolve-like calls stay one level deep. When r has no parent
// the result is an owned value.
func Sibling[T, U any](r *Ref[T], derive func(T) (U, error)) (*Ref[U], error) {
	value, err := r.Get()
	if err != nil {
		return nil, err
	}

	shared, ok := r.h.(*Shared[T])
	if !ok {
		out, err := derive(value)
		if err != nil {
			return nil, err
		}
		return Own[U](NewRoot(out, nil)), nil
	}

	parent, err := shared.Parent()
	if err != nil {
		return nil, err
	}
	defer func() { _ = parent.Release() }()

	sibling, err := Share(parent, func() (U, error) { return derive(value) })
	if err != nil {
		return nil, err
	}
	return Own[U](sibling), nil
}

// Track closes ref when owner becomes unreachable. owner must be the
// caller-facing wrapper that holds ref, never ref itself.
func Track[W, T any](owner *W, ref *Ref[T]) {
	runtime.AddCleanup(owner, func(r *Ref[T]) { _ = r.Close() }, ref)
}
