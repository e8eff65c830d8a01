// Package shared implements reference-counted resource handles backed by a
// recycling pool, so pipeline stages that allocate large buffers (store
// extent blocks, serialization scratch space) can hand them downstream
// without each receiver needing its own copy, while the pool still bounds
// total memory use.
package shared

import "sync"

// Shared is a reference-counted handle over a pooled instance of T. The
// zero value is not usable; construct one via SharedPool.GetOrCreate.
type Shared[T any] struct {
	mu       sync.Mutex
	resource T
	refs     int
	pool     *SharedPool[T]
	disposed bool
}

// Resource returns the underlying instance, or the zero value of T if this
// handle's last reference has already been disposed: per the invariant
// "after final release, Resource reads as absent."
func (s *Shared[T]) Resource() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		var zero T
		return zero, false
	}
	return s.resource, true
}

// AddRef increments the reference count, returning s for chaining. Panics
// if called after the last reference has already been disposed: a disposed
// Shared has already returned its resource to the pool and cannot be
// un-disposed.
func (s *Shared[T]) AddRef() *Shared[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		panic("shared: AddRef called after final Dispose")
	}
	s.refs++
	return s
}

// Dispose decrements the reference count. At zero, the resource is
// returned to the originating pool's available stack (or dropped, if the
// pool is already at its retention cap) and further Resource calls answer
// absent.
func (s *Shared[T]) Dispose() {
	s.mu.Lock()
	s.refs--
	if s.refs > 0 {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	resource := s.resource
	var zero T
	s.resource = zero
	s.mu.Unlock()
	s.pool.release(resource)
}
