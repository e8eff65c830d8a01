package shared

import "github.com/corepipeio/corepipe/serialization"

// Handler adapts a Shared[T] into the serialization package's Handler
// contract (spec §4.6): cloning a Shared increments its reference count
// rather than duplicating the pooled resource, and Clear disposes the
// reference, returning the resource to its pool rather than leaving it for
// the garbage collector. inner handles the T payload's own wire encoding.
type Handler[T any] struct {
	typeName string
	inner    serialization.Handler
	pool     *SharedPool[T]
}

// NewHandler returns a Handler for Shared[T], reading/writing payloads via
// inner and drawing fresh instances from pool on deserialize.
func NewHandler[T any](typeName string, inner serialization.Handler, pool *SharedPool[T]) *Handler[T] {
	return &Handler[T]{typeName: typeName, inner: inner, pool: pool}
}

func (h *Handler[T]) TypeName() string     { return h.typeName }
func (h *Handler[T]) Version() int         { return h.inner.Version() }
func (h *Handler[T]) IsClearRequired() bool { return true }

// Serialize writes the referenced resource's payload. A disposed Shared
// (Resource absent) writes null.
func (h *Handler[T]) Serialize(w *serialization.Writer, instance any, ctx *serialization.SerializationContext) error {
	s := instance.(*Shared[T])
	resource, ok := s.Resource()
	if !ok {
		w.WriteNull()
		return nil
	}
	return h.inner.Serialize(w, resource, ctx)
}

// Deserialize decodes one payload and installs it into a Shared obtained
// from the pool's GetOrCreate, replacing the pooled resource with the
// decoded value. The Shared wrapper is a new allocation on every call, and
// the pooled resource's storage is not written into.
func (h *Handler[T]) Deserialize(r *serialization.Reader, ctx *serialization.SerializationContext) (any, error) {
	isNull, err := r.PeekNull()
	if err != nil {
		return nil, err
	}
	if isNull {
		return (*Shared[T])(nil), nil
	}
	decoded, err := h.inner.Deserialize(r, ctx)
	if err != nil {
		return nil, err
	}
	s := h.pool.GetOrCreate()
	s.mu.Lock()
	s.resource = decoded.(T)
	s.mu.Unlock()
	return s, nil
}

// Clone returns the same Shared instance with its reference count
// incremented, per spec §4.6: "Cloning increments the reference count."
func (h *Handler[T]) Clone(instance any, ctx *serialization.SerializationContext) (any, error) {
	s := instance.(*Shared[T])
	if s == nil {
		return (*Shared[T])(nil), nil
	}
	return s.AddRef(), nil
}

// Clear disposes the reference, returning its resource to the pool.
func (h *Handler[T]) Clear(instance any, ctx *serialization.SerializationContext) error {
	s := instance.(*Shared[T])
	if s != nil {
		s.Dispose()
	}
	return nil
}
