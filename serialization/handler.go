package serialization

// Handler implements one type's wire encoding: schema negotiation, the
// serialize/deserialize/clone round trip, and clearing of nested resources
// that need explicit reclamation (notably shared.Shared[T] payloads).
type Handler interface {
	// TypeName is the fully-qualified name this handler is registered under.
	TypeName() string

	// Version is the on-disk schema version this handler writes. A reader
	// encountering a lower version than its minimum supported fails with
	// errs.SerializationVersionError.
	Version() int

	// IsClearRequired reports whether Clear does meaningful work for this
	// type. Handlers for types with no nested resources to reclaim (plain
	// value types) should return false, letting the context skip the call.
	IsClearRequired() bool

	// Serialize writes instance's wire representation to w.
	Serialize(w *Writer, instance any, ctx *SerializationContext) error

	// Deserialize reads one instance from r and returns it.
	Deserialize(r *Reader, ctx *SerializationContext) (any, error)

	// Clone returns a deep copy of instance, preserving reference identity
	// within ctx the same way Serialize/Deserialize do.
	Clone(instance any, ctx *SerializationContext) (any, error)

	// Clear releases or zeroes instance's nested resources. Called only if
	// IsClearRequired reports true.
	Clear(instance any, ctx *SerializationContext) error
}

// TargetPreparer is an optional Handler extension: a handler that can reuse
// an existing instance's backing storage, rather than allocating fresh,
// implements this to support SharedPool-style in-place reuse.
type TargetPreparer interface {
	// PrepareCloningTarget returns a target instance to clone into, reusing
	// existing's storage if compatible, or nil to request a fresh one.
	PrepareCloningTarget(existing any) any

	// PrepareDeserializationTarget is PrepareCloningTarget's deserialize-side
	// counterpart.
	PrepareDeserializationTarget(existing any) any
}
