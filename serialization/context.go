package serialization

import (
	"reflect"

	"github.com/corepipeio/corepipe/internal/errs"
)

// SerializationContext maintains the identity maps a single top-level
// Serialize/Deserialize/Clone call needs to preserve reference sharing: on
// write, an instance seen once gets a new-ref tag and every subsequent
// occurrence gets a back-ref tag instead of being re-encoded; on read, the
// indexed table of already-materialized instances answers back-ref tags
// with the shared instance rather than allocating a second one.
type SerializationContext struct {
	writeRefs map[uintptr]uint32
	nextID    uint32
	readRefs  map[uint32]any
	cloneRefs map[uintptr]any

	cycleCheck bool
	edges      map[any][]any
	stack      []any
}

// NewContext returns a fresh SerializationContext, exported for Handler
// implementations (and their tests) that need to drive Serialize/Deserialize/
// Clone directly, outside a top-level Serializer call.
func NewContext(cycleCheck bool) *SerializationContext {
	return newContext(cycleCheck)
}

func newContext(cycleCheck bool) *SerializationContext {
	c := &SerializationContext{
		writeRefs: make(map[uintptr]uint32),
		readRefs:  make(map[uint32]any),
		cloneRefs: make(map[uintptr]any),
	}
	if cycleCheck {
		c.cycleCheck = true
		c.edges = make(map[any][]any)
	}
	return c
}

// identityKey returns the pointer-identity key for instance, if it is a kind
// that can meaningfully be shared by reference (pointer, map, slice, chan);
// other kinds (plain structs and scalars passed by value) have no shareable
// identity and are always treated as new.
func identityKey(instance any) (uintptr, bool) {
	v := reflect.ValueOf(instance)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		if v.IsNil() {
			return 0, false
		}
		return v.Pointer(), true
	case reflect.Slice:
		if v.IsNil() || v.Cap() == 0 {
			return 0, false
		}
		return v.Pointer(), true
	default:
		return 0, false
	}
}

// WriteRef records instance for the duration of this context, returning its
// ref id and whether this is the first time it has been seen (in which case
// the caller must write a new-ref tag followed by the instance's full
// encoding; otherwise it must write only a back-ref tag).
func (c *SerializationContext) WriteRef(instance any) (id uint32, isNew bool) {
	key, ok := identityKey(instance)
	if !ok {
		c.nextID++
		return c.nextID, true
	}
	if existing, seen := c.writeRefs[key]; seen {
		return existing, false
	}
	c.nextID++
	c.writeRefs[key] = c.nextID
	return c.nextID, true
}

// RegisterRead records instance as the materialization of ref id, so a later
// back-ref tag for the same id resolves to the identical instance.
func (c *SerializationContext) RegisterRead(id uint32, instance any) {
	c.readRefs[id] = instance
}

// LookupRead returns the instance previously registered for ref id.
func (c *SerializationContext) LookupRead(id uint32) (any, bool) {
	v, ok := c.readRefs[id]
	return v, ok
}

// ClonedOrNil returns the already-cloned target for src's identity, if
// Clone has already visited it in this context, so a second occurrence of
// the same shared pointer/map/slice clones to the same target instead of a
// fresh copy.
func (c *SerializationContext) ClonedOrNil(src any) (any, bool) {
	key, ok := identityKey(src)
	if !ok {
		return nil, false
	}
	v, ok := c.cloneRefs[key]
	return v, ok
}

// RegisterCloned records that src's clone is dst, for ClonedOrNil to find.
func (c *SerializationContext) RegisterCloned(src, dst any) {
	if key, ok := identityKey(src); ok {
		c.cloneRefs[key] = dst
	}
}

// EnterReference records, when cycle checking is enabled, that the instance
// currently being serialized references child, then descends into it via
// enter. Used by custom handlers that embed other top-level-shaped
// instances, so WithCycleCheck can catch a handler that cross-links
// instances into a cycle the interned-instance scheme alone cannot produce.
// A child already on the current descent path is a cycle: enter is not
// called, since a Handler that recurses into it would never return.
func (c *SerializationContext) EnterReference(child any, enter func() error) error {
	if !c.cycleCheck {
		return enter()
	}
	if len(c.stack) > 0 {
		parent := c.stack[len(c.stack)-1]
		c.edges[parent] = append(c.edges[parent], child)
	}
	for _, visiting := range c.stack {
		if visiting == child {
			return errs.NewUnsupported("reference graph contains a cycle")
		}
	}
	c.stack = append(c.stack, child)
	defer func() { c.stack = c.stack[:len(c.stack)-1] }()
	return enter()
}
