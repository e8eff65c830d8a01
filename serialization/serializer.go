package serialization

import (
	"reflect"

	"github.com/corepipeio/corepipe/internal/errs"
)

// serializerOptions holds configuration for a Serializer, following the
// teacher's functional-option idiom (eventloop/options.go's LoopOption).
type serializerOptions struct {
	cycleCheck bool
}

// Option configures a Serializer.
type Option interface {
	apply(*serializerOptions)
}

type optionFunc func(*serializerOptions)

func (f optionFunc) apply(o *serializerOptions) { f(o) }

// WithCycleCheck enables a diagnostic pass, using go-detect-cycle, over
// each top-level call's reference graph. Disabled by default: the
// interned-instance scheme cannot itself produce a cycle across a single
// Serialize call, so this exists to catch a custom Handler that cross-links
// instances incorrectly (see serialization.Handler.Serialize, which should
// call SerializationContext.EnterReference around any nested instance it
// hands off to another Handler).
func WithCycleCheck() Option {
	return optionFunc(func(o *serializerOptions) { o.cycleCheck = true })
}

// Serializer is the top-level entry point: one KnownSerializers registry,
// plus the options governing each Serialize/Deserialize/Clone call's fresh
// SerializationContext.
type Serializer struct {
	known *KnownSerializers
	opts  serializerOptions
}

// New returns a Serializer backed by known (or a fresh registry, if nil).
func New(known *KnownSerializers, opts ...Option) *Serializer {
	if known == nil {
		known = NewKnownSerializers()
	}
	s := &Serializer{known: known}
	for _, o := range opts {
		o.apply(&s.opts)
	}
	return s
}

// Known returns the underlying registry, so callers can RegisterFunc custom
// handlers before first use.
func (s *Serializer) Known() *KnownSerializers { return s.known }

// Serialize writes instance's wire representation, returning the encoded
// bytes. Each call gets its own SerializationContext, so reference sharing
// is scoped to one call's object graph, per the identity-map contract.
func (s *Serializer) Serialize(instance any) ([]byte, error) {
	handler, err := s.known.ResolveType(reflect.TypeOf(instance))
	if err != nil {
		return nil, err
	}
	ctx := newContext(s.opts.cycleCheck)
	w := NewWriter()
	if err := handler.Serialize(w, instance, ctx); err != nil {
		return nil, err
	}
	if ctx.cycleCheck && hasCycle(ctx.edges) {
		return nil, errs.NewUnsupported("reference graph contains a cycle")
	}
	return w.Bytes(), nil
}

// Deserialize reads one instance of the type registered (or derivable) for
// typeName from data.
func (s *Serializer) Deserialize(typeName string, sample any, data []byte) (any, error) {
	handler, err := s.handlerFor(typeName, sample)
	if err != nil {
		return nil, err
	}
	ctx := newContext(s.opts.cycleCheck)
	r := NewReader(data)
	return handler.Deserialize(r, ctx)
}

// Clone returns a deep copy of instance, preserving its reference graph.
func (s *Serializer) Clone(instance any) (any, error) {
	handler, err := s.known.ResolveType(reflect.TypeOf(instance))
	if err != nil {
		return nil, err
	}
	ctx := newContext(s.opts.cycleCheck)
	out, err := handler.Clone(instance, ctx)
	if err != nil {
		return nil, err
	}
	if ctx.cycleCheck && hasCycle(ctx.edges) {
		return nil, errs.NewUnsupported("reference graph contains a cycle")
	}
	return out, nil
}

func (s *Serializer) handlerFor(typeName string, sample any) (Handler, error) {
	if h, ok := s.known.Get(typeName); ok {
		return h, nil
	}
	return s.known.ResolveType(reflect.TypeOf(sample))
}
