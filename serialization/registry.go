package serialization

import (
	"fmt"
	"reflect"
	"sync"
)

// KnownSerializers is the registry of Handlers keyed by fully-qualified type
// name. Custom handlers take precedence; any type without one gets a
// reflect-derived fallback, memoized on first use.
type KnownSerializers struct {
	mu      sync.RWMutex
	byName  map[string]Handler
	derived map[string]Handler
}

// NewKnownSerializers returns an empty registry.
func NewKnownSerializers() *KnownSerializers {
	return &KnownSerializers{
		byName:  make(map[string]Handler),
		derived: make(map[string]Handler),
	}
}

// RegisterFunc installs h as the handler for typeName, ad hoc — the Go
// analogue of the original attribute-driven registration, which has no
// direct Go equivalent (no runtime struct-tag-triggered auto-registration).
func (k *KnownSerializers) RegisterFunc(typeName string, h Handler) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.byName[typeName] = h
}

// Get returns the registered custom handler for typeName, if any.
func (k *KnownSerializers) Get(typeName string) (Handler, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	h, ok := k.byName[typeName]
	return h, ok
}

// ResolveType returns the handler for instance's runtime type: a registered
// custom handler if present under its fully-qualified name, otherwise a
// reflect-derived fallback (memoized so repeated calls for the same type
// are free after the first).
func (k *KnownSerializers) ResolveType(rt reflect.Type) (Handler, error) {
	name := qualifiedName(rt)

	k.mu.RLock()
	if h, ok := k.byName[name]; ok {
		k.mu.RUnlock()
		return h, nil
	}
	if h, ok := k.derived[name]; ok {
		k.mu.RUnlock()
		return h, nil
	}
	k.mu.RUnlock()

	h, err := deriveHandler(name, rt)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	k.derived[name] = h
	k.mu.Unlock()
	return h, nil
}

func qualifiedName(rt reflect.Type) string {
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt.PkgPath() == "" {
		return rt.String()
	}
	return fmt.Sprintf("%s.%s", rt.PkgPath(), rt.Name())
}
