package shared

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corepipeio/corepipe/serialization"
)

type payload struct {
	N int
}

func innerHandler(t *testing.T) serialization.Handler {
	t.Helper()
	known := serialization.NewKnownSerializers()
	h, err := known.ResolveType(reflect.TypeOf(payload{}))
	require.NoError(t, err)
	return h
}

func TestHandler_SerializeWritesResourcePayload(t *testing.T) {
	pool := NewSharedPool(func() payload { return payload{} }, 2)
	h := NewHandler[payload]("payload", innerHandler(t), pool)

	s := pool.GetOrCreate()
	s.mu.Lock()
	s.resource = payload{N: 7}
	s.mu.Unlock()

	w := serialization.NewWriter()
	require.NoError(t, h.Serialize(w, s, serialization.NewContext(false)))
	require.Equal(t, `{"N":7}`, string(w.Bytes()))
}

func TestHandler_DeserializeReusesPooledSlot(t *testing.T) {
	pool := NewSharedPool(func() payload { return payload{} }, 2)
	h := NewHandler[payload]("payload", innerHandler(t), pool)

	r := serialization.NewReader([]byte(`{"N":9}`))
	out, err := h.Deserialize(r, serialization.NewContext(false))
	require.NoError(t, err)

	s := out.(*Shared[payload])
	v, ok := s.Resource()
	require.True(t, ok)
	require.Equal(t, payload{N: 9}, v)
}

func TestHandler_CloneIncrementsRefCountInsteadOfDuplicating(t *testing.T) {
	pool := NewSharedPool(func() payload { return payload{N: 1} }, 2)
	h := NewHandler[payload]("payload", innerHandler(t), pool)

	s := pool.GetOrCreate()
	clonedAny, err := h.Clone(s, serialization.NewContext(false))
	require.NoError(t, err)

	cloned := clonedAny.(*Shared[payload])
	require.Same(t, s, cloned, "Clone must return the same handle, not a duplicate")

	// two AddRefs (the original plus the clone) need two Disposes before
	// the resource returns to the pool.
	s.Dispose()
	require.Equal(t, 0, pool.Available())
	cloned.Dispose()
	require.Equal(t, 1, pool.Available())
}

func TestHandler_ClearDisposesReference(t *testing.T) {
	pool := NewSharedPool(func() payload { return payload{} }, 2)
	h := NewHandler[payload]("payload", innerHandler(t), pool)

	s := pool.GetOrCreate()
	require.NoError(t, h.Clear(s, serialization.NewContext(false)))
	require.Equal(t, 1, pool.Available())

	_, ok := s.Resource()
	require.False(t, ok)
}
