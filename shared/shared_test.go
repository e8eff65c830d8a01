package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSharedPool_GetOrCreateAllocatesThenRecycles(t *testing.T) {
	var built int
	pool := NewSharedPool(func() []byte {
		built++
		return make([]byte, 4)
	}, 4)

	s1 := pool.GetOrCreate()
	require.Equal(t, 1, pool.TotalAllocated())
	require.Equal(t, 0, pool.Available())

	s1.Dispose()
	require.Equal(t, 1, pool.Available())

	s2 := pool.GetOrCreate()
	require.Equal(t, 1, pool.TotalAllocated(), "reusing the recycled instance must not call factory again")
	require.Equal(t, 0, pool.Available())
	require.Equal(t, 1, built)

	_, ok := s2.Resource()
	require.True(t, ok)
}

func TestSharedPool_RespectsMaxRetained(t *testing.T) {
	pool := NewSharedPool(func() int { return 0 }, 1)

	a := pool.GetOrCreate()
	b := pool.GetOrCreate()
	require.Equal(t, 2, pool.TotalAllocated())

	a.Dispose()
	require.Equal(t, 1, pool.Available())

	b.Dispose()
	require.Equal(t, 1, pool.Available(), "the cap of 1 must not grow past maxRetained")
}

func TestShared_AddRefRequiresMatchingDisposeCount(t *testing.T) {
	// after n AddRef calls and n+1 Dispose calls, the resource returns to
	// its pool exactly once.
	pool := NewSharedPool(func() int { return 42 }, 4)
	s := pool.GetOrCreate()

	s.AddRef()
	s.AddRef()
	require.Equal(t, 0, pool.Available())

	s.Dispose()
	require.Equal(t, 0, pool.Available())
	s.Dispose()
	require.Equal(t, 0, pool.Available())
	s.Dispose()
	require.Equal(t, 1, pool.Available())

	_, ok := s.Resource()
	require.False(t, ok, "Resource must read as absent after final release")
}

func TestShared_ResourceAbsentAfterDispose(t *testing.T) {
	pool := NewSharedPool(func() string { return "payload" }, 2)
	s := pool.GetOrCreate()

	v, ok := s.Resource()
	require.True(t, ok)
	require.Equal(t, "payload", v)

	s.Dispose()
	_, ok = s.Resource()
	require.False(t, ok)
}

func TestShared_AddRefAfterFinalDisposePanics(t *testing.T) {
	pool := NewSharedPool(func() int { return 1 }, 1)
	s := pool.GetOrCreate()
	s.Dispose()

	require.Panics(t, func() { s.AddRef() })
}

func TestKeyedSharedPool_PartitionsByKey(t *testing.T) {
	built := map[int]int{}
	keyed := NewKeyedSharedPool(func(size int) []byte {
		built[size]++
		return make([]byte, size)
	}, 2)

	small := keyed.GetOrCreate(16)
	large := keyed.GetOrCreate(64)

	v, _ := small.Resource()
	require.Len(t, v, 16)
	v, _ = large.Resource()
	require.Len(t, v, 64)

	small.Dispose()
	large.Dispose()

	smallPool, ok := keyed.Pool(16)
	require.True(t, ok)
	require.Equal(t, 1, smallPool.Available())

	largePool, ok := keyed.Pool(64)
	require.True(t, ok)
	require.Equal(t, 1, largePool.Available())

	require.Equal(t, 1, built[16])
	require.Equal(t, 1, built[64])
}
