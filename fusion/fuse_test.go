package fusion

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/scheduler"
	"github.com/corepipeio/corepipe/streams"
)

func newRunningContext(t *testing.T) *scheduler.SchedulerContext {
	t.Helper()
	s := scheduler.New()
	require.NoError(t, s.Start(ptime.RealTimeClock(), false))
	ctx := s.NewContext()
	t.Cleanup(func() { _ = s.Stop() })
	return ctx
}

func collectOutput[T any](t *testing.T, ctx *scheduler.SchedulerContext, em *streams.Emitter[T], want int) (*sync.Mutex, *[]T, chan struct{}) {
	t.Helper()
	var mu sync.Mutex
	var got []T
	done := make(chan struct{})
	recv := streams.NewReceiver(ctx, func(m streams.Message[T]) error {
		mu.Lock()
		got = append(got, m.Data)
		n := len(got)
		mu.Unlock()
		if n == want {
			close(done)
		}
		return nil
	}, streams.UnlimitedPolicy())
	require.NoError(t, em.Subscribe(recv))
	return &mu, &got, done
}

func TestJoin_EmitsWhenBothSidesHaveData(t *testing.T) {
	ctx := newRunningContext(t)
	fz, err := Join[string, int](ctx, 1, ptime.UnboundedRelative, Nearest)
	require.NoError(t, err)

	primaryEm := streams.NewEmitter[string](1, "primary", ctx, 1)
	secondaryEm := streams.NewEmitter[int](2, "secondary", ctx, 1)
	require.NoError(t, primaryEm.Subscribe(fz.Primary))
	require.NoError(t, secondaryEm.Subscribe(fz.Secondary))

	mu, got, done := collectOutput(t, ctx, fz.Output, 1)
	require.NoError(t, ctx.StartScheduling())

	require.NoError(t, secondaryEm.Post(100, ptime.Time(5)))
	require.NoError(t, primaryEm.Post("a", ptime.Time(10)))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fused output")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *got, 1)
	require.Equal(t, "a", (*got)[0].V1)
	require.Equal(t, 100, (*got)[0].V2)
}

func TestFuse_BuffersPrimaryUntilResolvable(t *testing.T) {
	ctx := newRunningContext(t)
	window := ptime.NewRelativeInterval(-5, true, 5, true)
	interp, err := ReproducibleNearest[int](window)
	require.NoError(t, err)

	fz := Fuse(ctx, 1, interp, func(p string, s int, t ptime.Time) Tuple2[string, int] {
		return Tuple2[string, int]{V1: p, V2: s}
	})

	primaryEm := streams.NewEmitter[string](1, "primary", ctx, 1)
	secondaryEm := streams.NewEmitter[int](2, "secondary", ctx, 1)
	require.NoError(t, primaryEm.Subscribe(fz.Primary))
	require.NoError(t, secondaryEm.Subscribe(fz.Secondary))

	mu, got, done := collectOutput(t, ctx, fz.Output, 1)
	require.NoError(t, ctx.StartScheduling())

	require.NoError(t, primaryEm.Post("a", ptime.Time(10))) // window [5,15], no data yet
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	require.Len(t, *got, 0)
	mu.Unlock()

	require.NoError(t, secondaryEm.Post(7, ptime.Time(15))) // at the window's right edge: resolves it

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for buffered fuse to resolve")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 7, (*got)[0].V2)
}

func TestPair_SeedsInitialValue(t *testing.T) {
	ctx := newRunningContext(t)
	init := 42
	fz, err := Pair[string, int](ctx, 1, &init)
	require.NoError(t, err)

	primaryEm := streams.NewEmitter[string](1, "primary", ctx, 1)
	require.NoError(t, primaryEm.Subscribe(fz.Primary))

	mu, got, done := collectOutput(t, ctx, fz.Output, 1)
	require.NoError(t, ctx.StartScheduling())

	require.NoError(t, primaryEm.Post("a", ptime.Time(1)))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for seeded pair")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 42, (*got)[0].V2)
}

func TestAppendTuple_FlattensNestedPairs(t *testing.T) {
	t2 := Tuple2[int, string]{V1: 1, V2: "x"}
	t3 := AppendTuple2(t2, 3.5)
	require.Equal(t, 1, t3.V1)
	require.Equal(t, "x", t3.V2)
	require.Equal(t, 3.5, t3.V3)
}
