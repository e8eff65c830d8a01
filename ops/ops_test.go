package ops

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

func collect[T any](t *testing.T, ctx *scheduler.SchedulerContext, em *streams.Emitter[T], want int) (*sync.Mutex, *[]T, chan struct{}) {
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

func waitDone(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for output")
	}
}

func TestSelect_MapsEachMessage(t *testing.T) {
	ctx := newRunningContext(t)
	src := streams.NewEmitter[int](1, "src", ctx, 1)
	recv, out := Select[int, string](ctx, 2, "select", 1, func(v int, _ ptime.Time) string {
		return string(rune('a' + v))
	})
	require.NoError(t, src.Subscribe(recv))

	_, got, done := collect(t, ctx, out, 2)
	require.NoError(t, ctx.StartScheduling())

	require.NoError(t, src.Post(0, ptime.Time(1)))
	require.NoError(t, src.Post(1, ptime.Time(2)))

	waitDone(t, done)
	require.Equal(t, []string{"a", "b"}, *got)
}

func TestWhere_DropsFilteredMessages(t *testing.T) {
	ctx := newRunningContext(t)
	src := streams.NewEmitter[int](1, "src", ctx, 1)
	recv, out := Where[int](ctx, 2, "where", 1, func(v int, _ ptime.Time) bool {
		return v%2 == 0
	})
	require.NoError(t, src.Subscribe(recv))

	_, got, done := collect(t, ctx, out, 1)
	require.NoError(t, ctx.StartScheduling())

	require.NoError(t, src.Post(1, ptime.Time(1)))
	require.NoError(t, src.Post(2, ptime.Time(2)))

	waitDone(t, done)
	require.Equal(t, []int{2}, *got)
}

func TestEditStream_MapsAndFilters(t *testing.T) {
	ctx := newRunningContext(t)
	src := streams.NewEmitter[int](1, "src", ctx, 1)
	recv, out := EditStream[int, int](ctx, 2, "edit", 1, func(v int, _ ptime.Time) (int, bool) {
		return v * 10, v > 1
	})
	require.NoError(t, src.Subscribe(recv))

	_, got, done := collect(t, ctx, out, 1)
	require.NoError(t, ctx.StartScheduling())

	require.NoError(t, src.Post(1, ptime.Time(1)))
	require.NoError(t, src.Post(2, ptime.Time(2)))

	waitDone(t, done)
	require.Equal(t, []int{20}, *got)
}

func TestDo_PassesThroughAndRunsSideEffect(t *testing.T) {
	ctx := newRunningContext(t)
	src := streams.NewEmitter[int](1, "src", ctx, 1)

	var mu sync.Mutex
	var seen []int
	recv, out := Do[int](ctx, 2, "do", 1, func(v int, _ ptime.Time) {
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
	})
	require.NoError(t, src.Subscribe(recv))

	_, got, done := collect(t, ctx, out, 1)
	require.NoError(t, ctx.StartScheduling())

	require.NoError(t, src.Post(5, ptime.Time(1)))

	waitDone(t, done)
	require.Equal(t, []int{5}, *got)
	mu.Lock()
	require.Equal(t, []int{5}, seen)
	mu.Unlock()
}

func TestDelay_ShiftsOriginatingTime(t *testing.T) {
	ctx := newRunningContext(t)
	src := streams.NewEmitter[int](1, "src", ctx, 1)
	recv, out, err := Delay[int](ctx, 2, "delay", 1, ptime.TimeSpan(10))
	require.NoError(t, err)
	require.NoError(t, src.Subscribe(recv))

	var mu sync.Mutex
	var times []ptime.Time
	done := make(chan struct{})
	sink := streams.NewReceiver(ctx, func(m streams.Message[int]) error {
		mu.Lock()
		times = append(times, m.OriginatingTime)
		mu.Unlock()
		close(done)
		return nil
	}, streams.UnlimitedPolicy())
	require.NoError(t, out.Subscribe(sink))
	require.NoError(t, ctx.StartScheduling())

	require.NoError(t, src.Post(1, ptime.Time(5)))

	waitDone(t, done)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []ptime.Time{ptime.Time(15)}, times)
}

func TestDelay_RejectsNegativeSpan(t *testing.T) {
	ctx := newRunningContext(t)
	_, _, err := Delay[int](ctx, 2, "delay", 1, ptime.TimeSpan(-1))
	require.Error(t, err)
}

func TestAggregate_ReducesBatchBySize(t *testing.T) {
	ctx := newRunningContext(t)
	src := streams.NewEmitter[int](1, "src", ctx, 1)
	recv, out := Aggregate[int, int](ctx, 2, "aggregate", 1, AggregateConfig{MaxSize: 2}, func(batch []int) int {
		sum := 0
		for _, v := range batch {
			sum += v
		}
		return sum
	})
	require.NoError(t, src.Subscribe(recv))

	_, got, done := collect(t, ctx, out, 1)
	require.NoError(t, ctx.StartScheduling())

	require.NoError(t, src.Post(1, ptime.Time(1)))
	require.NoError(t, src.Post(2, ptime.Time(2)))

	waitDone(t, done)
	require.Equal(t, []int{3}, *got)
}
