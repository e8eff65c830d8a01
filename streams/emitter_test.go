package streams

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/scheduler"
)

func newRunningContext(t *testing.T) (*scheduler.Scheduler, *scheduler.SchedulerContext) {
	t.Helper()
	s := scheduler.New()
	require.NoError(t, s.Start(ptime.RealTimeClock(), false))
	ctx := s.NewContext()
	t.Cleanup(func() { _ = s.Stop() })
	return s, ctx
}

func TestEmitter_Post_DeliversInOrder(t *testing.T) {
	_, ctx := newRunningContext(t)

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	recv := NewReceiver(ctx, func(m Message[int]) error {
		mu.Lock()
		got = append(got, m.Data)
		n := len(got)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
		return nil
	}, UnlimitedPolicy())

	em := NewEmitter[int](1, "e", ctx, 1)
	require.NoError(t, em.Subscribe(recv))
	require.NoError(t, ctx.StartScheduling())

	require.NoError(t, em.Post(10, ptime.Time(1)))
	require.NoError(t, em.Post(20, ptime.Time(2)))
	require.NoError(t, em.Post(30, ptime.Time(3)))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{10, 20, 30}, got)
}

func TestEmitter_Post_RejectsOutOfOrder(t *testing.T) {
	_, ctx := newRunningContext(t)
	em := NewEmitter[int](1, "e", ctx, 1)
	require.NoError(t, em.Post(1, ptime.Time(10)))
	err := em.Post(2, ptime.Time(5))
	require.Error(t, err)
}

func TestEmitter_Post_AfterClose_Fails(t *testing.T) {
	_, ctx := newRunningContext(t)
	em := NewEmitter[int](1, "e", ctx, 1)
	em.Close()
	err := em.Post(1, ptime.Time(1))
	require.Error(t, err)
}

func TestEmitter_Subscribe_AfterStart_Fails(t *testing.T) {
	_, ctx := newRunningContext(t)
	require.NoError(t, ctx.StartScheduling())
	em := NewEmitter[int](1, "e", ctx, 1)
	recv := NewReceiver(ctx, func(Message[int]) error { return nil }, UnlimitedPolicy())
	err := em.Subscribe(recv)
	require.Error(t, err)
}

func TestEmitter_LatestMessagePolicy_DropsIntermediate(t *testing.T) {
	_, ctx := newRunningContext(t)

	release := make(chan struct{})
	var mu sync.Mutex
	var got []int
	first := make(chan struct{})
	var firstOnce sync.Once

	recv := NewReceiver(ctx, func(m Message[int]) error {
		firstOnce.Do(func() { close(first) })
		<-release
		mu.Lock()
		got = append(got, m.Data)
		mu.Unlock()
		return nil
	}, LatestMessagePolicy())

	em := NewEmitter[int](1, "e", ctx, 1)
	require.NoError(t, em.Subscribe(recv))
	require.NoError(t, ctx.StartScheduling())

	require.NoError(t, em.Post(1, ptime.Time(1)))
	<-first // first message is now being delivered (blocked on release)

	require.NoError(t, em.Post(2, ptime.Time(2)))
	require.NoError(t, em.Post(3, ptime.Time(3)))
	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{1, 3}, got) // 2 was evicted by LatestMessage
}

func TestEmitter_SynchronousOrThrottle_DeliversInline(t *testing.T) {
	_, ctx := newRunningContext(t)

	var delivered int
	recv := NewReceiver(ctx, func(m Message[int]) error {
		delivered++
		return nil
	}, SynchronousOrThrottlePolicy(1))

	em := NewEmitter[int](1, "e", ctx, 1)
	require.NoError(t, em.Subscribe(recv))
	require.NoError(t, ctx.StartScheduling())

	require.NoError(t, em.Post(1, ptime.Time(1)))
	require.Equal(t, 1, delivered) // already delivered by the time Post returns
}

func TestEmitter_Close_DrainsThenClosesReceiver(t *testing.T) {
	_, ctx := newRunningContext(t)

	recv := NewReceiver(ctx, func(m Message[int]) error { return nil }, UnlimitedPolicy())
	em := NewEmitter[int](1, "e", ctx, 1)
	require.NoError(t, em.Subscribe(recv))
	require.NoError(t, ctx.StartScheduling())

	require.NoError(t, em.Post(1, ptime.Time(1)))
	em.Close()

	require.Eventually(t, func() bool {
		return recv.Closed()
	}, 2*time.Second, 10*time.Millisecond)
}
