package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/scheduler"
)

// fakeSource is a minimal ISourceComponent for tests: it notifies completion
// (finite or indefinite) as soon as Start runs, and records Stop calls.
type fakeSource struct {
	indefinite bool
	finalTime  ptime.Time
	startErr   error
	stopErr    error

	mu      sync.Mutex
	stopped bool
	onStart func()
}

func (f *fakeSource) Start(signal *scheduler.CancelSignal, notifier *CompletionNotifier) error {
	if f.startErr != nil {
		return f.startErr
	}
	if f.onStart != nil {
		f.onStart()
	}
	if f.indefinite {
		notifier.NotifyIndefinite()
	} else {
		notifier.Notify(f.finalTime)
	}
	return nil
}

func (f *fakeSource) Stop(finalOriginatingTime *ptime.Time) error {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	return f.stopErr
}

func (f *fakeSource) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func TestPipeline_RunToCompletion(t *testing.T) {
	p := New("root")
	src := &fakeSource{finalTime: 100}
	require.NoError(t, p.AddSource(src))

	clock := ptime.RealTimeClock()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, p.Run(ctx, clock, false))
	require.True(t, src.wasStopped())
}

func TestPipeline_AddSource_AfterStart_Fails(t *testing.T) {
	p := New("root")
	clock := ptime.RealTimeClock()
	require.NoError(t, p.Start(clock, false))
	defer p.Stop(nil)

	err := p.AddSource(&fakeSource{indefinite: true})
	require.Error(t, err)
}

func TestPipeline_Subpipeline_StartsAfterParent(t *testing.T) {
	p := New("root")

	var mu sync.Mutex
	var order []string

	parentSrc := &fakeSource{finalTime: 10, onStart: func() {
		mu.Lock()
		order = append(order, "parent")
		mu.Unlock()
	}}
	require.NoError(t, p.AddSource(parentSrc))

	child, err := p.CreateSubpipeline("child")
	require.NoError(t, err)
	childSrc := &fakeSource{finalTime: 10, onStart: func() {
		mu.Lock()
		order = append(order, "child")
		mu.Unlock()
	}}
	require.NoError(t, child.AddSource(childSrc))

	clock := ptime.RealTimeClock()
	require.NoError(t, p.Start(clock, false))
	defer p.Stop(nil)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"parent", "child"}, order)
}

func TestPipeline_CreateSubpipeline_SharesScheduler(t *testing.T) {
	p := New("root")
	child, err := p.CreateSubpipeline("child")
	require.NoError(t, err)
	require.Same(t, p.Scheduler(), child.Scheduler())
	require.NotSame(t, p.SchedulerContext(), child.SchedulerContext())
}

func TestPipeline_CollectFailures(t *testing.T) {
	p := New("root")
	clock := ptime.RealTimeClock()
	require.NoError(t, p.Start(clock, false))

	boom := errors.New("boom")
	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, p.Scheduler().Schedule(p.SchedulerContext(), clock.Now(), func(signal *scheduler.CancelSignal) error {
		defer wg.Done()
		return boom
	}))
	wg.Wait()

	require.NoError(t, p.Stop(nil))

	failure := p.CollectFailures()
	require.Error(t, failure)
}

func TestPipeline_OnException_SuppressesRunError(t *testing.T) {
	p := New("root")
	var handled []error
	p.OnException(func(err error) { handled = append(handled, err) })

	require.NoError(t, p.AddSource(&fakeSource{finalTime: 1}))

	// Queued before Run starts the scheduler; Run's Stop waits for it to
	// finish before collecting failures and handing them to the handler.
	clock := ptime.RealTimeClock()
	boom := errors.New("boom")
	require.NoError(t, p.Scheduler().Schedule(p.SchedulerContext(), clock.Now(), func(signal *scheduler.CancelSignal) error {
		return boom
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx, clock, false))

	require.Error(t, p.CollectFailures())
	require.Len(t, handled, 1)
	require.ErrorIs(t, handled[0], boom)
}

func TestPipeline_Start_OnSubpipeline_Fails(t *testing.T) {
	p := New("root")
	child, err := p.CreateSubpipeline("child")
	require.NoError(t, err)
	clock := ptime.RealTimeClock()
	err = child.Start(clock, false)
	require.Error(t, err)
}
