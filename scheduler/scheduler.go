// Package scheduler implements the cooperative worker pool and per-pipeline
// scoped lifecycle handle that the rest of corepipe schedules work through:
// a priority queue of (action, dueTime, context) work items dispatched by a
// fixed-size pool of goroutines, with optional enforcement of a replay
// clock, and SchedulerContext-scoped quiescence/stop operations.
package scheduler

import (
	"container/heap"
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corepipeio/corepipe/internal/errs"
	"github.com/corepipeio/corepipe/internal/telemetry"
	"github.com/corepipeio/corepipe/ptime"
)

// Scheduler owns a worker pool and a single priority queue of WorkItems
// keyed by dueTime, shared across every SchedulerContext it serves.
type Scheduler struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   workQueue
	seq     uint64
	clock   *ptime.Clock
	enforce bool

	state   *FastState
	workers int
	wg      sync.WaitGroup
	logger  *telemetry.Logger

	ctxSeq atomic.Uint64
}

// New constructs a Scheduler in the Initializing state. Call Start to begin
// dispatching once a clock is available.
func New(opts ...Option) *Scheduler {
	cfg := resolveOptions(opts)
	if cfg.workers <= 0 {
		cfg.workers = runtime.NumCPU()
	}
	s := &Scheduler{
		state:   NewFastState(),
		workers: cfg.workers,
		logger:  cfg.logger,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start transitions the scheduler to Running and launches its worker pool.
// clock is consulted for both dueTime comparisons and, when
// enforceReplayClock is true, to hold back work items until their dueTime
// arrives (spec: "a work item with dueTime > virtualNow is held"). When
// false, items are dispatched as soon as a worker can claim them.
func (s *Scheduler) Start(clock *ptime.Clock, enforceReplayClock bool) error {
	if clock == nil {
		return errs.NewInvalidArgument("clock", "must not be nil")
	}
	s.mu.Lock()
	if !s.state.TryTransition(Initializing, Running) {
		s.mu.Unlock()
		return errs.NewInvalidArgument("scheduler", "already started")
	}
	s.clock = clock
	s.enforce = enforceReplayClock
	s.mu.Unlock()

	s.wg.Add(s.workers)
	for i := 0; i < s.workers; i++ {
		go s.workerLoop()
	}
	return nil
}

// Now returns the scheduler's current virtual time. Valid only once Start
// has returned; the clock field itself is set once at Start and never
// reassigned, so no further synchronization is needed to read it afterward.
func (s *Scheduler) Now() ptime.Time { return s.clock.Now() }

// NewContext returns a fresh SchedulerContext scoped to this scheduler, in
// the Initializing state.
func (s *Scheduler) NewContext() *SchedulerContext {
	return &SchedulerContext{
		id:        s.ctxSeq.Add(1),
		scheduler: s,
		state:     NewFastState(),
		cancel:    NewCancelController(),
	}
}

// Schedule enqueues action to run no earlier than dueTime, scoped to ctx.
// Returns ErrSchedulerStopped once the scheduler has reached Final, or if
// ctx itself has reached Final.
func (s *Scheduler) Schedule(ctx *SchedulerContext, dueTime ptime.Time, action func(signal *CancelSignal) error) error {
	if ctx.state.Load() == Final {
		return ErrSchedulerStopped
	}
	s.mu.Lock()
	if s.state.Load() == Final {
		s.mu.Unlock()
		return ErrSchedulerStopped
	}
	s.seq++
	item := &WorkItem{action: action, dueTime: dueTime, ctx: ctx, seq: s.seq}
	ctx.enqueued.Add(1)
	heap.Push(&s.queue, item)
	s.cond.Broadcast()
	s.mu.Unlock()
	return nil
}

// Stop transitions the scheduler toward Final and waits for every worker
// goroutine to exit. Safe to call more than once.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	for {
		cur := s.state.Load()
		if cur == Final {
			s.mu.Unlock()
			return nil
		}
		if s.state.TryTransition(cur, Final) {
			break
		}
	}
	s.cond.Broadcast()
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

// claim blocks the calling worker until either an item is ready to dispatch
// or the scheduler has reached Final with an empty queue (returns nil).
//
// Workers block on the shared cond while the queue is empty. When the head
// of the queue is not yet due under enforceReplayClock, the worker sleeps
// on a plain timer rather than the cond, so a Schedule call that inserts an
// earlier item wakes any *other* idle worker immediately via Broadcast but
// will not preempt a worker already mid-sleep on a more distant item — an
// accepted simplification as long as at least one worker is free to pick up
// the newly-inserted item.
func (s *Scheduler) claim() *WorkItem {
	s.mu.Lock()
	for {
		if len(s.queue) > 0 {
			head := s.queue[0]
			now := s.clock.Now()
			if !s.enforce || head.dueTime <= now {
				item := heap.Pop(&s.queue).(*WorkItem)
				item.ctx.dispatched.Add(1)
				s.mu.Unlock()
				return item
			}
			wait := head.dueTime.Sub(now).Duration()
			s.mu.Unlock()
			timer := time.NewTimer(wait)
			<-timer.C
			timer.Stop()
			s.mu.Lock()
			continue
		}
		if s.state.Load() == Final {
			s.mu.Unlock()
			return nil
		}
		s.cond.Wait()
	}
}

func (s *Scheduler) workerLoop() {
	defer s.wg.Done()
	for {
		item := s.claim()
		if item == nil {
			return
		}
		s.execute(item)
	}
}

func (s *Scheduler) execute(item *WorkItem) {
	err := runAction(s.logger, item.action, item.ctx.cancel.Signal())
	if err != nil {
		item.ctx.recordError(err)
	}
	item.ctx.enqueued.Add(-1)
	item.ctx.dispatched.Add(-1)

	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}

// runAction recovers a panicking action into an error, matching the
// teacher's treatment of task panics as reportable errors rather than
// crashing the whole pool (eventloop/errors.go's PanicError). A recovered
// panic is always logged, independent of whether the caller goes on to
// inspect the returned error via SchedulerContext.Errors.
func runAction(logger *telemetry.Logger, action func(signal *CancelSignal) error, signal *CancelSignal) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = errs.Wrap("scheduler: action panicked", e)
			} else {
				err = errs.NewUnsupported("scheduler: action panicked (non-error value)")
			}
			if logger != nil {
				logger.Err().Err(err).Log("scheduler: recovered action panic")
			}
		}
	}()
	return action(signal)
}

// SchedulerContext is a per-pipeline (or sub-pipeline) scoped handle onto a
// Scheduler: it carries its own lifecycle state, cancellation controller,
// and error accumulation, independent of any sibling context sharing the
// same worker pool.
type SchedulerContext struct {
	id        uint64
	scheduler *Scheduler
	state     *FastState
	cancel    *CancelController

	enqueued   atomic.Int64 // items scheduled but not yet completed
	dispatched atomic.Int64 // of those, currently executing

	errMu sync.Mutex
	errs  []error
}

// CancelSignal returns the signal fired when this context is stopped or
// explicitly canceled.
func (c *SchedulerContext) CancelSignal() *CancelSignal { return c.cancel.Signal() }

// Now returns the scheduler's current virtual time.
func (c *SchedulerContext) Now() ptime.Time { return c.scheduler.Now() }

// Scheduler returns the Scheduler this context is scoped to, so callers
// (e.g. streams.Receiver) can schedule delivery work items against it.
func (c *SchedulerContext) Scheduler() *Scheduler { return c.scheduler }

// StartScheduling transitions the context to Running. Per the Start/Stop
// ordering contract, callers must invoke every ISourceComponent.Start
// before any message is delivered, and only call StartScheduling once all
// of those have returned.
func (c *SchedulerContext) StartScheduling() error {
	if !c.state.TryTransition(Initializing, Running) {
		return errs.NewInvalidArgument("context", "must be Initializing to start scheduling")
	}
	return nil
}

// StopScheduling transitions the context to Stopping and fires its cancel
// signal, so any goroutine observing CancelSignal() sees cancellation
// immediately. It does not itself wait for in-flight items to drain; callers
// needing that should follow with PauseForQuiescence.
func (c *SchedulerContext) StopScheduling() error {
	cur := c.state.Load()
	if cur == Stopping || cur == Final {
		return nil
	}
	if !c.state.TryTransition(Running, Stopping) {
		if !c.state.TryTransition(Initializing, Stopping) {
			return errs.NewInvalidArgument("context", "cannot stop scheduling from current state")
		}
	}
	c.cancel.Cancel(nil)
	return nil
}

// Finalize transitions the context to Final. Call after StopScheduling and,
// typically, a successful PauseForQuiescence.
func (c *SchedulerContext) Finalize() error {
	cur := c.state.Load()
	if cur == Final {
		return nil
	}
	if !c.state.TryTransition(Stopping, Final) {
		return errs.NewInvalidArgument("context", "must be Stopping to finalize")
	}
	return nil
}

// State returns the context's current lifecycle state.
func (c *SchedulerContext) State() LifecycleState { return c.state.Load() }

// hasDueWorkLocked reports whether this context still has a work item, due
// at or before now, that has not completed — either sitting in the queue or
// currently executing. Must be called with c.scheduler.mu held.
func (c *SchedulerContext) hasDueWorkLocked(now ptime.Time) bool {
	if c.dispatched.Load() > 0 {
		return true
	}
	for _, item := range c.scheduler.queue {
		if item.ctx == c && item.dueTime <= now {
			return true
		}
	}
	return false
}

// PauseForQuiescence blocks until every work item scheduled under c with
// dueTime at or before the current virtual time has completed, ctx is
// canceled, or timeout elapses (a non-positive timeout waits indefinitely).
// Returns a TimeoutError if the timeout elapses first.
func (c *SchedulerContext) PauseForQuiescence(ctx context.Context, timeout time.Duration) error {
	s := c.scheduler
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		now := s.clock.Now()
		if !c.hasDueWorkLocked(now) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if deadline.IsZero() {
			s.cond.Wait()
			continue
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return errs.NewTimeout("PauseForQuiescence")
		}
		if !s.condWaitTimeout(remaining) {
			return errs.NewTimeout("PauseForQuiescence")
		}
	}
}

// ResumeAfterQuiescence is the counterpart to PauseForQuiescence named by
// the scheduling contract. Because pausing here only observes quiescence
// rather than halting dispatch, there is nothing to resume; it exists so
// callers can pair Pause/Resume symmetrically and is always a no-op.
func (c *SchedulerContext) ResumeAfterQuiescence() error { return nil }

// recordError appends err to this context's accumulated failures.
func (c *SchedulerContext) recordError(err error) {
	c.errMu.Lock()
	c.errs = append(c.errs, err)
	c.errMu.Unlock()
}

// Errors returns a defensive copy of the errors this context's work items
// have returned so far.
func (c *SchedulerContext) Errors() []error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	out := make([]error, len(c.errs))
	copy(out, c.errs)
	return out
}

// AggregateFailure returns nil if no errors were recorded, or an
// *errs.AggregateFailure wrapping all of them otherwise.
func (c *SchedulerContext) AggregateFailure() error {
	return errs.NewAggregateFailure(c.Errors())
}

// condWaitTimeout waits on s.cond (must be called with s.mu held) for at
// most d, returning false if it woke purely because d elapsed with no
// intervening Broadcast/Signal, true otherwise. sync.Cond has no built-in
// timeout, so this schedules a timer that fires a Broadcast of its own.
func (s *Scheduler) condWaitTimeout(d time.Duration) bool {
	timedOut := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		s.mu.Lock()
		close(timedOut)
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	s.cond.Wait()
	timer.Stop()
	select {
	case <-timedOut:
		return false
	default:
		return true
	}
}
