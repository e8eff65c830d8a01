// Package pipeline implements the root/sub-pipeline lifecycle coordinator:
// Initializing -> Running -> Stopping -> Final, the Start/Stop ordering
// contract between a pipeline and its nested sub-pipelines, and aggregate
// failure reporting from receiver actions run on the scheduler.
package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/corepipeio/corepipe/internal/errs"
	"github.com/corepipeio/corepipe/internal/telemetry"
	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/scheduler"
)

// Pipeline is the root, or a nested sub-pipeline, of a scheduled component
// graph. A root pipeline owns a scheduler.Scheduler; every sub-pipeline
// created beneath it shares that scheduler but gets its own
// scheduler.SchedulerContext, so quiescence and stop operations can be
// scoped to just the sub-pipeline without disturbing siblings.
type Pipeline struct {
	name      string
	scheduler *scheduler.Scheduler
	ctx       *scheduler.SchedulerContext
	parent    *Pipeline
	logger    *telemetry.Logger
	drain     time.Duration

	mu             sync.Mutex
	sources        []ISourceComponent
	subpipelines   []*Pipeline
	notifiers      []*CompletionNotifier
	allSourcesDone chan struct{}
	doneOnce       sync.Once

	stopErrMu sync.Mutex
	stopErrs  []error

	exceptionMu       sync.Mutex
	exceptionHandlers []func(error)
}

// New constructs a root Pipeline with its own Scheduler.
func New(name string, opts ...Option) *Pipeline {
	cfg := resolveOptions(opts)
	s := scheduler.New(scheduler.WithLogger(cfg.logger))
	return &Pipeline{
		name:           name,
		scheduler:      s,
		ctx:            s.NewContext(),
		logger:         cfg.logger,
		drain:          cfg.drainTimeout,
		allSourcesDone: make(chan struct{}),
	}
}

// Name returns the pipeline's (or sub-pipeline's) name, for diagnostics.
func (p *Pipeline) Name() string { return p.name }

// Scheduler returns the shared scheduler backing this pipeline and its
// entire sub-pipeline tree.
func (p *Pipeline) Scheduler() *scheduler.Scheduler { return p.scheduler }

// SchedulerContext returns this pipeline's own scoped scheduler context.
func (p *Pipeline) SchedulerContext() *scheduler.SchedulerContext { return p.ctx }

// AddSource registers src as a source component of this pipeline. Must be
// called before Start.
func (p *Pipeline) AddSource(src ISourceComponent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx.State() != scheduler.Initializing {
		return errs.NewInvalidArgument("pipeline", "cannot add sources once scheduling has started")
	}
	p.sources = append(p.sources, src)
	return nil
}

// CreateSubpipeline constructs a new Pipeline nested under p, sharing p's
// Scheduler. Returns InvalidArgument if attaching it would introduce a
// cycle in the pipeline tree (only possible via programmer error — e.g.
// reparenting an ancestor beneath its own descendant).
func (p *Pipeline) CreateSubpipeline(name string, opts ...Option) (*Pipeline, error) {
	cfg := resolveOptions(opts)
	child := &Pipeline{
		name:           name,
		scheduler:      p.scheduler,
		ctx:            p.scheduler.NewContext(),
		parent:         p,
		logger:         cfg.logger,
		drain:          cfg.drainTimeout,
		allSourcesDone: make(chan struct{}),
	}

	root := p
	for root.parent != nil {
		root = root.parent
	}
	deps := collectDependencies(root)
	deps[p] = append(deps[p], child)
	if hasCycle(deps) {
		return nil, errs.NewInvalidArgument("subpipeline", "would introduce a cycle in the pipeline tree")
	}

	p.mu.Lock()
	p.subpipelines = append(p.subpipelines, child)
	p.mu.Unlock()
	return child, nil
}

func collectDependencies(root *Pipeline) map[*Pipeline][]*Pipeline {
	deps := map[*Pipeline][]*Pipeline{}
	var walk func(n *Pipeline)
	walk = func(n *Pipeline) {
		n.mu.Lock()
		children := append([]*Pipeline(nil), n.subpipelines...)
		n.mu.Unlock()
		deps[n] = append(deps[n], children...)
		for _, c := range children {
			walk(c)
		}
	}
	walk(root)
	return deps
}

// Start begins the pipeline: it starts the shared scheduler (root pipelines
// only), then recursively starts every source in this pipeline before any
// source in a nested sub-pipeline, per the ordering contract in spec §4.2.
func (p *Pipeline) Start(clock *ptime.Clock, enforceReplayClock bool) error {
	if p.parent != nil {
		return errs.NewInvalidArgument("pipeline", "Start must be called on the root pipeline")
	}
	if err := p.scheduler.Start(clock, enforceReplayClock); err != nil {
		return err
	}
	return p.startTree()
}

func (p *Pipeline) startTree() error {
	if err := p.startSources(); err != nil {
		return err
	}
	if err := p.ctx.StartScheduling(); err != nil {
		return err
	}
	p.mu.Lock()
	subs := append([]*Pipeline(nil), p.subpipelines...)
	p.mu.Unlock()
	for _, sub := range subs {
		if err := sub.startTree(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) startSources() error {
	p.mu.Lock()
	sources := append([]ISourceComponent(nil), p.sources...)
	p.mu.Unlock()

	notifiers := make([]*CompletionNotifier, len(sources))
	for i, src := range sources {
		n := newCompletionNotifier()
		notifiers[i] = n
		if err := src.Start(p.ctx.CancelSignal(), n); err != nil {
			return errs.Wrap("pipeline: source start failed", err)
		}
	}

	p.mu.Lock()
	p.notifiers = append(p.notifiers, notifiers...)
	p.mu.Unlock()

	go p.watchCompletion(notifiers)
	return nil
}

// watchCompletion waits for every one of this pipeline's own source
// notifiers to fire, fanned out through an errgroup.Group so the barrier
// completes as soon as the slowest source notifies rather than serially.
func (p *Pipeline) watchCompletion(notifiers []*CompletionNotifier) {
	var g errgroup.Group
	for _, n := range notifiers {
		n := n
		g.Go(func() error {
			<-n.Done()
			return nil
		})
	}
	_ = g.Wait()
	p.doneOnce.Do(func() { close(p.allSourcesDone) })
}

// Wait blocks until every source in this pipeline (not its sub-pipelines)
// has reported completion, or ctx is done. Sources that notify indefinitely
// mean Wait never returns on its own.
func (p *Pipeline) Wait(ctx context.Context) error {
	select {
	case <-p.allSourcesDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop tears the pipeline tree down: sub-pipelines (and, within each, their
// own sources) are signaled and drained before this pipeline's own sources
// are stopped, then the shared scheduler itself is stopped. Safe to call
// only on the root pipeline.
func (p *Pipeline) Stop(finalOriginatingTime *ptime.Time) error {
	if p.parent != nil {
		return errs.NewInvalidArgument("pipeline", "Stop must be called on the root pipeline")
	}
	treeErr := p.stopTree(finalOriginatingTime)
	schedErr := p.scheduler.Stop()
	if treeErr != nil {
		return treeErr
	}
	return schedErr
}

func (p *Pipeline) stopTree(finalOriginatingTime *ptime.Time) error {
	p.mu.Lock()
	sources := append([]ISourceComponent(nil), p.sources...)
	subs := append([]*Pipeline(nil), p.subpipelines...)
	p.mu.Unlock()

	// sources signaled first
	if err := p.ctx.StopScheduling(); err != nil {
		return err
	}

	// every sub-pipeline is an independent non-source work item from this
	// pipeline's perspective; stop them concurrently and wait for all of
	// them via an errgroup barrier before draining this pipeline's own
	// context, per spec §4.2's bottom-up stop ordering.
	var g errgroup.Group
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			return sub.stopTree(finalOriginatingTime)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// allow pending deliveries in this context to drain
	if err := p.ctx.PauseForQuiescence(context.Background(), p.drain); err != nil {
		p.recordStopError(err)
	}

	for _, src := range sources {
		if err := src.Stop(finalOriginatingTime); err != nil {
			p.recordStopError(err)
		}
	}

	return p.ctx.Finalize()
}

func (p *Pipeline) recordStopError(err error) {
	p.stopErrMu.Lock()
	p.stopErrs = append(p.stopErrs, err)
	p.stopErrMu.Unlock()
}

// OnException subscribes handler to receive each error recorded by this
// pipeline's (or any sub-pipeline's) scheduled work items, once Run reports
// them after the pipeline stops; Stop and CollectFailures do not invoke
// handlers. If no handler is ever subscribed, Run instead
// fails with an AggregateFailure once the pipeline stops.
func (p *Pipeline) OnException(handler func(error)) {
	if handler == nil {
		return
	}
	p.exceptionMu.Lock()
	p.exceptionHandlers = append(p.exceptionHandlers, handler)
	p.exceptionMu.Unlock()
}

// CollectFailures gathers every error recorded across this pipeline's whole
// tree (its own scheduler context plus every sub-pipeline's), returning nil
// if none were recorded.
func (p *Pipeline) CollectFailures() error {
	var failures []error
	var walk func(n *Pipeline)
	walk = func(n *Pipeline) {
		failures = append(failures, n.ctx.Errors()...)
		n.stopErrMu.Lock()
		failures = append(failures, n.stopErrs...)
		n.stopErrMu.Unlock()
		n.mu.Lock()
		subs := append([]*Pipeline(nil), n.subpipelines...)
		n.mu.Unlock()
		for _, s := range subs {
			walk(s)
		}
	}
	walk(p)
	return errs.NewAggregateFailure(failures)
}

// Run starts the pipeline, waits for its sources to complete naturally (or
// for ctx to be done), then stops it. If any exception handlers are
// subscribed via OnException, recorded errors are delivered to them and Run
// returns nil (absent a Wait/Stop error); otherwise a non-nil
// CollectFailures result is returned as Run's own error, per spec §4.2's
// "Run fails with an AggregateFailure... [if] no handler is subscribed".
func (p *Pipeline) Run(ctx context.Context, clock *ptime.Clock, enforceReplayClock bool) error {
	if err := p.Start(clock, enforceReplayClock); err != nil {
		return err
	}
	waitErr := p.Wait(ctx)
	stopErr := p.Stop(nil)

	failure := p.CollectFailures()
	if failure != nil {
		p.exceptionMu.Lock()
		handlers := append([]func(error){}, p.exceptionHandlers...)
		p.exceptionMu.Unlock()
		if len(handlers) > 0 {
			if agg, ok := failure.(*errs.AggregateFailure); ok {
				for _, e := range agg.Errors {
					for _, h := range handlers {
						h(e)
					}
				}
			}
		} else {
			return failure
		}
	}

	if waitErr != nil {
		return waitErr
	}
	return stopErr
}
