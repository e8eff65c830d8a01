package streams

import (
	"sync"

	"github.com/corepipeio/corepipe/internal/errs"
	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/scheduler"
)

// Emitter is the typed outbound endpoint of a stream edge: it fans out
// posted values to every subscribed Receiver under that edge's
// DeliveryPolicy. An Emitter has exactly one owning component and a lifetime
// bounded by its pipeline.
type Emitter[T any] struct {
	id       uint64
	name     string
	ctx      *scheduler.SchedulerContext
	sourceID uint64

	mu          sync.Mutex
	lastPosted  ptime.Time
	seq         uint64
	subscribers []subscriber[T]
	closed      bool
}

type subscriber[T any] struct {
	receiver *Receiver[T]
}

// NewEmitter constructs an Emitter named name, scoped to ctx, owned by the
// component identified by sourceID (used to stamp Message.SourceID).
func NewEmitter[T any](id uint64, name string, ctx *scheduler.SchedulerContext, sourceID uint64) *Emitter[T] {
	return &Emitter[T]{
		id:         id,
		name:       name,
		ctx:        ctx,
		sourceID:   sourceID,
		lastPosted: ptime.MinTime,
	}
}

// Name returns the emitter's diagnostic name.
func (e *Emitter[T]) Name() string { return e.name }

// Subscribe attaches r to this emitter's fan-out. Only valid while the
// owning pipeline is Initializing — the graph topology is frozen once
// Start runs.
func (e *Emitter[T]) Subscribe(r *Receiver[T]) error {
	if e.ctx.State() != scheduler.Initializing {
		return errs.NewInvalidArgument("emitter", "cannot subscribe after topology is frozen")
	}
	e.mu.Lock()
	e.subscribers = append(e.subscribers, subscriber[T]{receiver: r})
	e.mu.Unlock()
	return nil
}

// Post delivers value to every subscriber, stamped with originatingTime and
// the emitter's current virtual creation time. Fails with an OrderingError
// if originatingTime is older than the last posted message. Post itself
// never blocks on scheduler primitives; it only enqueues (or, for
// SynchronousOrThrottle receivers, directly invokes OnMessage).
func (e *Emitter[T]) Post(value T, originatingTime ptime.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errs.NewInvalidArgument("emitter", "closed")
	}
	if originatingTime < e.lastPosted {
		return errs.NewOrdering("emitter: originatingTime precedes last posted message", nil)
	}
	e.lastPosted = originatingTime
	e.seq++

	msg := Message[T]{
		Data:            value,
		OriginatingTime: originatingTime,
		CreationTime:    e.ctx.Now(),
		SourceID:        e.sourceID,
		SequenceID:      e.seq,
	}
	if msg.CreationTime < msg.OriginatingTime {
		msg.CreationTime = msg.OriginatingTime
	}

	for _, sub := range e.subscribers {
		if err := sub.receiver.enqueue(msg); err != nil {
			return err
		}
	}
	return nil
}

// Close marks the emitter closed and instructs every subscriber to finish
// draining its queue before transitioning to a terminal Closed state.
func (e *Emitter[T]) Close() {
	e.mu.Lock()
	e.closed = true
	subs := append([]subscriber[T](nil), e.subscribers...)
	e.mu.Unlock()
	for _, sub := range subs {
		sub.receiver.closeAfterDrain()
	}
}
