package streams

import (
	"sync"
	"time"

	"github.com/corepipeio/corepipe/internal/errs"
	"github.com/corepipeio/corepipe/internal/ratelimit"
	"github.com/corepipeio/corepipe/internal/telemetry"
	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/scheduler"
)

// dropLogWindow bounds how often Receiver logs a dropped-message warning
// under LatestMessage/QueueSize, so a fast producer can't flood the log at
// message rate.
const dropLogWindow = time.Second

// Receiver is the typed inbound endpoint of a stream edge. Messages posted
// by the connected Emitter are queued under Policy and delivered to
// OnMessage in non-decreasing OriginatingTime order.
//
// Its internal queue generalizes the teacher's ChunkedIngress, parameterized
// by DeliveryPolicy rather than hard-coded to unbounded-chunked behavior.
type Receiver[T any] struct {
	ctx       *scheduler.SchedulerContext
	onMessage func(Message[T]) error
	policy    DeliveryPolicy

	mu                  sync.Mutex
	queue               chunkedQueue[T]
	delivering          bool
	outstanding         int // inflight SynchronousOrThrottle deliveries
	lastOriginatingTime ptime.Time
	closePending        bool
	closed              bool

	backpressure chan struct{}

	logger   *telemetry.Logger
	dropGate *ratelimit.LogGate
}

// NewReceiver constructs a Receiver scoped to ctx, delivering via onMessage
// under policy. ctx's scheduler is used to drive asynchronous (queued)
// delivery for every policy except SynchronousOrThrottle.
func NewReceiver[T any](ctx *scheduler.SchedulerContext, onMessage func(Message[T]) error, policy DeliveryPolicy) *Receiver[T] {
	return &Receiver[T]{
		ctx:                 ctx,
		onMessage:           onMessage,
		policy:              policy,
		lastOriginatingTime: ptime.MinTime,
		backpressure:        make(chan struct{}, 1),
		logger:              telemetry.Disabled(),
		dropGate:            ratelimit.NewLogGate(dropLogWindow),
	}
}

// WithLogger attaches logger for this receiver's diagnostics, most notably
// the rate-limited warning emitted when LatestMessage/QueueSize discards an
// already-queued message to make room for a newer one.
func (r *Receiver[T]) WithLogger(logger *telemetry.Logger) *Receiver[T] {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Backpressure returns a channel a source component may select on to learn
// that this receiver's queue (or, for SynchronousOrThrottle, its concurrent
// delivery count) has reached the policy's threshold. Only Throttled,
// SynchronousOrThrottle carry a threshold; other policies never signal.
func (r *Receiver[T]) Backpressure() <-chan struct{} { return r.backpressure }

// Closed reports whether this receiver has finished draining after its
// emitter closed.
func (r *Receiver[T]) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Receiver[T]) signalBackpressure() {
	select {
	case r.backpressure <- struct{}{}:
	default:
	}
}

// enqueue accepts a message from the emitter's fan-out. Called with the
// emitter's lock held, so it must not block on user code except for the
// SynchronousOrThrottle policy's deliberately inline delivery.
func (r *Receiver[T]) enqueue(m Message[T]) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errs.NewInvalidArgument("receiver", "closed")
	}

	if r.policy.Kind == SynchronousOrThrottle {
		r.outstanding++
		if r.outstanding >= max(r.policy.K, 1) {
			r.signalBackpressure()
		}
		r.mu.Unlock()

		err := r.deliverOne(m)

		r.mu.Lock()
		r.outstanding--
		r.mu.Unlock()
		return err
	}

	switch r.policy.Kind {
	case LatestMessage:
		if r.queue.len() > 0 && r.dropGate.Allow("latest-message") {
			r.logger.Warning().Log("receiver: dropping superseded message under LatestMessage policy")
		}
		r.queue.clear()
		r.queue.push(m)
	case QueueSize:
		for r.queue.len() >= max(r.policy.K, 1) {
			r.queue.pop()
			if r.dropGate.Allow("queue-size") {
				r.logger.Warning().Log("receiver: dropping oldest queued message under QueueSize policy")
			}
		}
		r.queue.push(m)
	case Throttled:
		r.queue.push(m)
		if r.queue.len() >= max(r.policy.K, 1) {
			r.signalBackpressure()
		}
	default: // Unlimited
		r.queue.push(m)
	}

	needsDispatch := !r.delivering
	if needsDispatch {
		r.delivering = true
	}
	r.mu.Unlock()

	if needsDispatch {
		return r.scheduleDrain()
	}
	return nil
}

// deliverOne invokes onMessage for a single message and enforces the
// per-receiver ordering invariant.
func (r *Receiver[T]) deliverOne(m Message[T]) error {
	r.mu.Lock()
	if m.OriginatingTime < r.lastOriginatingTime {
		r.mu.Unlock()
		return errs.NewOrdering("receiver: out-of-order delivery", nil)
	}
	r.lastOriginatingTime = m.OriginatingTime
	r.mu.Unlock()
	return r.onMessage(m)
}

// scheduleDrain enqueues a work item on the scheduler that pops and
// delivers queued messages until the queue is empty, then clears the
// delivering flag (re-scheduling itself if more arrived in the interim would
// race the flag, so enqueue always re-checks under lock before returning).
func (r *Receiver[T]) scheduleDrain() error {
	return r.ctx.Scheduler().Schedule(r.ctx, r.ctx.Now(), func(signal *scheduler.CancelSignal) error {
		var failures []error
		for {
			r.mu.Lock()
			m, ok := r.queue.pop()
			if !ok {
				r.delivering = false
				if r.closePending {
					r.closed = true
				}
				r.mu.Unlock()
				return errs.NewAggregateFailure(failures)
			}
			r.mu.Unlock()

			if err := r.deliverOne(m); err != nil {
				failures = append(failures, err)
			}

			if signal.Canceled() {
				r.mu.Lock()
				r.delivering = false
				r.mu.Unlock()
				return errs.NewAggregateFailure(failures)
			}
		}
	})
}

// closeAfterDrain marks the receiver to transition to Closed once its queue
// (and any in-flight SynchronousOrThrottle delivery) has drained, per the
// contract that a receiver whose emitter is closed finishes delivering
// already-queued messages before becoming terminal.
func (r *Receiver[T]) closeAfterDrain() {
	r.mu.Lock()
	r.closePending = true
	idle := !r.delivering && r.queue.len() == 0 && r.outstanding == 0
	if idle {
		r.closed = true
	}
	r.mu.Unlock()
}
