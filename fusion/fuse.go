package fusion

import (
	"sync"

	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/scheduler"
	"github.com/corepipeio/corepipe/streams"
)

// Fusion is the handle returned by Fuse: the two input receivers to
// subscribe to the primary and secondary emitters, and the output emitter
// downstream components subscribe to.
type Fusion[P, S, O any] struct {
	Primary   *streams.Receiver[P]
	Secondary *streams.Receiver[S]
	Output    *streams.Emitter[O]

	f *fuser[P, S, O]
}

// CloseSecondary informs the fusion that the secondary stream has closed at
// t, so any primaries still buffered awaiting InsufficientData resolution
// can be answered with DoesNotExist rather than waiting forever.
func (fz *Fusion[P, S, O]) CloseSecondary(t ptime.Time) error {
	fz.f.mu.Lock()
	defer fz.f.mu.Unlock()
	fz.f.closedAt = &t
	return fz.f.retryPendingLocked()
}

type fuser[P, S, O any] struct {
	interpolator *Interpolator[S]
	outputFn     func(p P, s S, t ptime.Time) O
	output       *streams.Emitter[O]

	mu           sync.Mutex
	secondaryBuf []streams.Message[S]
	pending      []streams.Message[P]
	closedAt     *ptime.Time
}

// Fuse is the fusion primitive: for each primary message, it queries
// interpolator against the secondary stream's buffer and emits
// outputFn(primary, secondary, primary.OriginatingTime) if Created, drops
// the primary if DoesNotExist, or buffers it if InsufficientData until
// enough secondary data (or CloseSecondary) arrives to resolve it.
// Secondary messages older than every live ObsoleteTime marker are pruned.
func Fuse[P, S, O any](ctx *scheduler.SchedulerContext, sourceID uint64, interpolator *Interpolator[S], outputFn func(p P, s S, t ptime.Time) O) *Fusion[P, S, O] {
	f := &fuser[P, S, O]{
		interpolator: interpolator,
		outputFn:     outputFn,
		output:       streams.NewEmitter[O](0, "fuse", ctx, sourceID),
	}

	secondary := streams.NewReceiver(ctx, func(m streams.Message[S]) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.secondaryBuf = append(f.secondaryBuf, m)
		return f.retryPendingLocked()
	}, streams.UnlimitedPolicy())

	primary := streams.NewReceiver(ctx, func(m streams.Message[P]) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		if len(f.pending) > 0 {
			f.pending = append(f.pending, m)
			return f.retryPendingLocked()
		}
		return f.handlePrimaryLocked(m)
	}, streams.UnlimitedPolicy())

	return &Fusion[P, S, O]{Primary: primary, Secondary: secondary, Output: f.output, f: f}
}

func (f *fuser[P, S, O]) handlePrimaryLocked(m streams.Message[P]) error {
	res := f.interpolator.Interpolate(m.OriginatingTime, f.secondaryBuf, f.closedAt)
	switch res.Kind {
	case Created:
		f.pruneLocked(res.ObsoleteTime)
		return f.output.Post(f.outputFn(m.Data, res.Value, m.OriginatingTime), m.OriginatingTime)
	case DoesNotExist:
		f.pruneLocked(res.ObsoleteTime)
		return nil
	default: // InsufficientData
		f.pending = append(f.pending, m)
		return nil
	}
}

// retryPendingLocked re-queries every buffered primary, in arrival order,
// stopping at the first still-InsufficientData one to preserve delivery
// order.
func (f *fuser[P, S, O]) retryPendingLocked() error {
	for len(f.pending) > 0 {
		m := f.pending[0]
		res := f.interpolator.Interpolate(m.OriginatingTime, f.secondaryBuf, f.closedAt)
		if res.Kind == InsufficientData {
			return nil
		}
		f.pending = f.pending[1:]
		f.pruneLocked(res.ObsoleteTime)
		if res.Kind == Created {
			if err := f.output.Post(f.outputFn(m.Data, res.Value, m.OriginatingTime), m.OriginatingTime); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *fuser[P, S, O]) pruneLocked(obsolete ptime.Time) {
	i := 0
	for i < len(f.secondaryBuf) && f.secondaryBuf[i].OriginatingTime <= obsolete {
		i++
	}
	if i > 0 {
		f.secondaryBuf = append([]streams.Message[S](nil), f.secondaryBuf[i:]...)
	}
}

// pairOutput is Join's and Pair's output shape before any further chaining
// flattens it via AppendTupleN.
type pairOutput[P, S any] = Tuple2[P, S]

// Join is Fuse over a Reproducible interpolator: deterministic across
// replays regardless of message arrival order.
func Join[P, S any](ctx *scheduler.SchedulerContext, sourceID uint64, window ptime.RelativeTimeInterval, selector Selector) (*Fusion[P, S, pairOutput[P, S]], error) {
	var interp *Interpolator[S]
	var err error
	switch selector {
	case First:
		interp, err = ReproducibleFirst[S](window)
	case Last:
		interp, err = ReproducibleLast[S](window)
	case Exact:
		interp, err = ReproducibleExact[S](window)
	default:
		interp, err = ReproducibleNearest[S](window)
	}
	if err != nil {
		return nil, err
	}
	return Fuse(ctx, sourceID, interp, func(p P, s S, _ ptime.Time) pairOutput[P, S] {
		return Tuple2[P, S]{V1: p, V2: s}
	}), nil
}

// Pair is Fuse(primary, secondary, Available.Last): non-deterministic by
// design, since it answers with whatever the secondary's latest value
// happens to be at delivery time. If init is non-nil, the secondary buffer
// is pre-seeded with it so primaries arriving before the first real
// secondary message still emit.
func Pair[P, S any](ctx *scheduler.SchedulerContext, sourceID uint64, init *S) (*Fusion[P, S, pairOutput[P, S]], error) {
	interp, err := AvailableLast[S](ptime.UnboundedRelative)
	if err != nil {
		return nil, err
	}
	fz := Fuse(ctx, sourceID, interp, func(p P, s S, _ ptime.Time) pairOutput[P, S] {
		return Tuple2[P, S]{V1: p, V2: s}
	})
	if init != nil {
		fz.f.secondaryBuf = append(fz.f.secondaryBuf, streams.Message[S]{Data: *init, OriginatingTime: ptime.MinTime})
	}
	return fz, nil
}

// Interpolate anchors a Reproducible.Linear interpolation of the secondary
// stream at every primary message's time.
func Interpolate[P, S any](ctx *scheduler.SchedulerContext, sourceID uint64, window ptime.RelativeTimeInterval, lerp func(before, after streams.Message[S], t ptime.Time) S) *Fusion[P, S, pairOutput[P, S]] {
	interp := NewLinear(window, lerp)
	return Fuse(ctx, sourceID, interp, func(p P, s S, _ ptime.Time) pairOutput[P, S] {
		return Tuple2[P, S]{V1: p, V2: s}
	})
}

// Sample emits, at each tick message from clock, the nearest stream message
// within window.
func Sample[C, S any](ctx *scheduler.SchedulerContext, sourceID uint64, window ptime.RelativeTimeInterval) (*Fusion[C, S, pairOutput[C, S]], error) {
	interp, err := AvailableNearest[S](window)
	if err != nil {
		return nil, err
	}
	return Fuse(ctx, sourceID, interp, func(c C, s S, _ ptime.Time) pairOutput[C, S] {
		return Tuple2[C, S]{V1: c, V2: s}
	}), nil
}
