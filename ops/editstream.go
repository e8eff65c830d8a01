package ops

import (
	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/scheduler"
	"github.com/corepipeio/corepipe/streams"
)

// EditStream combines Select and Where into a single pass: fn returns the
// mapped value and whether to keep it. Equivalent to Where(Select(...)) but
// without the intermediate emitter.
func EditStream[T, O any](ctx *scheduler.SchedulerContext, id uint64, name string, sourceID uint64, fn func(value T, t ptime.Time) (O, bool)) (*streams.Receiver[T], *streams.Emitter[O]) {
	out := streams.NewEmitter[O](id, name, ctx, sourceID)
	recv := streams.NewReceiver(ctx, func(m streams.Message[T]) error {
		v, keep := fn(m.Data, m.OriginatingTime)
		if !keep {
			return nil
		}
		return out.Post(v, m.OriginatingTime)
	}, streams.UnlimitedPolicy())
	return recv, out
}
