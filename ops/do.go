package ops

import (
	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/scheduler"
	"github.com/corepipeio/corepipe/streams"
)

// Do invokes fn for its side effect on every message, passing the message
// through unchanged. Useful for tapping a stream for logging or metrics
// without altering the pipeline's data flow.
func Do[T any](ctx *scheduler.SchedulerContext, id uint64, name string, sourceID uint64, fn func(value T, t ptime.Time)) (*streams.Receiver[T], *streams.Emitter[T]) {
	out := streams.NewEmitter[T](id, name, ctx, sourceID)
	recv := streams.NewReceiver(ctx, func(m streams.Message[T]) error {
		fn(m.Data, m.OriginatingTime)
		return out.Post(m.Data, m.OriginatingTime)
	}, streams.UnlimitedPolicy())
	return recv, out
}
