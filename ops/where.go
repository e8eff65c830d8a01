package ops

import (
	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/scheduler"
	"github.com/corepipeio/corepipe/streams"
)

// Where passes through only messages for which pred returns true, dropping
// the rest. Originating time is unchanged.
func Where[T any](ctx *scheduler.SchedulerContext, id uint64, name string, sourceID uint64, pred func(value T, t ptime.Time) bool) (*streams.Receiver[T], *streams.Emitter[T]) {
	out := streams.NewEmitter[T](id, name, ctx, sourceID)
	recv := streams.NewReceiver(ctx, func(m streams.Message[T]) error {
		if !pred(m.Data, m.OriginatingTime) {
			return nil
		}
		return out.Post(m.Data, m.OriginatingTime)
	}, streams.UnlimitedPolicy())
	return recv, out
}
