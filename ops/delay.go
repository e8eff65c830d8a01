package ops

import (
	"github.com/corepipeio/corepipe/internal/errs"
	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/scheduler"
	"github.com/corepipeio/corepipe/streams"
)

// Delay re-stamps every message's originating time forward by span. span
// must be non-negative: a negative delay could re-order messages relative
// to ones already posted on the output emitter, violating its monotonic
// originating-time contract.
func Delay[T any](ctx *scheduler.SchedulerContext, id uint64, name string, sourceID uint64, span ptime.TimeSpan) (*streams.Receiver[T], *streams.Emitter[T], error) {
	if span < 0 {
		return nil, nil, errs.NewInvalidArgument("span", "Delay requires a non-negative TimeSpan")
	}
	out := streams.NewEmitter[T](id, name, ctx, sourceID)
	recv := streams.NewReceiver(ctx, func(m streams.Message[T]) error {
		return out.Post(m.Data, m.OriginatingTime.Add(span))
	}, streams.UnlimitedPolicy())
	return recv, out, nil
}
