// Package ops implements the scalar stream operators named in
// StreamOperators: Select, Where, Aggregate, Do, Delay, EditStream. Each
// operator wires one streams.Receiver to one streams.Emitter, so it
// composes with Subscribe/Post exactly like the fusion operators do.
package ops

import (
	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/scheduler"
	"github.com/corepipeio/corepipe/streams"
)

// Select maps every message on source through fn, posting the result to a
// new emitter under the same originating time. The returned Receiver must
// be subscribed to source.
func Select[T, O any](ctx *scheduler.SchedulerContext, id uint64, name string, sourceID uint64, fn func(value T, t ptime.Time) O) (*streams.Receiver[T], *streams.Emitter[O]) {
	out := streams.NewEmitter[O](id, name, ctx, sourceID)
	recv := streams.NewReceiver(ctx, func(m streams.Message[T]) error {
		return out.Post(fn(m.Data, m.OriginatingTime), m.OriginatingTime)
	}, streams.UnlimitedPolicy())
	return recv, out
}
