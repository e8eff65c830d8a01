package ops

import (
	"context"

	"github.com/joeycumines/go-microbatch"

	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/scheduler"
	"github.com/corepipeio/corepipe/streams"
)

// AggregateConfig configures Aggregate's batching window, mirroring
// microbatch.BatcherConfig: a batch flushes once it reaches MaxSize
// messages, or FlushInterval elapses since its first message, whichever
// comes first. Either may be left zero to take microbatch's own default.
type AggregateConfig struct {
	MaxSize       int
	FlushInterval ptime.TimeSpan
}

// Aggregate groups source's messages into batches per config, reducing each
// batch to a single output value via reduce, which receives the batch in
// arrival order. The output is posted at the batch's last message's
// originating time, so Aggregate never reorders relative to source.
//
// Batching is delegated entirely to microbatch.Batcher: each incoming
// message is Submit-ted as a job, blocking the receiver's delivery goroutine
// until its batch flushes, exactly as the teacher's own Batcher.Submit
// contract describes.
func Aggregate[T, O any](ctx *scheduler.SchedulerContext, id uint64, name string, sourceID uint64, config AggregateConfig, reduce func(batch []T) O) (*streams.Receiver[T], *streams.Emitter[O]) {
	out := streams.NewEmitter[O](id, name, ctx, sourceID)

	batcher := microbatch.NewBatcher(&microbatch.BatcherConfig{
		MaxSize:        config.MaxSize,
		FlushInterval:  config.FlushInterval.Duration(),
		MaxConcurrency: 1, // preserves posting order on out
	}, func(batchCtx context.Context, jobs []streams.Message[T]) error {
		if len(jobs) == 0 {
			return nil
		}
		values := make([]T, len(jobs))
		for i, j := range jobs {
			values[i] = j.Data
		}
		return out.Post(reduce(values), jobs[len(jobs)-1].OriginatingTime)
	})

	recv := streams.NewReceiver(ctx, func(m streams.Message[T]) error {
		result, err := batcher.Submit(context.Background(), m)
		if err != nil {
			return err
		}
		return result.Wait(context.Background())
	}, streams.UnlimitedPolicy())

	return recv, out
}
