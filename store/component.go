package store

import (
	"context"
	"fmt"

	"github.com/corepipeio/corepipe/internal/errs"
	"github.com/corepipeio/corepipe/pipeline"
	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/scheduler"
	"github.com/corepipeio/corepipe/serialization"
	"github.com/corepipeio/corepipe/streams"
)

// Importer is a pipeline.ISourceComponent that replays a single stream's
// already-committed messages from a Reader, deserializing each payload and
// posting it through an Emitter in originatingTime order (spec §2's "Store
// (Exporter/Importer)", §8 scenario 1's "reopen; sum values via Do").
//
// If the store is still live when replay catches up to the write cursor,
// Importer keeps following it (Reader.ReadStream's read-while-writing poll)
// until either the store closes or the pipeline stops this source.
type Importer[T any] struct {
	reader     *Reader
	streamID   int32
	serializer *serialization.Serializer
	emitter    *streams.Emitter[T]

	cancel context.CancelFunc
	done   chan struct{}
}

// NewImporter constructs an Importer replaying streamName from reader.
// serializer resolves each committed payload back into a T; a plain
// reflect-derived handler (the serialization package's default fallback)
// suffices for types with no custom Handler registered.
func NewImporter[T any](ctx *scheduler.SchedulerContext, id uint64, name string, sourceID uint64, reader *Reader, streamName string, serializer *serialization.Serializer) (*Importer[T], error) {
	entry, ok := reader.Catalog.Stream(streamName)
	if !ok {
		return nil, errs.NewInvalidArgument("streamName", "unknown stream: "+streamName)
	}
	return &Importer[T]{
		reader:     reader,
		streamID:   entry.ID,
		serializer: serializer,
		emitter:    streams.NewEmitter[T](id, name, ctx, sourceID),
	}, nil
}

// Emitter returns the Importer's outbound endpoint; subscribe downstream
// receivers to it before the owning pipeline starts.
func (im *Importer[T]) Emitter() *streams.Emitter[T] { return im.emitter }

// Start implements pipeline.ISourceComponent. Replay runs on its own
// goroutine so the scheduler's Start call never blocks on store I/O.
func (im *Importer[T]) Start(signal *scheduler.CancelSignal, notifier *pipeline.CompletionNotifier) error {
	runCtx, cancel := context.WithCancel(context.Background())
	im.cancel = cancel
	im.done = make(chan struct{})
	signal.OnCancel(func(error) { cancel() })

	go func() {
		defer close(im.done)
		var lastTime ptime.Time
		var sample T
		typeName := fmt.Sprintf("%T", sample)
		_ = im.reader.ReadStream(runCtx, im.streamID, func(e IndexEntry, payload []byte) error {
			decoded, err := im.serializer.Deserialize(typeName, sample, payload)
			if err != nil {
				return err
			}
			lastTime = e.OriginatingTime
			return im.emitter.Post(decoded.(T), e.OriginatingTime)
		})
		// A ReadStream error here is either runCtx's cancellation (Stop was
		// called) or a Post ordering failure surfaced to nobody else; either
		// way the emitter still closes and the notifier still fires so the
		// pipeline's completion barrier never hangs on a failed replay.
		im.emitter.Close()
		notifier.Notify(lastTime)
	}()
	return nil
}

// Stop cancels any still-running replay and waits for its goroutine to
// exit.
func (im *Importer[T]) Stop(_ *ptime.Time) error {
	if im.cancel != nil {
		im.cancel()
	}
	if im.done != nil {
		<-im.done
	}
	return nil
}

// exporterConfig holds Exporter construction options.
type exporterConfig struct {
	policy streams.DeliveryPolicy
}

// ExporterOption configures NewExporter.
type ExporterOption func(*exporterConfig)

// WithExporterPolicy overrides an Exporter's internal write receiver's
// default policy (Unlimited). Per spec §4.3: "Exporters always upgrade the
// default policy on their internal write receivers to a lossless policy
// unless the caller explicitly requests otherwise."
func WithExporterPolicy(policy streams.DeliveryPolicy) ExporterOption {
	return func(c *exporterConfig) { c.policy = policy }
}

// Exporter subscribes a Receiver to an upstream Emitter and persists every
// delivered message to a stream in a store.Writer, serializing each payload
// via a serialization.Serializer.
type Exporter[T any] struct {
	writer     *Writer
	streamID   int32
	serializer *serialization.Serializer
	receiver   *streams.Receiver[T]
}

// NewExporter registers streamName in writer's catalog (typeName/
// supplementalTypeName/supplementalBytes as per Writer.AddStream) and
// returns an Exporter whose Receiver persists every message delivered to
// it. Subscribe the returned Exporter's Receiver to the upstream Emitter
// before the owning pipeline starts.
func NewExporter[T any](ctx *scheduler.SchedulerContext, writer *Writer, streamName, typeName, supplementalTypeName string, supplementalBytes []byte, serializer *serialization.Serializer, opts ...ExporterOption) (*Exporter[T], error) {
	cfg := exporterConfig{policy: streams.UnlimitedPolicy()}
	for _, opt := range opts {
		opt(&cfg)
	}

	streamID, err := writer.AddStream(streamName, typeName, supplementalTypeName, supplementalBytes)
	if err != nil {
		return nil, err
	}

	ex := &Exporter[T]{writer: writer, streamID: streamID, serializer: serializer}
	ex.receiver = streams.NewReceiver(ctx, ex.onMessage, cfg.policy)
	return ex, nil
}

// Receiver returns the Exporter's inbound endpoint.
func (ex *Exporter[T]) Receiver() *streams.Receiver[T] { return ex.receiver }

func (ex *Exporter[T]) onMessage(m streams.Message[T]) error {
	payload, err := ex.serializer.Serialize(m.Data)
	if err != nil {
		return err
	}
	return ex.writer.Post(context.Background(), ex.streamID, payload, m.OriginatingTime, m.CreationTime)
}
