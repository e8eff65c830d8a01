package store

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/joeycumines/go-microbatch"

	"github.com/corepipeio/corepipe/internal/errs"
	"github.com/corepipeio/corepipe/ptime"
)

// WriterConfig configures Writer's commit batching, mirroring
// microbatch.BatcherConfig (ops.AggregateConfig does the same for stream
// aggregation): a batch of posted messages commits together once it reaches
// MaxSize, or FlushInterval elapses since the first message in the batch,
// whichever comes first.
type WriterConfig struct {
	MaxSize       int
	FlushInterval ptime.TimeSpan
}

type pendingMessage struct {
	streamID        int32
	payload         []byte
	originatingTime ptime.Time
	creationTime    ptime.Time
}

// Writer is the single attached writer for a store: it owns the Live lock,
// appends message bodies to the InfiniteFile chain, and maintains the
// in-memory Catalog/Index, periodically flushing both to disk.
//
// Commit batching is delegated to microbatch.Batcher exactly as
// ops.Aggregate delegates stream-message batching: each Post blocks the
// caller until its batch's extent commits land.
type Writer struct {
	dir  string
	name string

	live *liveMarker

	mu      sync.Mutex
	catalog *Catalog
	index   *Index
	extents *InfiniteFile

	batcher *microbatch.Batcher[pendingMessage]
}

// CreateStore initializes a brand-new store named name at dir and attaches
// a Writer to it.
func CreateStore(dir, name string, config WriterConfig) (*Writer, error) {
	live, err := acquireLive(dir, name)
	if err != nil {
		return nil, err
	}
	extents, err := CreateInfiniteFile(dir, name)
	if err != nil {
		_ = live.release()
		return nil, err
	}
	w := &Writer{
		dir:     dir,
		name:    name,
		live:    live,
		catalog: NewCatalog(),
		index:   NewIndex(),
		extents: extents,
	}
	w.startBatcher(config)
	return w, nil
}

// OpenStoreForWrite reattaches a Writer to an existing store, per spec's
// Repair path: the caller is expected to have run Repair first if the
// store's Live marker was left behind by a crashed writer.
func OpenStoreForWrite(dir, name string, config WriterConfig) (*Writer, error) {
	live, err := acquireLive(dir, name)
	if err != nil {
		return nil, err
	}
	catalog, err := ReadCatalogFile(filepath.Join(dir, name+".Catalog.psi"))
	if err != nil {
		_ = live.release()
		return nil, err
	}
	index, err := ReadIndexFile(filepath.Join(dir, name+".Index.psi"))
	if err != nil {
		_ = live.release()
		return nil, err
	}
	extents, err := OpenInfiniteFileForWrite(dir, name, latestExtentID(catalog, index))
	if err != nil {
		_ = live.release()
		return nil, err
	}
	w := &Writer{
		dir:     dir,
		name:    name,
		live:    live,
		catalog: catalog,
		index:   index,
		extents: extents,
	}
	w.startBatcher(config)
	return w, nil
}

func latestExtentID(_ *Catalog, index *Index) int64 {
	var max int64
	for _, e := range index.Entries() {
		if e.ExtentID > max {
			max = e.ExtentID
		}
	}
	return max
}

func (w *Writer) startBatcher(config WriterConfig) {
	w.batcher = microbatch.NewBatcher(&microbatch.BatcherConfig{
		MaxSize:        config.MaxSize,
		FlushInterval:  config.FlushInterval.Duration(),
		MaxConcurrency: 1, // single-writer: extent commits must stay ordered
	}, func(_ context.Context, jobs []pendingMessage) error {
		w.mu.Lock()
		defer w.mu.Unlock()
		for _, job := range jobs {
			if err := w.commitLocked(job); err != nil {
				return err
			}
		}
		if err := WriteIndexFile(filepath.Join(w.dir, w.name+".Index.psi"), w.index); err != nil {
			return err
		}
		return WriteCatalogFile(filepath.Join(w.dir, w.name+".Catalog.psi"), w.catalog)
	})
}

func (w *Writer) commitLocked(job pendingMessage) error {
	if err := w.extents.ReserveBlock(len(job.payload)); err != nil {
		return err
	}
	if len(job.payload) > 0 {
		if err := w.extents.WriteToBlock(job.payload); err != nil {
			return err
		}
	}
	extentID, offset, err := w.extents.CommitBlock()
	if err != nil {
		return err
	}
	w.index.Append(IndexEntry{
		StreamID:         job.streamID,
		OriginatingTime:  job.originatingTime,
		CreationTime:     job.creationTime,
		ExtentID:         extentID,
		PositionInExtent: offset,
	})
	w.index.Reindex()
	for _, e := range w.catalog.streams {
		if e.ID == job.streamID {
			e.Metadata.Observe(job.originatingTime, len(job.payload), 0)
			break
		}
	}
	return nil
}

// AddStream registers a new stream in the catalog (spec §4.5 AddStream).
// supplementalTypeName/supplementalBytes may be empty.
func (w *Writer) AddStream(name, typeName, supplementalTypeName string, supplementalBytes []byte) (int32, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, err := w.catalog.AddStream(name, typeName)
	if err != nil {
		return 0, err
	}
	e.Metadata.SupplementalTypeName = supplementalTypeName
	e.Metadata.SupplementalBytes = supplementalBytes
	return e.ID, nil
}

// Post appends a serialized message body to streamID's log, blocking until
// its batch commits.
func (w *Writer) Post(ctx context.Context, streamID int32, payload []byte, originatingTime, creationTime ptime.Time) error {
	result, err := w.batcher.Submit(ctx, pendingMessage{
		streamID:        streamID,
		payload:         payload,
		originatingTime: originatingTime,
		creationTime:    creationTime,
	})
	if err != nil {
		return err
	}
	return result.Wait(ctx)
}

// Close flushes any remaining batch, persists the Catalog/Index one final
// time, closes the extent chain, and releases the Live lock.
func (w *Writer) Close() error {
	w.batcher.Close()

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range w.catalog.streams {
		e.Flags |= StreamClosed
	}
	if err := WriteCatalogFile(filepath.Join(w.dir, w.name+".Catalog.psi"), w.catalog); err != nil {
		return err
	}
	if err := WriteIndexFile(filepath.Join(w.dir, w.name+".Index.psi"), w.index); err != nil {
		return err
	}
	if err := w.extents.Close(); err != nil {
		return err
	}
	if err := w.live.release(); err != nil {
		return errs.NewStoreIntegrity("releasing live lock", err)
	}
	return nil
}
