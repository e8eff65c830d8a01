package store

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/joeycumines/go-longpoll"

	"github.com/corepipeio/corepipe/internal/errs"
	"github.com/corepipeio/corepipe/ptime"
)

// Reader opens an existing store read-only: its Catalog and Index are
// loaded up front, and ReadStream walks a single stream's committed
// messages in originatingTime order, transparently following the extent
// chain.
type Reader struct {
	dir     string
	name    string
	Catalog *Catalog
	Index   *Index
}

// OpenStore opens name at dir for reading (spec §4.5: "open by name+path
// resolves to the latest matching version").
func OpenStore(dir, name string) (*Reader, error) {
	catalog, err := ReadCatalogFile(filepath.Join(dir, name+".Catalog.psi"))
	if err != nil {
		return nil, err
	}
	index, err := ReadIndexFile(filepath.Join(dir, name+".Index.psi"))
	if err != nil {
		return nil, err
	}
	return &Reader{dir: dir, name: name, Catalog: catalog, Index: index}, nil
}

// IsLive reports whether the store currently has an attached writer (the
// presence of N.Live, spec §4.5/§6).
func (r *Reader) IsLive() bool {
	_, err := os.Stat(livePath(r.dir, r.name))
	return err == nil
}

// pollInterval is how often ReadStream's notifier goroutine rechecks the
// Index file's modtime and the Live marker while waiting on a live store.
const pollInterval = 20 * time.Millisecond

// ReadStream invokes handler for every committed message on streamID, in
// originatingTime order, starting from the extent the stream's earliest
// IndexEntry lives in. If the store is live when the last known message is
// exhausted, ReadStream polls for newly committed blocks (spec §4.5:
// "reaching EOF on the live store is not a terminal condition") rather than
// returning, stopping only once the Live marker disappears or ctx is
// cancelled.
//
// The poll-and-wait loop is the same shape ops.Aggregate's submit/flush
// loop delegates to microbatch for in-process batching: here, a notifier
// goroutine pushes onto a channel whenever the Index file's modtime
// advances or the Live marker disappears, and longpoll.Channel blocks the
// caller on it (with a
// timeout, so a stalled-but-still-live writer doesn't wedge the reader
// forever between polls).
func (r *Reader) ReadStream(ctx context.Context, streamID int32, handler func(e IndexEntry, payload []byte) error) error {
	entries := r.Index.Range(streamID, ptime.Time(minInt64), ptime.Time(maxInt64))
	pos := 0
	for {
		for pos < len(entries) {
			e := entries[pos]
			payload, err := r.readAt(e.ExtentID, e.PositionInExtent)
			if err != nil {
				return err
			}
			if err := handler(e, payload); err != nil {
				return err
			}
			pos++
		}
		if !r.IsLive() {
			return nil
		}
		if err := r.waitForProgress(ctx); err != nil {
			return err
		}
		reread, err := ReadIndexFile(filepath.Join(r.dir, r.name+".Index.psi"))
		if err != nil {
			return err
		}
		r.Index = reread
		entries = r.Index.Range(streamID, ptime.Time(minInt64), ptime.Time(maxInt64))
	}
}

const minInt64 = -1 << 63
const maxInt64 = 1<<63 - 1

func (r *Reader) readAt(extentID, offset int64) ([]byte, error) {
	f, err := OpenInfiniteFile(r.dir, r.name, extentID)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	f.cursor = offset
	var buf []byte
	if err := f.ReadBlock(&buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// waitForProgress blocks until the store's Index file's modtime advances,
// the Live marker disappears, ctx is cancelled, or ten pollIntervals elapse
// without a firm signal either way, whichever comes first.
func (r *Reader) waitForProgress(ctx context.Context) error {
	notify := make(chan struct{}, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		last := r.indexModTime()
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				cur := r.indexModTime()
				if cur.After(last) || !r.IsLive() {
					last = cur
					select {
					case notify <- struct{}{}:
					default:
					}
				}
			}
		}
	}()

	cfg := &longpoll.ChannelConfig{MaxSize: 1, MinSize: 1, PartialTimeout: pollInterval * 10}
	waitCtx, cancel := context.WithTimeout(ctx, pollInterval*10)
	defer cancel()
	err := longpoll.Channel(waitCtx, cfg, notify, func(struct{}) error { return nil })
	if err != nil && err != context.DeadlineExceeded {
		return errs.Wrap("waiting for store progress", err)
	}
	return nil
}

func (r *Reader) indexModTime() time.Time {
	info, err := os.Stat(filepath.Join(r.dir, r.name+".Index.psi"))
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
