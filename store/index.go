package store

import (
	"encoding/binary"
	"os"
	"sort"

	"github.com/corepipeio/corepipe/internal/errs"
	"github.com/corepipeio/corepipe/ptime"
)

// IndexEntry locates one committed message within the extent chain (spec
// §3: "(originatingTime, creationTime, extentId, positionInExtent)"),
// extended with StreamID since a single store's extent files interleave
// every stream's blocks.
type IndexEntry struct {
	StreamID         int32
	OriginatingTime  ptime.Time
	CreationTime     ptime.Time
	ExtentID         int64
	PositionInExtent int64
}

// indexEntrySize is the fixed on-disk width of one IndexEntry: int32
// StreamID followed by four int64 fields (OriginatingTime and CreationTime,
// int64 via ptime.Time, then ExtentID and PositionInExtent).
const indexEntrySize = 4 + 8 + 8 + 8 + 8

// Index is the in-memory form of an N.Index.psi file: every stream's
// entries, sorted by (StreamID, OriginatingTime) so a single stream's span
// is contiguous and binary-searchable by originatingTime.
type Index struct {
	entries []IndexEntry
	// spans maps a StreamID to the half-open [start,end) range within
	// entries holding that stream's sorted records.
	spans map[int32][2]int
}

// NewIndex returns an empty index ready for Append.
func NewIndex() *Index {
	return &Index{spans: make(map[int32][2]int)}
}

// Append records a new entry. Callers must call Reindex before Search
// or WriteIndexFile observes a consistent view.
func (idx *Index) Append(e IndexEntry) {
	idx.entries = append(idx.entries, e)
}

// Entries returns every entry, in the order Reindex last sorted them.
func (idx *Index) Entries() []IndexEntry { return idx.entries }

// Reindex sorts entries by (StreamID, OriginatingTime) and rebuilds the
// per-stream span table used by Search.
func (idx *Index) Reindex() {
	sort.Slice(idx.entries, func(i, j int) bool {
		a, b := idx.entries[i], idx.entries[j]
		if a.StreamID != b.StreamID {
			return a.StreamID < b.StreamID
		}
		return a.OriginatingTime < b.OriginatingTime
	})
	idx.spans = make(map[int32][2]int)
	start := 0
	for i := 1; i <= len(idx.entries); i++ {
		if i == len(idx.entries) || idx.entries[i].StreamID != idx.entries[start].StreamID {
			idx.spans[idx.entries[start].StreamID] = [2]int{start, i}
			start = i
		}
	}
}

// Search returns the entry for streamID whose OriginatingTime equals t, via
// binary search over that stream's contiguous span.
func (idx *Index) Search(streamID int32, t ptime.Time) (IndexEntry, bool) {
	span, ok := idx.spans[streamID]
	if !ok {
		return IndexEntry{}, false
	}
	lo, hi := span[0], span[1]
	i := sort.Search(hi-lo, func(i int) bool {
		return idx.entries[lo+i].OriginatingTime >= t
	})
	if lo+i >= hi || idx.entries[lo+i].OriginatingTime != t {
		return IndexEntry{}, false
	}
	return idx.entries[lo+i], true
}

// Range returns every entry for streamID whose OriginatingTime falls within
// [from, to], used by Crop.
func (idx *Index) Range(streamID int32, from, to ptime.Time) []IndexEntry {
	span, ok := idx.spans[streamID]
	if !ok {
		return nil
	}
	lo, hi := span[0], span[1]
	start := lo + sort.Search(hi-lo, func(i int) bool { return idx.entries[lo+i].OriginatingTime >= from })
	end := lo + sort.Search(hi-lo, func(i int) bool { return idx.entries[lo+i].OriginatingTime > to })
	if start >= end {
		return nil
	}
	out := make([]IndexEntry, end-start)
	copy(out, idx.entries[start:end])
	return out
}

func encodeIndexEntry(buf []byte, e IndexEntry) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(e.StreamID))
	binary.LittleEndian.PutUint64(buf[4:12], uint64(e.OriginatingTime))
	binary.LittleEndian.PutUint64(buf[12:20], uint64(e.CreationTime))
	binary.LittleEndian.PutUint64(buf[20:28], uint64(e.ExtentID))
	binary.LittleEndian.PutUint64(buf[28:36], uint64(e.PositionInExtent))
}

func decodeIndexEntry(buf []byte) IndexEntry {
	return IndexEntry{
		StreamID:         int32(binary.LittleEndian.Uint32(buf[0:4])),
		OriginatingTime:  ptime.Time(binary.LittleEndian.Uint64(buf[4:12])),
		CreationTime:     ptime.Time(binary.LittleEndian.Uint64(buf[12:20])),
		ExtentID:         int64(binary.LittleEndian.Uint64(buf[20:28])),
		PositionInExtent: int64(binary.LittleEndian.Uint64(buf[28:36])),
	}
}

// WriteIndexFile persists idx (after Reindex) to path, overwriting any
// prior contents.
func WriteIndexFile(path string, idx *Index) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.NewStoreIntegrity("creating index file", err)
	}
	defer f.Close()
	buf := make([]byte, indexEntrySize*len(idx.entries))
	for i, e := range idx.entries {
		encodeIndexEntry(buf[i*indexEntrySize:], e)
	}
	if _, err := f.Write(buf); err != nil {
		return errs.NewStoreIntegrity("writing index file", err)
	}
	return f.Sync()
}

// ReadIndexFile loads and re-indexes an N.Index.psi file.
func ReadIndexFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.NewStoreIntegrity("reading index file", err)
	}
	if len(data)%indexEntrySize != 0 {
		return nil, errs.NewStoreIntegrity("index file size is not a multiple of the entry width", nil)
	}
	idx := NewIndex()
	for off := 0; off < len(data); off += indexEntrySize {
		idx.Append(decodeIndexEntry(data[off : off+indexEntrySize]))
	}
	idx.Reindex()
	return idx, nil
}

// TruncateAfter keeps only the entries, across every stream, for which keep
// returns true, then calls Reindex.
func (idx *Index) TruncateAfter(keep func(e IndexEntry) bool) {
	kept := idx.entries[:0]
	for _, e := range idx.entries {
		if keep(e) {
			kept = append(kept, e)
		}
	}
	idx.entries = kept
	idx.Reindex()
}
