package store

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/corepipeio/corepipe/internal/errs"
	"github.com/corepipeio/corepipe/ptime"
)

// EditOp is one operation in an Edit batch, keyed by originatingTime (spec
// §4.5): Insert/Update carry a payload, Delete does not.
type EditOp struct {
	Kind            EditKind
	OriginatingTime ptime.Time
	Payload         []byte
}

// EditKind discriminates an EditOp.
type EditKind int

const (
	EditInsert EditKind = iota
	EditUpdate
	EditDelete
)

// RenameMap maps a source stream name to its name in the destination store,
// used by Copy/Crop/Edit (SPEC_FULL §3.6: "supplying a per-stream rename map
// during Copy, useful when splitting a store"). A stream absent from the
// map keeps its source name.
type RenameMap map[string]string

func (m RenameMap) resolve(name string) string {
	if m == nil {
		return name
	}
	if renamed, ok := m[name]; ok {
		return renamed
	}
	return name
}

// Copy reproduces every stream of a closed source store bit-for-bit
// (including supplemental metadata) into a new destination store (spec
// §4.5).
func Copy(srcDir, srcName, dstDir, dstName string, renames RenameMap) error {
	return copyFiltered(srcDir, srcName, dstDir, dstName, renames, func(IndexEntry) bool { return true })
}

// Crop retains only messages whose originatingTime falls within interval,
// rewriting indices in the destination store (spec §4.5).
func Crop(srcDir, srcName, dstDir, dstName string, renames RenameMap, interval ptime.TimeInterval) error {
	return copyFiltered(srcDir, srcName, dstDir, dstName, renames, func(e IndexEntry) bool {
		return interval.Contains(e.OriginatingTime)
	})
}

func copyFiltered(srcDir, srcName, dstDir, dstName string, renames RenameMap, keep func(IndexEntry) bool) error {
	src, err := OpenStore(srcDir, srcName)
	if err != nil {
		return err
	}
	dst, err := CreateStore(dstDir, dstName, WriterConfig{})
	if err != nil {
		return err
	}

	streamIDMap := make(map[int32]int32)
	for _, sm := range src.Catalog.ListStreams() {
		e, ok := src.Catalog.Stream(sm.Name)
		if !ok {
			continue
		}
		newID, err := dst.AddStream(renames.resolve(sm.Name), sm.TypeName, sm.SupplementalTypeName, sm.SupplementalBytes)
		if err != nil {
			_ = dst.Close()
			return err
		}
		streamIDMap[e.ID] = newID
	}

	entries := append([]IndexEntry(nil), src.Index.Entries()...)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ExtentID < entries[j].ExtentID ||
			(entries[i].ExtentID == entries[j].ExtentID && entries[i].PositionInExtent < entries[j].PositionInExtent)
	})

	for _, e := range entries {
		if !keep(e) {
			continue
		}
		newID, ok := streamIDMap[e.StreamID]
		if !ok {
			continue
		}
		payload, err := src.readAt(e.ExtentID, e.PositionInExtent)
		if err != nil {
			_ = dst.Close()
			return err
		}
		if err := dst.Post(context.Background(), newID, payload, e.OriginatingTime, e.CreationTime); err != nil {
			_ = dst.Close()
			return err
		}
	}

	return dst.Close()
}

// Edit applies a per-stream batch of insert/update/delete operations, keyed
// by originatingTime, while copying srcName into dstName (spec §4.5):
// inserts use the time as-is; deletes remove the unique message at that
// time; updates replace the payload but preserve originatingTime and
// creationTime. The store records no sequence ids, so none are carried
// over. Edits may target times before the store's first message or after
// its last.
func Edit(srcDir, srcName, dstDir, dstName string, renames RenameMap, editsByStream map[string][]EditOp) error {
	src, err := OpenStore(srcDir, srcName)
	if err != nil {
		return err
	}
	dst, err := CreateStore(dstDir, dstName, WriterConfig{})
	if err != nil {
		return err
	}

	nameByOldID := make(map[int32]string)
	newIDByName := make(map[string]int32)
	for _, sm := range src.Catalog.ListStreams() {
		e, ok := src.Catalog.Stream(sm.Name)
		if !ok {
			continue
		}
		nameByOldID[e.ID] = sm.Name
		newID, err := dst.AddStream(renames.resolve(sm.Name), sm.TypeName, sm.SupplementalTypeName, sm.SupplementalBytes)
		if err != nil {
			_ = dst.Close()
			return err
		}
		newIDByName[sm.Name] = newID
	}

	type row struct {
		originatingTime ptime.Time
		creationTime    ptime.Time
		payload         []byte
		deleted         bool
	}
	perStream := make(map[string][]*row)

	for _, e := range src.Index.Entries() {
		name, ok := nameByOldID[e.StreamID]
		if !ok {
			continue
		}
		payload, err := src.readAt(e.ExtentID, e.PositionInExtent)
		if err != nil {
			_ = dst.Close()
			return err
		}
		perStream[name] = append(perStream[name], &row{
			originatingTime: e.OriginatingTime,
			creationTime:    e.CreationTime,
			payload:         payload,
		})
	}

	for streamName, ops := range editsByStream {
		rows := perStream[streamName]
		for _, op := range ops {
			switch op.Kind {
			case EditInsert:
				rows = append(rows, &row{originatingTime: op.OriginatingTime, creationTime: op.OriginatingTime, payload: op.Payload})
			case EditUpdate:
				found := false
				for _, r := range rows {
					if r.originatingTime == op.OriginatingTime && !r.deleted {
						r.payload = op.Payload
						found = true
						break
					}
				}
				if !found {
					return errs.NewInvalidArgument("originatingTime", "update targets a time with no existing message on stream "+streamName)
				}
			case EditDelete:
				found := false
				for _, r := range rows {
					if r.originatingTime == op.OriginatingTime && !r.deleted {
						r.deleted = true
						found = true
						break
					}
				}
				if !found {
					return errs.NewInvalidArgument("originatingTime", "delete targets a time with no existing message on stream "+streamName)
				}
			}
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].originatingTime < rows[j].originatingTime })
		perStream[streamName] = rows
	}

	for streamName, rows := range perStream {
		newID, ok := newIDByName[streamName]
		if !ok {
			continue
		}
		for _, r := range rows {
			if r.deleted {
				continue
			}
			if err := dst.Post(context.Background(), newID, r.payload, r.originatingTime, r.creationTime); err != nil {
				_ = dst.Close()
				return err
			}
		}
	}

	return dst.Close()
}

// Repair closes out a store left un-closed: one identified by the presence
// of the Live marker file without an active owner (spec §4.5). It checks
// that the last indexed extent can be opened, marks every Catalog stream
// closed, and takes and releases the Live lock. It does not truncate the
// index or the extent files: bytes past an extent's persisted committed
// cursor stay on disk, and the index is left as read.
func Repair(dir, name string) error {
	catalog, err := ReadCatalogFile(catalogPath(dir, name))
	if err != nil {
		return err
	}
	index, err := ReadIndexFile(indexPath(dir, name))
	if err != nil {
		return err
	}

	// A committed block's IndexEntry only exists once CommitBlock
	// succeeded, so every entry already on disk reflects a fully committed
	// block: there is nothing to drop from the index itself. Extent bytes
	// written past the last committed cursor (a reservation that was never
	// committed) are not removed; readers locate blocks through the index,
	// and a resumed writer starts again at the committed cursor.
	if err := repairLastExtent(dir, name, index); err != nil {
		return err
	}

	for _, e := range catalog.streams {
		e.Flags |= StreamClosed
	}
	if err := WriteCatalogFile(catalogPath(dir, name), catalog); err != nil {
		return err
	}

	stale, err := acquireLive(dir, name)
	if err != nil {
		return err
	}
	return stale.release()
}

func repairLastExtent(dir, name string, index *Index) error {
	lastExtent := int64(0)
	for _, e := range index.Entries() {
		if e.ExtentID > lastExtent {
			lastExtent = e.ExtentID
		}
	}
	f, err := OpenInfiniteFileForWrite(dir, name, lastExtent)
	if err != nil {
		return err
	}
	defer f.Close()
	return nil // openExtent already resumes f.cursor from the persisted committed cursor
}

func catalogPath(dir, name string) string { return filepath.Join(dir, name+".Catalog.psi") }
func indexPath(dir, name string) string   { return filepath.Join(dir, name+".Index.psi") }

// ListStreams enumerates a store's streams without attaching a writer
// (SPEC_FULL §3.6: first-class operation, not just a Copy implementation
// detail).
func ListStreams(dir, name string) ([]StreamMetadata, error) {
	r, err := OpenStore(dir, name)
	if err != nil {
		return nil, err
	}
	return r.Catalog.ListStreams(), nil
}

// Stats summarizes a closed store's size and message counts (SPEC_FULL
// §3.6), derived from PsiStreamMetadata aggregation.
type Stats struct {
	StreamCount       int
	TotalMessageCount int64
	TotalPayloadBytes int64
	PerStream         map[string]StreamMetadata
}

// ComputeStats derives Stats for a store from its Catalog's accumulated
// per-stream metadata.
func ComputeStats(dir, name string) (Stats, error) {
	streams, err := ListStreams(dir, name)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{PerStream: make(map[string]StreamMetadata, len(streams))}
	for _, sm := range streams {
		stats.StreamCount++
		stats.TotalMessageCount += sm.MessageCount
		stats.TotalPayloadBytes += sm.MessageSizeCumulativeSum
		stats.PerStream[sm.Name] = sm
	}
	return stats, nil
}
