package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/corepipeio/corepipe/internal/errs"
)

const (
	// DefaultBlockAlignment is the block size extent files truncate their
	// tail to on exhaustion, per spec §4.5 ("nearest A-byte block, default
	// 4096").
	DefaultBlockAlignment = 4096

	// extentCapacity is the amount of disk space pre-allocated (and
	// memory-mapped) for a new extent file before it rolls over.
	extentCapacity = 16 * 1024 * 1024

	// dataStart reserves the extent's first 8 bytes for the persisted
	// committed-cursor header, so a writer resuming an existing extent (the
	// Repair path) knows where to pick up without rescanning block by
	// block.
	dataStart = 8

	// continuationFooterSize reserves the extent's last 16 bytes for the
	// continuation pointer: an 8-byte next-extent id plus an 8-byte
	// has-next flag (padded for alignment).
	continuationFooterSize = 16

	// lengthPrefixSize is the per-block length header.
	lengthPrefixSize = 4
)

// InfiniteFile is the low-level extent-chained, memory-mapped append log
// underpinning the store (spec §4.5): a sequence of fixed-capacity extent
// files, each ending with a continuation pointer once exhausted, presenting
// callers with what looks like a single unbounded append-only file.
//
// Write protocol: ReserveBlock(n) -> WriteToBlock(bytes)* -> CommitBlock().
// Read protocol: MoveNext() -> ReadBlock(&buf).
type InfiniteFile struct {
	dir       string
	name      string
	alignment int64
	isWriter  bool

	extentID int64
	file     *os.File
	region   mappedRegion
	cursor   int64

	// pending reservation state, valid between ReserveBlock and CommitBlock.
	reserved       int64
	writeOffset    int64
	pendingLen     int
	pendingWritten int
}

// CreateInfiniteFile creates extent 0 of a brand-new chain at dir/name, for
// writing.
func CreateInfiniteFile(dir, name string) (*InfiniteFile, error) {
	f := &InfiniteFile{dir: dir, name: name, alignment: DefaultBlockAlignment, isWriter: true}
	if err := f.openExtent(0, true); err != nil {
		return nil, err
	}
	return f, nil
}

// OpenInfiniteFileForWrite reopens an existing chain's extent startID for
// appending, resuming from its persisted committed cursor — the path Repair
// and a reattached writer use.
func OpenInfiniteFileForWrite(dir, name string, startID int64) (*InfiniteFile, error) {
	f := &InfiniteFile{dir: dir, name: name, alignment: DefaultBlockAlignment, isWriter: true}
	if err := f.openExtent(startID, false); err != nil {
		return nil, err
	}
	return f, nil
}

// OpenInfiniteFile opens an existing chain's extent startID for reading,
// from the beginning of that extent's data.
func OpenInfiniteFile(dir, name string, startID int64) (*InfiniteFile, error) {
	f := &InfiniteFile{dir: dir, name: name, alignment: DefaultBlockAlignment, isWriter: false}
	if err := f.openExtent(startID, false); err != nil {
		return nil, err
	}
	return f, nil
}

// ExtentID returns the id of the extent this InfiniteFile is currently
// positioned in.
func (f *InfiniteFile) ExtentID() int64 { return f.extentID }

// Close releases the current extent's mapping and file handle.
func (f *InfiniteFile) Close() error {
	var err error
	if f.region != nil {
		err = f.region.Close()
	}
	if f.file != nil {
		if cerr := f.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func extentPath(dir, name string, id int64) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%06d.psi", name, id))
}

func (f *InfiniteFile) openExtent(id int64, create bool) error {
	path := extentPath(f.dir, f.name, id)
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return errs.NewStoreIntegrity(fmt.Sprintf("opening extent %q", path), err)
	}

	size := int64(extentCapacity)
	if create {
		if err := file.Truncate(extentCapacity); err != nil {
			_ = file.Close()
			return errs.NewStoreIntegrity("allocating extent capacity", err)
		}
	} else {
		info, err := file.Stat()
		if err != nil {
			_ = file.Close()
			return errs.NewStoreIntegrity("statting extent", err)
		}
		size = info.Size()
	}

	region, err := openRegion(file, size)
	if err != nil {
		_ = file.Close()
		return errs.NewStoreIntegrity("mapping extent", err)
	}

	if f.region != nil {
		_ = f.region.Close()
	}
	if f.file != nil {
		_ = f.file.Close()
	}

	f.extentID = id
	f.file = file
	f.region = region
	switch {
	case create:
		f.writeCommittedCursor(dataStart)
		f.cursor = dataStart
	case f.isWriter:
		f.cursor = f.readCommittedCursor()
	default:
		f.cursor = dataStart
	}
	return nil
}

func (f *InfiniteFile) readCommittedCursor() int64 {
	return int64(binary.LittleEndian.Uint64(f.region.Bytes()[0:8]))
}

func (f *InfiniteFile) writeCommittedCursor(v int64) {
	binary.LittleEndian.PutUint64(f.region.Bytes()[0:8], uint64(v))
}

// continuation reads the footer from the END of the mapped region. This is
// only valid for an extent reopened after rollExtent truncated it down to
// its final size (truncTo+continuationFooterSize), so that the footer
// written there ends up exactly at the new end of file.
func (f *InfiniteFile) continuation() (nextID int64, has bool) {
	buf := f.region.Bytes()
	footer := buf[len(buf)-continuationFooterSize:]
	return int64(binary.LittleEndian.Uint64(footer[0:8])), footer[8] == 1
}

// writeContinuationAt writes the footer at a caller-chosen absolute offset,
// used by rollExtent while the region is still mapped at full capacity
// (i.e. before truncation moves the real end of file to match).
func (f *InfiniteFile) writeContinuationAt(offset int64, nextID int64) {
	footer := f.region.Bytes()[offset : offset+continuationFooterSize]
	binary.LittleEndian.PutUint64(footer[0:8], uint64(nextID))
	footer[8] = 1
}

// ReserveBlock reserves space for an n-byte block, rolling to a new extent
// first if the current one lacks room. Must be followed by WriteToBlock
// calls totaling exactly n bytes, then CommitBlock.
func (f *InfiniteFile) ReserveBlock(n int) error {
	if f.reserved != 0 {
		return errs.NewStoreIntegrity("ReserveBlock called with a pending uncommitted reservation", nil)
	}
	need := int64(n) + lengthPrefixSize
	limit := int64(len(f.region.Bytes())) - continuationFooterSize
	if f.cursor+need > limit {
		if err := f.rollExtent(); err != nil {
			return err
		}
		limit = int64(len(f.region.Bytes())) - continuationFooterSize
		if f.cursor+need > limit {
			return errs.NewStoreIntegrity(fmt.Sprintf("block of %d bytes exceeds extent capacity", n), nil)
		}
	}
	binary.LittleEndian.PutUint32(f.region.Bytes()[f.cursor:], uint32(n))
	f.writeOffset = f.cursor + lengthPrefixSize
	f.reserved = f.cursor + need
	f.pendingLen = n
	f.pendingWritten = 0
	return nil
}

// WriteToBlock appends p to the block reserved by the most recent
// ReserveBlock call. May be called more than once; the sum of all p's must
// equal the reserved length by CommitBlock.
func (f *InfiniteFile) WriteToBlock(p []byte) error {
	if f.reserved == 0 {
		return errs.NewStoreIntegrity("WriteToBlock called without a pending ReserveBlock", nil)
	}
	if f.pendingWritten+len(p) > f.pendingLen {
		return errs.NewStoreIntegrity("WriteToBlock overflowed the reserved length", nil)
	}
	copy(f.region.Bytes()[f.writeOffset+int64(f.pendingWritten):], p)
	f.pendingWritten += len(p)
	return nil
}

// CommitBlock finalizes the pending block, advancing and persisting the
// committed cursor, and returns the extent id and byte offset the block was
// written at — the coordinates an IndexEntry records.
func (f *InfiniteFile) CommitBlock() (extentID int64, offset int64, err error) {
	if f.reserved == 0 {
		return 0, 0, errs.NewStoreIntegrity("CommitBlock called without a pending ReserveBlock", nil)
	}
	if f.pendingWritten != f.pendingLen {
		return 0, 0, errs.NewStoreIntegrity("CommitBlock called before the reserved length was fully written", nil)
	}
	committedOffset := f.cursor
	committedExtent := f.extentID
	f.cursor = f.reserved
	f.reserved = 0
	f.writeCommittedCursor(f.cursor)
	if err := f.region.Sync(); err != nil {
		return 0, 0, err
	}
	return committedExtent, committedOffset, nil
}

// rollExtent truncates the current extent's tail to the nearest alignment
// boundary, writes a continuation record at the new end of file, and opens
// the next extent. The footer must be placed at the offset the file will
// actually end at post-truncation, not at the end of the full pre-allocated
// mapping — otherwise truncating would cut the footer off right after
// writing it.
func (f *InfiniteFile) rollExtent() error {
	nextID := f.extentID + 1
	truncTo := ((f.cursor + f.alignment - 1) / f.alignment) * f.alignment
	mappedSize := int64(len(f.region.Bytes()))
	if truncTo+continuationFooterSize > mappedSize {
		truncTo = mappedSize - continuationFooterSize
	}
	finalSize := truncTo + continuationFooterSize

	f.writeContinuationAt(truncTo, nextID)
	if err := f.region.Sync(); err != nil {
		return err
	}
	if err := f.region.Close(); err != nil {
		return err
	}
	f.region = nil
	if err := f.file.Truncate(finalSize); err != nil {
		_ = f.file.Close()
		return errs.NewStoreIntegrity("truncating exhausted extent tail", err)
	}
	if err := f.file.Close(); err != nil {
		return err
	}
	f.file = nil
	return f.openExtent(nextID, true)
}

// MoveNext advances to the next committed block's position, following
// continuation pointers across extent boundaries as needed. Returns false
// (with no error) if the writer's committed cursor has not advanced past
// the reader's position in the current (live) extent — not a terminal
// condition while the store's Live marker is still present (spec §4.5).
func (f *InfiniteFile) MoveNext() (bool, error) {
	for {
		committed := f.readCommittedCursor()
		if f.cursor < committed {
			return true, nil
		}
		if nextID, has := f.continuation(); has {
			if err := f.openExtent(nextID, false); err != nil {
				return false, err
			}
			continue
		}
		return false, nil
	}
}

// ReadBlock copies the block at the reader's current position into *buf
// (resizing it if its capacity is insufficient) and advances past it.
func (f *InfiniteFile) ReadBlock(buf *[]byte) error {
	data := f.region.Bytes()
	if f.cursor+lengthPrefixSize > int64(len(data)) {
		return errs.NewStoreIntegrity("ReadBlock called past the mapped extent", nil)
	}
	n := binary.LittleEndian.Uint32(data[f.cursor:])
	start := f.cursor + lengthPrefixSize
	end := start + int64(n)
	if end > int64(len(data)) {
		return errs.NewStoreIntegrity("ReadBlock: block length exceeds extent bounds", nil)
	}
	if int64(cap(*buf)) < int64(n) {
		*buf = make([]byte, n)
	} else {
		*buf = (*buf)[:n]
	}
	copy(*buf, data[start:end])
	f.cursor = end
	return nil
}
