package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func writeBlock(t *testing.T, f *InfiniteFile, payload []byte) (extentID, offset int64) {
	t.Helper()
	require.NoError(t, f.ReserveBlock(len(payload)))
	require.NoError(t, f.WriteToBlock(payload))
	extentID, offset, err := f.CommitBlock()
	require.NoError(t, err)
	return extentID, offset
}

func TestInfiniteFile_RoundTripsBlocksInOrder(t *testing.T) {
	dir := t.TempDir()
	w, err := CreateInfiniteFile(dir, "P")
	require.NoError(t, err)

	payloads := [][]byte{
		[]byte("first"),
		[]byte("second, a bit longer"),
		[]byte(""),
		[]byte("fourth"),
	}
	for _, p := range payloads {
		writeBlock(t, w, p)
	}
	require.NoError(t, w.Close())

	r, err := OpenInfiniteFile(dir, "P", 0)
	require.NoError(t, err)
	defer r.Close()

	var buf []byte
	for i, want := range payloads {
		ok, err := r.MoveNext()
		require.NoError(t, err, "block %d", i)
		require.True(t, ok, "block %d", i)
		require.NoError(t, r.ReadBlock(&buf))
		require.Equal(t, want, buf, "block %d", i)
	}

	ok, err := r.MoveNext()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInfiniteFile_RollsOverAcrossExtents(t *testing.T) {
	dir := t.TempDir()
	w, err := CreateInfiniteFile(dir, "P")
	require.NoError(t, err)

	big := make([]byte, 1024*1024)
	for i := range big {
		big[i] = byte(i)
	}

	var written [][]byte
	for i := 0; i < 20; i++ {
		writeBlock(t, w, big)
		written = append(written, big)
	}
	require.Greater(t, w.ExtentID(), int64(0), "expected at least one rollover")
	require.NoError(t, w.Close())

	r, err := OpenInfiniteFile(dir, "P", 0)
	require.NoError(t, err)
	defer r.Close()

	var buf []byte
	for i, want := range written {
		ok, err := r.MoveNext()
		require.NoError(t, err, "block %d", i)
		require.True(t, ok, "block %d", i)
		require.NoError(t, r.ReadBlock(&buf))
		require.Equal(t, want, buf, "block %d", i)
	}
}

func TestInfiniteFile_ReaderObservesWriterProgressIncrementally(t *testing.T) {
	dir := t.TempDir()
	w, err := CreateInfiniteFile(dir, "P")
	require.NoError(t, err)

	writeBlock(t, w, []byte("one"))

	r, err := OpenInfiniteFile(dir, "P", 0)
	require.NoError(t, err)
	defer r.Close()

	ok, err := r.MoveNext()
	require.NoError(t, err)
	require.True(t, ok)
	var buf []byte
	require.NoError(t, r.ReadBlock(&buf))
	require.Equal(t, []byte("one"), buf)

	ok, err = r.MoveNext()
	require.NoError(t, err)
	require.False(t, ok, "no new data committed yet")

	writeBlock(t, w, []byte("two"))
	require.NoError(t, w.Close())

	ok, err = r.MoveNext()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, r.ReadBlock(&buf))
	require.Equal(t, []byte("two"), buf)
}

func TestInfiniteFile_WriterResumesFromPersistedCursor(t *testing.T) {
	dir := t.TempDir()
	w, err := CreateInfiniteFile(dir, "P")
	require.NoError(t, err)
	writeBlock(t, w, []byte("alpha"))
	require.NoError(t, w.Close())

	w2, err := OpenInfiniteFileForWrite(dir, "P", 0)
	require.NoError(t, err)
	writeBlock(t, w2, []byte("beta"))
	require.NoError(t, w2.Close())

	r, err := OpenInfiniteFile(dir, "P", 0)
	require.NoError(t, err)
	defer r.Close()

	var buf []byte
	for _, want := range [][]byte{[]byte("alpha"), []byte("beta")} {
		ok, err := r.MoveNext()
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, r.ReadBlock(&buf))
		require.Equal(t, want, buf)
	}
}

func TestInfiniteFile_WriteToBlockRejectsOverflow(t *testing.T) {
	dir := t.TempDir()
	w, err := CreateInfiniteFile(dir, "P")
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.ReserveBlock(4))
	err = w.WriteToBlock([]byte("12345"))
	require.Error(t, err)
}

func TestInfiniteFile_CommitBlockRejectsPartialWrite(t *testing.T) {
	dir := t.TempDir()
	w, err := CreateInfiniteFile(dir, "P")
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.ReserveBlock(5))
	require.NoError(t, w.WriteToBlock([]byte("ab")))
	_, _, err = w.CommitBlock()
	require.Error(t, err)
}
