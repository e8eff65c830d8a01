package store

import "os"

// mappedRegion abstracts one extent file's backing buffer: memory-mapped
// where the OS supports it (region_unix.go), or a plain in-memory buffer
// explicitly flushed back to disk via Sync elsewhere (region_other.go),
// matching the teacher's per-OS build-tag split between poller_linux.go/
// poller_darwin.go and poller_windows.go.
type mappedRegion interface {
	// Bytes returns the region's backing slice, valid until Close.
	Bytes() []byte
	// Sync flushes in-memory writes back to the underlying file.
	Sync() error
	// Close releases the region. The caller closes the underlying *os.File
	// separately.
	Close() error
}

// openRegion maps size bytes of f's contents, platform-dependent.
func openRegion(f *os.File, size int64) (mappedRegion, error) {
	return openRegionImpl(f, size)
}
