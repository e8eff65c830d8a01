//go:build !linux && !darwin

package store

import (
	"io"
	"os"
)

// bufferedRegion backs an extent with a plain in-memory buffer explicitly
// flushed to f on Sync, for platforms without the mmap syscall wiring in
// region_unix.go — the fallback role poller_windows.go plays for eventloop's
// epoll/kqueue poller.
type bufferedRegion struct {
	f    *os.File
	data []byte
}

func openRegionImpl(f *os.File, size int64) (mappedRegion, error) {
	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return &bufferedRegion{f: f, data: buf}, nil
}

func (r *bufferedRegion) Bytes() []byte { return r.data }

func (r *bufferedRegion) Sync() error {
	if _, err := r.f.WriteAt(r.data, 0); err != nil {
		return err
	}
	return r.f.Sync()
}

func (r *bufferedRegion) Close() error {
	return r.Sync()
}
