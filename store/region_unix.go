//go:build linux || darwin

package store

import (
	"os"

	"golang.org/x/sys/unix"
)

// unixRegion memory-maps an extent file via mmap/msync/munmap, the same
// syscall surface eventloop/poller_linux.go and poller_darwin.go already
// reach for (there, epoll/kqueue registration; here, file-backed pages).
type unixRegion struct {
	data []byte
}

func openRegionImpl(f *os.File, size int64) (mappedRegion, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &unixRegion{data: data}, nil
}

func (r *unixRegion) Bytes() []byte { return r.data }

func (r *unixRegion) Sync() error {
	return unix.Msync(r.data, unix.MS_SYNC)
}

func (r *unixRegion) Close() error {
	data := r.data
	r.data = nil
	if data == nil {
		return nil
	}
	return unix.Munmap(data)
}
