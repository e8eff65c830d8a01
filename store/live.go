package store

import (
	"path/filepath"

	"github.com/danjacques/gofslock/fslock"

	"github.com/corepipeio/corepipe/internal/errs"
)

// liveMarker wraps the N.Live lock file: its presence means an active
// writer is attached (spec §4.5/§6), and it is exclusive-locked for the
// duration so a second CreateStore/OpenStoreForWrite on the same store
// fails fast instead of corrupting the extent chain.
type liveMarker struct {
	handle fslock.Handle
}

func livePath(dir, name string) string {
	return filepath.Join(dir, name+".Live")
}

// acquireLive takes the exclusive Live lock for a writer attaching to the
// store, failing immediately if another writer already holds it.
func acquireLive(dir, name string) (*liveMarker, error) {
	handle, err := fslock.Lock(livePath(dir, name))
	if err != nil {
		return nil, errs.NewStoreIntegrity("store already has an active writer", err)
	}
	return &liveMarker{handle: handle}, nil
}

// release drops the Live lock, marking the store closed.
func (m *liveMarker) release() error {
	if m.handle == nil {
		return nil
	}
	handle := m.handle
	m.handle = nil
	return handle.Unlock()
}
