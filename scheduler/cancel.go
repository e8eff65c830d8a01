package scheduler

import (
	"sync"
)

// CancelSignal reports whether an associated CancelController has requested
// cancellation, and lets callers register a handler invoked at the moment it
// does. It is the scheduler-side analogue of a W3C AbortSignal: every
// operation that accepts a signal (PauseForQuiescence, Run, WaitAll) reads
// it rather than polling a boolean flag directly.
//
// CancelSignal is safe for concurrent use.
type CancelSignal struct {
	mu       sync.RWMutex
	canceled bool
	reason   error
	handlers []func(reason error)
}

func newCancelSignal() *CancelSignal {
	return &CancelSignal{}
}

// Canceled reports whether the signal has fired.
func (s *CancelSignal) Canceled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canceled
}

// Err returns the cancellation reason, or nil if not yet canceled.
func (s *CancelSignal) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reason
}

// OnCancel registers handler to run when the signal fires. If it has already
// fired, handler runs immediately (on the calling goroutine).
func (s *CancelSignal) OnCancel(handler func(reason error)) {
	if handler == nil {
		return
	}
	s.mu.Lock()
	if s.canceled {
		reason := s.reason
		s.mu.Unlock()
		handler(reason)
		return
	}
	s.handlers = append(s.handlers, handler)
	s.mu.Unlock()
}

func (s *CancelSignal) cancel(reason error) {
	s.mu.Lock()
	if s.canceled {
		s.mu.Unlock()
		return
	}
	s.canceled = true
	if reason == nil {
		reason = ErrCanceled
	}
	s.reason = reason
	handlers := append([]func(reason error){}, s.handlers...)
	s.mu.Unlock()

	for _, h := range handlers {
		h(reason)
	}
}

// CancelController owns a CancelSignal and is the only way to fire it.
// Construct one per cancelable scope (a pipeline, a sub-pipeline, a single
// caller-supplied timeout) and hand Signal() to anything that must observe
// cancellation.
type CancelController struct {
	signal *CancelSignal
}

// NewCancelController returns a controller with a fresh, unfired signal.
func NewCancelController() *CancelController {
	return &CancelController{signal: newCancelSignal()}
}

// Signal returns the controller's signal. Always the same value.
func (c *CancelController) Signal() *CancelSignal { return c.signal }

// Cancel fires the controller's signal with reason, running every registered
// handler. A nil reason is replaced with ErrCanceled. Calling Cancel more
// than once has no further effect.
func (c *CancelController) Cancel(reason error) { c.signal.cancel(reason) }

// CancelAny returns a signal that fires as soon as any of signals fires,
// with that signal's reason. Nil entries are ignored. A signal already fired
// at call time fires the result immediately.
func CancelAny(signals []*CancelSignal) *CancelSignal {
	composite := newCancelSignal()
	if len(signals) == 0 {
		return composite
	}
	var once sync.Once
	for _, sig := range signals {
		if sig == nil {
			continue
		}
		if sig.Canceled() {
			composite.cancel(sig.Err())
			return composite
		}
	}
	for _, sig := range signals {
		if sig == nil {
			continue
		}
		sig.OnCancel(func(reason error) {
			once.Do(func() { composite.cancel(reason) })
		})
	}
	return composite
}
