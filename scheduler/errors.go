package scheduler

import "errors"

// ErrCanceled is the default reason on a CancelSignal fired without an
// explicit cause.
var ErrCanceled = errors.New("scheduler: canceled")

// ErrSchedulerStopped is returned by Schedule once the owning Scheduler has
// left the Running state.
var ErrSchedulerStopped = errors.New("scheduler: stopped")
