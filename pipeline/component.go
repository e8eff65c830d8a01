package pipeline

import (
	"sync"

	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/scheduler"
)

// ISourceComponent is a pipeline component that originates messages rather
// than merely reacting to them (a live sensor feed, a store importer
// replaying a recorded stream, a synthetic generator). Every source in a
// pipeline's tree is started before any message is delivered anywhere in
// that pipeline, and is signaled to stop before any other component.
type ISourceComponent interface {
	// Start begins producing messages. notifier must eventually be invoked
	// exactly once: call Notify with the source's final originating time
	// once it is known to have no more messages at or before some bound
	// (e.g. replaying a finite recording), or NotifyIndefinite if the
	// source runs until externally stopped (e.g. a live feed). signal
	// fires when the owning pipeline begins stopping.
	Start(signal *scheduler.CancelSignal, notifier *CompletionNotifier) error

	// Stop is invoked once the pipeline has signaled all sources and
	// allowed pending deliveries to drain. finalOriginatingTime is the
	// caller-supplied cutoff passed to Pipeline.Stop, or nil.
	Stop(finalOriginatingTime *ptime.Time) error
}

// CompletionNotifier is how an ISourceComponent reports that it has no more
// messages to produce. It mirrors the redesign in this system's completion
// model: rather than threading a callback through Start's parameters, Start
// receives a notifier object the source holds onto and invokes once, from
// whatever goroutine eventually learns it is done.
type CompletionNotifier struct {
	once       sync.Once
	done       chan ptime.Time
	indefinite bool
}

func newCompletionNotifier() *CompletionNotifier {
	return &CompletionNotifier{done: make(chan ptime.Time, 1)}
}

// Notify reports that the source will produce no further messages with an
// originating time after finalOriginatingTime. Subsequent calls (to either
// Notify or NotifyIndefinite) are no-ops.
func (n *CompletionNotifier) Notify(finalOriginatingTime ptime.Time) {
	n.once.Do(func() {
		n.done <- finalOriginatingTime
		close(n.done)
	})
}

// NotifyIndefinite reports that the source has no natural end and will run
// until the pipeline stops it. Subsequent calls are no-ops.
func (n *CompletionNotifier) NotifyIndefinite() {
	n.once.Do(func() {
		n.indefinite = true
		close(n.done)
	})
}

// Done returns a channel that receives the source's final originating time
// and then closes, or closes without a value if the source notified
// indefinitely (check Indefinite after the channel closes).
func (n *CompletionNotifier) Done() <-chan ptime.Time { return n.done }

// Indefinite reports whether the source notified via NotifyIndefinite.
// Only meaningful after Done() has closed.
func (n *CompletionNotifier) Indefinite() bool { return n.indefinite }
