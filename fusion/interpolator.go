package fusion

import (
	"github.com/corepipeio/corepipe/internal/errs"
	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/streams"
)

// family distinguishes the three Interpolator families named in the
// interpolator contract, which differ only in whether (and how long) they
// wait for later arrivals before settling on DoesNotExist.
type family int

const (
	// available never waits: it answers with whatever is buffered now.
	available family = iota
	// reproducible waits for later arrivals whenever the window's right
	// edge has not yet been reached, so the same query always yields the
	// same answer regardless of arrival timing.
	reproducible
	// linear is reproducible, additionally requiring both a left and a
	// right anchor message to interpolate between.
	linear
)

// Selector picks which buffered message within the resolved window answers
// an Interpolator query.
type Selector int

const (
	// Nearest picks the closest message to the query time, the later one on
	// a tie.
	Nearest Selector = iota
	// First picks the earliest message in the window. Requires a
	// left-bounded window.
	First
	// Last picks the latest message in the window.
	Last
	// Exact requires a message at precisely the query time.
	Exact
)

// Interpolator implements the Available/Reproducible/Linear family ×
// Nearest/First/Last/Exact selector matrix described in the interpolator
// contract.
type Interpolator[T any] struct {
	family   family
	selector Selector
	window   ptime.RelativeTimeInterval
	lerp     func(before, after streams.Message[T], t ptime.Time) T
}

func newInterpolator[T any](f family, sel Selector, window ptime.RelativeTimeInterval) (*Interpolator[T], error) {
	if sel == First && !window.IsLeftBounded() {
		return nil, errs.NewInvalidArgument("window", "First selector requires a left-bounded window")
	}
	return &Interpolator[T]{family: f, selector: sel, window: window}, nil
}

// AvailableNearest never waits; answers with the nearest buffered message
// in window, or DoesNotExist if none is buffered.
func AvailableNearest[T any](window ptime.RelativeTimeInterval) (*Interpolator[T], error) {
	return newInterpolator[T](available, Nearest, window)
}

// AvailableFirst never waits; answers with the earliest buffered message in
// window. window must be left-bounded.
func AvailableFirst[T any](window ptime.RelativeTimeInterval) (*Interpolator[T], error) {
	return newInterpolator[T](available, First, window)
}

// AvailableLast never waits; answers with the latest buffered message in
// window.
func AvailableLast[T any](window ptime.RelativeTimeInterval) (*Interpolator[T], error) {
	return newInterpolator[T](available, Last, window)
}

// AvailableExact never waits; answers only if a message sits exactly at the
// query time.
func AvailableExact[T any](window ptime.RelativeTimeInterval) (*Interpolator[T], error) {
	return newInterpolator[T](available, Exact, window)
}

// ReproducibleNearest waits for the window's right edge before settling,
// making repeated queries at the same time deterministic regardless of
// arrival order.
func ReproducibleNearest[T any](window ptime.RelativeTimeInterval) (*Interpolator[T], error) {
	return newInterpolator[T](reproducible, Nearest, window)
}

// ReproducibleFirst is First, reproducibly: once a candidate is buffered it
// settles at once, since a later arrival cannot precede it; with no
// candidate yet it waits for the window's right edge like the others.
func ReproducibleFirst[T any](window ptime.RelativeTimeInterval) (*Interpolator[T], error) {
	return newInterpolator[T](reproducible, First, window)
}

// ReproducibleLast waits for the window's right edge before settling.
func ReproducibleLast[T any](window ptime.RelativeTimeInterval) (*Interpolator[T], error) {
	return newInterpolator[T](reproducible, Last, window)
}

// ReproducibleExact waits for the window's right edge before settling.
func ReproducibleExact[T any](window ptime.RelativeTimeInterval) (*Interpolator[T], error) {
	return newInterpolator[T](reproducible, Exact, window)
}

// NewLinear constructs a Linear-family Interpolator: it requires both a
// message at or before, and a message at or after, the query time, and
// computes the answer by calling lerp with those two anchors. lerp is
// invoked only when the anchors' OriginatingTime differ.
func NewLinear[T any](window ptime.RelativeTimeInterval, lerp func(before, after streams.Message[T], t ptime.Time) T) *Interpolator[T] {
	return &Interpolator[T]{family: linear, window: window, lerp: lerp}
}

// Interpolate answers a query at time t against buffer, a time-ordered
// window of messages, optionally informed that the stream closed at
// closedAt.
func (it *Interpolator[T]) Interpolate(t ptime.Time, buffer []streams.Message[T], closedAt *ptime.Time) Result[T] {
	abs := it.window.ToAbsolute(t)
	if it.family == linear {
		return it.interpolateLinear(t, buffer, abs, closedAt)
	}
	return it.interpolateSelector(t, buffer, abs, closedAt)
}

func (it *Interpolator[T]) interpolateSelector(t ptime.Time, buffer []streams.Message[T], abs ptime.TimeInterval, closedAt *ptime.Time) Result[T] {
	bestIdx := -1
	for i, m := range buffer {
		if !abs.Contains(m.OriginatingTime) {
			continue
		}
		if it.selector == Exact && m.OriginatingTime != t {
			continue
		}
		switch it.selector {
		case First:
			if bestIdx == -1 {
				bestIdx = i
			}
		case Last, Exact:
			bestIdx = i
		default: // Nearest
			if bestIdx == -1 {
				bestIdx = i
				continue
			}
			cur := absSpan(buffer[bestIdx].OriginatingTime.Sub(t))
			cand := absSpan(m.OriginatingTime.Sub(t))
			if cand < cur || (cand == cur && m.OriginatingTime > buffer[bestIdx].OriginatingTime) {
				bestIdx = i
			}
		}
	}

	needsRightEdge := it.selector != First || bestIdx == -1
	rightEdgeKnown := false
	if abs.Right.Bounded {
		rightEdgeKnown = rightEdgeReached(buffer, abs.Right)
	} else {
		// An unbounded window never truly reaches its right edge short of
		// the stream closing, except once a candidate has already been
		// found: accept the best-known candidate rather than waiting
		// forever for a possibly-nearer one that may never arrive.
		rightEdgeKnown = bestIdx != -1
	}
	haveEnoughRightData := it.family == available || closedAt != nil || rightEdgeKnown

	if bestIdx == -1 {
		if it.family != available && needsRightEdge && !haveEnoughRightData {
			return Result[T]{Kind: InsufficientData}
		}
		return Result[T]{Kind: DoesNotExist, ObsoleteTime: floorBefore(buffer, t)}
	}

	if it.family != available && needsRightEdge && !haveEnoughRightData {
		return Result[T]{Kind: InsufficientData}
	}

	obsolete := ptime.MinTime
	if bestIdx > 0 {
		obsolete = buffer[bestIdx-1].OriginatingTime
	}
	return Result[T]{Kind: Created, Value: buffer[bestIdx].Data, ObsoleteTime: obsolete}
}

func (it *Interpolator[T]) interpolateLinear(t ptime.Time, buffer []streams.Message[T], abs ptime.TimeInterval, closedAt *ptime.Time) Result[T] {
	beforeIdx, afterIdx := -1, -1
	for i, m := range buffer {
		if !abs.Contains(m.OriginatingTime) {
			continue
		}
		if m.OriginatingTime <= t {
			beforeIdx = i
		}
		if m.OriginatingTime >= t && afterIdx == -1 {
			afterIdx = i
		}
	}

	rightEdgeKnown := false
	if abs.Right.Bounded {
		rightEdgeKnown = rightEdgeReached(buffer, abs.Right)
	} else {
		// See interpolateSelector: an unbounded window settles once an
		// after-anchor has been found, rather than waiting for a right edge
		// that, absent stream closure, may never arrive.
		rightEdgeKnown = afterIdx != -1
	}
	haveEnoughRightData := closedAt != nil || rightEdgeKnown

	if beforeIdx == -1 || afterIdx == -1 {
		if !haveEnoughRightData {
			return Result[T]{Kind: InsufficientData}
		}
		return Result[T]{Kind: DoesNotExist, ObsoleteTime: floorBefore(buffer, t)}
	}
	if !haveEnoughRightData {
		return Result[T]{Kind: InsufficientData}
	}

	before, after := buffer[beforeIdx], buffer[afterIdx]
	value := before.Data
	if before.OriginatingTime != after.OriginatingTime {
		value = it.lerp(before, after, t)
	}
	obsolete := ptime.MinTime
	if beforeIdx > 0 {
		obsolete = buffer[beforeIdx-1].OriginatingTime
	}
	return Result[T]{Kind: Created, Value: value, ObsoleteTime: obsolete}
}

func absSpan(s ptime.TimeSpan) ptime.TimeSpan {
	if s < 0 {
		return -s
	}
	return s
}

// rightEdgeReached reports whether buffer contains a message at or past
// right, meaning the window's right edge is fully known.
func rightEdgeReached[T any](buffer []streams.Message[T], right ptime.Endpoint) bool {
	if !right.Bounded {
		return true
	}
	if len(buffer) == 0 {
		return false
	}
	return buffer[len(buffer)-1].OriginatingTime >= right.Point
}

// floorBefore returns the greatest OriginatingTime in buffer strictly less
// than t, or ptime.MinTime if none.
func floorBefore[T any](buffer []streams.Message[T], t ptime.Time) ptime.Time {
	floor := ptime.MinTime
	for _, m := range buffer {
		if m.OriginatingTime < t {
			floor = m.OriginatingTime
		} else {
			break
		}
	}
	return floor
}
