package ptime

import (
	"sync"

	"github.com/corepipeio/corepipe/internal/ring"
)

// calibrationPoint pairs a high-resolution monotonic counter sample with the
// absolute Time sampled at (approximately) the same instant.
type calibrationPoint struct {
	counter  uint64
	absolute Time
}

// defaultCapacity is the default ring buffer capacity (C in spec §4.1).
const defaultCapacity = 256

// TickCalibration maintains a bounded, monotonically-consistent mapping from
// a high-resolution monotonic counter to absolute Time, surviving backward
// and forward system-clock jumps. It is the Go analogue of the teacher's
// catrate ring buffer (catrate/ring.go), generalized to calibrationPoint and
// guarded by the admission/clamping rules of spec §4.1.
type TickCalibration struct {
	mu deduper

	points *ring.Buffer[uint64] // counter samples only, parallel to abs below
	abs    []Time                // parallel slice of absolute samples (ring-indexed via points)

	minTicks  uint64 // Tmin: minimum counter delta between recalibrations
	toleranceTicks uint64 // epsilon: max counter-sample skew to admit a pair

	lastOutput     Time   // last value returned by Convert, for clamping
	haveLastOutput bool
	lastQuery      uint64

	capacity int // bounded retention: oldest points are evicted past this
}

// deduper is a plain mutex, named for clarity at call sites below.
type deduper = sync.Mutex

// NewTickCalibration constructs a calibration table with the given ring
// capacity (rounded up to the next power of 2; a non-positive capacity
// takes defaultCapacity), minimum
// recalibration interval (in counter ticks), and sample tolerance (in
// counter ticks).
func NewTickCalibration(capacity int, minTicks, toleranceTicks uint64) *TickCalibration {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	capacity = nextPow2(capacity)
	return &TickCalibration{
		points:         ring.New[uint64](capacity),
		abs:            make([]Time, 0, capacity),
		minTicks:       minTicks,
		toleranceTicks: toleranceTicks,
		capacity:       capacity,
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Calibrate offers a new (counter, absolute) sample pair, as measured
// "back-to-back" by the caller. The pair is admitted only if:
//   - this is the first sample, or
//   - at least minTicks counter-ticks have elapsed since the last admitted
//     sample, and the caller-reported sampling skew does not exceed
//     toleranceTicks (skew is the caller's own estimate of how far apart the
//     counter and absolute samples were actually taken; pass 0 if the pair
//     was sampled atomically).
//
// Returns true if the sample was admitted.
func (c *TickCalibration) Calibrate(counter uint64, absolute Time, skewTicks uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if skewTicks > c.toleranceTicks {
		return false
	}

	if n := c.points.Len(); n > 0 {
		lastCounter := c.points.Last()
		if counter > lastCounter && counter-lastCounter < c.minTicks {
			return false
		}
	}

	// Forward jump detection: if absolute regresses relative to the trend at
	// the same counter neighborhood, the segment realigns at the jump point
	// simply by admitting the new point; lookups past it will use it.
	idx := c.points.Search(counter)
	c.points.Insert(idx, counter)
	c.abs = insertTimeAt(c.abs, idx, absolute)

	// Bounded retention: evict the oldest point once capacity is exceeded,
	// per spec §4.1 ("bounded ring buffer of capacity C").
	if over := c.points.Len() - c.capacity; over > 0 {
		c.points.RemoveBefore(over)
		c.abs = c.abs[over:]
	}

	return true
}

func insertTimeAt(s []Time, idx int, v Time) []Time {
	s = append(s, 0)
	copy(s[idx+1:], s[idx:])
	s[idx] = v
	return s
}

// Convert maps a monotonic counter value to absolute Time, per the rule in
// spec §4.1: find the most recent calibration point p with p.counter <=
// query, and return p.absolute + (query - p.counter). Backward system-clock
// jumps are corrected by clamping the output to be non-decreasing relative
// to the last value returned by Convert; forward jumps realign naturally
// because later Calibrate calls insert points past the jump.
//
// If no calibration point at or before query exists yet, the earliest known
// point is used (the spec does not define behavior strictly before the
// first sample; this returns the least-surprising extrapolation).
func (c *TickCalibration) Convert(query uint64) Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.points.Len()
	if n == 0 {
		return MinTime
	}

	idx := c.points.Search(query+1) - 1
	if idx < 0 {
		idx = 0
	}

	pCounter := c.points.Get(idx)
	pAbsolute := c.abs[idx]

	var out Time
	if query >= pCounter {
		out = pAbsolute.Add(TimeSpan(query - pCounter))
	} else {
		out = pAbsolute.Add(-TimeSpan(pCounter - query))
	}

	// Clamp: never regress relative to a previously-returned value for a
	// counter that is >= the one that produced it. Strictly increasing
	// inputs must map to non-decreasing outputs (spec §8).
	if c.haveLastOutput && query >= c.lastQuery && out < c.lastOutput {
		out = c.lastOutput
	}
	if !c.haveLastOutput || query >= c.lastQuery {
		c.lastOutput = out
		c.lastQuery = query
		c.haveLastOutput = true
	}

	return out
}

// Len reports the number of admitted calibration points, for diagnostics.
func (c *TickCalibration) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.points.Len()
}
