package ptime

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/corepipeio/corepipe/internal/errs"
)

// Clock maps wall-clock progress to virtual pipeline time:
//
//	virtual = originVirtual + (absolute - originReal) * speedFactor
//
// speedFactor == 1 gives real-time replay; other factors accelerate or
// decelerate. A Clock is safe for concurrent use: speedFactor is read
// atomically so a running pipeline's replay speed may be queried from any
// goroutine without additional synchronization.
type Clock struct {
	originVirtual Time
	originReal    time.Time
	speedBits     atomic.Uint64 // math.Float64bits(speedFactor)
}

// NewClock constructs a Clock such that Now() returns originVirtual at the
// instant originReal is reached by the wall clock, and advances at
// speedFactor times real-time thereafter. speedFactor must be strictly
// positive (see spec §9: "Replay-speed values <= 0 are unspecified; reject
// at pipeline start with InvalidArgument").
func NewClock(originVirtual Time, originReal time.Time, speedFactor float64) (*Clock, error) {
	if !(speedFactor > 0) {
		return nil, errs.NewInvalidArgument("speedFactor", "must be strictly positive")
	}
	c := &Clock{originVirtual: originVirtual, originReal: originReal}
	c.storeSpeed(speedFactor)
	return c, nil
}

// RealTimeClock returns a Clock running at 1x speed, originating now.
func RealTimeClock() *Clock {
	c, _ := NewClock(FromTime(time.Now()), time.Now(), 1)
	return c
}

func (c *Clock) storeSpeed(v float64) { c.speedBits.Store(math.Float64bits(v)) }
func (c *Clock) loadSpeed() float64   { return math.Float64frombits(c.speedBits.Load()) }

// SpeedFactor returns the current replay speed multiplier.
func (c *Clock) SpeedFactor() float64 { return c.loadSpeed() }

// SetSpeedFactor adjusts the replay speed going forward, re-anchoring the
// origin so already-elapsed virtual time is preserved (no discontinuity at
// the instant of the change).
func (c *Clock) SetSpeedFactor(speedFactor float64) error {
	if !(speedFactor > 0) {
		return errs.NewInvalidArgument("speedFactor", "must be strictly positive")
	}
	now := time.Now()
	c.originVirtual = c.ToVirtual(now)
	c.originReal = now
	c.storeSpeed(speedFactor)
	return nil
}

// ToVirtual converts an absolute wall-clock instant to virtual time.
func (c *Clock) ToVirtual(absolute time.Time) Time {
	elapsed := absolute.Sub(c.originReal)
	scaled := time.Duration(float64(elapsed) * c.loadSpeed())
	return c.originVirtual.Add(FromDuration(scaled))
}

// ToReal converts a virtual time back to the wall-clock instant at which it
// occurs, the inverse of ToVirtual.
func (c *Clock) ToReal(virtual Time) time.Time {
	span := virtual.Sub(c.originVirtual)
	scaled := time.Duration(float64(span.Duration()) / c.loadSpeed())
	return c.originReal.Add(scaled)
}

// Now returns the current virtual time.
func (c *Clock) Now() Time {
	return c.ToVirtual(time.Now())
}
