// Package ptime implements corepipe's time model: 100-nanosecond-tick
// absolute instants and signed spans, bounded/unbounded intervals, a
// replay-capable virtual Clock, and the TickCalibration table that maps a
// high-resolution monotonic counter to absolute time.
package ptime

import (
	"fmt"
	"time"
)

// tickPerSecond is the number of 100ns ticks in one second, matching the
// .NET DateTime tick resolution the originating system used.
const tickPerSecond = int64(time.Second / 100)

// Time is an absolute instant, represented as 100-nanosecond ticks since the
// Unix epoch.
type Time int64

// TimeSpan is a signed difference between two Time values, in 100ns ticks.
type TimeSpan int64

const (
	// MinTime is the smallest representable Time, used as the "since the
	// beginning of time" sentinel for unbounded-left intervals and as the
	// obsoleteTime floor before any message has been pruned.
	MinTime = Time(-1 << 62)

	// MaxTime is the largest representable Time, the "until the end of
	// time" sentinel for unbounded-right intervals.
	MaxTime = Time(1<<62 - 1)

	// MaxSpan is returned by TimeInterval.Span for an unbounded interval.
	MaxSpan = TimeSpan(1<<62 - 1)

	// MinSpan is the most negative representable TimeSpan.
	MinSpan = TimeSpan(-1 << 62)
)

// FromTime converts a time.Time into a Time, truncating to 100ns resolution.
func FromTime(t time.Time) Time {
	secs := t.Unix()
	nanos := int64(t.Nanosecond())
	return Time(secs*tickPerSecond + nanos/100)
}

// Time converts back to a time.Time (UTC, 100ns resolution).
func (t Time) Time() time.Time {
	secs := int64(t) / tickPerSecond
	rem := int64(t) % tickPerSecond
	if rem < 0 {
		rem += tickPerSecond
		secs--
	}
	return time.Unix(secs, rem*100).UTC()
}

// Add returns t shifted by span.
func (t Time) Add(span TimeSpan) Time {
	if t == MinTime || t == MaxTime {
		return t // sentinels are absorbing
	}
	return t + Time(span)
}

// Sub returns the TimeSpan from u to t (t - u).
func (t Time) Sub(u Time) TimeSpan {
	if t == MaxTime || u == MinTime {
		return MaxSpan
	}
	if t == MinTime || u == MaxTime {
		return MinSpan
	}
	return TimeSpan(t - u)
}

// Before reports whether t occurs strictly before u.
func (t Time) Before(u Time) bool { return t < u }

// After reports whether t occurs strictly after u.
func (t Time) After(u Time) bool { return t > u }

// String renders t using RFC3339Nano, or a sentinel label at the extremes.
func (t Time) String() string {
	switch t {
	case MinTime:
		return "-inf"
	case MaxTime:
		return "+inf"
	default:
		return t.Time().Format(time.RFC3339Nano)
	}
}

// Seconds returns the span as a floating point number of seconds.
func (s TimeSpan) Seconds() float64 {
	return float64(s) / float64(tickPerSecond)
}

// FromDuration converts a time.Duration into a TimeSpan (100ns resolution).
func FromDuration(d time.Duration) TimeSpan {
	return TimeSpan(d / 100)
}

// Duration converts back to a time.Duration.
func (s TimeSpan) Duration() time.Duration {
	return time.Duration(s) * 100
}

func (s TimeSpan) String() string {
	switch s {
	case MaxSpan:
		return "+inf"
	case MinSpan:
		return "-inf"
	default:
		return fmt.Sprintf("%v", s.Duration())
	}
}
