// Package ratelimit adapts github.com/joeycumines/go-catrate's sliding
// window Limiter into a small helper for suppressing log spam on hot
// per-message paths (e.g. a warning emitted once per dropped message under
// LatestMessage/QueueSize delivery policies would otherwise flood the log at
// message rate).
package ratelimit

import (
	"time"

	catrate "github.com/joeycumines/go-catrate"
)

// LogGate reports whether a log call for category should proceed, limiting
// to at most one log line per window per category.
type LogGate struct {
	limiter *catrate.Limiter
}

// NewLogGate returns a LogGate allowing at most one event per window, per
// category. A nil or non-positive window disables rate limiting (Allow
// always returns true).
func NewLogGate(window time.Duration) *LogGate {
	if window <= 0 {
		return &LogGate{}
	}
	return &LogGate{limiter: catrate.NewLimiter(map[time.Duration]int{window: 1})}
}

// Allow returns true if a log event for category should be emitted now.
func (g *LogGate) Allow(category any) bool {
	if g == nil || g.limiter == nil {
		return true
	}
	_, ok := g.limiter.Allow(category)
	return ok
}
