// Package fusion implements the Interpolator contract and the stream fusion
// operators (Fuse, Join, Pair, Interpolate, Sample) built on it.
package fusion

import "github.com/corepipeio/corepipe/ptime"

// ResultKind is the outcome of a single Interpolator query.
type ResultKind int

const (
	// Created means a value was found (or computed) for the query time.
	Created ResultKind = iota
	// DoesNotExist means the window is closed with certainty and no
	// candidate exists, or never will.
	DoesNotExist
	// InsufficientData means the answer depends on messages not yet
	// received; the caller should retry once more secondary data arrives.
	InsufficientData
)

// Result is the outcome of Interpolator.Interpolate: Created carries Value
// and the ObsoleteTime at or before which buffered messages may now be
// pruned;
// DoesNotExist carries only ObsoleteTime; InsufficientData carries neither.
type Result[T any] struct {
	Kind         ResultKind
	Value        T
	ObsoleteTime ptime.Time
}
