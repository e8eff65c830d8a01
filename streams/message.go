// Package streams implements corepipe's typed stream endpoints: Message,
// Emitter, Receiver, and the DeliveryPolicy family governing how a receiver's
// internal queue behaves under load.
package streams

import "github.com/corepipeio/corepipe/ptime"

// Message is an immutable envelope carrying a value of type T plus the
// metadata needed to preserve ordering and provenance across the pipeline.
//
// Invariant: CreationTime >= OriginatingTime. On a single emitter, SequenceID
// is strictly monotonic and OriginatingTime is non-decreasing.
type Message[T any] struct {
	Data            T
	OriginatingTime ptime.Time
	CreationTime    ptime.Time
	SourceID        uint64
	SequenceID      uint64
}
