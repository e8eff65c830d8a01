package store

import "github.com/corepipeio/corepipe/ptime"

// Envelope carries a persisted message's header fields without its payload
// (spec §3: "the header fields of a Message minus the payload, used by
// routing and indexing"). Unlike streams.Message[T], which is generic over
// an in-process payload type for live delivery, Envelope holds no payload
// at all. The store's write, index and read paths do not use it; they carry
// IndexEntry values and raw payload bytes instead.
type Envelope struct {
	OriginatingTime ptime.Time
	CreationTime    ptime.Time
	SourceID        int32
	SequenceID      int64
}
