package store

import (
	"math/big"

	"github.com/corepipeio/corepipe/internal/errs"
	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/serialization"
)

// metadataVersion is the current on-disk version PsiStreamMetadata encodes
// to; readers must still accept the two prior versions (spec §4.5).
const metadataVersion = 2

// StreamMetadata is PsiStreamMetadata (spec §3): per-stream bookkeeping
// tracked by the Catalog, versioned on disk across three generations.
type StreamMetadata struct {
	ID   int32
	Name string

	TypeName string

	OpenedTime ptime.Time
	ClosedTime ptime.Time

	MessageCount             int64
	MessageSizeCumulativeSum int64
	LatencyCumulativeSum     int64 // ticks

	FirstMessageTime ptime.Time
	LastMessageTime  ptime.Time

	SupplementalTypeName string
	SupplementalBytes    []byte

	RuntimeTypes []string
}

// Observe folds one committed message's stats into the running totals, the
// v2+ counters replacing v0/v1's averages (spec §4.5).
func (m *StreamMetadata) Observe(originatingTime ptime.Time, payloadSize int, latencyTicks int64) {
	if m.MessageCount == 0 || originatingTime < m.FirstMessageTime {
		m.FirstMessageTime = originatingTime
	}
	if m.MessageCount == 0 || originatingTime > m.LastMessageTime {
		m.LastMessageTime = originatingTime
	}
	m.MessageCount++
	m.MessageSizeCumulativeSum += int64(payloadSize)
	m.LatencyCumulativeSum += latencyTicks
}

// AverageMessageSize returns the mean payload size per message as an exact
// rational, derived from the cumulative sum rather than stored directly
// (v0/v1's averageMessageSize field is reconstructed into this form by
// decodeMetadata rather than kept as a separate running average).
func (m *StreamMetadata) AverageMessageSize() *big.Rat {
	if m.MessageCount == 0 {
		return new(big.Rat)
	}
	return big.NewRat(m.MessageSizeCumulativeSum, m.MessageCount)
}

// AverageLatency returns the mean per-message latency, in ticks, as an exact
// rational.
func (m *StreamMetadata) AverageLatency() *big.Rat {
	if m.MessageCount == 0 {
		return new(big.Rat)
	}
	return big.NewRat(m.LatencyCumulativeSum, m.MessageCount)
}

// encodeMetadata writes m at metadataVersion (always the highest version,
// per spec §4.5: "always re-emit the highest version on output").
func encodeMetadata(w *serialization.Writer, m *StreamMetadata) {
	w.ObjectStart()
	w.Key("version")
	w.WriteInt64(metadataVersion)
	w.Key("id")
	w.WriteInt64(int64(m.ID))
	w.Key("name")
	w.WriteString(m.Name)
	w.Key("typeName")
	w.WriteString(m.TypeName)
	w.Key("openedTime")
	w.WriteInt64(int64(m.OpenedTime))
	w.Key("closedTime")
	w.WriteInt64(int64(m.ClosedTime))
	w.Key("messageCount")
	w.WriteInt64(m.MessageCount)
	w.Key("messageSizeCumulativeSum")
	w.WriteInt64(m.MessageSizeCumulativeSum)
	w.Key("latencyCumulativeSum")
	w.WriteInt64(m.LatencyCumulativeSum)
	w.Key("firstMessageTime")
	w.WriteInt64(int64(m.FirstMessageTime))
	w.Key("lastMessageTime")
	w.WriteInt64(int64(m.LastMessageTime))
	w.Key("supplementalTypeName")
	w.WriteString(m.SupplementalTypeName)
	w.Key("supplementalBytes")
	w.ArrayStart()
	for _, b := range m.SupplementalBytes {
		w.WriteInt64(int64(b))
	}
	w.ArrayEnd()
	w.Key("runtimeTypes")
	w.ArrayStart()
	for _, t := range m.RuntimeTypes {
		w.WriteString(t)
	}
	w.ArrayEnd()
	w.ObjectEnd()
}

// decodeMetadata accepts any of v0, v1, or v2+ on input (spec §4.5: "A
// reader must accept v0/v1 on input"). v0 has no supplemental fields and
// encodes averageMessageSize/averageLatencyMicroseconds instead of the
// cumulative-sum counters; v1 adds the supplemental block but keeps the
// averages; v2+ replaces the averages with the cumulative sums. Fields
// absent from the encoded version are left at their zero value, except
// the derived cumulative sums, which are reconstructed from the v0/v1
// averages so a round-tripped v0/v1 store still reports meaningful
// MessageSizeCumulativeSum/LatencyCumulativeSum after re-encoding at v2+.
func decodeMetadata(r *serialization.Reader) (*StreamMetadata, error) {
	if err := r.ObjectStart(); err != nil {
		return nil, err
	}
	m := &StreamMetadata{}
	var version int64
	var avgMessageSize, avgLatencyMicros int64
	haveAverages := false
	for r.More() {
		key, err := r.Key()
		if err != nil {
			return nil, err
		}
		switch key {
		case "version":
			version, err = r.ReadInt64()
		case "id":
			var v int64
			v, err = r.ReadInt64()
			m.ID = int32(v)
		case "name":
			m.Name, err = r.ReadString()
		case "typeName":
			m.TypeName, err = r.ReadString()
		case "openedTime":
			var v int64
			v, err = r.ReadInt64()
			m.OpenedTime = ptime.Time(v)
		case "closedTime":
			var v int64
			v, err = r.ReadInt64()
			m.ClosedTime = ptime.Time(v)
		case "messageCount":
			m.MessageCount, err = r.ReadInt64()
		case "messageSizeCumulativeSum":
			m.MessageSizeCumulativeSum, err = r.ReadInt64()
		case "latencyCumulativeSum":
			m.LatencyCumulativeSum, err = r.ReadInt64()
		case "averageMessageSize":
			avgMessageSize, err = r.ReadInt64()
			haveAverages = true
		case "averageLatencyMicroseconds":
			avgLatencyMicros, err = r.ReadInt64()
			haveAverages = true
		case "firstMessageTime":
			var v int64
			v, err = r.ReadInt64()
			m.FirstMessageTime = ptime.Time(v)
		case "lastMessageTime":
			var v int64
			v, err = r.ReadInt64()
			m.LastMessageTime = ptime.Time(v)
		case "supplementalTypeName":
			m.SupplementalTypeName, err = r.ReadString()
		case "supplementalBytes":
			err = r.ArrayStart()
			for err == nil && r.More() {
				var b int64
				b, err = r.ReadInt64()
				if err == nil {
					m.SupplementalBytes = append(m.SupplementalBytes, byte(b))
				}
			}
			if err == nil {
				err = r.ArrayEnd()
			}
		case "runtimeTypes":
			err = r.ArrayStart()
			for err == nil && r.More() {
				var t string
				t, err = r.ReadString()
				if err == nil {
					m.RuntimeTypes = append(m.RuntimeTypes, t)
				}
			}
			if err == nil {
				err = r.ArrayEnd()
			}
		default:
			return nil, errs.NewStoreIntegrity("unrecognized PsiStreamMetadata field "+key, nil)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := r.ObjectEnd(); err != nil {
		return nil, err
	}
	if version < 0 || version > metadataVersion {
		return nil, errs.NewSerializationVersion(m.TypeName, int(version), 0)
	}
	if haveAverages && m.MessageCount > 0 && m.MessageSizeCumulativeSum == 0 && m.LatencyCumulativeSum == 0 {
		m.MessageSizeCumulativeSum = avgMessageSize * m.MessageCount
		// one microsecond is 10 ticks of 100ns
		m.LatencyCumulativeSum = avgLatencyMicros * 10 * m.MessageCount
	}
	return m, nil
}
