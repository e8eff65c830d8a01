package store

import (
	"os"
	"sync"

	"github.com/corepipeio/corepipe/internal/errs"
	"github.com/corepipeio/corepipe/serialization"
)

// runtimeName/runtimeVersion/serializationSystemVersion form the version
// triplet persisted at store root (spec §6), letting a reader reject a
// store whose serialization system predates minSerializationVersion.
const (
	runtimeName                = "corepipe"
	runtimeVersion             = "1"
	serializationSystemVersion = 1
	minSerializationVersion    = 1
)

// StreamFlags records per-stream catalog bits.
type StreamFlags uint32

const (
	// StreamClosed marks a stream no writer will ever append to again.
	StreamClosed StreamFlags = 1 << iota
)

// streamEntry is one catalog row: identity plus the accompanying metadata.
type streamEntry struct {
	ID       int32
	Name     string
	TypeName string
	Flags    StreamFlags
	Metadata *StreamMetadata
}

// Catalog is the in-memory form of an N.Catalog.psi file: the list of
// streams a store holds (spec §4.5), plus the version triplet every
// reader checks before trusting the rest of the store.
type Catalog struct {
	mu      sync.Mutex
	streams []*streamEntry
	byName  map[string]*streamEntry
	nextID  int32

	RuntimeName               string
	RuntimeVersion            string
	SerializationSystemVersion int
}

// NewCatalog returns an empty catalog stamped with this build's version
// triplet.
func NewCatalog() *Catalog {
	return &Catalog{
		byName:                     make(map[string]*streamEntry),
		RuntimeName:                runtimeName,
		RuntimeVersion:             runtimeVersion,
		SerializationSystemVersion: serializationSystemVersion,
	}
}

// AddStream registers a new stream (spec §4.5 AddStream) and returns its
// assigned StreamID plus metadata record, in catalog-registration order —
// the deterministic stream-open order go-detect-cycle/floyds' dependency
// walk produces upstream in the pipeline builder.
func (c *Catalog) AddStream(name, typeName string) (*streamEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byName[name]; exists {
		return nil, errs.NewInvalidArgument("name", "stream already exists: "+name)
	}
	e := &streamEntry{
		ID:       c.nextID,
		Name:     name,
		TypeName: typeName,
		Metadata: &StreamMetadata{ID: c.nextID, Name: name, TypeName: typeName},
	}
	c.nextID++
	c.streams = append(c.streams, e)
	c.byName[name] = e
	return e, nil
}

// Stream looks up a stream by name.
func (c *Catalog) Stream(name string) (*streamEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byName[name]
	return e, ok
}

// ListStreams enumerates every registered stream (SPEC_FULL §3.6: first-class
// read-only catalog enumeration, not just an implementation detail of Copy).
func (c *Catalog) ListStreams() []StreamMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]StreamMetadata, len(c.streams))
	for i, e := range c.streams {
		out[i] = *e.Metadata
	}
	return out
}

// WriteCatalogFile persists c to path.
func WriteCatalogFile(path string, c *Catalog) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := serialization.NewWriter()
	w.ObjectStart()
	w.Key("runtimeName")
	w.WriteString(c.RuntimeName)
	w.Key("runtimeVersion")
	w.WriteString(c.RuntimeVersion)
	w.Key("serializationSystemVersion")
	w.WriteInt64(int64(c.SerializationSystemVersion))
	w.Key("streams")
	w.ArrayStart()
	for _, e := range c.streams {
		w.ObjectStart()
		w.Key("id")
		w.WriteInt64(int64(e.ID))
		w.Key("name")
		w.WriteString(e.Name)
		w.Key("typeName")
		w.WriteString(e.TypeName)
		w.Key("flags")
		w.WriteUint64(uint64(e.Flags))
		w.Key("metadata")
		encodeMetadata(w, e.Metadata)
		w.ObjectEnd()
	}
	w.ArrayEnd()
	w.ObjectEnd()

	f, err := os.Create(path)
	if err != nil {
		return errs.NewStoreIntegrity("creating catalog file", err)
	}
	defer f.Close()
	if _, err := f.Write(w.Bytes()); err != nil {
		return errs.NewStoreIntegrity("writing catalog file", err)
	}
	return f.Sync()
}

// ReadCatalogFile loads an N.Catalog.psi file, rejecting one whose
// serialization system predates minSerializationVersion (spec §6).
func ReadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.NewStoreIntegrity("reading catalog file", err)
	}
	r := serialization.NewReader(data)
	c := NewCatalog()
	if err := r.ObjectStart(); err != nil {
		return nil, err
	}
	for r.More() {
		key, err := r.Key()
		if err != nil {
			return nil, err
		}
		switch key {
		case "runtimeName":
			c.RuntimeName, err = r.ReadString()
		case "runtimeVersion":
			c.RuntimeVersion, err = r.ReadString()
		case "serializationSystemVersion":
			var v int64
			v, err = r.ReadInt64()
			c.SerializationSystemVersion = int(v)
		case "streams":
			err = readCatalogStreams(r, c)
		default:
			return nil, errs.NewStoreIntegrity("unrecognized catalog field "+key, nil)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := r.ObjectEnd(); err != nil {
		return nil, err
	}
	if c.SerializationSystemVersion < minSerializationVersion {
		return nil, errs.NewSerializationVersion(c.RuntimeName, c.SerializationSystemVersion, minSerializationVersion)
	}
	return c, nil
}

func readCatalogStreams(r *serialization.Reader, c *Catalog) error {
	if err := r.ArrayStart(); err != nil {
		return err
	}
	for r.More() {
		if err := r.ObjectStart(); err != nil {
			return err
		}
		e := &streamEntry{}
		for r.More() {
			key, err := r.Key()
			if err != nil {
				return err
			}
			switch key {
			case "id":
				var v int64
				v, err = r.ReadInt64()
				e.ID = int32(v)
			case "name":
				e.Name, err = r.ReadString()
			case "typeName":
				e.TypeName, err = r.ReadString()
			case "flags":
				var v uint64
				v, err = r.ReadUint64()
				e.Flags = StreamFlags(v)
			case "metadata":
				e.Metadata, err = decodeMetadata(r)
			default:
				return errs.NewStoreIntegrity("unrecognized stream field "+key, nil)
			}
			if err != nil {
				return err
			}
		}
		if err := r.ObjectEnd(); err != nil {
			return err
		}
		c.streams = append(c.streams, e)
		c.byName[e.Name] = e
		if e.ID >= c.nextID {
			c.nextID = e.ID + 1
		}
	}
	return r.ArrayEnd()
}
