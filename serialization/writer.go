package serialization

import (
	"strconv"

	"github.com/joeycumines/go-utilpkg/jsonenc"
)

// Writer builds the self-describing wire encoding a Handler writes its
// instance into: a JSON-shaped byte stream, using jsonenc's zero-allocation
// primitive encoders for strings and floats, plus a small structural state
// stack (object/array depth and pending-comma tracking) that the Writer
// itself, not the caller, is responsible for getting right.
type Writer struct {
	buf   []byte
	stack []frame
}

type frame struct {
	array    bool
	started  bool // at least one element/field already written at this depth
}

// NewWriter returns a Writer appending to an empty internal buffer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the encoded stream so far.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) beforeValue() {
	if len(w.stack) == 0 {
		return
	}
	top := &w.stack[len(w.stack)-1]
	if top.started {
		w.buf = append(w.buf, ',')
	}
	top.started = true
}

// ObjectStart begins a new-instance or back-reference object.
func (w *Writer) ObjectStart() {
	w.beforeValue()
	w.buf = append(w.buf, '{')
	w.stack = append(w.stack, frame{})
}

// ObjectEnd closes the innermost object.
func (w *Writer) ObjectEnd() {
	w.stack = w.stack[:len(w.stack)-1]
	w.buf = append(w.buf, '}')
}

// ArrayStart begins a sequence value (a slice or array field).
func (w *Writer) ArrayStart() {
	w.beforeValue()
	w.buf = append(w.buf, '[')
	w.stack = append(w.stack, frame{array: true})
}

// ArrayEnd closes the innermost array.
func (w *Writer) ArrayEnd() {
	w.stack = w.stack[:len(w.stack)-1]
	w.buf = append(w.buf, ']')
}

// Key writes an object field name. Must be called only directly inside an
// ObjectStart/ObjectEnd pair, before the field's value.
func (w *Writer) Key(name string) {
	w.beforeValue()
	w.stack[len(w.stack)-1].started = false // the value write that follows re-marks it
	w.buf = jsonenc.AppendString(w.buf, name)
	w.buf = append(w.buf, ':')
}

// WriteString writes a string value.
func (w *Writer) WriteString(s string) {
	w.beforeValue()
	w.buf = jsonenc.AppendString(w.buf, s)
}

// WriteFloat64 writes a float64 value.
func (w *Writer) WriteFloat64(v float64) {
	w.beforeValue()
	w.buf = jsonenc.AppendFloat64(w.buf, v)
}

// WriteFloat32 writes a float32 value.
func (w *Writer) WriteFloat32(v float32) {
	w.beforeValue()
	w.buf = jsonenc.AppendFloat32(w.buf, v)
}

// WriteInt64 writes an integer value.
func (w *Writer) WriteInt64(v int64) {
	w.beforeValue()
	w.buf = strconv.AppendInt(w.buf, v, 10)
}

// WriteUint64 writes an unsigned integer value.
func (w *Writer) WriteUint64(v uint64) {
	w.beforeValue()
	w.buf = strconv.AppendUint(w.buf, v, 10)
}

// WriteBool writes a boolean value.
func (w *Writer) WriteBool(b bool) {
	w.beforeValue()
	if b {
		w.buf = append(w.buf, 't', 'r', 'u', 'e')
	} else {
		w.buf = append(w.buf, 'f', 'a', 'l', 's', 'e')
	}
}

// WriteNull writes a null/absent value, used for nil pointers and interfaces.
func (w *Writer) WriteNull() {
	w.beforeValue()
	w.buf = append(w.buf, 'n', 'u', 'l', 'l')
}
