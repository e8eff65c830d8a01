package serialization

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/corepipeio/corepipe/internal/errs"
)

// Reader walks the structural stream a Writer produced. jsonenc supplies no
// decoder of its own, so the token-level parsing uses encoding/json's
// Decoder.Token, the standard library's own structural JSON scanner; only
// the Writer's byte-level encoding is jsonenc's. Handlers drive the Reader
// token by token, expecting exactly the shape their Serialize wrote.
type Reader struct {
	dec     *json.Decoder
	peeked  json.Token
	hasPeek bool
}

// NewReader returns a Reader over the bytes a Writer produced.
func NewReader(data []byte) *Reader {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return &Reader{dec: dec}
}

func (r *Reader) token() (json.Token, error) {
	if r.hasPeek {
		r.hasPeek = false
		return r.peeked, nil
	}
	t, err := r.dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, errs.NewTypeMismatch("", "unexpected end of serialized stream", err)
		}
		return nil, errs.NewTypeMismatch("", "malformed serialized stream", err)
	}
	return t, nil
}

// ObjectStart consumes a '{' token.
func (r *Reader) ObjectStart() error { return r.delim('{') }

// ObjectEnd consumes a '}' token.
func (r *Reader) ObjectEnd() error { return r.delim('}') }

// ArrayStart consumes a '[' token.
func (r *Reader) ArrayStart() error { return r.delim('[') }

// ArrayEnd consumes a ']' token.
func (r *Reader) ArrayEnd() error { return r.delim(']') }

// More reports whether the innermost object/array has another
// field/element before its closing delimiter.
func (r *Reader) More() bool { return r.dec.More() }

func (r *Reader) delim(want json.Delim) error {
	t, err := r.token()
	if err != nil {
		return err
	}
	d, ok := t.(json.Delim)
	if !ok || d != want {
		return errs.NewTypeMismatch("", fmt.Sprintf("expected %q, got %v", want, t), nil)
	}
	return nil
}

// Key reads the next object field name.
func (r *Reader) Key() (string, error) {
	t, err := r.token()
	if err != nil {
		return "", err
	}
	s, ok := t.(string)
	if !ok {
		return "", errs.NewTypeMismatch("", "expected field name", nil)
	}
	return s, nil
}

// ReadString reads a string value.
func (r *Reader) ReadString() (string, error) {
	t, err := r.token()
	if err != nil {
		return "", err
	}
	s, ok := t.(string)
	if !ok {
		return "", errs.NewTypeMismatch("", "expected string value", nil)
	}
	return s, nil
}

// ReadFloat64 reads a numeric value as a float64.
func (r *Reader) ReadFloat64() (float64, error) {
	n, err := r.readNumber()
	if err != nil {
		return 0, err
	}
	return n.Float64()
}

// ReadInt64 reads a numeric value as an int64.
func (r *Reader) ReadInt64() (int64, error) {
	n, err := r.readNumber()
	if err != nil {
		return 0, err
	}
	return n.Int64()
}

// ReadUint64 reads a numeric value as a uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	n, err := r.readNumber()
	if err != nil {
		return 0, err
	}
	var v uint64
	if _, err := fmt.Sscanf(n.String(), "%d", &v); err != nil {
		return 0, errs.NewTypeMismatch("", "expected unsigned integer value", err)
	}
	return v, nil
}

func (r *Reader) readNumber() (json.Number, error) {
	t, err := r.token()
	if err != nil {
		return "", err
	}
	n, ok := t.(json.Number)
	if !ok {
		return "", errs.NewTypeMismatch("", "expected numeric value", nil)
	}
	return n, nil
}

// ReadBool reads a boolean value.
func (r *Reader) ReadBool() (bool, error) {
	t, err := r.token()
	if err != nil {
		return false, err
	}
	b, ok := t.(bool)
	if !ok {
		return false, errs.NewTypeMismatch("", "expected boolean value", nil)
	}
	return b, nil
}

// PeekNull reports whether the next value is null, without consuming it if
// it is not: any other value remains buffered for the next Read call.
func (r *Reader) PeekNull() (bool, error) {
	t, err := r.token()
	if err != nil {
		return false, err
	}
	if t == nil {
		return true, nil
	}
	r.peeked = t
	r.hasPeek = true
	return false, nil
}
