package serialization

import (
	"fmt"
	"reflect"

	"github.com/corepipeio/corepipe/internal/errs"
)

// deriveHandler builds a Handler for rt via reflection: exported struct
// fields become object keys; slices/arrays become arrays; maps with string
// keys become objects; everything else recurses field-by-field. This is
// the "derive one from schema inspection" fallback spec.md calls for, used
// whenever no custom Handler has been registered for a type name.
func deriveHandler(typeName string, rt reflect.Type) (Handler, error) {
	if err := checkSupported(rt); err != nil {
		return nil, err
	}
	return &reflectHandler{typeName: typeName, rt: rt}, nil
}

// checkSupported rejects the two constructs the Serializer contract
// explicitly calls out as Unsupported: multi-dimensional arrays (a
// slice/array of slices/arrays) and func types (Go's closest analogue to a
// lazy-sequence closure).
func checkSupported(rt reflect.Type) error {
	switch rt.Kind() {
	case reflect.Func:
		return errs.NewUnsupported("Cannot clone Func")
	case reflect.Slice, reflect.Array:
		elem := rt.Elem()
		if elem.Kind() == reflect.Slice || elem.Kind() == reflect.Array {
			return errs.NewUnsupported("Multi-dimensional arrays are currently not supported")
		}
		return checkSupported(elem)
	case reflect.Ptr:
		return checkSupported(rt.Elem())
	case reflect.Struct:
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				continue
			}
			if err := checkSupported(f.Type); err != nil {
				return err
			}
		}
	case reflect.Map:
		if err := checkSupported(rt.Elem()); err != nil {
			return err
		}
	}
	return nil
}

type reflectHandler struct {
	typeName string
	rt       reflect.Type
}

func (h *reflectHandler) TypeName() string     { return h.typeName }
func (h *reflectHandler) Version() int         { return 1 }
func (h *reflectHandler) IsClearRequired() bool { return false }

func (h *reflectHandler) Serialize(w *Writer, instance any, ctx *SerializationContext) error {
	return writeValue(w, reflect.ValueOf(instance), ctx)
}

func (h *reflectHandler) Deserialize(r *Reader, ctx *SerializationContext) (any, error) {
	rv := reflect.New(h.rt).Elem()
	if err := readValue(r, rv, ctx); err != nil {
		return nil, err
	}
	return rv.Interface(), nil
}

func (h *reflectHandler) Clone(instance any, ctx *SerializationContext) (any, error) {
	src := reflect.ValueOf(instance)
	dst := reflect.New(src.Type()).Elem()
	if err := cloneValue(dst, src, ctx); err != nil {
		return nil, err
	}
	return dst.Interface(), nil
}

func (h *reflectHandler) Clear(instance any, ctx *SerializationContext) error { return nil }

func writeValue(w *Writer, v reflect.Value, ctx *SerializationContext) error {
	if !v.IsValid() {
		w.WriteNull()
		return nil
	}
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			w.WriteNull()
			return nil
		}
		id, isNew := ctx.WriteRef(v.Interface())
		w.ObjectStart()
		if !isNew {
			w.Key("$ref")
			w.WriteUint64(uint64(id))
			w.ObjectEnd()
			return nil
		}
		w.Key("$id")
		w.WriteUint64(uint64(id))
		w.Key("$val")
		if err := writeValue(w, v.Elem(), ctx); err != nil {
			return err
		}
		w.ObjectEnd()
		return nil
	case reflect.Struct:
		w.ObjectStart()
		rt := v.Type()
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				continue
			}
			w.Key(f.Name)
			if err := writeValue(w, v.Field(i), ctx); err != nil {
				return err
			}
		}
		w.ObjectEnd()
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			w.WriteNull()
			return nil
		}
		w.ArrayStart()
		for i := 0; i < v.Len(); i++ {
			if err := writeValue(w, v.Index(i), ctx); err != nil {
				return err
			}
		}
		w.ArrayEnd()
	case reflect.Map:
		if v.IsNil() {
			w.WriteNull()
			return nil
		}
		w.ObjectStart()
		iter := v.MapRange()
		for iter.Next() {
			w.Key(fmt.Sprint(iter.Key().Interface()))
			if err := writeValue(w, iter.Value(), ctx); err != nil {
				return err
			}
		}
		w.ObjectEnd()
	case reflect.String:
		w.WriteString(v.String())
	case reflect.Bool:
		w.WriteBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		w.WriteInt64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		w.WriteUint64(v.Uint())
	case reflect.Float32:
		w.WriteFloat32(float32(v.Float()))
	case reflect.Float64:
		w.WriteFloat64(v.Float())
	case reflect.Interface:
		if v.IsNil() {
			w.WriteNull()
			return nil
		}
		return writeValue(w, v.Elem(), ctx)
	default:
		return errs.NewUnsupported(fmt.Sprintf("cannot serialize kind %s", v.Kind()))
	}
	return nil
}

func readValue(r *Reader, v reflect.Value, ctx *SerializationContext) error {
	if v.Kind() == reflect.Ptr {
		return readPtr(r, v, ctx)
	}

	switch v.Kind() {
	case reflect.Struct:
		if err := r.ObjectStart(); err != nil {
			return err
		}
		rt := v.Type()
		for r.More() {
			name, err := r.Key()
			if err != nil {
				return err
			}
			field := v.FieldByName(name)
			if !field.IsValid() {
				return errs.NewTypeMismatch(rt.Name(), fmt.Sprintf("unknown field %q", name), nil)
			}
			if err := readValue(r, field, ctx); err != nil {
				return err
			}
		}
		return r.ObjectEnd()
	case reflect.Slice:
		isNull, err := r.PeekNull()
		if err != nil {
			return err
		}
		if isNull {
			v.Set(reflect.Zero(v.Type()))
			return nil
		}
		if err := r.ArrayStart(); err != nil {
			return err
		}
		elemType := v.Type().Elem()
		out := reflect.MakeSlice(v.Type(), 0, 0)
		for r.More() {
			elem := reflect.New(elemType).Elem()
			if err := readValue(r, elem, ctx); err != nil {
				return err
			}
			out = reflect.Append(out, elem)
		}
		if err := r.ArrayEnd(); err != nil {
			return err
		}
		v.Set(out)
		return nil
	case reflect.Array:
		if err := r.ArrayStart(); err != nil {
			return err
		}
		i := 0
		for r.More() {
			if i >= v.Len() {
				return errs.NewTypeMismatch(v.Type().Name(), "array has more elements than its fixed length", nil)
			}
			if err := readValue(r, v.Index(i), ctx); err != nil {
				return err
			}
			i++
		}
		return r.ArrayEnd()
	case reflect.Map:
		isNull, err := r.PeekNull()
		if err != nil {
			return err
		}
		if isNull {
			v.Set(reflect.Zero(v.Type()))
			return nil
		}
		if err := r.ObjectStart(); err != nil {
			return err
		}
		out := reflect.MakeMap(v.Type())
		valType := v.Type().Elem()
		for r.More() {
			key, err := r.Key()
			if err != nil {
				return err
			}
			val := reflect.New(valType).Elem()
			if err := readValue(r, val, ctx); err != nil {
				return err
			}
			out.SetMapIndex(reflect.ValueOf(key).Convert(v.Type().Key()), val)
		}
		if err := r.ObjectEnd(); err != nil {
			return err
		}
		v.Set(out)
		return nil
	case reflect.String:
		s, err := r.ReadString()
		if err != nil {
			return err
		}
		v.SetString(s)
		return nil
	case reflect.Bool:
		b, err := r.ReadBool()
		if err != nil {
			return err
		}
		v.SetBool(b)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := r.ReadInt64()
		if err != nil {
			return err
		}
		v.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := r.ReadUint64()
		if err != nil {
			return err
		}
		v.SetUint(n)
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := r.ReadFloat64()
		if err != nil {
			return err
		}
		v.SetFloat(f)
		return nil
	default:
		return errs.NewUnsupported(fmt.Sprintf("cannot deserialize kind %s", v.Kind()))
	}
}

// readPtr reads the {"$id":N,"$val":...} / {"$ref":N} wrapper writeValue's
// Ptr case produces, materializing a fresh instance for a new-ref tag or
// resolving to the already-materialized instance for a back-ref tag.
func readPtr(r *Reader, v reflect.Value, ctx *SerializationContext) error {
	isNull, err := r.PeekNull()
	if err != nil {
		return err
	}
	if isNull {
		v.Set(reflect.Zero(v.Type()))
		return nil
	}
	if err := r.ObjectStart(); err != nil {
		return err
	}
	key, err := r.Key()
	if err != nil {
		return err
	}
	switch key {
	case "$ref":
		id, err := r.ReadUint64()
		if err != nil {
			return err
		}
		if err := r.ObjectEnd(); err != nil {
			return err
		}
		existing, ok := ctx.LookupRead(uint32(id))
		if !ok {
			return errs.NewTypeMismatch(v.Type().Name(), fmt.Sprintf("back-reference to unseen id %d", id), nil)
		}
		v.Set(reflect.ValueOf(existing))
		return nil
	case "$id":
		id, err := r.ReadUint64()
		if err != nil {
			return err
		}
		ptr := reflect.New(v.Type().Elem())
		ctx.RegisterRead(uint32(id), ptr.Interface())
		if nextKey, err := r.Key(); err != nil {
			return err
		} else if nextKey != "$val" {
			return errs.NewTypeMismatch(v.Type().Name(), fmt.Sprintf("expected $val, got %q", nextKey), nil)
		}
		if err := readValue(r, ptr.Elem(), ctx); err != nil {
			return err
		}
		if err := r.ObjectEnd(); err != nil {
			return err
		}
		v.Set(ptr)
		return nil
	default:
		return errs.NewTypeMismatch(v.Type().Name(), fmt.Sprintf("expected $id or $ref, got %q", key), nil)
	}
}

func cloneValue(dst, src reflect.Value, ctx *SerializationContext) error {
	switch src.Kind() {
	case reflect.Ptr:
		if src.IsNil() {
			return nil
		}
		if existing, ok := ctx.ClonedOrNil(src.Interface()); ok {
			dst.Set(reflect.ValueOf(existing))
			return nil
		}
		target := reflect.New(src.Type().Elem())
		dst.Set(target)
		ctx.RegisterCloned(src.Interface(), target.Interface())
		return cloneValue(dst.Elem(), src.Elem(), ctx)
	case reflect.Struct:
		for i := 0; i < src.NumField(); i++ {
			if !src.Type().Field(i).IsExported() {
				continue
			}
			if err := cloneValue(dst.Field(i), src.Field(i), ctx); err != nil {
				return err
			}
		}
		return nil
	case reflect.Slice:
		if src.IsNil() {
			return nil
		}
		out := reflect.MakeSlice(src.Type(), src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			if err := cloneValue(out.Index(i), src.Index(i), ctx); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil
	case reflect.Array:
		for i := 0; i < src.Len(); i++ {
			if err := cloneValue(dst.Index(i), src.Index(i), ctx); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if src.IsNil() {
			return nil
		}
		out := reflect.MakeMapWithSize(src.Type(), src.Len())
		iter := src.MapRange()
		for iter.Next() {
			val := reflect.New(src.Type().Elem()).Elem()
			if err := cloneValue(val, iter.Value(), ctx); err != nil {
				return err
			}
			out.SetMapIndex(iter.Key(), val)
		}
		dst.Set(out)
		return nil
	default:
		dst.Set(src)
		return nil
	}
}
