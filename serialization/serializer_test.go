package serialization

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y int
}

type node struct {
	Name     string
	Children []*node
}

type withSlice struct {
	Tags []string
}

type unclonable struct {
	Fn func()
}

func TestSerializer_RoundTripsScalarsAndStructs(t *testing.T) {
	s := New(nil)

	p := point{X: 3, Y: -4}
	data, err := s.Serialize(p)
	require.NoError(t, err)

	out, err := s.Deserialize("github.com/corepipeio/corepipe/serialization.point", point{}, data)
	require.NoError(t, err)
	require.Equal(t, p, out)
}

func TestSerializer_RoundTripsSlicesAndNilSlice(t *testing.T) {
	s := New(nil)

	in := withSlice{Tags: []string{"a", "b", "c"}}
	data, err := s.Serialize(in)
	require.NoError(t, err)
	out, err := s.Deserialize("github.com/corepipeio/corepipe/serialization.withSlice", withSlice{}, data)
	require.NoError(t, err)
	require.Equal(t, in, out)

	empty := withSlice{}
	data, err = s.Serialize(empty)
	require.NoError(t, err)
	out, err = s.Deserialize("github.com/corepipeio/corepipe/serialization.withSlice", withSlice{}, data)
	require.NoError(t, err)
	require.Equal(t, empty, out)
}

func TestSerializer_PreservesSharedPointerIdentityOnDeserialize(t *testing.T) {
	s := New(nil)

	shared := &node{Name: "leaf"}
	root := &node{Name: "root", Children: []*node{shared, shared}}

	data, err := s.Serialize(root)
	require.NoError(t, err)

	out, err := s.Deserialize("github.com/corepipeio/corepipe/serialization.node", &node{}, data)
	require.NoError(t, err)

	got := out.(*node)
	require.Len(t, got.Children, 2)
	require.Same(t, got.Children[0], got.Children[1])
	require.Equal(t, "leaf", got.Children[0].Name)
}

func TestSerializer_ClonePreservesSharedPointerIdentity(t *testing.T) {
	s := New(nil)

	shared := &node{Name: "leaf"}
	root := &node{Name: "root", Children: []*node{shared, shared}}

	clonedAny, err := s.Clone(root)
	require.NoError(t, err)
	cloned := clonedAny.(*node)

	require.NotSame(t, root, cloned)
	require.NotSame(t, root.Children[0], cloned.Children[0])
	require.Same(t, cloned.Children[0], cloned.Children[1])
	require.Equal(t, "leaf", cloned.Children[0].Name)

	// mutating the clone must not reach the original's shared instance.
	cloned.Children[0].Name = "mutated"
	require.Equal(t, "leaf", shared.Name)
}

func TestSerializer_RejectsFuncField(t *testing.T) {
	s := New(nil)
	_, err := s.Serialize(unclonable{Fn: func() {}})
	require.ErrorContains(t, err, "Cannot clone Func")
}

func TestSerializer_RejectsMultiDimensionalArray(t *testing.T) {
	type grid struct {
		Rows [][]int
	}
	s := New(nil)
	_, err := s.Serialize(grid{Rows: [][]int{{1, 2}, {3, 4}}})
	require.ErrorContains(t, err, "Multi-dimensional arrays are currently not supported")
}

func TestSerializer_NilPointerRoundTrips(t *testing.T) {
	type holder struct {
		Next *node
	}
	s := New(nil)
	data, err := s.Serialize(holder{})
	require.NoError(t, err)
	out, err := s.Deserialize("github.com/corepipeio/corepipe/serialization.holder", holder{}, data)
	require.NoError(t, err)
	require.Nil(t, out.(holder).Next)
}

func TestSerializer_CustomHandlerTakesPrecedence(t *testing.T) {
	const typeName = "github.com/corepipeio/corepipe/serialization.point"

	known := NewKnownSerializers()
	known.RegisterFunc(typeName, customPointHandler{})
	s := New(known)

	data, err := s.Serialize(point{X: 1, Y: 2})
	require.NoError(t, err)
	require.Equal(t, "[1,2]", string(data)) // the reflect fallback would have produced an object, not an array.

	out, err := s.Deserialize(typeName, point{}, data)
	require.NoError(t, err)
	require.Equal(t, point{X: 1, Y: 2}, out)
}

// customPointHandler encodes a point as a flat two-element array, exercising
// the Handler interface independent of the reflect fallback.
type customPointHandler struct{}

func (customPointHandler) TypeName() string     { return "point" }
func (customPointHandler) Version() int         { return 1 }
func (customPointHandler) IsClearRequired() bool { return false }

func (customPointHandler) Serialize(w *Writer, instance any, ctx *SerializationContext) error {
	p := instance.(point)
	w.ArrayStart()
	w.WriteInt64(int64(p.X))
	w.WriteInt64(int64(p.Y))
	w.ArrayEnd()
	return nil
}

func (customPointHandler) Deserialize(r *Reader, ctx *SerializationContext) (any, error) {
	if err := r.ArrayStart(); err != nil {
		return nil, err
	}
	x, err := r.ReadInt64()
	if err != nil {
		return nil, err
	}
	y, err := r.ReadInt64()
	if err != nil {
		return nil, err
	}
	if err := r.ArrayEnd(); err != nil {
		return nil, err
	}
	return point{X: int(x), Y: int(y)}, nil
}

func (customPointHandler) Clone(instance any, ctx *SerializationContext) (any, error) {
	return instance, nil
}

func (customPointHandler) Clear(instance any, ctx *SerializationContext) error { return nil }

func TestSerializer_CycleCheckCatchesHandlerInducedCycle(t *testing.T) {
	known := NewKnownSerializers()
	known.RegisterFunc("github.com/corepipeio/corepipe/serialization.cyclicNode", cyclicHandler{})
	s := New(known, WithCycleCheck())

	a := &cyclicNode{Name: "a"}
	b := &cyclicNode{Name: "b"}
	a.Next = b
	b.Next = a // a genuine cycle, which EnterReference should detect.

	_, err := s.Serialize(a)
	require.ErrorContains(t, err, "cycle")
}

type cyclicNode struct {
	Name string
	Next *cyclicNode
}

// cyclicHandler threads every nested instance through EnterReference, the
// contract a Handler that cross-links instances must follow for
// WithCycleCheck to see the graph it builds.
type cyclicHandler struct{}

func (cyclicHandler) TypeName() string     { return "cyclic" }
func (cyclicHandler) Version() int         { return 1 }
func (cyclicHandler) IsClearRequired() bool { return false }

func (h cyclicHandler) Serialize(w *Writer, instance any, ctx *SerializationContext) error {
	n := instance.(*cyclicNode)
	return ctx.EnterReference(n, func() error {
		w.ObjectStart()
		w.Key("Name")
		w.WriteString(n.Name)
		if n.Next != nil {
			if err := h.Serialize(w, n.Next, ctx); err != nil {
				return err
			}
		}
		w.ObjectEnd()
		return nil
	})
}

func (cyclicHandler) Deserialize(r *Reader, ctx *SerializationContext) (any, error) {
	return nil, nil
}

func (cyclicHandler) Clone(instance any, ctx *SerializationContext) (any, error) {
	return instance, nil
}

func (cyclicHandler) Clear(instance any, ctx *SerializationContext) error { return nil }
