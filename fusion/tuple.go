package fusion

// Tuple2 through Tuple7 are the flattened output shapes for chained fusion
// operators: when a Fuse's output is itself a tuple and the result feeds a
// further Fuse, AppendTupleN grows it by one field instead of nesting a new
// pair, so (((a, b), c), d) becomes Tuple4{a, b, c, d}.
type Tuple2[A, B any] struct {
	V1 A
	V2 B
}

type Tuple3[A, B, C any] struct {
	V1 A
	V2 B
	V3 C
}

type Tuple4[A, B, C, D any] struct {
	V1 A
	V2 B
	V3 C
	V4 D
}

type Tuple5[A, B, C, D, E any] struct {
	V1 A
	V2 B
	V3 C
	V4 D
	V5 E
}

type Tuple6[A, B, C, D, E, F any] struct {
	V1 A
	V2 B
	V3 C
	V4 D
	V5 E
	V6 F
}

type Tuple7[A, B, C, D, E, F, G any] struct {
	V1 A
	V2 B
	V3 C
	V4 D
	V5 E
	V6 F
	V7 G
}

// AppendTuple2 flattens a Tuple2 plus one more value into a Tuple3.
func AppendTuple2[A, B, C any](t Tuple2[A, B], v C) Tuple3[A, B, C] {
	return Tuple3[A, B, C]{t.V1, t.V2, v}
}

// AppendTuple3 flattens a Tuple3 plus one more value into a Tuple4.
func AppendTuple3[A, B, C, D any](t Tuple3[A, B, C], v D) Tuple4[A, B, C, D] {
	return Tuple4[A, B, C, D]{t.V1, t.V2, t.V3, v}
}

// AppendTuple4 flattens a Tuple4 plus one more value into a Tuple5.
func AppendTuple4[A, B, C, D, E any](t Tuple4[A, B, C, D], v E) Tuple5[A, B, C, D, E] {
	return Tuple5[A, B, C, D, E]{t.V1, t.V2, t.V3, t.V4, v}
}

// AppendTuple5 flattens a Tuple5 plus one more value into a Tuple6.
func AppendTuple5[A, B, C, D, E, F any](t Tuple5[A, B, C, D, E], v F) Tuple6[A, B, C, D, E, F] {
	return Tuple6[A, B, C, D, E, F]{t.V1, t.V2, t.V3, t.V4, t.V5, v}
}

// AppendTuple6 flattens a Tuple6 plus one more value into a Tuple7, the
// largest arity the tuple-flattening rule covers.
func AppendTuple6[A, B, C, D, E, F, G any](t Tuple6[A, B, C, D, E, F], v G) Tuple7[A, B, C, D, E, F, G] {
	return Tuple7[A, B, C, D, E, F, G]{t.V1, t.V2, t.V3, t.V4, t.V5, t.V6, v}
}
