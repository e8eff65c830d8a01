package ptime

// Endpoint is one bound of a TimeInterval: a point in time, whether it
// constrains the interval at all (Bounded), and whether the point itself is
// included (Inclusive).
type Endpoint struct {
	Point     Time
	Bounded   bool
	Inclusive bool
}

// RelativeEndpoint is the RelativeTimeInterval analogue of Endpoint, with
// Point expressed as an offset (TimeSpan) from an as-yet-unknown origin.
type RelativeEndpoint struct {
	Point     TimeSpan
	Bounded   bool
	Inclusive bool
}

// TimeInterval is an ordered pair of absolute endpoints. The zero value is
// not a valid interval; use Empty, NewInterval, or Unbounded.
type TimeInterval struct {
	Left, Right Endpoint
	empty       bool
}

// Empty is the distinguished empty interval: contains no points.
var Empty = TimeInterval{empty: true}

// Unbounded is the interval containing all of Time, (-inf, +inf).
var Unbounded = TimeInterval{
	Left:  Endpoint{Point: MinTime, Bounded: false},
	Right: Endpoint{Point: MaxTime, Bounded: false},
}

// NewInterval constructs a closed-or-open bounded interval between left and
// right (both Bounded). Inclusivity is per the supplied flags.
func NewInterval(left Time, leftInclusive bool, right Time, rightInclusive bool) TimeInterval {
	return TimeInterval{
		Left:  Endpoint{Point: left, Bounded: true, Inclusive: leftInclusive},
		Right: Endpoint{Point: right, Bounded: true, Inclusive: rightInclusive},
	}
}

// LeftBounded constructs [left, +inf) or (left, +inf).
func LeftBounded(left Time, inclusive bool) TimeInterval {
	return TimeInterval{
		Left:  Endpoint{Point: left, Bounded: true, Inclusive: inclusive},
		Right: Endpoint{Point: MaxTime, Bounded: false},
	}
}

// RightBounded constructs (-inf, right] or (-inf, right).
func RightBounded(right Time, inclusive bool) TimeInterval {
	return TimeInterval{
		Left:  Endpoint{Point: MinTime, Bounded: false},
		Right: Endpoint{Point: right, Bounded: true, Inclusive: inclusive},
	}
}

// IsEmpty reports whether this is the distinguished empty interval.
func (iv TimeInterval) IsEmpty() bool { return iv.empty }

// Span returns Right - Left, or MaxSpan if either endpoint is unbounded.
func (iv TimeInterval) Span() TimeSpan {
	if iv.empty {
		return 0
	}
	if !iv.Left.Bounded || !iv.Right.Bounded {
		return MaxSpan
	}
	return iv.Right.Point.Sub(iv.Left.Point)
}

// IsNegative reports whether the interval is inverted (Right < Left), which
// is only possible when both endpoints are bounded.
func (iv TimeInterval) IsNegative() bool {
	if iv.empty || !iv.Left.Bounded || !iv.Right.Bounded {
		return false
	}
	return iv.Right.Point < iv.Left.Point
}

// Contains reports whether t lies within the interval, honoring
// inclusivity and unboundedness of each endpoint.
func (iv TimeInterval) Contains(t Time) bool {
	if iv.empty || iv.IsNegative() {
		return false
	}
	if iv.Left.Bounded {
		if iv.Left.Inclusive {
			if t < iv.Left.Point {
				return false
			}
		} else if t <= iv.Left.Point {
			return false
		}
	}
	if iv.Right.Bounded {
		if iv.Right.Inclusive {
			if t > iv.Right.Point {
				return false
			}
		} else if t >= iv.Right.Point {
			return false
		}
	}
	return true
}

// RelativeTimeInterval is a TimeInterval anchored to a not-yet-known origin
// (typically the target time of an interpolator query), used to describe
// fixed windows such as "[-200ms, +200ms] around t".
type RelativeTimeInterval struct {
	Left, Right RelativeEndpoint
	empty       bool
}

// EmptyRelative is the distinguished empty RelativeTimeInterval.
var EmptyRelative = RelativeTimeInterval{empty: true}

// NewRelativeInterval constructs a bounded relative interval.
func NewRelativeInterval(left TimeSpan, leftInclusive bool, right TimeSpan, rightInclusive bool) RelativeTimeInterval {
	return RelativeTimeInterval{
		Left:  RelativeEndpoint{Point: left, Bounded: true, Inclusive: leftInclusive},
		Right: RelativeEndpoint{Point: right, Bounded: true, Inclusive: rightInclusive},
	}
}

// LeftBoundedRelative constructs [left, +inf) or (left, +inf), relative.
func LeftBoundedRelative(left TimeSpan, inclusive bool) RelativeTimeInterval {
	return RelativeTimeInterval{
		Left:  RelativeEndpoint{Point: left, Bounded: true, Inclusive: inclusive},
		Right: RelativeEndpoint{Point: MaxSpan, Bounded: false},
	}
}

// RightBoundedRelative constructs (-inf, right] or (-inf, right), relative.
func RightBoundedRelative(right TimeSpan, inclusive bool) RelativeTimeInterval {
	return RelativeTimeInterval{
		Left:  RelativeEndpoint{Point: MinSpan, Bounded: false},
		Right: RelativeEndpoint{Point: right, Bounded: true, Inclusive: inclusive},
	}
}

// UnboundedRelative is the relative interval containing every offset.
var UnboundedRelative = RelativeTimeInterval{
	Left:  RelativeEndpoint{Point: MinSpan, Bounded: false},
	Right: RelativeEndpoint{Point: MaxSpan, Bounded: false},
}

// IsEmpty reports whether this is the distinguished empty relative interval.
func (iv RelativeTimeInterval) IsEmpty() bool { return iv.empty }

// IsLeftBounded reports whether the left endpoint constrains the window,
// i.e. whether a First selector may legally be built from this window (see
// spec: "First requires a left-bounded window").
func (iv RelativeTimeInterval) IsLeftBounded() bool { return iv.Left.Bounded }

// ToAbsolute resolves the interval relative to origin into an absolute
// TimeInterval.
func (iv RelativeTimeInterval) ToAbsolute(origin Time) TimeInterval {
	if iv.empty {
		return Empty
	}
	out := TimeInterval{
		Left:  Endpoint{Bounded: iv.Left.Bounded, Inclusive: iv.Left.Inclusive, Point: MinTime},
		Right: Endpoint{Bounded: iv.Right.Bounded, Inclusive: iv.Right.Inclusive, Point: MaxTime},
	}
	if iv.Left.Bounded {
		out.Left.Point = origin.Add(iv.Left.Point)
	}
	if iv.Right.Bounded {
		out.Right.Point = origin.Add(iv.Right.Point)
	}
	return out
}
