package fusion

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/streams"
)

func sampleBuffer(t *testing.T) []streams.Message[int] {
	t.Helper()
	return []streams.Message[int]{
		{Data: 1, OriginatingTime: ptime.Time(10)},
		{Data: 2, OriginatingTime: ptime.Time(20)},
		{Data: 3, OriginatingTime: ptime.Time(30)},
	}
}

func TestInterpolator_ReproducibleNearest_UnboundedWindow(t *testing.T) {
	it, err := ReproducibleNearest[int](ptime.UnboundedRelative)
	require.NoError(t, err)
	buf := sampleBuffer(t)

	res := it.Interpolate(ptime.Time(26), buf, nil)
	require.Equal(t, Created, res.Kind)
	require.Equal(t, 3, res.Value)
	require.Equal(t, ptime.Time(20), res.ObsoleteTime)

	closedAt := ptime.Time(40)
	res2 := it.Interpolate(ptime.Time(26), buf, &closedAt)
	require.Equal(t, Created, res2.Kind)
	require.Equal(t, 3, res2.Value)
}

func TestInterpolator_ReproducibleFirst_LeftBoundedWindowRequired(t *testing.T) {
	_, err := ReproducibleFirst[int](ptime.RightBoundedRelative(0, true))
	require.Error(t, err)
}

func TestInterpolator_ReproducibleFirst_DoesNotExist(t *testing.T) {
	it, err := ReproducibleFirst[int](ptime.NewRelativeInterval(ptime.MinSpan, true, 0, true))
	require.NoError(t, err)
	buf := sampleBuffer(t)

	res := it.Interpolate(ptime.Time(9), buf, nil)
	require.Equal(t, DoesNotExist, res.Kind)
	require.Equal(t, ptime.MinTime, res.ObsoleteTime)
}

func TestInterpolator_AvailableNearest_DoesNotWaitForRightEdge(t *testing.T) {
	it, err := AvailableNearest[int](ptime.NewRelativeInterval(-5, true, 5, true))
	require.NoError(t, err)
	buf := []streams.Message[int]{{Data: 1, OriginatingTime: ptime.Time(10)}}

	res := it.Interpolate(ptime.Time(10), buf, nil)
	require.Equal(t, Created, res.Kind)
	require.Equal(t, 1, res.Value)
}

func TestInterpolator_Reproducible_WaitsForRightEdge(t *testing.T) {
	it, err := ReproducibleNearest[int](ptime.NewRelativeInterval(-5, true, 5, true))
	require.NoError(t, err)
	buf := []streams.Message[int]{{Data: 1, OriginatingTime: ptime.Time(10)}}

	// window right edge is t+5=15, but buffer's last message is at 10: not
	// enough right-side data yet, and stream not closed.
	res := it.Interpolate(ptime.Time(10), buf, nil)
	require.Equal(t, InsufficientData, res.Kind)

	closedAt := ptime.Time(12)
	res2 := it.Interpolate(ptime.Time(10), buf, &closedAt)
	require.Equal(t, Created, res2.Kind)
}

func TestInterpolator_Exact_RequiresExactMatch(t *testing.T) {
	it, err := ReproducibleExact[int](ptime.UnboundedRelative)
	require.NoError(t, err)
	buf := sampleBuffer(t)

	closedAt := ptime.Time(100)
	res := it.Interpolate(ptime.Time(20), buf, &closedAt)
	require.Equal(t, Created, res.Kind)
	require.Equal(t, 2, res.Value)

	res2 := it.Interpolate(ptime.Time(25), buf, &closedAt)
	require.Equal(t, DoesNotExist, res2.Kind)
}

func TestInterpolator_Linear_InterpolatesBetweenAnchors(t *testing.T) {
	lerp := func(before, after streams.Message[int], t ptime.Time) int {
		span := after.OriginatingTime.Sub(before.OriginatingTime)
		frac := float64(t.Sub(before.OriginatingTime)) / float64(span)
		return before.Data + int(frac*float64(after.Data-before.Data))
	}
	it := NewLinear(ptime.UnboundedRelative, lerp)
	buf := sampleBuffer(t)

	closedAt := ptime.Time(100)
	res := it.Interpolate(ptime.Time(25), buf, &closedAt)
	require.Equal(t, Created, res.Kind)
	require.Equal(t, 2, res.Value) // halfway between 2 (at 20) and 3 (at 30)
}

func TestInterpolator_Linear_MissingAnchor_DoesNotExist(t *testing.T) {
	lerp := func(before, after streams.Message[int], t ptime.Time) int { return 0 }
	it := NewLinear(ptime.UnboundedRelative, lerp)
	buf := sampleBuffer(t)

	closedAt := ptime.Time(100)
	res := it.Interpolate(ptime.Time(5), buf, &closedAt) // before every anchor
	require.Equal(t, DoesNotExist, res.Kind)
}
