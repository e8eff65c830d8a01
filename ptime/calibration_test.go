package ptime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTickCalibration_MonotonicConversion(t *testing.T) {
	c := NewTickCalibration(16, 0, 0)
	require.True(t, c.Calibrate(100, 1000, 0))
	require.True(t, c.Calibrate(200, 2000, 0))

	// strictly increasing inputs map to non-decreasing outputs
	var prev Time
	first := true
	for _, q := range []uint64{50, 100, 150, 200, 250, 1000} {
		out := c.Convert(q)
		if !first {
			require.GreaterOrEqual(t, int64(out), int64(prev))
		}
		prev = out
		first = false
	}
}

func TestTickCalibration_RepeatedConversionIdentical(t *testing.T) {
	c := NewTickCalibration(16, 0, 0)
	require.True(t, c.Calibrate(100, 1000, 0))
	a := c.Convert(150)
	b := c.Convert(150)
	require.Equal(t, a, b)
}

func TestTickCalibration_BackwardJumpClamped(t *testing.T) {
	c := NewTickCalibration(16, 0, 0)
	require.True(t, c.Calibrate(100, 1000, 0))
	first := c.Convert(200) // extrapolated forward

	// a regressed sample for a nearby counter must not cause Convert to
	// regress for counters at or after what's already been observed.
	require.True(t, c.Calibrate(150, 900, 0))
	second := c.Convert(200)
	require.GreaterOrEqual(t, int64(second), int64(first))
}

func TestTickCalibration_MinTicksAdmission(t *testing.T) {
	c := NewTickCalibration(16, 1000, 0)
	require.True(t, c.Calibrate(0, 0, 0))
	require.False(t, c.Calibrate(500, 500, 0)) // too soon
	require.True(t, c.Calibrate(1500, 1500, 0))
	require.Equal(t, 2, c.Len())
}

func TestTickCalibration_ToleranceRejection(t *testing.T) {
	c := NewTickCalibration(16, 0, 5)
	require.True(t, c.Calibrate(0, 0, 0))
	require.False(t, c.Calibrate(100, 100, 6))
	require.True(t, c.Calibrate(200, 200, 5))
}

func TestTickCalibration_BoundedRetention(t *testing.T) {
	c := NewTickCalibration(4, 0, 0)
	for i := uint64(0); i < 20; i++ {
		require.True(t, c.Calibrate(i*10, Time(i*10), 0))
	}
	require.LessOrEqual(t, c.Len(), 4)
}
