package ptime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewClock_RejectsNonPositiveSpeed(t *testing.T) {
	_, err := NewClock(0, time.Now(), 0)
	require.Error(t, err)

	_, err = NewClock(0, time.Now(), -1)
	require.Error(t, err)
}

func TestClock_ToVirtual_RealTime(t *testing.T) {
	origin := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c, err := NewClock(1000, origin, 1)
	require.NoError(t, err)

	later := origin.Add(1 * time.Second)
	got := c.ToVirtual(later)
	require.Equal(t, Time(1000+int64(time.Second/100)), got)
}

func TestClock_ToVirtual_DoubleSpeed(t *testing.T) {
	origin := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c, err := NewClock(0, origin, 2)
	require.NoError(t, err)

	later := origin.Add(1 * time.Second)
	got := c.ToVirtual(later)
	require.Equal(t, Time(2*int64(time.Second/100)), got)
}

func TestClock_ToReal_Inverse(t *testing.T) {
	origin := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c, err := NewClock(500, origin, 3)
	require.NoError(t, err)

	virtual := Time(500 + 3*int64(time.Second/100))
	got := c.ToReal(virtual)
	require.WithinDuration(t, origin.Add(1*time.Second), got, time.Microsecond)
}

func TestClock_SetSpeedFactor_NoDiscontinuity(t *testing.T) {
	c := RealTimeClock()
	before := c.Now()
	err := c.SetSpeedFactor(5)
	require.NoError(t, err)
	after := c.Now()
	require.True(t, int64(after) >= int64(before))
}

func TestClock_SetSpeedFactor_RejectsNonPositive(t *testing.T) {
	c := RealTimeClock()
	require.Error(t, c.SetSpeedFactor(0))
	require.Error(t, c.SetSpeedFactor(-2))
}
