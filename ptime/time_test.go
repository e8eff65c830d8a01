package ptime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromTime_RoundTrip(t *testing.T) {
	in := time.Date(2024, 3, 1, 12, 30, 0, 123400, time.UTC)
	got := FromTime(in)
	require.Equal(t, in, got.Time())
}

func TestTime_Add_Sentinel(t *testing.T) {
	require.Equal(t, MinTime, MinTime.Add(1000))
	require.Equal(t, MaxTime, MaxTime.Add(-1000))
}

func TestTime_Sub_Sentinel(t *testing.T) {
	require.Equal(t, MaxSpan, MaxTime.Sub(0))
	require.Equal(t, MinSpan, MinTime.Sub(0))
	require.Equal(t, MinSpan, Time(0).Sub(MaxTime))
}

func TestTime_Ordering(t *testing.T) {
	require.True(t, Time(1).Before(Time(2)))
	require.True(t, Time(2).After(Time(1)))
	require.False(t, Time(1).After(Time(1)))
}

func TestTimeSpan_Duration_RoundTrip(t *testing.T) {
	d := 3500 * time.Millisecond
	s := FromDuration(d)
	require.Equal(t, d, s.Duration())
	require.InDelta(t, 3.5, s.Seconds(), 0.0001)
}

func TestTime_String_Sentinels(t *testing.T) {
	require.Equal(t, "-inf", MinTime.String())
	require.Equal(t, "+inf", MaxTime.String())
}
