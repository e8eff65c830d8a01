package scheduler

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCancelController_FiresOnce(t *testing.T) {
	c := NewCancelController()
	sig := c.Signal()
	require.False(t, sig.Canceled())

	var calls int
	var mu sync.Mutex
	sig.OnCancel(func(reason error) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	c.Cancel(errors.New("boom"))
	c.Cancel(errors.New("again")) // no-op

	require.True(t, sig.Canceled())
	require.EqualError(t, sig.Err(), "boom")
	mu.Lock()
	require.Equal(t, 1, calls)
	mu.Unlock()
}

func TestCancelController_DefaultReason(t *testing.T) {
	c := NewCancelController()
	c.Cancel(nil)
	require.Equal(t, ErrCanceled, c.Signal().Err())
}

func TestCancelSignal_OnCancel_AfterFire(t *testing.T) {
	c := NewCancelController()
	c.Cancel(errors.New("done"))

	called := make(chan error, 1)
	c.Signal().OnCancel(func(reason error) { called <- reason })

	select {
	case reason := <-called:
		require.EqualError(t, reason, "done")
	default:
		t.Fatal("handler registered after fire should run immediately")
	}
}

func TestCancelAny_FiresOnFirst(t *testing.T) {
	a := NewCancelController()
	b := NewCancelController()
	composite := CancelAny([]*CancelSignal{a.Signal(), b.Signal()})
	require.False(t, composite.Canceled())

	b.Cancel(errors.New("b failed"))
	require.True(t, composite.Canceled())
	require.EqualError(t, composite.Err(), "b failed")
}

func TestCancelAny_AlreadyCanceled(t *testing.T) {
	a := NewCancelController()
	a.Cancel(errors.New("already"))
	composite := CancelAny([]*CancelSignal{a.Signal()})
	require.True(t, composite.Canceled())
}

func TestCancelAny_Empty(t *testing.T) {
	composite := CancelAny(nil)
	require.False(t, composite.Canceled())
}
