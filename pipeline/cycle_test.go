package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasCycle_Tree(t *testing.T) {
	a := &Pipeline{name: "a"}
	b := &Pipeline{name: "b"}
	c := &Pipeline{name: "c"}
	deps := map[*Pipeline][]*Pipeline{
		a: {b, c},
		b: {},
		c: {},
	}
	require.False(t, hasCycle(deps))
}

func TestHasCycle_DirectCycle(t *testing.T) {
	a := &Pipeline{name: "a"}
	b := &Pipeline{name: "b"}
	deps := map[*Pipeline][]*Pipeline{
		a: {b},
		b: {a},
	}
	require.True(t, hasCycle(deps))
}

func TestHasCycle_SelfLoop(t *testing.T) {
	a := &Pipeline{name: "a"}
	deps := map[*Pipeline][]*Pipeline{
		a: {a},
	}
	require.True(t, hasCycle(deps))
}
