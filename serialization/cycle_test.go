package serialization

import "testing"

func TestHasCycle_DetectsDirectCycle(t *testing.T) {
	a, b := "a", "b"
	deps := map[any][]any{a: {b}, b: {a}}
	if !hasCycle(deps) {
		t.Fatal("expected a cycle to be detected")
	}
}

func TestHasCycle_AcceptsDAG(t *testing.T) {
	a, b, c := "a", "b", "c"
	deps := map[any][]any{a: {b, c}, b: {c}, c: {}}
	if hasCycle(deps) {
		t.Fatal("expected no cycle in a DAG")
	}
}

func TestHasCycle_AcceptsSharedNodeWithoutCycle(t *testing.T) {
	// a and b both point at the same leaf c: a diamond, not a cycle.
	a, b, c := "a", "b", "c"
	deps := map[any][]any{a: {b, c}, b: {c}}
	if hasCycle(deps) {
		t.Fatal("a diamond shape is not a cycle")
	}
}
