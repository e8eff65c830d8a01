package pipeline

import (
	cycle "github.com/joeycumines/go-detect-cycle/floyds"
)

// hasCycle reports whether deps, a map of node to its direct dependents,
// contains a cycle. It is the *Pipeline specialization of the teacher's
// generic dependencyCycle helper (sql/export/collection.go), which walks a
// dependency map using a tortoise-and-hare BranchingDetector rather than a
// plain visited-set, so it naturally handles the branching shape of a
// pipeline/subpipeline tree.
func hasCycle(deps map[*Pipeline][]*Pipeline) bool {
	var check func(k *Pipeline, f cycle.BranchingDetector) bool
	check = func(k *Pipeline, f cycle.BranchingDetector) bool {
		for _, v := range deps[k] {
			if func() bool {
				nf := f.Hare(v)
				defer nf.Clear()
				if !f.Ok() {
					return true
				}
				if check(v, nf) {
					return true
				}
				return false
			}() {
				return true
			}
		}
		return false
	}
	for k := range deps {
		if check(k, cycle.NewBranchingDetector(k, nil)) {
			return true
		}
	}
	return false
}
