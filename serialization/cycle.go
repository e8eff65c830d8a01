package serialization

import (
	cycle "github.com/joeycumines/go-detect-cycle/floyds"
)

// hasCycle reports whether deps, a map of instance to the instances it
// directly references, contains a cycle. Specialization of the teacher's
// generic dependencyCycle helper (sql/export/collection.go) to `any` nodes,
// reused a second time here (see pipeline.hasCycle for the *Pipeline
// specialization) for WithCycleCheck's diagnostic pass over a single
// Serialize call's reference graph.
func hasCycle(deps map[any][]any) bool {
	var check func(k any, f cycle.BranchingDetector) bool
	check = func(k any, f cycle.BranchingDetector) bool {
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
