package sweep

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// InteriorTargets returns the n−2 interior points of an n-point even spacing
// from low to high, endpoints excluded.
func InteriorTargets(low, high float64, n int) []float64 {
	if n <= 2 {
		return nil
	}
	all := make([]float64, n)
	floats.Span(all, low, high)
	return all[1 : n-1]
}

// RunDirName names the run directory of one oracle invocation:
// <tag>_eps_NONE for the unconstrained run, <tag>_eps_<cap to 2 decimals>
// otherwise.
func RunDirName(tag string, eps *float64) string {
	if eps == nil {
		return tag + "_eps_NONE"
	}
	return fmt.Sprintf("%s_eps_%.2f", tag, *eps)
}

// runDirs hands out run directory names that are unique within one sweep.
// Two caps that round to the same two decimals get a numeric suffix.
type runDirs struct {
	used map[string]int
}

func newRunDirs() *runDirs {
	return &runDirs{used: make(map[string]int)}
}

func (r *runDirs) next(tag string, eps *float64) string {
	name := RunDirName(tag, eps)
	n := r.used[name]
	r.used[name] = n + 1
	if n == 0 {
		return name
	}
	return fmt.Sprintf("%s_%d", name, n+1)
}
