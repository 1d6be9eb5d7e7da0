package sweep

import (
	"sort"

	"github.com/MikeSquared-Agency/Pareto/internal/store"
)

// SortByEmissions orders points by ascending emissions. Points with equal
// emissions keep their run order.
func SortByEmissions(points []store.Point) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].TotalEmissions < points[j].TotalEmissions
	})
}

// NonDominated returns the points no other point dominates, in input order.
// A point dominates another if its emissions are no higher and its welfare is
// no lower, and it is strictly better in at least one of the two.
// O(n^2), frontiers hold a handful of points.
func NonDominated(points []store.Point) []store.Point {
	if len(points) <= 1 {
		return points
	}

	var out []store.Point
	for i := range points {
		dominated := false
		for j := range points {
			if i == j {
				continue
			}
			if dominates(points[j], points[i]) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, points[i])
		}
	}
	return out
}

func dominates(a, b store.Point) bool {
	if a.TotalEmissions > b.TotalEmissions || a.SocialWelfare < b.SocialWelfare {
		return false
	}
	return a.TotalEmissions < b.TotalEmissions || a.SocialWelfare > b.SocialWelfare
}

// NormalizedWelfare divides each point's welfare by the frontier's maximum.
// ok is false when the maximum is not positive.
func NormalizedWelfare(points []store.Point) (norm []float64, ok bool) {
	if len(points) == 0 {
		return nil, false
	}
	best := points[0].SocialWelfare
	for _, p := range points[1:] {
		if p.SocialWelfare > best {
			best = p.SocialWelfare
		}
	}
	if best <= 0 {
		return nil, false
	}
	norm = make([]float64, len(points))
	for i, p := range points {
		norm[i] = p.SocialWelfare / best
	}
	return norm, true
}
