package sim

import (
	"math"

	"github.com/golang/geo/r2"

	"github.com/elektrokombinacija/racecar-bt-research/internal/core"
)

// castRay returns the distance from origin along angle to the nearest
// obstacle face, capped at length. Slab test against each axis-aligned box.
func castRay(origin r2.Point, angle, length float64, obstacles []core.Obstacle) float64 {
	dir := r2.Point{X: math.Cos(angle), Y: math.Sin(angle)}
	nearest := length
	for _, o := range obstacles {
		if t, hit := raySlab(origin, dir, o, length); hit && t < nearest {
			nearest = t
		}
	}
	return nearest
}

func raySlab(origin, dir r2.Point, o core.Obstacle, length float64) (float64, bool) {
	tMin, tMax := 0.0, length

	for axis := 0; axis < 2; axis++ {
		var p, d, lo, hi float64
		if axis == 0 {
			p, d = origin.X, dir.X
			lo, hi = o.Center.X-o.Half.X, o.Center.X+o.Half.X
		} else {
			p, d = origin.Y, dir.Y
			lo, hi = o.Center.Y-o.Half.Y, o.Center.Y+o.Half.Y
		}
		if math.Abs(d) < 1.0e-12 {
			if p < lo || p > hi {
				return 0, false
			}
			continue
		}
		t1 := (lo - p) / d
		t2 := (hi - p) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tMin {
			tMin = t1
		}
		if t2 < tMax {
			tMax = t2
		}
		if tMin > tMax {
			return 0, false
		}
	}
	return tMin, true
}
