// Package core defines the vehicle domain model: car state, actions,
// obstacles and the one-step kinematic transition used by both the planner
// and the analytic simulation back-end.
package core

import (
	"math"

	"github.com/golang/geo/r2"
)

// Action is a normalized 2-D control command.
// Steering is always in [-1, 1]. Throttle is [0, 1] inside planner rollouts
// and [-1, 1] at the actuator boundary; clamping happens at that boundary.
type Action struct {
	Steering float64
	Throttle float64
}

// Bounded clamps both components to the actuator domain [-1, 1].
func (a Action) Bounded() Action {
	return Action{
		Steering: Clamp(a.Steering, -1.0, 1.0),
		Throttle: Clamp(a.Throttle, -1.0, 1.0),
	}
}

// Finite reports whether both components are finite numbers.
func (a Action) Finite() bool {
	return !math.IsNaN(a.Steering) && !math.IsInf(a.Steering, 0) &&
		!math.IsNaN(a.Throttle) && !math.IsInf(a.Throttle, 0)
}

// CarState is an immutable snapshot of the vehicle pose and speed.
// Yaw is normalized to (-pi, pi].
type CarState struct {
	X     float64
	Y     float64
	Yaw   float64
	Speed float64
}

// Position returns the planar position of the state.
func (s CarState) Position() r2.Point {
	return r2.Point{X: s.X, Y: s.Y}
}

// DistanceTo returns the Euclidean distance from the state to a point.
func (s CarState) DistanceTo(p r2.Point) float64 {
	return math.Hypot(p.X-s.X, p.Y-s.Y)
}

// Obstacle is a static axis-aligned box in the plane. BodyID is an opaque
// handle into whatever world back-end created the box.
type Obstacle struct {
	Center r2.Point
	Half   r2.Point
	BodyID int
}

// Contains reports whether p lies inside the box grown by margin on each side.
func (o Obstacle) Contains(p r2.Point, margin float64) bool {
	return math.Abs(p.X-o.Center.X) <= o.Half.X+margin &&
		math.Abs(p.Y-o.Center.Y) <= o.Half.Y+margin
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// WrapAngle normalizes an angle to (-pi, pi].
func WrapAngle(angle float64) float64 {
	wrapped := math.Mod(angle, 2.0*math.Pi)
	if wrapped > math.Pi {
		wrapped -= 2.0 * math.Pi
	} else if wrapped <= -math.Pi {
		wrapped += 2.0 * math.Pi
	}
	return wrapped
}
