package bt

import (
	"math"

	"github.com/elektrokombinacija/racecar-bt-research/internal/core"
	"github.com/elektrokombinacija/racecar-bt-research/internal/planner"
)

// The three built-in trees mirror the demo modes: a constant-drive tree, a
// reflex tree that sidesteps obstacles on its way to the goal, and a tree
// that defers steering to the MCTS planner behind the same reflex guard.

// BuildBasic returns a single action node emitting a constant straight-ahead
// drive command.
func BuildBasic(constantThrottle float64) *Node {
	return Action("ApplyConstantDrive", func(ctx *TickContext) Status {
		ctx.BB.SetAction(core.Action{Steering: 0.0, Throttle: constantThrottle})
		return StatusSuccess
	})
}

// BuildObstacleGoal returns the reflex tree: swerve while a collision is
// imminent, otherwise steer toward the goal by heading error.
func BuildObstacleGoal() *Node {
	return Selector("RootSelector",
		Sequence("AvoidBranch",
			Condition("CollisionImminent?", collisionImminent),
			Action("AvoidObstacle", avoidObstacle(0.7, 0.70, 0.15, 0.30, false)),
		),
		Sequence("GoalBranch",
			Action("DriveToGoal", driveToGoal),
		),
	)
}

// BuildPlanner returns the planning tree: the same reflex guard, then a plan
// leaf followed by an apply check.
func BuildPlanner(p *planner.Planner) *Node {
	return Selector("RootSelector",
		Sequence("AvoidBranch",
			Condition("CollisionImminent?", collisionImminent),
			Action("AvoidObstacle", avoidObstacle(0.8, 0.80, 0.12, 0.30, true)),
		),
		Sequence("PlannerBranch",
			Plan("PlanActionNode", p),
			Action("ApplyAction", applyPlannedAction),
		),
	)
}

func collisionImminent(ctx *TickContext) bool {
	return ctx.BB.CollisionImminent
}

// avoidObstacle steers toward the side with more summed ray clearance and
// slows down near obstacles. Planner trees also clear any stale planner
// result so telemetry does not report a plan that was overridden.
func avoidObstacle(steer, slowDist, slowThrottle, cruiseThrottle float64, clearPlanner bool) Effect {
	return func(ctx *TickContext) Status {
		bb := ctx.BB
		distances := bb.RayDistances
		angles := bb.RayAnglesDeg
		if len(distances) == 0 || len(angles) == 0 || len(distances) != len(angles) {
			bb.SetAction(core.Action{})
			return StatusFailure
		}

		leftClearance, rightClearance := 0.0, 0.0
		minDist := distances[0]
		for i, d := range distances {
			if angles[i] > 0 {
				leftClearance += d
			} else if angles[i] < 0 {
				rightClearance += d
			}
			if d < minDist {
				minDist = d
			}
		}

		steering := steer
		if leftClearance < rightClearance {
			steering = -steer
		}
		throttle := cruiseThrottle
		if minDist < slowDist {
			throttle = slowThrottle
		}
		bb.SetAction(core.Action{Steering: steering, Throttle: throttle})
		if clearPlanner {
			bb.PlannerResult = nil
		}
		return StatusSuccess
	}
}

func driveToGoal(ctx *TickContext) Status {
	bb := ctx.BB
	dx := bb.GoalXY.X - bb.State.X
	dy := bb.GoalXY.Y - bb.State.Y
	distance := math.Hypot(dx, dy)
	headingError := core.WrapAngle(math.Atan2(dy, dx) - bb.State.Yaw)
	steering := core.Clamp(1.4*headingError, -1.0, 1.0)
	throttle := 0.0
	if distance >= core.GoalRadius {
		throttle = core.Clamp(0.25+0.25*distance, 0.0, 0.75)
	}
	bb.SetAction(core.Action{Steering: steering, Throttle: throttle})
	return StatusSuccess
}

func applyPlannedAction(ctx *TickContext) Status {
	if ctx.BB.Action == nil {
		return StatusFailure
	}
	return StatusSuccess
}
