package core

import (
	"math"

	"github.com/golang/geo/r2"
)

// GoalRadius is the arrival threshold shared by the planner reward, the
// terminal predicate and the run loop's goal latch.
const GoalRadius = 0.6

// Reward shaping constants for the one-step transition.
const (
	throttleGain     = 4.0
	dragCoefficient  = 1.25
	controlPenalty   = 0.02
	collisionPenalty = 2.5
	goalBonus        = 1.5
)

const minWheelBase = 1.0e-6

// Model is the pure one-step bicycle transition. It holds only constants;
// every call produces a fresh state and has no side effects.
type Model struct {
	DT              float64
	MaxSpeed        float64
	MaxSteerRad     float64
	WheelBase       float64
	CollisionMargin float64
}

// Transition advances state by one step under action and returns the next
// state, the shaped reward and whether the transition is terminal.
func (m Model) Transition(s CarState, a Action, goal r2.Point, obstacles []Obstacle) (CarState, float64, bool) {
	steering := Clamp(a.Steering, -1.0, 1.0)
	throttle := Clamp(a.Throttle, 0.0, 1.0)

	accel := throttleGain*throttle - dragCoefficient*s.Speed
	speed := Clamp(s.Speed+accel*m.DT, 0.0, m.MaxSpeed)
	yawRate := 0.0
	if math.Abs(m.WheelBase) > minWheelBase {
		yawRate = (speed / m.WheelBase) * math.Tan(steering*m.MaxSteerRad)
	}
	yaw := WrapAngle(s.Yaw + yawRate*m.DT)
	next := CarState{
		X:     s.X + speed*math.Cos(yaw)*m.DT,
		Y:     s.Y + speed*math.Sin(yaw)*m.DT,
		Yaw:   yaw,
		Speed: speed,
	}

	distBefore := s.DistanceTo(goal)
	distAfter := next.DistanceTo(goal)
	reward := distBefore - distAfter
	reward -= controlPenalty * (steering*steering + throttle*throttle)
	collided := m.IsCollision(next, obstacles)
	if collided {
		reward -= collisionPenalty
	}
	if distAfter < GoalRadius {
		reward += goalBonus
	}

	done := collided || distAfter < GoalRadius
	return next, reward, done
}

// IsCollision reports whether the state is inside any obstacle grown by the
// model's collision margin.
func (m Model) IsCollision(s CarState, obstacles []Obstacle) bool {
	pos := s.Position()
	for _, o := range obstacles {
		if o.Contains(pos, m.CollisionMargin) {
			return true
		}
	}
	return false
}

// IsGoal reports whether the state is within the goal radius.
func (m Model) IsGoal(s CarState, goal r2.Point) bool {
	return s.DistanceTo(goal) < GoalRadius
}
