package runtime

import "gonum.org/v1/gonum/stat"

// StopReason explains why the loop exited.
type StopReason string

const (
	ReasonMaxTicks      StopReason = "max_ticks"
	ReasonGoal          StopReason = "goal"
	ReasonStopRequested StopReason = "stop_requested"
	ReasonCancelled     StopReason = "cancelled"
)

// Summary aggregates one run.
type Summary struct {
	RunID           string     `json:"run_id"`
	Mode            Mode       `json:"mode"`
	Ticks           int        `json:"ticks"`
	CollisionsTotal int        `json:"collisions_total"`
	GoalReached     bool       `json:"goal_reached"`
	GoalTick        int        `json:"goal_tick"`
	Fallbacks       int        `json:"fallbacks"`
	Reason          StopReason `json:"reason"`

	TickWallMeanMS      float64 `json:"tick_wall_mean_ms"`
	PlannerTimeMeanMS   float64 `json:"planner_time_mean_ms"`
	PlannerTimeMaxMS    float64 `json:"planner_time_max_ms"`
	PlannerConfMean     float64 `json:"planner_confidence_mean"`
	MinDistanceToGoal   float64 `json:"min_distance_to_goal"`
	FinalDistanceToGoal float64 `json:"final_distance_to_goal"`
}

// meanOf guards gonum against empty samples.
func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	best := xs[0]
	for _, x := range xs[1:] {
		if x > best {
			best = x
		}
	}
	return best
}
