// Package telemetry defines the per-tick record schema and the sinks that
// emit validated, newline-delimited JSON. A record that fails validation is
// never written; the producer fails loudly instead.
package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
)

// SchemaVersion tags every record.
const SchemaVersion = "racecar_demo.v1"

// PlannerSchemaVersion tags the optional planner payload.
const PlannerSchemaVersion = "planner.v1"

// StatePayload mirrors the car state as floats.
type StatePayload struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Yaw   float64 `json:"yaw"`
	Speed float64 `json:"speed"`
}

// GoalPayload is the planar goal.
type GoalPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ActionPayload is the post-clamp action applied this tick.
type ActionPayload struct {
	Steering float64 `json:"steering"`
	Throttle float64 `json:"throttle"`
}

// BTPayload is the behavior-tree trace for one tick.
type BTPayload struct {
	Status     string            `json:"status"`
	ActivePath []string          `json:"active_path"`
	NodeStatus map[string]string `json:"node_status"`
}

// TopChoicePayload is one ranked root edge.
type TopChoicePayload struct {
	Action ActionPayload `json:"action"`
	Visits int           `json:"visits"`
	Q      float64       `json:"q"`
}

// PlannerPayload reports planner health, schema planner.v1.
type PlannerPayload struct {
	SchemaVersion string             `json:"schema_version"`
	BudgetMS      float64            `json:"budget_ms"`
	TimeUsedMS    float64            `json:"time_used_ms"`
	Iters         int                `json:"iters"`
	RootVisits    int                `json:"root_visits"`
	RootChildren  int                `json:"root_children"`
	WidenAdded    int                `json:"widen_added"`
	DepthMax      int                `json:"depth_max"`
	DepthMean     float64            `json:"depth_mean"`
	Status        string             `json:"status"`
	Confidence    float64            `json:"confidence"`
	ValueEst      float64            `json:"value_est"`
	Action        ActionPayload      `json:"action"`
	TopK          []TopChoicePayload `json:"top_k"`
}

// Record is one schema-v1 telemetry line. BT and Planner are optional;
// everything else is required.
type Record struct {
	SchemaVersion     string          `json:"schema_version"`
	RunID             string          `json:"run_id"`
	TickIndex         int             `json:"tick_index"`
	SimTimeS          float64         `json:"sim_time_s"`
	WallTimeS         float64         `json:"wall_time_s"`
	Mode              string          `json:"mode"`
	State             StatePayload    `json:"state"`
	Goal              GoalPayload     `json:"goal"`
	DistanceToGoal    float64         `json:"distance_to_goal"`
	CollisionImminent bool            `json:"collision_imminent"`
	Action            ActionPayload   `json:"action"`
	CollisionsTotal   int             `json:"collisions_total"`
	GoalReached       bool            `json:"goal_reached"`
	BT                *BTPayload      `json:"bt,omitempty"`
	Planner           *PlannerPayload `json:"planner,omitempty"`
}

var knownModes = map[string]bool{
	"manual":       true,
	"bt_basic":     true,
	"bt_obstacles": true,
	"bt_planner":   true,
}

// Validate checks the record against the schema contract: version match,
// identity fields present, known mode, and every float finite.
func (r *Record) Validate() error {
	if r.SchemaVersion != SchemaVersion {
		return fmt.Errorf("schema_version %q does not match %q", r.SchemaVersion, SchemaVersion)
	}
	if r.RunID == "" {
		return fmt.Errorf("run_id is empty")
	}
	if r.TickIndex < 1 {
		return fmt.Errorf("tick_index %d is not >= 1", r.TickIndex)
	}
	if !knownModes[r.Mode] {
		return fmt.Errorf("unknown mode %q", r.Mode)
	}
	floats := map[string]float64{
		"sim_time_s":       r.SimTimeS,
		"wall_time_s":      r.WallTimeS,
		"state.x":          r.State.X,
		"state.y":          r.State.Y,
		"state.yaw":        r.State.Yaw,
		"state.speed":      r.State.Speed,
		"goal.x":           r.Goal.X,
		"goal.y":           r.Goal.Y,
		"distance_to_goal": r.DistanceToGoal,
		"action.steering":  r.Action.Steering,
		"action.throttle":  r.Action.Throttle,
	}
	if r.Planner != nil {
		if r.Planner.SchemaVersion != PlannerSchemaVersion {
			return fmt.Errorf("planner.schema_version %q does not match %q", r.Planner.SchemaVersion, PlannerSchemaVersion)
		}
		floats["planner.budget_ms"] = r.Planner.BudgetMS
		floats["planner.time_used_ms"] = r.Planner.TimeUsedMS
		floats["planner.depth_mean"] = r.Planner.DepthMean
		floats["planner.confidence"] = r.Planner.Confidence
		floats["planner.value_est"] = r.Planner.ValueEst
		for _, top := range r.Planner.TopK {
			floats["planner.top_k.q"] = top.Q
			floats["planner.top_k.steering"] = top.Action.Steering
			floats["planner.top_k.throttle"] = top.Action.Throttle
			if err := checkFinite(floats); err != nil {
				return err
			}
		}
	}
	return checkFinite(floats)
}

func checkFinite(fields map[string]float64) error {
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("field %s is not finite", name)
		}
	}
	return nil
}

var requiredFields = []string{
	"schema_version", "run_id", "tick_index", "sim_time_s", "wall_time_s",
	"mode", "state", "goal", "distance_to_goal", "collision_imminent",
	"action", "collisions_total", "goal_reached",
}

var optionalFields = map[string]bool{"bt": true, "planner": true}

// ValidateLine checks one serialized record: required top-level fields
// present, no unexpected top-level fields, schema version matching. Used by
// log replay and by tests.
func ValidateLine(line []byte) error {
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(line, &decoded); err != nil {
		return fmt.Errorf("record line is not a JSON object: %w", err)
	}
	for _, field := range requiredFields {
		if _, ok := decoded[field]; !ok {
			return fmt.Errorf("record is missing required field %q", field)
		}
	}
	required := make(map[string]bool, len(requiredFields))
	for _, field := range requiredFields {
		required[field] = true
	}
	for field := range decoded {
		if !required[field] && !optionalFields[field] {
			return fmt.Errorf("record has unexpected field %q", field)
		}
	}
	var version string
	if err := json.Unmarshal(decoded["schema_version"], &version); err != nil || version != SchemaVersion {
		return fmt.Errorf("schema_version %q does not match %q", version, SchemaVersion)
	}
	return nil
}
