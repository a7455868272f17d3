// Package runtime couples the behavior tree, planner, simulation adapter
// and telemetry sink into the per-tick control loop.
package runtime

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/elektrokombinacija/racecar-bt-research/internal/core"
)

// Mode selects the decision source for a run.
type Mode string

const (
	ModeManual      Mode = "manual"
	ModeBTBasic     Mode = "bt_basic"
	ModeBTObstacles Mode = "bt_obstacles"
	ModeBTPlanner   Mode = "bt_planner"
)

// Config drives one run of the loop.
type Config struct {
	Mode         Mode    `validate:"required,oneof=manual bt_basic bt_obstacles bt_planner"`
	TickHz       float64 `validate:"gt=0"`
	MaxTicks     int     `validate:"gte=1"`
	StepsPerTick int     `validate:"gte=1"`
	RunID        string  `validate:"required"`
	Seed         int64

	// SafeAction is substituted whenever the tree leaves no usable action
	// on the blackboard.
	SafeAction core.Action
}

var validate = validator.New()

// Validate reports the first configuration error, if any.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("runtime config: %w", err)
	}
	return nil
}
