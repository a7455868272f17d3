// Package planner implements a budget-bounded Monte Carlo Tree Search over
// the continuous steering/throttle action space, using progressive widening
// and UCB1 selection with discounted backup.
package planner

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/elektrokombinacija/racecar-bt-research/internal/core"
)

// Config holds all planner constants for a run. Validate is called once at
// startup; Plan itself tolerates degenerate values and reports noaction
// instead of failing.
type Config struct {
	BudgetMS        float64 `yaml:"budget_ms" validate:"gt=0"`
	ItersMax        int     `yaml:"iters_max" validate:"gte=1"`
	MaxDepth        int     `yaml:"max_depth" validate:"gte=1"`
	Gamma           float64 `yaml:"gamma" validate:"gt=0,lte=1"`
	CUCB            float64 `yaml:"c_ucb" validate:"gt=0"`
	PWK             float64 `yaml:"pw_k" validate:"gt=0"`
	PWAlpha         float64 `yaml:"pw_alpha" validate:"gt=0,lte=1"`
	DT              float64 `yaml:"dt" validate:"gt=0"`
	MaxSpeed        float64 `yaml:"max_speed" validate:"gt=0"`
	MaxSteerRad     float64 `yaml:"max_steer_rad" validate:"gt=0"`
	WheelBase       float64 `yaml:"wheel_base" validate:"gt=0"`
	CollisionMargin float64 `yaml:"collision_margin" validate:"gte=0"`
	TopK            int     `yaml:"top_k" validate:"gte=1"`
}

// DefaultConfig returns the demo defaults.
func DefaultConfig() Config {
	return Config{
		BudgetMS:        20.0,
		ItersMax:        1200,
		MaxDepth:        18,
		Gamma:           0.96,
		CUCB:            1.2,
		PWK:             2.0,
		PWAlpha:         0.5,
		DT:              0.10,
		MaxSpeed:        8.0,
		MaxSteerRad:     0.55,
		WheelBase:       0.35,
		CollisionMargin: 0.45,
		TopK:            5,
	}
}

var validate = validator.New()

// Validate reports the first configuration error, if any.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("planner config: %w", err)
	}
	return nil
}

// Model builds the rollout transition model from the config constants.
func (c Config) Model() core.Model {
	return core.Model{
		DT:              c.DT,
		MaxSpeed:        c.MaxSpeed,
		MaxSteerRad:     c.MaxSteerRad,
		WheelBase:       c.WheelBase,
		CollisionMargin: c.CollisionMargin,
	}
}
