// Package sim defines the world-state port the run loop drives, plus an
// in-process kinematic back-end with analytic raycasts. Heavier physics
// engines plug in behind the same Adapter interface.
package sim

import (
	"github.com/golang/geo/r2"

	"github.com/elektrokombinacija/racecar-bt-research/internal/core"
	"github.com/elektrokombinacija/racecar-bt-research/internal/telemetry"
)

// Observation is everything the loop reads from the world at the top of a
// tick.
type Observation struct {
	State             core.CarState
	StateVec          []float64
	Rays              []float64
	RayAnglesDeg      []float64
	Goal              r2.Point
	CollisionImminent bool
	CollisionCount    int
	TMs               float64
}

// Adapter is the port to the simulation back-end. All methods are called
// from the tick loop's thread.
type Adapter interface {
	// GetState samples the world. CollisionImminent must be derived from
	// the ray fan.
	GetState() (Observation, error)
	// ApplyAction latches an actuator command; idempotent until the next
	// Step.
	ApplyAction(core.Action) error
	// Step advances the world n substeps, accumulating collision events
	// into the adapter's own counter.
	Step(n int) error
	// StopRequested is monotonic once true (until Reset).
	StopRequested() bool
	// Reset restores the initial state and clears counters.
	Reset() error
}

// TickRecorder is an optional adapter capability: the loop hands each
// emitted record to the adapter for re-emission through its own channels.
type TickRecorder interface {
	OnTickRecord(*telemetry.Record)
}

// ManualController is an optional adapter capability used by manual mode,
// where the action comes from the adapter instead of a behavior tree.
type ManualController interface {
	ManualAction() core.Action
}
