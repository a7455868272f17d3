package sim

import (
	"math"

	"github.com/golang/geo/r2"
	"go.uber.org/atomic"

	"github.com/elektrokombinacija/racecar-bt-research/internal/core"
)

// KinematicConfig configures the analytic back-end.
type KinematicConfig struct {
	PhysicsHz float64
	Start     core.CarState
	Goal      r2.Point
	Obstacles []core.Obstacle

	RayAnglesDeg []float64
	RayLength    float64
	// ImminentDist is the min-ray threshold below which collision_imminent
	// is reported.
	ImminentDist float64
	// ContactMargin grows obstacles when counting contact events; it stands
	// in for the vehicle's footprint.
	ContactMargin float64

	MaxSpeed    float64
	MaxSteerRad float64
	WheelBase   float64
}

// DefaultKinematicConfig returns the demo world: the standard ray fan and
// the bicycle constants shared with the planner's rollout model.
func DefaultKinematicConfig() KinematicConfig {
	return KinematicConfig{
		PhysicsHz:     240.0,
		RayAnglesDeg:  []float64{-45, -25, -10, 0, 10, 25, 45},
		RayLength:     3.0,
		ImminentDist:  0.9,
		ContactMargin: 0.05,
		MaxSpeed:      8.0,
		MaxSteerRad:   0.55,
		WheelBase:     0.35,
	}
}

// Kinematic advances the bicycle model directly; rays are analytic
// intersections with the obstacle boxes. It doubles as a ManualController
// for manual-mode runs.
type Kinematic struct {
	cfg   KinematicConfig
	model core.Model

	state      core.CarState
	action     core.Action
	manual     core.Action
	steps      int
	collisions int
	inContact  bool
	stopped    *atomic.Bool
}

// NewKinematic builds the back-end from a config.
func NewKinematic(cfg KinematicConfig) *Kinematic {
	return &Kinematic{
		cfg: cfg,
		model: core.Model{
			DT:          1.0 / cfg.PhysicsHz,
			MaxSpeed:    cfg.MaxSpeed,
			MaxSteerRad: cfg.MaxSteerRad,
			WheelBase:   cfg.WheelBase,
			// Contact counting uses the footprint margin, not the planner's
			// safety margin.
			CollisionMargin: cfg.ContactMargin,
		},
		state:   cfg.Start,
		stopped: atomic.NewBool(false),
	}
}

func (k *Kinematic) GetState() (Observation, error) {
	origin := k.state.Position()
	rays := make([]float64, len(k.cfg.RayAnglesDeg))
	minRay := k.cfg.RayLength
	for i, deg := range k.cfg.RayAnglesDeg {
		angle := k.state.Yaw + deg*math.Pi/180.0
		rays[i] = castRay(origin, angle, k.cfg.RayLength, k.cfg.Obstacles)
		if rays[i] < minRay {
			minRay = rays[i]
		}
	}

	return Observation{
		State:             k.state,
		StateVec:          []float64{k.state.X, k.state.Y, k.state.Yaw, k.state.Speed},
		Rays:              rays,
		RayAnglesDeg:      append([]float64(nil), k.cfg.RayAnglesDeg...),
		Goal:              k.cfg.Goal,
		CollisionImminent: minRay < k.cfg.ImminentDist,
		CollisionCount:    k.collisions,
		TMs:               float64(k.steps) / k.cfg.PhysicsHz * 1000.0,
	}, nil
}

func (k *Kinematic) ApplyAction(a core.Action) error {
	k.action = a.Bounded()
	return nil
}

func (k *Kinematic) Step(n int) error {
	contact := false
	for i := 0; i < n; i++ {
		next, _, _ := k.model.Transition(k.state, k.action, k.cfg.Goal, nil)
		k.state = next
		k.steps++
		if k.model.IsCollision(k.state, k.cfg.Obstacles) {
			contact = true
		}
	}
	// Count a contact event on the transition into contact, not per substep.
	if contact && !k.inContact {
		k.collisions++
	}
	k.inContact = contact
	return nil
}

func (k *Kinematic) StopRequested() bool {
	return k.stopped.Load()
}

// Stop requests loop termination; it may be called from a signal handler
// goroutine.
func (k *Kinematic) Stop() {
	k.stopped.Store(true)
}

func (k *Kinematic) Reset() error {
	k.state = k.cfg.Start
	k.action = core.Action{}
	k.manual = core.Action{}
	k.steps = 0
	k.collisions = 0
	k.inContact = false
	k.stopped.Store(false)
	return nil
}

// Obstacles exposes the static obstacle layout for planner snapshots.
func (k *Kinematic) Obstacles() []core.Obstacle {
	return k.cfg.Obstacles
}

// SetManualAction latches the command returned to manual-mode ticks.
func (k *Kinematic) SetManualAction(a core.Action) {
	k.manual = a
}

// ManualAction implements ManualController.
func (k *Kinematic) ManualAction() core.Action {
	return k.manual
}
