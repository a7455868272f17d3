package bt

import (
	"github.com/golang/geo/r2"

	"github.com/elektrokombinacija/racecar-bt-research/internal/core"
	"github.com/elektrokombinacija/racecar-bt-research/internal/planner"
)

// Blackboard is the per-tick typed store the tree reads and writes. Inputs
// are populated by the run loop before each tick; leaves write Action and,
// for planner trees, PlannerResult. Nil means unset.
type Blackboard struct {
	State             core.CarState
	GoalXY            r2.Point
	RayDistances      []float64
	RayAnglesDeg      []float64
	CollisionImminent bool
	Obstacles         []core.Obstacle

	Action        *core.Action
	PlannerResult *planner.Result
}

// SetAction stores a copy of a as the tick's output action.
func (b *Blackboard) SetAction(a core.Action) {
	b.Action = &a
}

// TickContext carries the blackboard plus the execution trace for one tick.
// VisitedNodes lists node names in order of return; NodeStatus maps each
// visited name to its status. Both are reset per tick.
type TickContext struct {
	BB           *Blackboard
	VisitedNodes []string
	NodeStatus   map[string]Status
}

// NewTickContext wraps a blackboard for one tick.
func NewTickContext(bb *Blackboard) *TickContext {
	return &TickContext{
		BB:         bb,
		NodeStatus: make(map[string]Status),
	}
}

// record notes the node's result immediately before it returns.
func (ctx *TickContext) record(name string, status Status) Status {
	ctx.VisitedNodes = append(ctx.VisitedNodes, name)
	ctx.NodeStatus[name] = status
	return status
}
