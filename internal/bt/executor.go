package bt

import (
	"github.com/elektrokombinacija/racecar-bt-research/internal/core"
	"github.com/elektrokombinacija/racecar-bt-research/internal/planner"
)

// Executor evaluates a tree against a tick context. It is stateless: no node
// retains memory across ticks, so a tick is a pure function of (tree,
// blackboard) apart from planner randomness.
type Executor struct{}

// NewExecutor returns a tree executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Tick evaluates root synchronously. Time spent inside Plan leaves counts
// against the caller's tick deadline. The trace is available on ctx after
// return.
func (e *Executor) Tick(root *Node, ctx *TickContext) Status {
	return e.tick(root, ctx)
}

func (e *Executor) tick(n *Node, ctx *TickContext) Status {
	switch n.Kind {
	case KindCondition:
		if n.Pred(ctx) {
			return ctx.record(n.Name, StatusSuccess)
		}
		return ctx.record(n.Name, StatusFailure)

	case KindAction:
		return ctx.record(n.Name, n.Eff(ctx))

	case KindSequence:
		for _, child := range n.Children {
			if status := e.tick(child, ctx); status != StatusSuccess {
				return ctx.record(n.Name, status)
			}
		}
		return ctx.record(n.Name, StatusSuccess)

	case KindSelector:
		for _, child := range n.Children {
			if status := e.tick(child, ctx); status != StatusFailure {
				return ctx.record(n.Name, status)
			}
		}
		return ctx.record(n.Name, StatusFailure)

	case KindPlan:
		bb := ctx.BB
		result := n.Planner.Plan(bb.State, bb.GoalXY, bb.Obstacles)
		bb.PlannerResult = &result
		if result.Status == planner.StatusNoAction {
			bb.SetAction(core.Action{})
			return ctx.record(n.Name, StatusFailure)
		}
		bb.SetAction(result.Action)
		return ctx.record(n.Name, StatusSuccess)

	default:
		return ctx.record(n.Name, StatusFailure)
	}
}
