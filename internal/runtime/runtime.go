package runtime

import (
	"context"
	"fmt"
	"math"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/elektrokombinacija/racecar-bt-research/internal/bt"
	"github.com/elektrokombinacija/racecar-bt-research/internal/core"
	"github.com/elektrokombinacija/racecar-bt-research/internal/planner"
	"github.com/elektrokombinacija/racecar-bt-research/internal/sim"
	"github.com/elektrokombinacija/racecar-bt-research/internal/telemetry"
)

// Runtime is the per-tick driver: sample the world, tick the tree, apply
// the clamped action, step the simulation and emit one telemetry record.
// Everything runs on the caller's goroutine; the loop never sleeps, pacing
// is the adapter's concern.
type Runtime struct {
	cfg     Config
	adapter sim.Adapter
	sink    telemetry.Sink
	root    *bt.Node
	exec    *bt.Executor
	log     *zap.Logger
	clk     clock.Clock
}

// Option adjusts a Runtime at construction.
type Option func(*Runtime)

// WithClock substitutes the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(r *Runtime) { r.clk = clk }
}

// New builds a runtime. root may be nil only in manual mode.
func New(cfg Config, adapter sim.Adapter, sink telemetry.Sink, root *bt.Node, log *zap.Logger, opts ...Option) *Runtime {
	r := &Runtime{
		cfg:     cfg,
		adapter: adapter,
		sink:    sink,
		root:    root,
		exec:    bt.NewExecutor(),
		log:     log,
		clk:     clock.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drives the loop until max ticks, goal arrival, a stop request or
// context cancellation. Adapter and sink errors terminate the run and are
// returned; the partial summary is still valid.
func (r *Runtime) Run(ctx context.Context) (Summary, error) {
	summary := Summary{
		RunID:             r.cfg.RunID,
		Mode:              r.cfg.Mode,
		Reason:            ReasonMaxTicks,
		MinDistanceToGoal: math.Inf(1),
	}

	var tickWallMS, plannerMS, plannerConf []float64
	wallStart := r.clk.Now()

	for tick := 1; tick <= r.cfg.MaxTicks; tick++ {
		if ctx.Err() != nil {
			summary.Reason = ReasonCancelled
			break
		}

		obs, err := r.adapter.GetState()
		if err != nil {
			return summary, fmt.Errorf("tick %d: get state: %w", tick, err)
		}

		tickStart := r.clk.Now()
		bb := &bt.Blackboard{
			State:             obs.State,
			GoalXY:            obs.Goal,
			RayDistances:      obs.Rays,
			RayAnglesDeg:      obs.RayAnglesDeg,
			CollisionImminent: obs.CollisionImminent,
			Obstacles:         r.obstacleSnapshot(),
		}

		var btPayload *telemetry.BTPayload
		if r.cfg.Mode == ModeManual {
			if manual, ok := r.adapter.(sim.ManualController); ok {
				bb.SetAction(manual.ManualAction())
			}
		} else {
			tickCtx := bt.NewTickContext(bb)
			status := r.exec.Tick(r.root, tickCtx)
			btPayload = &telemetry.BTPayload{
				Status:     string(status),
				ActivePath: tickCtx.VisitedNodes,
				NodeStatus: statusMap(tickCtx.NodeStatus),
			}
		}

		// A noaction plan leaves only a placeholder action on the blackboard,
		// so it falls back like a missing or malformed action.
		action := r.cfg.SafeAction
		noAction := bb.PlannerResult != nil && bb.PlannerResult.Status == planner.StatusNoAction
		if bb.Action != nil && bb.Action.Finite() && !noAction {
			action = *bb.Action
		} else {
			summary.Fallbacks++
			r.log.Warn("no usable blackboard action, substituting safe action",
				zap.Int("tick", tick))
		}
		action = action.Bounded()

		if err := r.adapter.ApplyAction(action); err != nil {
			return summary, fmt.Errorf("tick %d: apply action: %w", tick, err)
		}
		if err := r.adapter.Step(r.cfg.StepsPerTick); err != nil {
			return summary, fmt.Errorf("tick %d: step: %w", tick, err)
		}

		// Collision events from the substeps just taken.
		post, err := r.adapter.GetState()
		if err != nil {
			return summary, fmt.Errorf("tick %d: get state after step: %w", tick, err)
		}

		distance := obs.State.DistanceTo(obs.Goal)
		if distance < summary.MinDistanceToGoal {
			summary.MinDistanceToGoal = distance
		}
		summary.FinalDistanceToGoal = distance
		if !summary.GoalReached && distance < core.GoalRadius {
			summary.GoalReached = true
			summary.GoalTick = tick
		}

		rec := &telemetry.Record{
			SchemaVersion:     telemetry.SchemaVersion,
			RunID:             r.cfg.RunID,
			TickIndex:         tick,
			SimTimeS:          obs.TMs / 1000.0,
			WallTimeS:         r.clk.Since(wallStart).Seconds(),
			Mode:              string(r.cfg.Mode),
			State:             telemetry.StatePayload{X: obs.State.X, Y: obs.State.Y, Yaw: obs.State.Yaw, Speed: obs.State.Speed},
			Goal:              telemetry.GoalPayload{X: obs.Goal.X, Y: obs.Goal.Y},
			DistanceToGoal:    distance,
			CollisionImminent: obs.CollisionImminent,
			Action:            telemetry.ActionPayload{Steering: action.Steering, Throttle: action.Throttle},
			CollisionsTotal:   post.CollisionCount,
			GoalReached:       summary.GoalReached,
			BT:                btPayload,
			Planner:           plannerPayload(bb.PlannerResult),
		}
		if err := r.sink.Write(rec); err != nil {
			return summary, fmt.Errorf("tick %d: %w", tick, err)
		}
		if recorder, ok := r.adapter.(sim.TickRecorder); ok {
			recorder.OnTickRecord(rec)
		}

		summary.Ticks = tick
		summary.CollisionsTotal = post.CollisionCount
		tickWallMS = append(tickWallMS, r.clk.Since(tickStart).Seconds()*1000.0)
		if bb.PlannerResult != nil {
			plannerMS = append(plannerMS, bb.PlannerResult.Stats.TimeUsedMS)
			plannerConf = append(plannerConf, bb.PlannerResult.Confidence)
		}

		if summary.GoalReached {
			summary.Reason = ReasonGoal
			break
		}
		if r.adapter.StopRequested() {
			summary.Reason = ReasonStopRequested
			break
		}
	}

	if math.IsInf(summary.MinDistanceToGoal, 1) {
		summary.MinDistanceToGoal = 0
	}
	summary.TickWallMeanMS = meanOf(tickWallMS)
	summary.PlannerTimeMeanMS = meanOf(plannerMS)
	summary.PlannerTimeMaxMS = maxOf(plannerMS)
	summary.PlannerConfMean = meanOf(plannerConf)
	return summary, nil
}

// obstacleSnapshot exposes the adapter's static obstacle list to the tree.
func (r *Runtime) obstacleSnapshot() []core.Obstacle {
	if provider, ok := r.adapter.(interface{ Obstacles() []core.Obstacle }); ok {
		return provider.Obstacles()
	}
	return nil
}

func statusMap(statuses map[string]bt.Status) map[string]string {
	out := make(map[string]string, len(statuses))
	for name, status := range statuses {
		out[name] = string(status)
	}
	return out
}

func plannerPayload(result *planner.Result) *telemetry.PlannerPayload {
	if result == nil {
		return nil
	}
	payload := &telemetry.PlannerPayload{
		SchemaVersion: telemetry.PlannerSchemaVersion,
		BudgetMS:      result.Stats.BudgetMS,
		TimeUsedMS:    result.Stats.TimeUsedMS,
		Iters:         result.Stats.Iters,
		RootVisits:    result.Stats.RootVisits,
		RootChildren:  result.Stats.RootChildren,
		WidenAdded:    result.Stats.WidenAdded,
		DepthMax:      result.Stats.DepthMax,
		DepthMean:     result.Stats.DepthMean,
		Status:        string(result.Status),
		Confidence:    result.Confidence,
		ValueEst:      result.Stats.ValueEst,
		Action:        telemetry.ActionPayload{Steering: result.Action.Steering, Throttle: result.Action.Throttle},
		TopK:          make([]telemetry.TopChoicePayload, 0, len(result.Stats.TopK)),
	}
	for _, top := range result.Stats.TopK {
		payload.TopK = append(payload.TopK, telemetry.TopChoicePayload{
			Action: telemetry.ActionPayload{Steering: top.Action.Steering, Throttle: top.Action.Throttle},
			Visits: top.Visits,
			Q:      top.Q,
		})
	}
	return payload
}
