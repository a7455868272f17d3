package runtime

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elektrokombinacija/racecar-bt-research/internal/bt"
	"github.com/elektrokombinacija/racecar-bt-research/internal/core"
	"github.com/elektrokombinacija/racecar-bt-research/internal/planner"
	"github.com/elektrokombinacija/racecar-bt-research/internal/scenario"
	"github.com/elektrokombinacija/racecar-bt-research/internal/sim"
	"github.com/elektrokombinacija/racecar-bt-research/internal/telemetry"
)

// captureSink records everything the loop emits, validating each record the
// way the file sink would.
type captureSink struct {
	records []*telemetry.Record
	closed  bool
}

func (c *captureSink) Write(rec *telemetry.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	c.records = append(c.records, rec)
	return nil
}

func (c *captureSink) Close() error {
	c.closed = true
	return nil
}

func adapterFor(scn *scenario.Scenario) *sim.Kinematic {
	cfg := sim.DefaultKinematicConfig()
	cfg.Start = scn.StartState()
	cfg.Goal = scn.GoalPoint()
	cfg.Obstacles = scn.ObstacleList()
	return sim.NewKinematic(cfg)
}

func runConfig(mode Mode, maxTicks int) Config {
	return Config{
		Mode:         mode,
		TickHz:       20,
		MaxTicks:     maxTicks,
		StepsPerTick: 12,
		RunID:        string(mode) + "_seed7_test0000",
		Seed:         7,
		SafeAction:   core.Action{},
	}
}

func TestOpenPlaneBasicDrive(t *testing.T) {
	scn := scenario.OpenPlane()
	adapter := adapterFor(scn)
	sink := &captureSink{}
	cfg := runConfig(ModeBTBasic, 700)
	require.NoError(t, cfg.Validate())

	summary, err := New(cfg, adapter, sink, bt.BuildBasic(0.45), zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 700, summary.Ticks)
	assert.Equal(t, ReasonMaxTicks, summary.Reason)
	assert.Equal(t, 0, summary.CollisionsTotal)
	assert.False(t, summary.GoalReached)
	assert.LessOrEqual(t, summary.MinDistanceToGoal, 5.0,
		"constant drive along +x must pass near the goal")

	require.Len(t, sink.records, 700)
	for i, rec := range sink.records {
		assert.Equal(t, i+1, rec.TickIndex, "tick_index must increase from 1")
		assert.GreaterOrEqual(t, rec.Action.Steering, -1.0)
		assert.LessOrEqual(t, rec.Action.Steering, 1.0)
		require.NotNil(t, rec.BT)
		assert.Nil(t, rec.Planner)
	}
	assert.Equal(t, 0.45, sink.records[0].Action.Throttle)
}

func TestSlalomObstacleTreeReachesGoalWithoutContact(t *testing.T) {
	scn := scenario.Slalom()
	adapter := adapterFor(scn)
	sink := &captureSink{}
	cfg := runConfig(ModeBTObstacles, 700)

	summary, err := New(cfg, adapter, sink, bt.BuildObstacleGoal(), zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.GoalReached, "reflex tree must reach the goal within 35s")
	assert.Equal(t, ReasonGoal, summary.Reason)
	assert.Equal(t, 0, summary.CollisionsTotal)
	assert.Greater(t, summary.GoalTick, 0)
	assert.LessOrEqual(t, summary.GoalTick, 700)

	last := sink.records[len(sink.records)-1]
	assert.True(t, last.GoalReached)
}

func TestPlannerModeEmitsPlannerTelemetry(t *testing.T) {
	scn := scenario.OpenPlane()
	adapter := adapterFor(scn)
	sink := &captureSink{}
	cfg := runConfig(ModeBTPlanner, 40)

	plannerCfg := planner.DefaultConfig()
	plannerCfg.BudgetMS = 2
	tree := bt.BuildPlanner(planner.New(plannerCfg, planner.NewRng(7)))

	summary, err := New(cfg, adapter, sink, tree, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, sink.records)
	sawPlanner := false
	for _, rec := range sink.records {
		if rec.Planner == nil {
			continue
		}
		sawPlanner = true
		assert.Equal(t, telemetry.PlannerSchemaVersion, rec.Planner.SchemaVersion)
		assert.Equal(t, rec.Planner.Iters, rec.Planner.RootVisits)
		assert.GreaterOrEqual(t, rec.Planner.Confidence, 0.0)
		assert.LessOrEqual(t, rec.Planner.Confidence, 1.0)
	}
	assert.True(t, sawPlanner, "planner ticks must carry planner payloads")
	assert.Greater(t, summary.PlannerTimeMeanMS, 0.0)
}

func TestTerminalRootFallsBackToSafeAction(t *testing.T) {
	// Start already inside the goal radius: the planner has nothing to do.
	scn := scenario.OpenPlane()
	scn.Start = scenario.Pose{X: 6.8, Y: 3.0}
	adapter := adapterFor(scn)
	sink := &captureSink{}
	cfg := runConfig(ModeBTPlanner, 10)

	plannerCfg := planner.DefaultConfig()
	plannerCfg.BudgetMS = 2
	tree := bt.BuildPlanner(planner.New(plannerCfg, planner.NewRng(7)))

	summary, err := New(cfg, adapter, sink, tree, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.GoalReached)
	assert.Equal(t, 1, summary.GoalTick)
	require.Len(t, sink.records, 1)

	rec := sink.records[0]
	require.NotNil(t, rec.Planner)
	assert.Equal(t, "noaction", rec.Planner.Status)
	assert.Equal(t, 0, rec.Planner.RootChildren)
	require.NotNil(t, rec.BT)
	assert.Equal(t, "failure", rec.BT.Status)
	assert.Equal(t, telemetry.ActionPayload{Steering: 0, Throttle: 0}, rec.Action)
	assert.Equal(t, 1, summary.Fallbacks)
}

// nanTree writes a malformed action so the loop must substitute SafeAction.
func nanTree() *bt.Node {
	return bt.Action("WriteNaN", func(ctx *bt.TickContext) bt.Status {
		ctx.BB.SetAction(core.Action{Steering: math.NaN(), Throttle: 0.5})
		return bt.StatusSuccess
	})
}

func TestMalformedActionCountsFallback(t *testing.T) {
	scn := scenario.OpenPlane()
	adapter := adapterFor(scn)
	sink := &captureSink{}
	cfg := runConfig(ModeBTBasic, 5)
	cfg.SafeAction = core.Action{Steering: 0, Throttle: 0.1}

	summary, err := New(cfg, adapter, sink, nanTree(), zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Fallbacks)
	for _, rec := range sink.records {
		assert.Equal(t, 0.1, rec.Action.Throttle, "safe action must be applied")
	}
}

func TestManualModeUsesAdapterAction(t *testing.T) {
	scn := scenario.OpenPlane()
	adapter := adapterFor(scn)
	adapter.SetManualAction(core.Action{Steering: 0.25, Throttle: 0.5})
	sink := &captureSink{}
	cfg := runConfig(ModeManual, 5)

	summary, err := New(cfg, adapter, sink, nil, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Fallbacks)
	require.Len(t, sink.records, 5)
	for _, rec := range sink.records {
		assert.Nil(t, rec.BT, "manual mode does not tick the tree")
		assert.Equal(t, 0.25, rec.Action.Steering)
	}
}

func TestStopRequestedEndsRun(t *testing.T) {
	scn := scenario.OpenPlane()
	adapter := adapterFor(scn)
	adapter.Stop()
	sink := &captureSink{}
	cfg := runConfig(ModeBTBasic, 100)

	summary, err := New(cfg, adapter, sink, bt.BuildBasic(0.45), zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReasonStopRequested, summary.Reason)
	assert.Equal(t, 1, summary.Ticks, "stop is honored at the end of the first tick")
}

func TestCancelledContextEndsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scn := scenario.OpenPlane()
	summary, err := New(runConfig(ModeBTBasic, 100), adapterFor(scn), &captureSink{}, bt.BuildBasic(0.45), zap.NewNop()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReasonCancelled, summary.Reason)
	assert.Equal(t, 0, summary.Ticks)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, runConfig(ModeBTBasic, 10).Validate())

	bad := runConfig(ModeBTBasic, 10)
	bad.TickHz = 0
	assert.Error(t, bad.Validate())

	bad = runConfig(ModeBTBasic, 10)
	bad.Mode = "freestyle"
	assert.Error(t, bad.Validate())

	bad = runConfig(ModeBTBasic, 10)
	bad.StepsPerTick = 0
	assert.Error(t, bad.Validate())
}
