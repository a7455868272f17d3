package bt

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/racecar-bt-research/internal/core"
)

func TestBuildBasicEmitsConstantDrive(t *testing.T) {
	bb := &Blackboard{}
	ctx, status := tick(t, BuildBasic(0.45), bb)

	assert.Equal(t, StatusSuccess, status)
	require.NotNil(t, bb.Action)
	assert.Equal(t, core.Action{Steering: 0.0, Throttle: 0.45}, *bb.Action)
	assert.Equal(t, []string{"ApplyConstantDrive"}, ctx.VisitedNodes)
}

func obstacleBlackboard(imminent bool, distances []float64) *Blackboard {
	return &Blackboard{
		State:             core.CarState{},
		GoalXY:            r2.Point{X: 7, Y: 3},
		RayDistances:      distances,
		RayAnglesDeg:      []float64{-45, -25, -10, 0, 10, 25, 45},
		CollisionImminent: imminent,
	}
}

func TestObstacleTreeAvoidsTowardClearSide(t *testing.T) {
	// More clearance on the left: steer left.
	bb := obstacleBlackboard(true, []float64{0.5, 0.6, 0.7, 0.8, 3.0, 3.0, 3.0})
	ctx, status := tick(t, BuildObstacleGoal(), bb)

	assert.Equal(t, StatusSuccess, status)
	require.NotNil(t, bb.Action)
	assert.Equal(t, 0.7, bb.Action.Steering)
	assert.Equal(t, 0.15, bb.Action.Throttle, "min ray below slow distance")
	assert.Contains(t, ctx.VisitedNodes, "CollisionImminent?")
	assert.Contains(t, ctx.VisitedNodes, "AvoidObstacle")
	assert.NotContains(t, ctx.VisitedNodes, "DriveToGoal")
}

func TestObstacleTreeAvoidsRightWhenRightIsClear(t *testing.T) {
	bb := obstacleBlackboard(true, []float64{3.0, 3.0, 3.0, 1.0, 0.8, 0.7, 0.5})
	_, status := tick(t, BuildObstacleGoal(), bb)

	assert.Equal(t, StatusSuccess, status)
	require.NotNil(t, bb.Action)
	assert.Equal(t, -0.7, bb.Action.Steering)
}

func TestObstacleTreeDrivesToGoalWhenClear(t *testing.T) {
	bb := obstacleBlackboard(false, []float64{3, 3, 3, 3, 3, 3, 3})
	ctx, status := tick(t, BuildObstacleGoal(), bb)

	assert.Equal(t, StatusSuccess, status)
	require.NotNil(t, bb.Action)
	// Goal is up and to the right of a car facing +x: steer left.
	assert.Greater(t, bb.Action.Steering, 0.0)
	assert.Greater(t, bb.Action.Throttle, 0.0)
	assert.Equal(t, StatusFailure, ctx.NodeStatus["CollisionImminent?"])
	assert.Equal(t, StatusSuccess, ctx.NodeStatus["DriveToGoal"])
}

func TestObstacleTreeFallsThroughOnMissingRays(t *testing.T) {
	// Imminent but no ray data: the avoid leaf fails and the selector falls
	// through to the goal branch.
	bb := obstacleBlackboard(true, nil)
	ctx, status := tick(t, BuildObstacleGoal(), bb)

	assert.Equal(t, StatusSuccess, status)
	assert.Equal(t, StatusFailure, ctx.NodeStatus["AvoidObstacle"])
	assert.Equal(t, StatusSuccess, ctx.NodeStatus["DriveToGoal"])
	require.NotNil(t, bb.Action)
	assert.Greater(t, bb.Action.Throttle, 0.0)
}

func TestDriveToGoalStopsInsideGoalRadius(t *testing.T) {
	bb := obstacleBlackboard(false, []float64{3, 3, 3, 3, 3, 3, 3})
	bb.State = core.CarState{X: 6.8, Y: 3.0}
	bb.GoalXY = r2.Point{X: 7, Y: 3}

	_, status := tick(t, BuildObstacleGoal(), bb)

	assert.Equal(t, StatusSuccess, status)
	require.NotNil(t, bb.Action)
	assert.Equal(t, 0.0, bb.Action.Throttle)
}

func TestPlannerTreePlansWhenClear(t *testing.T) {
	bb := obstacleBlackboard(false, []float64{3, 3, 3, 3, 3, 3, 3})
	bb.GoalXY = r2.Point{X: 5, Y: 0}
	ctx, status := tick(t, BuildPlanner(smallPlanner(150)), bb)

	assert.Equal(t, StatusSuccess, status)
	require.NotNil(t, bb.PlannerResult)
	require.NotNil(t, bb.Action)
	assert.Equal(t, bb.PlannerResult.Action, *bb.Action)
	assert.Equal(t, StatusSuccess, ctx.NodeStatus["PlanActionNode"])
	assert.Equal(t, StatusSuccess, ctx.NodeStatus["ApplyAction"])
}

func TestPlannerTreeAvoidBranchClearsPlannerResult(t *testing.T) {
	bb := obstacleBlackboard(true, []float64{0.5, 0.6, 0.7, 0.8, 3.0, 3.0, 3.0})
	stale := smallPlanner(10).Plan(bb.State, bb.GoalXY, nil)
	bb.PlannerResult = &stale

	_, status := tick(t, BuildPlanner(smallPlanner(150)), bb)

	assert.Equal(t, StatusSuccess, status)
	assert.Nil(t, bb.PlannerResult, "avoid branch must clear an overridden plan")
	require.NotNil(t, bb.Action)
	assert.Equal(t, 0.8, bb.Action.Steering)
	assert.Equal(t, 0.12, bb.Action.Throttle)
}

func TestPlannerTreeNoActionFailsWholeTree(t *testing.T) {
	bb := obstacleBlackboard(false, []float64{3, 3, 3, 3, 3, 3, 3})
	ctx, status := tick(t, BuildPlanner(noActionPlanner()), bb)

	assert.Equal(t, StatusFailure, status)
	require.NotNil(t, bb.Action)
	assert.Equal(t, core.Action{}, *bb.Action)
	assert.Equal(t, StatusFailure, ctx.NodeStatus["PlannerBranch"])
	assert.NotContains(t, ctx.VisitedNodes, "ApplyAction")
}

func TestDriveToGoalHeadingError(t *testing.T) {
	bb := obstacleBlackboard(false, []float64{3, 3, 3, 3, 3, 3, 3})
	// Facing away from the goal: full steering lock.
	bb.State = core.CarState{X: 0, Y: 0, Yaw: math.Pi}

	_, _ = tick(t, BuildObstacleGoal(), bb)

	require.NotNil(t, bb.Action)
	assert.Equal(t, 1.0, math.Abs(bb.Action.Steering))
}
