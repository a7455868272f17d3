// Command racebt runs the behavior-tree racecar controller against the
// analytic kinematic back-end and writes schema-v1 JSONL telemetry.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/elektrokombinacija/racecar-bt-research/internal/bt"
	"github.com/elektrokombinacija/racecar-bt-research/internal/core"
	"github.com/elektrokombinacija/racecar-bt-research/internal/planner"
	"github.com/elektrokombinacija/racecar-bt-research/internal/runtime"
	"github.com/elektrokombinacija/racecar-bt-research/internal/scenario"
	"github.com/elektrokombinacija/racecar-bt-research/internal/sim"
	"github.com/elektrokombinacija/racecar-bt-research/internal/telemetry"
)

const constantThrottle = 0.45

type options struct {
	mode         string
	seed         int64
	durationSec  float64
	tickHz       float64
	physicsHz    float64
	goalX        float64
	goalY        float64
	budgetMS     float64
	itersMax     int
	maxDepth     int
	pwK          float64
	pwAlpha      float64
	gamma        float64
	logPath      string
	scenarioPath string
	streamAddr   string
}

func main() {
	opts := options{}
	root := &cobra.Command{
		Use:   "racebt",
		Short: "Behavior-tree + bounded-time MCTS racecar demo",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
		SilenceUsage: true,
	}

	flags := root.Flags()
	flags.StringVar(&opts.mode, "mode", "bt_planner", "manual | bt_basic | bt_obstacles | bt_planner")
	flags.Int64Var(&opts.seed, "seed", 7, "random seed")
	flags.Float64Var(&opts.durationSec, "duration-sec", 35.0, "simulated run duration")
	flags.Float64Var(&opts.tickHz, "tick-hz", 20.0, "control tick rate")
	flags.Float64Var(&opts.physicsHz, "physics-hz", 240.0, "simulation substep rate")
	flags.Float64Var(&opts.goalX, "goal-x", 7.0, "goal x")
	flags.Float64Var(&opts.goalY, "goal-y", 3.0, "goal y")
	flags.Float64Var(&opts.budgetMS, "budget-ms", 20.0, "planner budget per tick (ms)")
	flags.IntVar(&opts.itersMax, "iters-max", 1200, "planner iteration cap per tick")
	flags.IntVar(&opts.maxDepth, "max-depth", 18, "planner rollout depth")
	flags.Float64Var(&opts.pwK, "pw-k", 2.0, "progressive widening k")
	flags.Float64Var(&opts.pwAlpha, "pw-alpha", 0.5, "progressive widening alpha")
	flags.Float64Var(&opts.gamma, "gamma", 0.96, "planner discount factor")
	flags.StringVar(&opts.logPath, "log-path", "", "explicit JSONL log file path")
	flags.StringVar(&opts.scenarioPath, "scenario", "", "YAML scenario file (default: built-in layout for the mode)")
	flags.StringVar(&opts.streamAddr, "stream-addr", "", "serve live telemetry over websocket at this address")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) (err error) {
	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	scn, err := loadScenario(opts)
	if err != nil {
		return err
	}
	if opts.scenarioPath == "" {
		scn.Goal = scenario.Point{X: opts.goalX, Y: opts.goalY}
	}

	mode := runtime.Mode(opts.mode)
	runID := fmt.Sprintf("%s_seed%d_%s", opts.mode, opts.seed, uuid.NewString()[:8])

	plannerCfg := planner.DefaultConfig()
	plannerCfg.BudgetMS = opts.budgetMS
	plannerCfg.ItersMax = opts.itersMax
	plannerCfg.MaxDepth = opts.maxDepth
	plannerCfg.PWK = opts.pwK
	plannerCfg.PWAlpha = opts.pwAlpha
	plannerCfg.Gamma = opts.gamma
	plannerCfg.DT = math.Max(1.0/opts.tickHz, 0.05)

	runCfg := runtime.Config{
		Mode:         mode,
		TickHz:       opts.tickHz,
		MaxTicks:     int(opts.durationSec * opts.tickHz),
		StepsPerTick: stepsPerTick(opts.physicsHz, opts.tickHz),
		RunID:        runID,
		Seed:         opts.seed,
		SafeAction:   core.Action{},
	}
	if err := runCfg.Validate(); err != nil {
		return err
	}

	var tree *bt.Node
	switch mode {
	case runtime.ModeManual:
	case runtime.ModeBTBasic:
		tree = bt.BuildBasic(constantThrottle)
	case runtime.ModeBTObstacles:
		tree = bt.BuildObstacleGoal()
	case runtime.ModeBTPlanner:
		if err := plannerCfg.Validate(); err != nil {
			return err
		}
		tickPeriodMS := 1000.0 / opts.tickHz
		if plannerCfg.BudgetMS > tickPeriodMS {
			log.Warn("planner budget exceeds the tick period",
				zap.Float64("budget_ms", plannerCfg.BudgetMS),
				zap.Float64("tick_period_ms", tickPeriodMS))
		}
		tree = bt.BuildPlanner(planner.New(plannerCfg, planner.NewRng(opts.seed)))
	default:
		return fmt.Errorf("unknown mode %q", opts.mode)
	}

	simCfg := sim.DefaultKinematicConfig()
	simCfg.PhysicsHz = opts.physicsHz
	simCfg.Start = scn.StartState()
	simCfg.Goal = scn.GoalPoint()
	simCfg.Obstacles = scn.ObstacleList()
	adapter := sim.NewKinematic(simCfg)
	go func() {
		<-ctx.Done()
		adapter.Stop()
	}()

	logPath := opts.logPath
	if logPath == "" {
		logPath = filepath.Join("logs", runID+".jsonl")
	}
	jsonlSink, err := telemetry.NewJSONLSink(logPath)
	if err != nil {
		return err
	}
	var sink telemetry.Sink = jsonlSink
	if opts.streamAddr != "" {
		stream := telemetry.NewStreamSink(log)
		mux := http.NewServeMux()
		mux.Handle("/ws", stream)
		server := &http.Server{Addr: opts.streamAddr, Handler: mux}
		go func() {
			if serveErr := server.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
				log.Error("telemetry stream server failed", zap.Error(serveErr))
			}
		}()
		defer func() { _ = server.Close() }()
		sink = telemetry.NewMultiSink(jsonlSink, stream)
	}
	defer func() { err = multierr.Append(err, sink.Close()) }()

	if metaErr := writeRunMetadata(logPath, runID, opts); metaErr != nil {
		return metaErr
	}

	rt := runtime.New(runCfg, adapter, sink, tree, log)
	summary, runErr := rt.Run(ctx)
	if runErr != nil {
		return runErr
	}

	encoded, err := json.MarshalIndent(summaryWithLog{Summary: summary, LogPath: logPath}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

type summaryWithLog struct {
	runtime.Summary
	LogPath string `json:"log_path"`
}

func loadScenario(opts options) (*scenario.Scenario, error) {
	if opts.scenarioPath != "" {
		return scenario.Load(opts.scenarioPath)
	}
	switch runtime.Mode(opts.mode) {
	case runtime.ModeBTObstacles, runtime.ModeBTPlanner:
		return scenario.Slalom(), nil
	default:
		return scenario.OpenPlane(), nil
	}
}

func stepsPerTick(physicsHz, tickHz float64) int {
	steps := int(physicsHz/tickHz + 0.5)
	if steps < 1 {
		steps = 1
	}
	return steps
}

func writeRunMetadata(logPath, runID string, opts options) error {
	metadata := map[string]any{
		"schema_version": telemetry.SchemaVersion,
		"run_id":         runID,
		"created_utc":    time.Now().UTC().Format(time.RFC3339),
		"seed":           opts.seed,
		"mode":           opts.mode,
		"config": map[string]any{
			"duration_sec": opts.durationSec,
			"tick_hz":      opts.tickHz,
			"physics_hz":   opts.physicsHz,
			"goal_x":       opts.goalX,
			"goal_y":       opts.goalY,
			"budget_ms":    opts.budgetMS,
			"iters_max":    opts.itersMax,
			"max_depth":    opts.maxDepth,
			"pw_k":         opts.pwK,
			"pw_alpha":     opts.pwAlpha,
			"gamma":        opts.gamma,
			"scenario":     opts.scenarioPath,
		},
	}
	encoded, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run metadata: %w", err)
	}
	path := logPath[:len(logPath)-len(filepath.Ext(logPath))] + ".run_metadata.json"
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write run metadata: %w", err)
	}
	return nil
}
