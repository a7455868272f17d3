package planner

import (
	"math"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"

	"github.com/elektrokombinacija/racecar-bt-research/internal/core"
)

// unvisitedMean ranks zero-visit root edges below every visited edge.
const unvisitedMean = -1.0e18

// Planner runs one tree search per call. A fresh tree is allocated per Plan
// and discarded on return; nothing is reused across ticks, which keeps
// per-tick latency predictable.
//
// The planner never errors on its own arithmetic: degenerate budgets or
// terminal roots yield a noaction result.
type Planner struct {
	cfg   Config
	model core.Model
	rng   *Rng
	clk   clock.Clock

	// Per-call scratch, reset at the top of Plan.
	goal       r2.Point
	obstacles  []core.Obstacle
	tree       *tree
	depthSum   int
	depthCount int
	depthMax   int
	widenAdded int
}

// New creates a planner with the wall clock.
func New(cfg Config, rng *Rng) *Planner {
	return NewWithClock(cfg, rng, clock.New())
}

// NewWithClock creates a planner on an explicit clock.
func NewWithClock(cfg Config, rng *Rng, clk clock.Clock) *Planner {
	return &Planner{cfg: cfg, model: cfg.Model(), rng: rng, clk: clk}
}

// Config returns the planner's constants.
func (p *Planner) Config() Config {
	return p.cfg
}

// Plan searches from state toward goal treating obstacles as an immutable
// snapshot, and returns the best root action with search statistics.
//
// The deadline is checked before each iteration; an iteration that starts
// before the deadline runs to completion, so TimeUsedMS may exceed BudgetMS
// by at most one iteration cost. Status is timeout only when the loop stopped
// short of ItersMax and the elapsed time is at least BudgetMS; a run whose
// final iteration reaches ItersMax past the deadline reports ok.
func (p *Planner) Plan(state core.CarState, goal r2.Point, obstacles []core.Obstacle) Result {
	p.goal = goal
	p.obstacles = obstacles
	p.depthSum = 0
	p.depthCount = 0
	p.depthMax = 0
	p.widenAdded = 0
	capHint := p.cfg.ItersMax + 1
	if capHint > 4096 {
		capHint = 4096
	} else if capHint < 1 {
		capHint = 1
	}
	p.tree = newTree(state, capHint)

	started := p.clk.Now()
	iters := 0
	for iters < p.cfg.ItersMax {
		if p.elapsedMS(started) >= p.cfg.BudgetMS {
			break
		}
		p.simulate(rootID, 0)
		iters++
	}

	elapsed := p.elapsedMS(started)
	timedOut := iters < p.cfg.ItersMax && elapsed >= p.cfg.BudgetMS

	root := p.tree.node(rootID)
	stats := Stats{
		BudgetMS:     p.cfg.BudgetMS,
		Iters:        iters,
		RootVisits:   root.visits,
		RootChildren: len(root.edges),
		WidenAdded:   p.widenAdded,
		DepthMax:     p.depthMax,
		TimeUsedMS:   elapsed,
	}
	if p.depthCount > 0 {
		stats.DepthMean = float64(p.depthSum) / float64(p.depthCount)
	}

	if len(root.edges) == 0 {
		p.tree = nil
		return Result{Status: StatusNoAction, Action: core.Action{}, Confidence: 0, Stats: stats}
	}

	ranked := append([]edgeID(nil), root.edges...)
	sort.SliceStable(ranked, func(i, j int) bool {
		ei, ej := p.tree.edge(ranked[i]), p.tree.edge(ranked[j])
		if ei.visits != ej.visits {
			return ei.visits > ej.visits
		}
		return edgeMean(ei) > edgeMean(ej)
	})

	best := p.tree.edge(ranked[0])
	topN := p.cfg.TopK
	if topN > len(ranked) {
		topN = len(ranked)
	}
	for _, id := range ranked[:topN] {
		e := p.tree.edge(id)
		q := 0.0
		if e.visits > 0 {
			q = e.valueSum / float64(e.visits)
		}
		stats.TopK = append(stats.TopK, TopChoice{Action: e.action, Visits: e.visits, Q: q})
	}

	if best.visits > 0 {
		stats.ValueEst = best.valueSum / float64(best.visits)
	}
	confidence := float64(best.visits) / math.Max(1, float64(root.visits))

	status := StatusOK
	if timedOut {
		status = StatusTimeout
	}
	action := best.action
	p.tree = nil
	return Result{Status: status, Action: action, Confidence: confidence, Stats: stats}
}

// simulate runs one selection/widening/backup pass and returns the
// discounted return observed below node.
func (p *Planner) simulate(id nodeID, depth int) float64 {
	node := p.tree.node(id)
	if depth >= p.cfg.MaxDepth {
		p.recordDepth(depth)
		return 0.0
	}
	if p.model.IsGoal(node.state, p.goal) || p.model.IsCollision(node.state, p.obstacles) {
		p.recordDepth(depth)
		return 0.0
	}

	widenCap := int(p.cfg.PWK * math.Pow(math.Max(1, float64(node.visits)), p.cfg.PWAlpha))
	if widenCap < 1 {
		widenCap = 1
	}

	var eid edgeID
	if len(node.edges) < widenCap {
		action := p.sampleAction()
		next, reward, done := p.model.Transition(node.state, action, p.goal, p.obstacles)
		child := p.tree.addNode(next)
		eid = p.tree.addEdge(id, treeEdge{
			action: action,
			next:   next,
			reward: reward,
			done:   done,
			child:  child,
		})
		p.widenAdded++
	} else {
		eid = p.selectUCB(id)
	}

	edge := p.tree.edge(eid)
	reward, done, child := edge.reward, edge.done, edge.child

	continuation := 0.0
	if !done {
		// The recursion may grow the arenas; re-fetch handles afterwards.
		continuation = p.simulate(child, depth+1)
	}
	total := reward + p.cfg.Gamma*continuation

	node = p.tree.node(id)
	node.visits++
	node.valueSum += total
	edge = p.tree.edge(eid)
	edge.visits++
	edge.valueSum += total
	p.recordDepth(depth + 1)
	return total
}

// selectUCB picks the edge maximizing q + c*sqrt(ln(N)/n); any unvisited
// edge is taken immediately.
func (p *Planner) selectUCB(id nodeID) edgeID {
	node := p.tree.node(id)
	logN := math.Log(math.Max(1, float64(node.visits)))
	best := node.edges[0]
	bestScore := math.Inf(-1)
	for _, eid := range node.edges {
		e := p.tree.edge(eid)
		if e.visits == 0 {
			return eid
		}
		q := e.valueSum / float64(e.visits)
		score := q + p.cfg.CUCB*math.Sqrt(logN/float64(e.visits))
		if score > bestScore {
			bestScore = score
			best = eid
		}
	}
	return best
}

func (p *Planner) sampleAction() core.Action {
	return core.Action{
		Steering: p.rng.Uniform(-1.0, 1.0),
		Throttle: p.rng.Uniform(0.15, 1.0),
	}
}

func (p *Planner) recordDepth(depth int) {
	p.depthCount++
	p.depthSum += depth
	if depth > p.depthMax {
		p.depthMax = depth
	}
}

func (p *Planner) elapsedMS(started time.Time) float64 {
	return float64(p.clk.Since(started)) / float64(time.Millisecond)
}

func edgeMean(e *treeEdge) float64 {
	if e.visits == 0 {
		return unvisitedMean
	}
	return e.valueSum / float64(e.visits)
}
