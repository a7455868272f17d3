package planner

import "github.com/elektrokombinacija/racecar-bt-research/internal/core"

// Status classifies the outcome of a Plan call.
type Status string

const (
	// StatusOK means the search ran to its iteration cap (or found the
	// budget unexhausted) and produced an action.
	StatusOK Status = "ok"
	// StatusTimeout means the time budget expired before the iteration cap
	// was reached; the best action found so far is still returned.
	StatusTimeout Status = "timeout"
	// StatusNoAction means the root has no children; the caller must fall
	// back to a safe action.
	StatusNoAction Status = "noaction"
)

// TopChoice is one root edge in the ranked report.
type TopChoice struct {
	Action core.Action
	Visits int
	Q      float64
}

// Stats captures planner health for one call.
type Stats struct {
	BudgetMS     float64
	Iters        int
	RootVisits   int
	RootChildren int
	WidenAdded   int
	DepthMax     int
	DepthMean    float64
	TimeUsedMS   float64
	ValueEst     float64
	TopK         []TopChoice
}

// Result is the outcome of a single Plan call.
type Result struct {
	Status     Status
	Action     core.Action
	Confidence float64
	Stats      Stats
}
