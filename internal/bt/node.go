package bt

import "github.com/elektrokombinacija/racecar-bt-research/internal/planner"

// Kind tags the closed node set. The executor dispatches on the tag; there
// is no inheritance hierarchy to extend.
type Kind int

const (
	KindSequence Kind = iota
	KindSelector
	KindCondition
	KindAction
	KindPlan
)

func (k Kind) String() string {
	return [...]string{"sequence", "selector", "condition", "action", "plan"}[k]
}

// Predicate evaluates a condition against the tick context.
type Predicate func(*TickContext) bool

// Effect runs a leaf action; it may mutate the blackboard.
type Effect func(*TickContext) Status

// Node is one vertex of a behavior tree. Names must be unique per tree;
// behavior under duplicate names is unspecified.
type Node struct {
	Kind     Kind
	Name     string
	Children []*Node

	Pred    Predicate        // condition leaves
	Eff     Effect           // action leaves
	Planner *planner.Planner // plan leaves
}

// Sequence ticks children left to right and fails fast.
func Sequence(name string, children ...*Node) *Node {
	return &Node{Kind: KindSequence, Name: name, Children: children}
}

// Selector ticks children left to right and succeeds fast.
func Selector(name string, children ...*Node) *Node {
	return &Node{Kind: KindSelector, Name: name, Children: children}
}

// Condition evaluates pred: success iff true.
func Condition(name string, pred Predicate) *Node {
	return &Node{Kind: KindCondition, Name: name, Pred: pred}
}

// Action invokes eff and returns its status.
func Action(name string, eff Effect) *Node {
	return &Node{Kind: KindAction, Name: name, Eff: eff}
}

// Plan invokes the planner against the blackboard state and writes the
// chosen action and planner result back.
func Plan(name string, p *planner.Planner) *Node {
	return &Node{Kind: KindPlan, Name: name, Planner: p}
}
