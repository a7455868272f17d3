package planner

import "github.com/elektrokombinacija/racecar-bt-research/internal/core"

// The search tree is two flat arenas indexed by integer handles. Every node
// is owned by exactly one edge's child slot (the root by the Plan frame), so
// there is no shared ownership to track and growth is append-only.

type nodeID int32

type edgeID int32

const rootID nodeID = 0

type treeNode struct {
	state    core.CarState
	visits   int
	valueSum float64
	edges    []edgeID
}

type treeEdge struct {
	action   core.Action
	next     core.CarState
	reward   float64
	done     bool
	child    nodeID
	visits   int
	valueSum float64
}

type tree struct {
	nodes []treeNode
	edges []treeEdge
}

func newTree(root core.CarState, capHint int) *tree {
	t := &tree{
		nodes: make([]treeNode, 0, capHint),
		edges: make([]treeEdge, 0, capHint),
	}
	t.nodes = append(t.nodes, treeNode{state: root})
	return t
}

func (t *tree) addNode(state core.CarState) nodeID {
	t.nodes = append(t.nodes, treeNode{state: state})
	return nodeID(len(t.nodes) - 1)
}

// addEdge appends an edge and registers it with its parent. The slices may
// reallocate, so callers must not hold node or edge pointers across calls.
func (t *tree) addEdge(parent nodeID, e treeEdge) edgeID {
	t.edges = append(t.edges, e)
	id := edgeID(len(t.edges) - 1)
	t.nodes[parent].edges = append(t.nodes[parent].edges, id)
	return id
}

func (t *tree) node(id nodeID) *treeNode {
	return &t.nodes[id]
}

func (t *tree) edge(id edgeID) *treeEdge {
	return &t.edges[id]
}
