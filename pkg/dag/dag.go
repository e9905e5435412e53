package dag

import (
	"errors"
	"maps"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [DAG.AddNode] when the node ID is
	// empty. All nodes must have non-empty identifiers.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [DAG.AddNode] when a node with the
	// same ID already exists in the graph.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [DAG.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [DAG.AddEdge] when the To node
	// does not exist in the graph.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrUpwardEdge is returned by [DAG.Validate] when an edge points to a
	// node on the same or a higher row. Containment edges must descend:
	// a child cluster always sits on a strictly larger row than its parent.
	ErrUpwardEdge = errors.New("edges must point to a strictly lower row")

	// ErrGraphHasCycle is returned by [DAG.Validate] when a cycle is
	// detected, which indicates the containment structure is corrupt.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Node is one cluster in the leveled resolution map. Row is its rung: the
// discrete horizontal rank used for layered placement, 0 at the top.
type Node struct {
	ID    string  // unique identifier
	Label string  // display label (defaults to ID when empty)
	Row   int     // rung assignment
	Size  int     // item count of the cluster
	Value float64 // merge value the rung was derived from

	// Missing is the fraction of this cluster's mass not accounted for by
	// retained children, rendered as a side annotation when positive.
	Missing float64
}

// DisplayLabel returns the label if set, otherwise the ID.
func (n *Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// Edge is a directed parent-to-child containment link.
type Edge struct {
	From string
	To   string
}

// DAG is a directed acyclic graph organized into horizontal rows for
// leveled layouts. Unlike strictly layered drawings, edges here may skip
// rows — a coarse cluster can contain a child several rungs below — but
// they must always point downward.
//
// The zero value is not usable; use [New]. DAG is not safe for concurrent
// mutation; a fully built graph may be read from multiple goroutines.
type DAG struct {
	nodes    map[string]*Node
	edges    []Edge
	outgoing map[string][]string
	incoming map[string][]string
	rows     map[int][]*Node
}

// New creates an empty DAG.
func New() *DAG {
	return &DAG{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
		rows:     make(map[int][]*Node),
	}
}

// AddNode adds a node and indexes it by its row. Returns [ErrInvalidNodeID]
// for an empty ID or [ErrDuplicateNodeID] if the ID is already present.
func (d *DAG) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := d.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	node := &n
	d.nodes[node.ID] = node
	d.rows[node.Row] = append(d.rows[node.Row], node)
	return nil
}

// AddEdge adds a directed edge between two existing nodes. Row ordering is
// not checked here; run [DAG.Validate] after the graph is assembled.
func (d *DAG) AddEdge(e Edge) error {
	if _, ok := d.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := d.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	d.edges = append(d.edges, e)
	d.outgoing[e.From] = append(d.outgoing[e.From], e.To)
	d.incoming[e.To] = append(d.incoming[e.To], e.From)
	return nil
}

// SetRows updates row assignments and rebuilds the row index. Nodes absent
// from the map keep their current row. O(N) over all nodes.
func (d *DAG) SetRows(rows map[string]int) {
	d.rows = make(map[int][]*Node)
	for _, n := range d.nodes {
		if row, ok := rows[n.ID]; ok {
			n.Row = row
		}
		d.rows[n.Row] = append(d.rows[n.Row], n)
	}
}

// Node returns the node with the given ID and whether it exists. The
// pointer refers to the graph's own node.
func (d *DAG) Node(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Nodes returns all nodes in unspecified order.
func (d *DAG) Nodes() []*Node {
	nodes := make([]*Node, 0, len(d.nodes))
	for _, n := range d.nodes {
		nodes = append(nodes, n)
	}
	return nodes
}

// Edges returns a copy of all edges in insertion order.
func (d *DAG) Edges() []Edge { return slices.Clone(d.edges) }

// NodeCount returns the number of nodes.
func (d *DAG) NodeCount() int { return len(d.nodes) }

// EdgeCount returns the number of edges.
func (d *DAG) EdgeCount() int { return len(d.edges) }

// Children returns the IDs this node has edges to. Read-only view.
func (d *DAG) Children(id string) []string { return d.outgoing[id] }

// Parents returns the IDs that have edges to this node. Read-only view.
func (d *DAG) Parents(id string) []string { return d.incoming[id] }

// NodesInRow returns all nodes assigned to the given row, in insertion
// order. Nil if the row is empty.
func (d *DAG) NodesInRow(row int) []*Node { return d.rows[row] }

// RowIDs returns all occupied row indices in ascending order. Rows need
// not be consecutive.
func (d *DAG) RowIDs() []int {
	return slices.Sorted(maps.Keys(d.rows))
}

// Sources returns nodes with no incoming edges: the coarsest clusters.
func (d *DAG) Sources() []*Node {
	var sources []*Node
	for _, n := range d.nodes {
		if len(d.incoming[n.ID]) == 0 {
			sources = append(sources, n)
		}
	}
	return sources
}

// Validate checks graph integrity: every edge must point to a strictly
// lower row and the graph must be acyclic. Returns [ErrUpwardEdge] or
// [ErrGraphHasCycle]. Runs in O(N+E).
func (d *DAG) Validate() error {
	for _, e := range d.edges {
		src, dst := d.nodes[e.From], d.nodes[e.To]
		if dst.Row <= src.Row {
			return ErrUpwardEdge
		}
	}
	return d.detectCycles()
}

func (d *DAG) detectCycles() error {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(d.nodes))
	var hasCycle bool

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		for _, child := range d.outgoing[id] {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				hasCycle = true
				return
			}
		}
		color[id] = black
	}

	for id := range d.nodes {
		if color[id] == white {
			dfs(id)
			if hasCycle {
				return ErrGraphHasCycle
			}
		}
	}
	return nil
}
