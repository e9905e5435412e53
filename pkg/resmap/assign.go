package resmap

import (
	"fmt"

	"github.com/canopyviz/canopy/pkg/dag"
)

const (
	// rungDivisor buckets merge values into 20-point bands.
	rungDivisor = 20.0

	// rungEpsilon nudges exact band boundaries into the lower band.
	rungEpsilon = 0.01

	// maxRung caps the initially computed rung. Collision bumps may push
	// children past the cap; clamping them would break termination.
	maxRung = 5
)

// Options configures rung assignment.
type Options struct {
	// MinSize drops clusters smaller than this from the map. Links that
	// reference a dropped cluster are dropped too, silently counted.
	MinSize int
}

// Result is the assigned leveled graph plus filtering counters.
type Result struct {
	Graph        *dag.DAG
	DroppedNodes int
	DroppedLinks int
}

// Rung computes the discrete rank band for a merge value:
// floor((value − ε)/20), clamped to [0, maxRung].
func Rung(value float64) int {
	r := int((value - rungEpsilon) / rungDivisor)
	if value-rungEpsilon < 0 {
		r = 0
	}
	if r < 0 {
		r = 0
	}
	if r > maxRung {
		r = maxRung
	}
	return r
}

// Assign places every retained node on a rung and resolves collisions: a
// child landing on (or above) its parent's rung is pushed one rung below
// the parent, repeated to a fixed point.
//
// Each node's missing fraction is its upstream missing mass plus the mass
// of children dropped by the size filter. Returns an error for links that
// reference names absent from the node list or that loop back on
// themselves.
func Assign(doc Document, opts Options) (*Result, error) {
	res := &Result{Graph: dag.New()}

	byName := make(map[string]NodeRecord, len(doc.Nodes))
	for _, n := range doc.Nodes {
		byName[n.Name] = n
	}

	retained := make(map[string]bool, len(doc.Nodes))
	rungs := make(map[string]int, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if opts.MinSize > 0 && n.Size < opts.MinSize {
			res.DroppedNodes++
			continue
		}
		retained[n.Name] = true
		rungs[n.Name] = Rung(n.Value)
	}

	var links []LinkRecord
	droppedMass := make(map[string]int)
	for _, l := range doc.Links {
		parent, ok := byName[l.Parent]
		if !ok {
			return nil, fmt.Errorf("link references unknown parent %q", l.Parent)
		}
		child, ok := byName[l.Child]
		if !ok {
			return nil, fmt.Errorf("link references unknown child %q", l.Child)
		}
		if !retained[parent.Name] || !retained[child.Name] {
			res.DroppedLinks++
			if retained[parent.Name] {
				droppedMass[parent.Name] += child.Size
			}
			continue
		}
		links = append(links, l)
	}

	// Push colliding children below their parents until stable. Acyclic
	// links stabilize within one pass per retained node; more passes means
	// the document's links form a cycle, which must fail rather than spin.
	for pass := 0; ; pass++ {
		changed := false
		for _, l := range links {
			if rungs[l.Child] <= rungs[l.Parent] {
				rungs[l.Child] = rungs[l.Parent] + 1
				changed = true
			}
		}
		if !changed {
			break
		}
		if pass >= len(rungs) {
			return nil, fmt.Errorf("links form a cycle")
		}
	}

	for _, n := range doc.Nodes {
		if !retained[n.Name] {
			continue
		}
		missing := n.MissingFraction
		if n.Size > 0 {
			missing += float64(droppedMass[n.Name]) / float64(n.Size)
		}
		if missing > 1 {
			missing = 1
		}
		err := res.Graph.AddNode(dag.Node{
			ID:      n.Name,
			Label:   nodeLabel(n),
			Row:     rungs[n.Name],
			Size:    n.Size,
			Value:   n.Value,
			Missing: missing,
		})
		if err != nil {
			return nil, fmt.Errorf("add node %s: %w", n.Name, err)
		}
	}
	for _, l := range links {
		if err := res.Graph.AddEdge(dag.Edge{From: l.Parent, To: l.Child}); err != nil {
			return nil, fmt.Errorf("add link %s→%s: %w", l.Parent, l.Child, err)
		}
	}

	if err := res.Graph.Validate(); err != nil {
		return nil, fmt.Errorf("assigned graph: %w", err)
	}
	return res, nil
}

func nodeLabel(n NodeRecord) string {
	if n.Quality > 0 {
		return fmt.Sprintf("%d items\nq %.3f", n.Size, n.Quality)
	}
	return fmt.Sprintf("%d items", n.Size)
}
