package mergetree

import (
	"fmt"
	"sort"
)

// Cluster is one emitted cluster of a resolution cut.
type Cluster struct {
	// Size is the number of items in the cluster.
	Size int

	// Quality is the normalized quality score of the cluster's node,
	// quality / size. Writers format it with three-decimal precision.
	Quality float64

	// Items are the member item identifiers.
	Items []string

	node *Node
}

// Clustering is the full partition emitted at one resolution, sorted by
// descending cluster size with ties in discovery order.
type Clustering struct {
	Resolution int
	Clusters   []Cluster
}

// NormalizeResolutions de-duplicates the thresholds and sorts them in
// strictly descending order. It returns [ErrConfig] when the list is empty
// or contains a non-positive value.
func NormalizeResolutions(resolutions []int) ([]int, error) {
	if len(resolutions) == 0 {
		return nil, fmt.Errorf("no resolutions supplied: %w", ErrConfig)
	}
	seen := make(map[int]bool, len(resolutions))
	out := make([]int, 0, len(resolutions))
	for _, r := range resolutions {
		if r <= 0 {
			return nil, fmt.Errorf("resolution %d is not positive: %w", r, ErrConfig)
		}
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out, nil
}

// Cut produces one clustering per resolution, processed in descending
// threshold order regardless of caller order. Each pass starts from the
// previous pass's emitted nodes, never from the original roots, so every
// finer cluster is a subset of some coarser one by construction.
//
// A node is emitted once its LSS drops below the resolution: it cannot be
// divided into two parts that are both >= R. Otherwise both children are
// pushed and the walk descends. The walk uses an explicit stack; trees with
// millions of leaves must not recurse on the call stack.
func Cut(f *Forest, resolutions []int) ([]Clustering, error) {
	sorted, err := NormalizeResolutions(resolutions)
	if err != nil {
		return nil, err
	}

	frontier := f.Roots()
	out := make([]Clustering, 0, len(sorted))
	for _, r := range sorted {
		emitted := cutOne(frontier, r)
		out = append(out, newClustering(r, emitted))
		frontier = emitted
	}
	return out, nil
}

// cutOne walks one resolution pass and returns the emitted nodes in
// discovery order.
func cutOne(frontier []*Node, resolution int) []*Node {
	stack := make([]*Node, len(frontier))
	copy(stack, frontier)

	var emitted []*Node
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.LSS >= resolution {
			stack = append(stack, n.Left, n.Right)
			continue
		}
		emitted = append(emitted, n)
	}
	return emitted
}

func newClustering(resolution int, nodes []*Node) Clustering {
	clusters := make([]Cluster, len(nodes))
	for i, n := range nodes {
		clusters[i] = Cluster{
			Size:    n.Size,
			Quality: n.Quality / float64(n.Size),
			Items:   n.Items,
			node:    n,
		}
	}
	// Descending size; ties keep discovery order, which is arbitrary and
	// must not be relied on beyond determinism of a fixed input.
	sort.SliceStable(clusters, func(i, j int) bool { return clusters[i].Size > clusters[j].Size })
	return Clustering{Resolution: resolution, Clusters: clusters}
}

// Node returns the forest node backing the cluster, or nil for clusterings
// loaded from files rather than produced by [Cut].
func (c Cluster) Node() *Node { return c.node }
