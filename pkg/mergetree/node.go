package mergetree

// Node is a vertex of the merge forest. Nodes are created by [Build] and
// never mutated afterwards; the whole forest may be shared read-only across
// goroutines.
type Node struct {
	// Size is the number of leaf items subsumed by this subtree.
	Size int

	// Items lists the original item identifiers subsumed, left subtree
	// first. Leaves carry exactly one item.
	Items []string

	// Left and Right are the two children of an internal node, nil for
	// leaves. A node has either both children or neither.
	Left, Right *Node

	// LSS is the largest stable split: the maximum over every bifurcation
	// in this subtree (including the node's own top split) of the smaller
	// child size. Zero for leaves.
	LSS int

	// Quality is the externally computed goodness score of the merge that
	// created this node, carried verbatim from the stream. Zero for leaves.
	Quality float64

	// Similarity is the link similarity of the creating merge, used as the
	// node's merge value when laying out resolution maps. Zero for leaves.
	Similarity float64
}

// IsLeaf reports whether the node subsumes a single original item.
func (n *Node) IsLeaf() bool { return n.Left == nil }

// newLeaf materializes a singleton node for one original item.
func newLeaf(item string) *Node {
	return &Node{Size: 1, Items: []string{item}}
}

// newMerge creates the internal node joining left and right. Size and Items
// are the union of both children; LSS follows the bottom-up invariant.
func newMerge(left, right *Node, quality, similarity float64) *Node {
	items := make([]string, 0, len(left.Items)+len(right.Items))
	items = append(items, left.Items...)
	items = append(items, right.Items...)

	lss := min(left.Size, right.Size)
	if left.LSS > lss {
		lss = left.LSS
	}
	if right.LSS > lss {
		lss = right.LSS
	}

	return &Node{
		Size:       left.Size + right.Size,
		Items:      items,
		Left:       left,
		Right:      right,
		LSS:        lss,
		Quality:    quality,
		Similarity: similarity,
	}
}
