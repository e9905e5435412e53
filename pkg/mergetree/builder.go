package mergetree

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Forest is the frozen result of a build pass: the set of top-level nodes
// not subsumed by any merge. A fully connected stream leaves a single root.
type Forest struct {
	roots []*Node // creation order
	items int
}

// Roots returns the top-level nodes in creation order.
func (f *Forest) Roots() []*Node { return f.roots }

// ItemCount returns the size of the original item universe.
func (f *Forest) ItemCount() int { return f.items }

// Builder consumes merge events one at a time and accumulates the forest
// state: the id-to-representative mapping, the live root set, and a node
// counter. All state is held here explicitly; nothing is process-global.
//
// A Builder is single-use and strictly sequential: events must be applied
// in stream order because id resolution depends on every prior merge.
type Builder struct {
	byID   map[int]*Node // external id -> current representative node
	ids    map[*Node][]int
	roots  map[*Node]int // live root -> creation order
	nextID int
	items  int
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		byID:  make(map[int]*Node),
		ids:   make(map[*Node][]int),
		roots: make(map[*Node]int),
	}
}

// Apply processes one merge event. record is the 1-based stream position
// used for error context.
func (b *Builder) Apply(ev MergeEvent, record int) error {
	ev = ev.canonicalize()

	left, err := b.resolve(ev.ClusterIDX, ev.ClusterSizeX, ev.ReprItemX, record)
	if err != nil {
		return err
	}
	right, err := b.resolve(ev.ClusterIDY, ev.ClusterSizeY, ev.ReprItemY, record)
	if err != nil {
		return err
	}
	if left == right {
		return fmt.Errorf("record %d: ids %d and %d resolve to the same cluster: %w",
			record, ev.ClusterIDX, ev.ClusterIDY, ErrDuplicateRoot)
	}
	if got := left.Size + right.Size; got != ev.MergedSize {
		return fmt.Errorf("record %d: merged size %d, children sum to %d: %w",
			record, ev.MergedSize, got, ErrInvalidStream)
	}

	parent := newMerge(left, right, ev.Quality, ev.Similarity)

	// Repoint every id that reached either child, not just the two named
	// in this event: stale ids from earlier merges must keep resolving.
	merged := append(b.ids[left], b.ids[right]...)
	for _, id := range merged {
		b.byID[id] = parent
	}
	b.ids[parent] = merged
	delete(b.ids, left)
	delete(b.ids, right)

	delete(b.roots, left)
	delete(b.roots, right)
	b.roots[parent] = b.nextID
	b.nextID++
	return nil
}

// resolve maps an external id to its current representative node,
// materializing a leaf for a previously-unseen singleton.
func (b *Builder) resolve(id, size int, repr string, record int) (*Node, error) {
	if n, ok := b.byID[id]; ok {
		return n, nil
	}
	if size != 1 {
		return nil, fmt.Errorf("record %d: cluster id %d (size %d) has no prior merge: %w",
			record, id, size, ErrDanglingReference)
	}
	leaf := newLeaf(repr)
	b.byID[id] = leaf
	b.ids[leaf] = []int{id}
	b.roots[leaf] = b.nextID
	b.nextID++
	b.items++
	return leaf, nil
}

// Finish freezes the forest. The builder must not be used afterwards.
func (b *Builder) Finish() *Forest {
	roots := make([]*Node, 0, len(b.roots))
	for n := range b.roots {
		roots = append(roots, n)
	}
	order := b.roots
	sort.Slice(roots, func(i, j int) bool { return order[roots[i]] < order[roots[j]] })
	return &Forest{roots: roots, items: b.items}
}

// Build reads a whitespace-delimited merge stream and returns the frozen
// forest. The first line is a schema header and is discarded unread; blank
// lines are skipped. The reader is consumed in a single forward pass.
func Build(r io.Reader) (*Forest, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	b := NewBuilder()
	line := 0
	for sc.Scan() {
		line++
		if line == 1 {
			continue // schema header
		}
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		ev, err := parseEvent(text, line)
		if err != nil {
			return nil, err
		}
		if err := b.Apply(ev, line); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	return b.Finish(), nil
}
