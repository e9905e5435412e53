package mergetree

import (
	"errors"
	"strconv"
	"strings"
	"testing"
)

// threeLeafStream merges A+B then AB+C, per the canonical small scenario.
const threeLeafStream = `order x y idx idy sim szx szy merged edges centr quality
1 A B 1 2 0.90 1 1 2 1 0.50 1.20
2 A C 1 3 0.40 2 1 3 2 0.30 2.40
`

func TestBuildSmallStream(t *testing.T) {
	f, err := Build(strings.NewReader(threeLeafStream))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if got := f.ItemCount(); got != 3 {
		t.Errorf("ItemCount = %d, want 3", got)
	}
	roots := f.Roots()
	if len(roots) != 1 {
		t.Fatalf("roots = %d, want 1", len(roots))
	}

	root := roots[0]
	if root.Size != 3 {
		t.Errorf("root size = %d, want 3", root.Size)
	}
	if root.LSS != 1 {
		t.Errorf("root lss = %d, want 1", root.LSS)
	}
	if got := strings.Join(root.Items, " "); got != "A B C" {
		t.Errorf("root items = %q, want %q", got, "A B C")
	}
	if root.Quality != 2.40 {
		t.Errorf("root quality = %v, want 2.40", root.Quality)
	}
	if root.Left == nil || root.Right == nil {
		t.Fatal("root missing children")
	}
	if root.Left.Size != 2 || root.Right.Size != 1 {
		t.Errorf("child sizes = %d,%d, want 2,1", root.Left.Size, root.Right.Size)
	}
}

func TestBuildHeaderDiscarded(t *testing.T) {
	// A header that would be a malformed record must not be parsed.
	stream := "garbage header line\n1 A B 1 2 0.9 1 1 2 1 0.5 1.0\n"
	f, err := Build(strings.NewReader(stream))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if f.ItemCount() != 2 {
		t.Errorf("ItemCount = %d, want 2", f.ItemCount())
	}
}

func TestBuildIDRecycling(t *testing.T) {
	// After 1 and 2 merge, a later event may name either id; both must
	// resolve to the merged node.
	stream := `h
1 A B 1 2 0.9 1 1 2 1 0.5 1.0
2 B C 2 3 0.8 2 1 3 2 0.5 1.0
3 C D 3 4 0.7 3 1 4 3 0.5 1.0
`
	f, err := Build(strings.NewReader(stream))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	roots := f.Roots()
	if len(roots) != 1 {
		t.Fatalf("roots = %d, want 1", len(roots))
	}
	if roots[0].Size != 4 {
		t.Errorf("root size = %d, want 4", roots[0].Size)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   error
	}{
		{
			name:   "NonNumericField",
			stream: "h\n1 A B x 2 0.9 1 1 2 1 0.5 1.0\n",
			want:   ErrInvalidStream,
		},
		{
			name:   "WrongColumnCount",
			stream: "h\n1 A B 1 2 0.9 1 1 2\n",
			want:   ErrInvalidStream,
		},
		{
			name:   "MergedSizeMismatch",
			stream: "h\n1 A B 1 2 0.9 1 1 5 1 0.5 1.0\n",
			want:   ErrInvalidStream,
		},
		{
			name:   "DanglingReference",
			stream: "h\n1 A B 7 2 0.9 3 1 4 1 0.5 1.0\n",
			want:   ErrDanglingReference,
		},
		{
			name: "DuplicateRoot",
			stream: "h\n1 A B 1 2 0.9 1 1 2 1 0.5 1.0\n" +
				"2 A B 1 2 0.8 2 2 4 1 0.5 1.0\n",
			want: ErrDuplicateRoot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(strings.NewReader(tt.stream))
			if !errors.Is(err, tt.want) {
				t.Errorf("Build error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBuildMultipleRoots(t *testing.T) {
	// Two disjoint components never joined by the stream.
	stream := `h
1 A B 1 2 0.9 1 1 2 1 0.5 1.0
2 C D 3 4 0.8 1 1 2 1 0.5 1.0
`
	f, err := Build(strings.NewReader(stream))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(f.Roots()) != 2 {
		t.Errorf("roots = %d, want 2", len(f.Roots()))
	}
	if f.ItemCount() != 4 {
		t.Errorf("ItemCount = %d, want 4", f.ItemCount())
	}
}

// recomputeLSS walks the subtree and re-derives the invariant from scratch.
func recomputeLSS(n *Node) int {
	if n.IsLeaf() {
		return 0
	}
	lss := min(n.Left.Size, n.Right.Size)
	if l := recomputeLSS(n.Left); l > lss {
		lss = l
	}
	if r := recomputeLSS(n.Right); r > lss {
		lss = r
	}
	return lss
}

func checkLSS(t *testing.T, n *Node) {
	t.Helper()
	if n.IsLeaf() {
		if n.LSS != 0 {
			t.Errorf("leaf lss = %d, want 0", n.LSS)
		}
		return
	}
	if want := recomputeLSS(n); n.LSS != want {
		t.Errorf("node size %d: lss = %d, recomputed %d", n.Size, n.LSS, want)
	}
	checkLSS(t, n.Left)
	checkLSS(t, n.Right)
}

func TestLSSInvariant(t *testing.T) {
	f := buildBalanced(t, 64)
	for _, root := range f.Roots() {
		checkLSS(t, root)
	}
}

func TestLSSInvariantSkewed(t *testing.T) {
	f := buildSkewed(t, 20)
	root := f.Roots()[0]
	// A fully skewed tree only ever splits off singletons.
	if root.LSS != 1 {
		t.Errorf("skewed root lss = %d, want 1", root.LSS)
	}
	checkLSS(t, root)
}

// buildBalanced merges n leaves (n a power of two) into one balanced tree
// by applying synthetic events round by round.
func buildBalanced(t *testing.T, n int) *Forest {
	t.Helper()
	b := NewBuilder()
	record := 1
	apply := func(idx, idy, szx, szy int) {
		t.Helper()
		record++
		ev := MergeEvent{
			OrderIndex:   record - 1,
			ReprItemX:    itemName(idx),
			ReprItemY:    itemName(idy),
			ClusterIDX:   idx,
			ClusterIDY:   idy,
			Similarity:   0.5,
			ClusterSizeX: szx,
			ClusterSizeY: szy,
			MergedSize:   szx + szy,
			Quality:      1.0,
		}
		if err := b.Apply(ev, record); err != nil {
			t.Fatalf("Apply(%d,%d): %v", idx, idy, err)
		}
	}

	for span := 1; span < n; span *= 2 {
		for i := 0; i < n; i += 2 * span {
			apply(i, i+span, span, span)
		}
	}
	return b.Finish()
}

// buildSkewed chains n leaves into a fully left-deep tree.
func buildSkewed(t *testing.T, n int) *Forest {
	t.Helper()
	b := NewBuilder()
	for i := 1; i < n; i++ {
		ev := MergeEvent{
			OrderIndex:   i,
			ReprItemX:    itemName(0),
			ReprItemY:    itemName(i),
			ClusterIDX:   0,
			ClusterIDY:   i,
			Similarity:   0.5,
			ClusterSizeX: i,
			ClusterSizeY: 1,
			MergedSize:   i + 1,
			Quality:      1.0,
		}
		if err := b.Apply(ev, i+1); err != nil {
			t.Fatalf("Apply(%d): %v", i, err)
		}
	}
	return b.Finish()
}

func itemName(i int) string {
	return "item" + strconv.Itoa(i)
}
