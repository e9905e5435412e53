package resmap

import (
	"strings"
	"testing"

	"github.com/canopyviz/canopy/pkg/mergetree"
)

const twoMergeStream = `order repr_x repr_y id_x id_y sim size_x size_y merged edges centrality quality
0 a b 1 2 0.90 1 1 2 1 0.5 1.20
1 a c 1 3 0.40 2 1 3 2 0.5 2.40
`

func stitchFixture(t *testing.T) []mergetree.Clustering {
	t.Helper()
	f, err := mergetree.Build(strings.NewReader(twoMergeStream))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	out, err := mergetree.Cut(f, []int{2, 1})
	if err != nil {
		t.Fatalf("Cut: %v", err)
	}
	return out
}

func TestStitchNamesAndLinks(t *testing.T) {
	doc, err := Stitch(stitchFixture(t))
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}

	// R=2 emits the size-3 root; R=1 splits it into three singletons.
	if len(doc.Nodes) != 4 {
		t.Fatalf("nodes = %d, want 4", len(doc.Nodes))
	}
	if doc.Nodes[0].Name != "r2.c0" {
		t.Errorf("first node = %s, want r2.c0", doc.Nodes[0].Name)
	}
	if len(doc.Links) != 3 {
		t.Fatalf("links = %d, want 3", len(doc.Links))
	}
	for _, l := range doc.Links {
		if l.Parent != "r2.c0" {
			t.Errorf("link parent = %s, want r2.c0", l.Parent)
		}
		if !strings.HasPrefix(l.Child, "r1.c") {
			t.Errorf("link child = %s, want r1.c*", l.Child)
		}
	}
}

func TestStitchMergeValues(t *testing.T) {
	doc, err := Stitch(stitchFixture(t))
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}

	byName := make(map[string]NodeRecord)
	for _, n := range doc.Nodes {
		byName[n.Name] = n
	}
	// The root merged at similarity 0.40, so its value is 40.
	if got := byName["r2.c0"].Value; got != 40 {
		t.Errorf("root value = %v, want 40", got)
	}
	// Singletons always report the maximum value.
	for _, n := range doc.Nodes {
		if n.Size == 1 && n.Value != 100 {
			t.Errorf("%s value = %v, want 100", n.Name, n.Value)
		}
	}
}

func TestStitchRejectsFileBackedClusters(t *testing.T) {
	in := []mergetree.Clustering{{
		Resolution: 5,
		Clusters:   []mergetree.Cluster{{Size: 1, Items: []string{"a"}}},
	}}
	if _, err := Stitch(in); err == nil {
		t.Error("Stitch accepted clusters without forest nodes")
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	doc, err := Stitch(stitchFixture(t))
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}

	var buf strings.Builder
	if err := WriteDocument(doc, &buf); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	got, err := ReadDocument(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	if len(got.Nodes) != len(doc.Nodes) || len(got.Links) != len(doc.Links) {
		t.Errorf("round trip changed shape: %d/%d nodes, %d/%d links",
			len(got.Nodes), len(doc.Nodes), len(got.Links), len(doc.Links))
	}
}

func TestStitchThenAssign(t *testing.T) {
	doc, err := Stitch(stitchFixture(t))
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	res, err := Assign(doc, Options{})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if res.Graph.NodeCount() != 4 || res.Graph.EdgeCount() != 3 {
		t.Errorf("graph = %d nodes %d edges, want 4/3",
			res.Graph.NodeCount(), res.Graph.EdgeCount())
	}
	if err := res.Graph.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
