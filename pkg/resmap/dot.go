package resmap

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/goccy/go-graphviz"

	"github.com/canopyviz/canopy/pkg/dag"
)

// DotOptions configures DOT emission.
type DotOptions struct {
	// Detailed adds merge values and rungs to node labels.
	Detailed bool

	// Annotate adds side notes for mass not accounted for by retained
	// children.
	Annotate bool
}

// ToDOT converts an assigned resolution map to Graphviz DOT. Nodes sharing
// a rung are grouped into a same-rank band so the renderer keeps the levels
// aligned. The resulting string can be rendered with [RenderSVG] or handed
// to any external Graphviz backend.
func ToDOT(g *dag.DAG, opts DotOptions) string {
	var buf bytes.Buffer
	buf.WriteString("digraph resolutionmap {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.15,0.08\"];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, row := range g.RowIDs() {
		nodes := sortedByID(g.NodesInRow(row))
		fmt.Fprintf(&buf, "  { rank=same;")
		for _, n := range nodes {
			fmt.Fprintf(&buf, " %q;", n.ID)
		}
		buf.WriteString(" }\n")
		for _, n := range nodes {
			fmt.Fprintf(&buf, "  %q [label=%q];\n", n.ID, fmtLabel(n, opts.Detailed))
		}
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	if opts.Annotate {
		writeAnnotations(&buf, g)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n *dag.Node, detailed bool) string {
	label := n.DisplayLabel()
	if detailed {
		label += fmt.Sprintf("\nvalue %.1f rung %d", n.Value, n.Row)
	}
	return label
}

// writeAnnotations emits a plaintext side note next to every node with
// unaccounted mass.
func writeAnnotations(buf *bytes.Buffer, g *dag.DAG) {
	buf.WriteString("\n")
	nodes := sortedByID(g.Nodes())
	for _, n := range nodes {
		if n.Missing <= 0 {
			continue
		}
		note := n.ID + ".missing"
		fmt.Fprintf(buf, "  %q [shape=plaintext, fontsize=10, label=%q];\n",
			note, fmt.Sprintf("%.0f%% unaccounted", n.Missing*100))
		fmt.Fprintf(buf, "  { rank=same; %q; %q; }\n", n.ID, note)
		fmt.Fprintf(buf, "  %q -> %q [style=dashed, arrowhead=none];\n", n.ID, note)
	}
}

func sortedByID(nodes []*dag.Node) []*dag.Node {
	out := make([]*dag.Node, len(nodes))
	copy(out, nodes)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

