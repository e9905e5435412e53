// Package resmap turns per-resolution clusterings into a leveled resolution
// map: a small DAG whose nodes are clusters at each resolution and whose
// edges are parent-to-child containment links across resolutions.
//
// [Stitch] derives the node and link records from a descending sequence of
// clusterings. [Assign] places each node on a discrete rung derived from
// its merge value, resolves rung collisions between parents and their
// children, and drops nodes below a minimum size. [ToDOT] and [RenderSVG]
// emit the leveled graph for a Graphviz backend.
package resmap
