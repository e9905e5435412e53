// Package dag provides the leveled graph structure behind resolution maps.
//
// A resolution map shows how clusters at coarser resolutions contain
// clusters at finer ones. Each cluster is a [Node] assigned to a horizontal
// row (its rung), and each containment relation is a parent-to-child [Edge]
// pointing strictly downward. Edges may skip rows: a coarse cluster's child
// can land several rungs below when their merge values are far apart.
//
// Build a graph with [New], [DAG.AddNode], and [DAG.AddEdge]; reassign rungs
// in bulk with [DAG.SetRows]; check integrity with [DAG.Validate] before
// handing the graph to a renderer.
//
// DAG instances are not safe for concurrent mutation. A finished graph is
// effectively immutable and may be read from any number of goroutines.
package dag
