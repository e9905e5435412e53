// Package mergetree builds binary merge forests from single-linkage merge
// streams and cuts them into clusterings at caller-supplied resolutions.
//
// # Overview
//
// An upstream agglomeration tool joins clusters pairwise and emits one merge
// event per join. The events reuse external cluster ids: once two ids merge,
// both refer to the merged entity from then on. [Build] consumes such a
// stream in order and produces an immutable [Forest] of [Node] values, one
// internal node per event plus lazily materialized singleton leaves.
//
// Every node carries its largest stable split (LSS): the best bifurcation
// balance achievable anywhere inside its subtree,
//
//	lss(n) = max(lss(left), lss(right), min(size(left), size(right)))
//
// with lss(leaf) = 0. The LSS lets [Cut] decide in O(1) whether a node can
// still be divided into two parts that each reach a given resolution.
//
// # Resolutions
//
// A resolution R is a minimum cluster size: no emitted cluster may be
// splittable into two parts that are both of size >= R. [Cut] processes
// resolutions in descending order and starts each pass from the previous
// pass's output frontier, so finer clusterings always nest inside coarser
// ones by construction.
//
// # Basic Usage
//
//	f, err := mergetree.Build(streamReader)
//	if err != nil {
//	    return err
//	}
//	clusterings, err := mergetree.Cut(f, []int{100, 50, 10})
//
// The forest is immutable after Build returns and may be shared read-only
// across any number of Cut calls.
package mergetree
