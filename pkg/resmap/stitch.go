package resmap

import (
	"fmt"

	"github.com/canopyviz/canopy/pkg/mergetree"
)

// Stitch derives resolution-map records from a sequence of clusterings in
// descending resolution order, as produced by the cutter. Each cluster
// becomes one node named "r<resolution>.c<index>"; each cluster at a finer
// resolution is linked to the coarse cluster that contains it. A cluster
// emitted unchanged at consecutive resolutions still yields two linked
// nodes — the rung assigner separates them.
//
// Stitch needs the forest nodes behind the clusters for their merge values,
// so it only accepts clusterings produced by [mergetree.Cut], not ones
// loaded back from files.
func Stitch(clusterings []mergetree.Clustering) (Document, error) {
	var doc Document

	// item -> node name at the previous (coarser) level
	var coarser map[string]string

	for _, c := range clusterings {
		level := make(map[string]string, len(c.Clusters))
		for i, cl := range c.Clusters {
			n := cl.Node()
			if n == nil {
				return Document{}, fmt.Errorf("resolution %d: cluster %d has no forest node", c.Resolution, i)
			}
			name := fmt.Sprintf("r%d.c%d", c.Resolution, i)
			doc.Nodes = append(doc.Nodes, NodeRecord{
				Name:       name,
				Value:      mergeValue(n),
				Size:       cl.Size,
				Quality:    cl.Quality,
				Resolution: c.Resolution,
			})
			for _, item := range cl.Items {
				level[item] = name
			}
			if coarser != nil {
				// Nesting guarantees all items share one parent.
				doc.Links = append(doc.Links, LinkRecord{
					Parent: coarser[cl.Items[0]],
					Child:  name,
				})
			}
		}
		coarser = level
	}
	return doc, nil
}

// mergeValue maps a forest node to the percentage merge value used for rung
// placement. Singletons hold together trivially and get the maximum value.
func mergeValue(n *mergetree.Node) float64 {
	if n.IsLeaf() {
		return 100
	}
	return n.Similarity * 100
}
