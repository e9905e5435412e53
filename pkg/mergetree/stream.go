package mergetree

import (
	"fmt"
	"strconv"
	"strings"
)

// MergeEvent is one record of the input stream: the union of two existing
// clusters into a new one, as produced by an upstream single-linkage
// agglomeration. Cluster ids are recycled handles, not stable identities;
// after this event both ids refer to the merged entity.
type MergeEvent struct {
	OrderIndex   int
	ReprItemX    string
	ReprItemY    string
	ClusterIDX   int
	ClusterIDY   int
	Similarity   float64
	ClusterSizeX int
	ClusterSizeY int
	MergedSize   int
	EdgeCount    int
	Centrality   float64
	Quality      float64
}

// streamColumns is the fixed column count of a merge record.
const streamColumns = 12

// parseEvent decodes one whitespace-delimited record. record is the
// 1-based line number used in error context.
func parseEvent(line string, record int) (MergeEvent, error) {
	fields := strings.Fields(line)
	if len(fields) != streamColumns {
		return MergeEvent{}, fmt.Errorf("record %d: got %d fields, want %d: %w",
			record, len(fields), streamColumns, ErrInvalidStream)
	}

	var (
		ev  MergeEvent
		err error
	)

	intField := func(i int, name string) int {
		if err != nil {
			return 0
		}
		var v int
		if v, err = strconv.Atoi(fields[i]); err != nil {
			err = fmt.Errorf("record %d: %s %q: %w", record, name, fields[i], ErrInvalidStream)
		}
		return v
	}
	floatField := func(i int, name string) float64 {
		if err != nil {
			return 0
		}
		var v float64
		if v, err = strconv.ParseFloat(fields[i], 64); err != nil {
			err = fmt.Errorf("record %d: %s %q: %w", record, name, fields[i], ErrInvalidStream)
		}
		return v
	}

	ev.OrderIndex = intField(0, "order index")
	ev.ReprItemX = fields[1]
	ev.ReprItemY = fields[2]
	ev.ClusterIDX = intField(3, "cluster id x")
	ev.ClusterIDY = intField(4, "cluster id y")
	ev.Similarity = floatField(5, "similarity")
	ev.ClusterSizeX = intField(6, "cluster size x")
	ev.ClusterSizeY = intField(7, "cluster size y")
	ev.MergedSize = intField(8, "merged size")
	ev.EdgeCount = intField(9, "edge count")
	ev.Centrality = floatField(10, "centrality")
	ev.Quality = floatField(11, "quality")
	if err != nil {
		return MergeEvent{}, err
	}
	return ev, nil
}

// canonicalize orders the pair smaller-id-first. The ordering only affects
// naming and item order, not merge semantics.
func (ev MergeEvent) canonicalize() MergeEvent {
	if ev.ClusterIDY < ev.ClusterIDX {
		ev.ClusterIDX, ev.ClusterIDY = ev.ClusterIDY, ev.ClusterIDX
		ev.ReprItemX, ev.ReprItemY = ev.ReprItemY, ev.ReprItemX
		ev.ClusterSizeX, ev.ClusterSizeY = ev.ClusterSizeY, ev.ClusterSizeX
	}
	return ev
}
