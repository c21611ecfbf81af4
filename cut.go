package spectra

// ============================================================================
// DENDROGRAM CUTS
// ============================================================================

// Cut returns the partition after the first merges merges of the run, i.e. the
// dendrogram cut at InitialClusters - merges clusters. merges is clamped to
// [0, len(r.Merges)], so Cut(len(r.Merges)) equals r.Partition.
//
// Example:
//
//	result, _ := hc.Cluster(src)  // target 1: the full dendrogram
//	five := result.Cut(result.InitialClusters - 5)
func (r *HierarchicalResult) Cut(merges int) Partition {
	merges = clampMerges(merges, len(r.Merges))

	// Kept and Absorbed were both live when merged, so each merge links two
	// roots and a plain parent map is a union-find without ranks.
	parent := make(map[ClusterID]ClusterID, merges)
	for _, step := range r.Merges[:merges] {
		parent[step.Absorbed] = step.Kept
	}
	root := func(id ClusterID) ClusterID {
		for {
			p, ok := parent[id]
			if !ok {
				return id
			}
			id = p
		}
	}

	p := make(Partition)
	for _, id := range r.Partition.IDs() {
		for _, atom := range r.Partition[id] {
			c := root(ClusterID(atom))
			p[c] = append(p[c], atom)
		}
	}
	return p
}

// AutoCut cuts the dendrogram where merge distances jump, using Autocut on
// the merge distances. cutOff is the number of jumps to pass before cutting;
// 1 cuts at the first one.
func (r *HierarchicalResult) AutoCut(cutOff int) Partition {
	distances := make([]float32, len(r.Merges))
	for i, step := range r.Merges {
		distances[i] = step.Distance
	}
	return r.Cut(Autocut(distances, cutOff))
}

// clampMerges bounds a merge count to [0, total].
func clampMerges(merges, total int) int {
	return max(0, min(merges, total))
}

// Autocut determines the cutoff point in a distance sequence.
//
// It analyzes the normalized difference between the values and an ideal
// linear increase to find local maxima (extrema). Returns the index before the
// Nth extremum where N is the cutOff parameter, or len(yValues) when there
// are fewer extrema.
//
// Parameters:
//   - yValues: values in the order they occurred (typically merge distances)
//   - cutOff: number of extrema to encounter before cutting
func Autocut(yValues []float32, cutOff int) int {
	if len(yValues) <= 1 {
		return len(yValues)
	}

	first, last := yValues[0], yValues[len(yValues)-1]
	if first == last {
		return len(yValues)
	}

	diff := make([]float32, len(yValues))
	step := 1. / (float32(len(yValues)) - 1.)
	for i := range yValues {
		xValue := float32(i) * step
		yValueNorm := (yValues[i] - first) / (last - first)
		diff[i] = yValueNorm - xValue
	}

	extremaCount := 0
	for i := 1; i < len(diff); i++ {
		// The last point has no successor; compare it with the two before it.
		var peak bool
		if i == len(diff)-1 {
			peak = diff[i] > diff[i-1] && (i < 2 || diff[i] > diff[i-2])
		} else {
			peak = diff[i] > diff[i-1] && diff[i] > diff[i+1]
		}
		if !peak {
			continue
		}
		extremaCount++
		if extremaCount >= cutOff {
			return i
		}
	}
	return len(yValues)
}
