package spectra

import (
	"math"
)

const (
	// UnassignedCluster indicates a vector hasn't been assigned to any cluster yet
	UnassignedCluster = -1
)

var (
	// DefaultMaxIter is the default maximum number of iterations for k-means clustering.
	DefaultMaxIter = 20
)

// KMeans partitions spectra into k clusters around learned centroids.
//
// # K-MEANS CLUSTERING ALGORITHM
//
// K-means is the flat alternative to HierarchicalClusterer: instead of
// merging pairs bottom-up it refines k centroids directly. It needs no
// pairwise distance matrix, so it scales to inputs where O(n^2) memory is out
// of reach.
//
// Algorithm Steps:
//  1. INITIALIZATION: Select k initial centroids (uniform spacing over the input)
//  2. ASSIGNMENT: Assign each vector to its nearest centroid under m
//  3. UPDATE: Recompute centroids as the mean of assigned vectors
//  4. REPEAT: Steps 2-3 until convergence or max iterations
//
// CONVERGENCE:
// The algorithm converges when assignments stop changing.
//
// CENTROIDS:
// A centroid is the bin-wise mean of its members, so its support is the union
// of the members' bins. Assignment uses raw distances (no rounding policy) so
// far-apart vectors are not flattened onto the same clamped value.
//
// TIME COMPLEXITY:
// O(iterations × k × n × p) where p is the typical number of populated bins.
//
// Parameters:
//   - vectors: spectra to cluster, typically normalized under m
//   - k: number of clusters; values above len(vectors) are reduced to it
//   - m: distance metric
//   - maxIter: maximum iterations; values <= 0 select DefaultMaxIter
//
// Returns:
//   - []*SparseVector: the learned centroids
//   - []int: cluster assignments for each input vector (vector i -> cluster assignments[i])
//   - error: ErrInvalidMetric for an unsupported metric, ErrNilVector for a nil input
//
// Empty input or k <= 0 returns nil centroids and assignments.
func KMeans(vectors []*SparseVector, k int, m Metric, maxIter int) (centroids []*SparseVector, assignments []int, err error) {
	// ═══════════════════════════════════════════════════════════════════════════
	// INPUT VALIDATION
	// ═══════════════════════════════════════════════════════════════════════════
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}
	for _, v := range vectors {
		if v == nil {
			return nil, nil, ErrNilVector
		}
	}
	if len(vectors) == 0 || k <= 0 {
		return nil, nil, nil
	}
	k = min(k, len(vectors))
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}

	// ═══════════════════════════════════════════════════════════════════════════
	// STEP 1: INITIALIZE CENTROIDS
	// ═══════════════════════════════════════════════════════════════════════════
	// Use uniform spacing: pick every (n/k)-th vector as initial centroid
	centroids = make([]*SparseVector, k)
	samplingStep := max(len(vectors)/k, 1)
	for clusterIdx := range centroids {
		vectorIdx := min(clusterIdx*samplingStep, len(vectors)-1)
		centroids[clusterIdx] = vectors[vectorIdx].Copy()
	}

	assignments = make([]int, len(vectors))
	for i := range assignments {
		assignments[i] = UnassignedCluster
	}

	// ═══════════════════════════════════════════════════════════════════════════
	// STEP 2-4: ITERATE UNTIL CONVERGENCE
	// ═══════════════════════════════════════════════════════════════════════════
	for iteration := 0; iteration < maxIter; iteration++ {
		// ───────────────────────────────────────────────────────────────────────
		// ASSIGNMENT STEP
		// ───────────────────────────────────────────────────────────────────────
		assignmentsChanged := false
		for vectorIdx, vector := range vectors {
			nearest, _ := nearestCentroid(vector, centroids, m)
			if assignments[vectorIdx] != nearest {
				assignmentsChanged = true
				assignments[vectorIdx] = nearest
			}
		}

		if !assignmentsChanged {
			break
		}

		// ───────────────────────────────────────────────────────────────────────
		// UPDATE STEP: single pass accumulating running sums per cluster
		// ───────────────────────────────────────────────────────────────────────
		sums := make([]*SparseVector, k)
		sizes := make([]int, k)
		for vectorIdx, c := range assignments {
			if sums[c] == nil {
				sums[c] = NewSparseVectorWithNormalizer(vectors[vectorIdx].Normalizer())
			}
			sums[c].AddVector(vectors[vectorIdx])
			sizes[c]++
		}

		for clusterIdx, sum := range sums {
			// An empty cluster keeps its previous centroid.
			if sizes[clusterIdx] == 0 {
				continue
			}
			sum.DivideBy(float32(sizes[clusterIdx]))
			centroids[clusterIdx] = sum
		}
	}

	return centroids, assignments, nil
}

// Centroid returns the bin-wise mean of vectors, sharing the Normalizer of
// the first one. Centroid of nothing is an empty vector.
func Centroid(vectors ...*SparseVector) *SparseVector {
	if len(vectors) == 0 {
		return NewSparseVector()
	}
	c := NewSparseVectorWithNormalizer(vectors[0].Normalizer())
	for _, v := range vectors {
		c.AddWeighted(v, 1)
	}
	c.DivideBy(float32(len(vectors)))
	return c
}

// nearestCentroid returns the index of the centroid closest to v and its raw
// distance. The first centroid wins ties.
func nearestCentroid(v *SparseVector, centroids []*SparseVector, m Metric) (int, float32) {
	nearest := 0
	nearestDistance := float32(math.Inf(1))
	for i, c := range centroids {
		d, err := distanceWith(v, c, m, NopNormalizer{})
		if err != nil {
			continue
		}
		if d < nearestDistance {
			nearestDistance = d
			nearest = i
		}
	}
	return nearest, nearestDistance
}
