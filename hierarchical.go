package spectra

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"
)

// ErrInvalidTargetClusterCount is returned when the requested number of
// clusters is not positive.
var ErrInvalidTargetClusterCount = errors.New("target cluster count must be positive")

var (
	// DefaultWorkers is the number of goroutines computing the initial
	// distance matrix when WithWorkers is not given.
	DefaultWorkers = 1
)

// ClusterState is the phase a HierarchicalClusterer is in.
type ClusterState int

const (
	// StateIdle: no run has started.
	StateIdle ClusterState = iota
	// StateSeeding: reading atoms and building the pairwise distance index.
	StateSeeding
	// StateMerging: repeatedly merging the closest pair.
	StateMerging
	// StateDone: the target cluster count (or a single cluster) was reached.
	StateDone
)

func (s ClusterState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSeeding:
		return "seeding"
	case StateMerging:
		return "merging"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("ClusterState(%d)", int(s))
	}
}

// MergeStep records one merge: Absorbed was merged into Kept at Distance.
// Sizes are taken before the merge; Clusters is the live count after it.
type MergeStep struct {
	Kept         ClusterID
	Absorbed     ClusterID
	Distance     float32
	KeptSize     int
	AbsorbedSize int
	Clusters     int
}

// HierarchicalResult is the outcome of a clustering run.
type HierarchicalResult struct {
	// Partition maps each surviving cluster to its atoms.
	Partition Partition

	// Merges lists the merges in the order they happened.
	Merges []MergeStep

	// InitialClusters is the number of singleton clusters seeded.
	InitialClusters int
}

// HierarchicalOption configures a HierarchicalClusterer.
type HierarchicalOption func(*HierarchicalClusterer)

// WithNormalizer sets the rounding policy applied to every seeded distance.
// By default each distance is rounded by the Normalizer of the atom read
// later of the two.
func WithNormalizer(n Normalizer) HierarchicalOption {
	return func(hc *HierarchicalClusterer) {
		hc.normalizer = n
	}
}

// WithWorkers sets how many goroutines compute the initial distance matrix.
// Values below 1 are treated as 1. Merging is always sequential.
func WithWorkers(n int) HierarchicalOption {
	return func(hc *HierarchicalClusterer) {
		hc.workers = max(n, 1)
	}
}

// WithPrecision sets the storage precision of the distance matrix.
func WithPrecision(p Precision) HierarchicalOption {
	return func(hc *HierarchicalClusterer) {
		hc.precision = p
	}
}

// WithLogger sets the logger. Merges are logged at debug level.
func WithLogger(l *slog.Logger) HierarchicalOption {
	return func(hc *HierarchicalClusterer) {
		if l != nil {
			hc.logger = l
		}
	}
}

// WithMergeObserver registers fn to be called after every merge, while the
// index and membership reflect the merge.
func WithMergeObserver(fn func(MergeStep)) HierarchicalOption {
	return func(hc *HierarchicalClusterer) {
		hc.observer = fn
	}
}

// HierarchicalClusterer performs bottom-up (agglomerative) clustering.
//
// # ALGORITHM
//
//  1. SEEDING: every atom becomes a singleton cluster named after the atom,
//     and the distance between every pair of atoms is stored in a
//     PairwiseDistanceIndex. O(n^2) time and memory.
//  2. MERGING: while more than the target number of clusters (and more than
//     one) remain, the globally closest pair (A, B) is merged: B's atoms move
//     into A, B disappears, and the distance from A∪B to every other cluster Q
//     is derived from the distances already known:
//
//     d(A∪B, Q) = [(|A|+|Q|)·d(A,Q) + (|B|+|Q|)·d(B,Q) − |Q|·d(A,B)] / (|A|+|B|+|Q|)
//
//     Raw vectors are never consulted again after seeding.
//  3. DONE: the surviving clusters form the partition.
//
// # TIE-BREAKING
//
// Pairs at equal distance are ordered by lower cluster id, then higher
// cluster id. The kept cluster is always the one with the lower id.
//
// # MISSING PAIRS
//
// When only one of d(A,Q), d(B,Q) is known (possible with an index built by
// the caller), that distance is carried over to (A∪B, Q). When neither is
// known, A∪B and Q get no pair. If the index runs out of pairs before the
// target is reached, merging stops early.
//
// Vectors are not normalized by the clusterer; normalize them before seeding.
//
// A HierarchicalClusterer runs one clustering at a time and is not safe for
// concurrent use.
type HierarchicalClusterer struct {
	target     int
	metric     Metric
	normalizer Normalizer
	workers    int
	precision  Precision
	logger     *slog.Logger
	observer   func(MergeStep)
	state      ClusterState
}

// NewHierarchicalClusterer creates a clusterer that merges down to target
// clusters using metric m.
//
// Returns ErrInvalidTargetClusterCount if target < 1 and ErrInvalidMetric if
// m is not supported.
//
// Example:
//
//	hc, err := NewHierarchicalClusterer(5, EuclideanSquared, WithWorkers(4))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := hc.Cluster(NewSliceSource(atoms...))
func NewHierarchicalClusterer(target int, m Metric, opts ...HierarchicalOption) (*HierarchicalClusterer, error) {
	if target < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTargetClusterCount, target)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	hc := &HierarchicalClusterer{
		target:    target,
		metric:    m,
		workers:   DefaultWorkers,
		precision: FullPrecision,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(hc)
	}

	if _, err := newDistanceStore(hc.precision); err != nil {
		return nil, err
	}
	return hc, nil
}

// Target returns the requested number of clusters.
func (hc *HierarchicalClusterer) Target() int {
	return hc.target
}

// Metric returns the distance metric.
func (hc *HierarchicalClusterer) Metric() Metric {
	return hc.metric
}

// State returns the phase of the current or last run.
func (hc *HierarchicalClusterer) State() ClusterState {
	return hc.state
}

// Cluster reads every atom from src, seeds the distance index and merges
// down to the target count.
//
// An empty source yields an empty partition. If the target is at least the
// number of atoms, the singleton partition is returned without merging.
func (hc *HierarchicalClusterer) Cluster(src AtomSource) (*HierarchicalResult, error) {
	hc.state = StateSeeding
	index, members, err := hc.seed(src)
	if err != nil {
		hc.state = StateIdle
		return nil, err
	}
	return hc.Agglomerate(index, members)
}

// seed builds one singleton per atom and the full distance index.
func (hc *HierarchicalClusterer) seed(src AtomSource) (*PairwiseDistanceIndex, *ClusterMembership, error) {
	members := NewClusterMembership()
	var atoms []Atom
	for src.Next() {
		atom := src.Atom()
		if atom.Vector == nil {
			return nil, nil, fmt.Errorf("%w: atom %d", ErrNilVector, atom.ID)
		}
		if _, err := members.AddSingleton(atom.ID); err != nil {
			return nil, nil, err
		}
		atoms = append(atoms, atom)
	}
	if err := src.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading atoms: %w", err)
	}

	index, err := NewPairwiseDistanceIndex(hc.precision)
	if err != nil {
		return nil, nil, err
	}
	for _, atom := range atoms {
		if err := index.AddCluster(ClusterID(atom.ID)); err != nil {
			return nil, nil, err
		}
	}
	if err := hc.fillDistances(index, atoms); err != nil {
		return nil, nil, err
	}
	index.reindex()

	hc.logger.Debug("seeded distance index",
		"atoms", len(atoms),
		"pairs", index.Len(),
		"metric", hc.metric,
		"precision", index.Precision(),
		"workers", hc.workers)
	return index, members, nil
}

// fillDistances writes the distance of every atom pair into the index store.
// Atoms were registered in order, so atom j owns row j of the condensed
// matrix; rows are disjoint and can be computed concurrently.
func (hc *HierarchicalClusterer) fillDistances(index *PairwiseDistanceIndex, atoms []Atom) error {
	row := func(j int) error {
		later := atoms[j]
		n := hc.normalizer
		if n == nil {
			n = later.Vector.Normalizer()
		}
		for i := 0; i < j; i++ {
			d, err := distanceWith(later.Vector, atoms[i].Vector, hc.metric, n)
			if err != nil {
				return err
			}
			if isAbsent(d) {
				return fmt.Errorf("%w: NaN between atoms %d and %d", ErrInvalidDistance, later.ID, atoms[i].ID)
			}
			index.store.set(cell(i, j), d)
		}
		return nil
	}

	if hc.workers <= 1 {
		for j := 1; j < len(atoms); j++ {
			if err := row(j); err != nil {
				return err
			}
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(hc.workers)
	for j := 1; j < len(atoms); j++ {
		g.Go(func() error {
			return row(j)
		})
	}
	return g.Wait()
}

// Agglomerate runs the merge loop on a caller-built index and membership,
// for example one filled with precomputed distances. Clusters present in
// members but not in index are registered without pairs. Both are modified
// in place. If a merge fails (a Lance-Williams update yields NaN), that merge
// is not applied: index and members hold the state after the last successful
// merge.
func (hc *HierarchicalClusterer) Agglomerate(index *PairwiseDistanceIndex, members *ClusterMembership) (*HierarchicalResult, error) {
	if index == nil || members == nil {
		return nil, errors.New("agglomerate: index and membership are required")
	}
	for _, id := range members.IDs() {
		if !index.Contains(id) {
			if err := index.AddCluster(id); err != nil {
				return nil, err
			}
		}
	}
	if index.Clusters() != members.Len() {
		return nil, fmt.Errorf("%w: index holds %d clusters, membership %d",
			ErrUnknownCluster, index.Clusters(), members.Len())
	}

	hc.state = StateMerging
	result := &HierarchicalResult{InitialClusters: members.Len()}

	for members.Len() > hc.target && members.Len() > 1 {
		pair, ok := index.Min()
		if !ok {
			hc.logger.Warn("no cluster pairs left before reaching target",
				"clusters", members.Len(),
				"target", hc.target)
			break
		}

		step, err := hc.merge(index, members, pair)
		if err != nil {
			hc.state = StateIdle
			return nil, err
		}
		result.Merges = append(result.Merges, step)

		hc.logger.Debug("merged clusters",
			"kept", step.Kept,
			"absorbed", step.Absorbed,
			"distance", step.Distance,
			"clusters", step.Clusters)
		if hc.observer != nil {
			hc.observer(step)
		}
	}

	hc.state = StateDone
	result.Partition = members.Partition()
	return result, nil
}

// merge folds pair.B into pair.A and re-derives A's distances. The new
// distances are computed and checked before anything is modified, so a
// failed merge leaves index and members as they were.
func (hc *HierarchicalClusterer) merge(index *PairwiseDistanceIndex, members *ClusterMembership, pair ClusterPair) (MergeStep, error) {
	a, b, dAB := pair.A, pair.B, pair.Distance
	sizeA, sizeB := members.Size(a), members.Size(b)

	var updates []ClusterPair
	for _, q := range members.IDs() {
		if q == a || q == b {
			continue
		}
		dAQ, okA := index.Distance(a, q)
		dBQ, okB := index.Distance(b, q)

		var d float32
		switch {
		case okA && okB:
			d = LanceWilliams(sizeA, sizeB, members.Size(q), dAQ, dBQ, dAB)
		case okA:
			d = dAQ
		case okB:
			d = dBQ
		default:
			continue
		}
		if math.IsNaN(float64(d)) {
			return MergeStep{}, fmt.Errorf("%w: NaN for pair (%d, %d) merging %d into %d",
				ErrInvalidDistance, a, q, b, a)
		}
		updates = append(updates, ClusterPair{A: a, B: q, Distance: d})
	}

	if err := members.Merge(a, b); err != nil {
		return MergeStep{}, err
	}
	if _, err := index.RemovePairsOf(a); err != nil {
		return MergeStep{}, err
	}
	if _, err := index.RemoveCluster(b); err != nil {
		return MergeStep{}, err
	}
	for _, p := range updates {
		if err := index.Insert(p); err != nil {
			return MergeStep{}, err
		}
	}

	return MergeStep{
		Kept:         a,
		Absorbed:     b,
		Distance:     dAB,
		KeptSize:     sizeA,
		AbsorbedSize: sizeB,
		Clusters:     members.Len(),
	}, nil
}

// LanceWilliams returns the distance from the union of clusters A and B to a
// third cluster Q, given the sizes before the merge and the three pairwise
// distances:
//
//	d(A∪B, Q) = [(|A|+|Q|)·d(A,Q) + (|B|+|Q|)·d(B,Q) − |Q|·d(A,B)] / (|A|+|B|+|Q|)
//
// Example:
//
//	LanceWilliams(1, 1, 1, 5, 4, 2) // (2*5 + 2*4 - 2) / 3 = 5.333...
func LanceWilliams(sizeA, sizeB, sizeQ int, dAQ, dBQ, dAB float32) float32 {
	na, nb, nq := float64(sizeA), float64(sizeB), float64(sizeQ)
	num := (na+nq)*float64(dAQ) + (nb+nq)*float64(dBQ) - nq*float64(dAB)
	return float32(num / (na + nb + nq))
}
