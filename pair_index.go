package spectra

import (
	"errors"
	"fmt"
	"iter"
	"math"
)

var (
	// ErrDuplicateCluster is returned when a cluster id is registered twice.
	ErrDuplicateCluster = errors.New("cluster already registered")

	// ErrUnknownCluster is returned when an operation names a cluster that is
	// not live.
	ErrUnknownCluster = errors.New("unknown cluster")

	// ErrSelfPair is returned when a pair references the same cluster twice.
	ErrSelfPair = errors.New("pair references the same cluster twice")

	// ErrInvalidDistance is returned when a NaN distance is inserted.
	ErrInvalidDistance = errors.New("invalid distance")
)

// ClusterID identifies a cluster by the atom that founded it.
type ClusterID uint32

// ClusterPair is the distance between two clusters.
// Pairs returned by PairwiseDistanceIndex always have A < B.
type ClusterPair struct {
	A        ClusterID
	B        ClusterID
	Distance float32
}

// ordered returns p with A < B.
func (p ClusterPair) ordered() ClusterPair {
	if p.B < p.A {
		p.A, p.B = p.B, p.A
	}
	return p
}

// Before reports whether p sorts before q: smaller distance first, then the
// lower cluster id, then the higher one. This is the tie-break rule used to
// pick the next merge, so results are reproducible.
func (p ClusterPair) Before(q ClusterPair) bool {
	p, q = p.ordered(), q.ordered()
	if p.Distance != q.Distance {
		return p.Distance < q.Distance
	}
	if p.A != q.A {
		return p.A < q.A
	}
	return p.B < q.B
}

// PairwiseDistanceIndex holds the current distance between live pairs of
// clusters.
//
// # STORAGE
//
// Clusters occupy slots in an arena. Distances live in a condensed
// lower-triangular matrix over slots: the pair of slots (i, j) with i < j is
// cell j*(j-1)/2 + i, so registering a cluster appends one row. An absent pair
// is NaN. Removing a cluster tombstones its slot; slots are never reused.
//
// # MINIMUM EXTRACTION
//
// Every live slot caches its nearest neighbour. The global minimum is the
// best cached neighbour, found in O(n). A cache entry is rebuilt (O(n)) only
// when the pair it points at is removed or grows; a new pair that beats the
// cached one replaces it directly.
//
// Memory: n*(n-1)/2 distances at the chosen precision plus O(n).
//
// The index is not safe for concurrent use.
type PairwiseDistanceIndex struct {
	store distanceStore

	slotOf map[ClusterID]int
	ids    []ClusterID
	live   []bool

	// nearest[i] is the slot closest to slot i, -1 if slot i has no pair.
	nearest     []int
	nearestDist []float32

	pairs    int
	clusters int
}

// NewPairwiseDistanceIndex creates an empty index storing distances at
// precision p. An empty p selects FullPrecision.
func NewPairwiseDistanceIndex(p Precision) (*PairwiseDistanceIndex, error) {
	store, err := newDistanceStore(p)
	if err != nil {
		return nil, err
	}
	return &PairwiseDistanceIndex{
		store:  store,
		slotOf: make(map[ClusterID]int),
	}, nil
}

// Precision returns the storage precision of the index.
func (ix *PairwiseDistanceIndex) Precision() Precision {
	return ix.store.precision()
}

// Len returns the number of pairs currently held.
func (ix *PairwiseDistanceIndex) Len() int {
	return ix.pairs
}

// Clusters returns the number of live clusters registered in the index.
func (ix *PairwiseDistanceIndex) Clusters() int {
	return ix.clusters
}

// Contains reports whether id is a live cluster of the index.
func (ix *PairwiseDistanceIndex) Contains(id ClusterID) bool {
	_, ok := ix.slotOf[id]
	return ok
}

// AddCluster registers a cluster with no pairs.
func (ix *PairwiseDistanceIndex) AddCluster(id ClusterID) error {
	if _, ok := ix.slotOf[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateCluster, id)
	}
	ix.addSlot(id)
	return nil
}

func (ix *PairwiseDistanceIndex) addSlot(id ClusterID) int {
	slot := len(ix.ids)
	ix.store.grow(slot)
	ix.slotOf[id] = slot
	ix.ids = append(ix.ids, id)
	ix.live = append(ix.live, true)
	ix.nearest = append(ix.nearest, -1)
	ix.nearestDist = append(ix.nearestDist, absent32)
	ix.clusters++
	return slot
}

// cell returns the condensed matrix position of the slot pair.
func cell(i, j int) int {
	if i > j {
		i, j = j, i
	}
	return j*(j-1)/2 + i
}

// Insert stores p, replacing any distance already held for the same pair.
// Clusters that are not registered yet are registered on the fly.
func (ix *PairwiseDistanceIndex) Insert(p ClusterPair) error {
	if p.A == p.B {
		return fmt.Errorf("%w: %d", ErrSelfPair, p.A)
	}
	if math.IsNaN(float64(p.Distance)) {
		return fmt.Errorf("%w: NaN for pair (%d, %d)", ErrInvalidDistance, p.A, p.B)
	}

	i, ok := ix.slotOf[p.A]
	if !ok {
		i = ix.addSlot(p.A)
	}
	j, ok := ix.slotOf[p.B]
	if !ok {
		j = ix.addSlot(p.B)
	}

	c := cell(i, j)
	if isAbsent(ix.store.get(c)) {
		ix.pairs++
	}
	ix.store.set(c, p.Distance)

	d := ix.store.get(c)
	ix.offer(i, j, d)
	ix.offer(j, i, d)
	return nil
}

// offer updates slot i's nearest neighbour after the pair (i, j) changed to d.
func (ix *PairwiseDistanceIndex) offer(i, j int, d float32) {
	switch {
	case ix.nearest[i] == j:
		if d <= ix.nearestDist[i] {
			ix.nearestDist[i] = d
			return
		}
		ix.refresh(i)
	case ix.nearest[i] < 0 || ix.before(i, j, d, ix.nearest[i], ix.nearestDist[i]):
		ix.nearest[i] = j
		ix.nearestDist[i] = d
	}
}

// before reports whether pair (i, j) at distance dj sorts before pair (i, k)
// at distance dk.
func (ix *PairwiseDistanceIndex) before(i, j int, dj float32, k int, dk float32) bool {
	return ClusterPair{A: ix.ids[i], B: ix.ids[j], Distance: dj}.
		Before(ClusterPair{A: ix.ids[i], B: ix.ids[k], Distance: dk})
}

// refresh recomputes slot i's nearest neighbour from scratch.
func (ix *PairwiseDistanceIndex) refresh(i int) {
	ix.nearest[i] = -1
	ix.nearestDist[i] = absent32
	for j := range ix.ids {
		if j == i || !ix.live[j] {
			continue
		}
		d := ix.store.get(cell(i, j))
		if isAbsent(d) {
			continue
		}
		if ix.nearest[i] < 0 || ix.before(i, j, d, ix.nearest[i], ix.nearestDist[i]) {
			ix.nearest[i] = j
			ix.nearestDist[i] = d
		}
	}
}

// reindex recounts pairs and rebuilds every nearest neighbour. Used after the
// store was filled directly.
func (ix *PairwiseDistanceIndex) reindex() {
	ix.pairs = 0
	for j := range ix.ids {
		if !ix.live[j] {
			continue
		}
		for i := 0; i < j; i++ {
			if ix.live[i] && !isAbsent(ix.store.get(cell(i, j))) {
				ix.pairs++
			}
		}
	}
	for i := range ix.ids {
		if ix.live[i] {
			ix.refresh(i)
		}
	}
}

// Distance returns the distance held for the pair (a, b).
func (ix *PairwiseDistanceIndex) Distance(a, b ClusterID) (float32, bool) {
	i, ok := ix.slotOf[a]
	if !ok {
		return 0, false
	}
	j, ok := ix.slotOf[b]
	if !ok || i == j {
		return 0, false
	}
	d := ix.store.get(cell(i, j))
	if isAbsent(d) {
		return 0, false
	}
	return d, true
}

// Min returns the globally minimal pair without removing it. Ties are broken
// by ClusterPair.Before. ok is false when the index holds no pair.
func (ix *PairwiseDistanceIndex) Min() (ClusterPair, bool) {
	var best ClusterPair
	found := false
	for i, j := range ix.nearest {
		if j < 0 || !ix.live[i] {
			continue
		}
		candidate := ClusterPair{A: ix.ids[i], B: ix.ids[j], Distance: ix.nearestDist[i]}.ordered()
		if !found || candidate.Before(best) {
			best = candidate
			found = true
		}
	}
	return best, found
}

// PopMin removes and returns the globally minimal pair.
func (ix *PairwiseDistanceIndex) PopMin() (ClusterPair, bool) {
	p, ok := ix.Min()
	if !ok {
		return p, false
	}
	i, j := ix.slotOf[p.A], ix.slotOf[p.B]
	ix.store.clear(cell(i, j))
	ix.pairs--
	ix.refresh(i)
	ix.refresh(j)
	return p, true
}

// RemovePairsOf removes every pair that references id and returns them, in
// the order the other clusters were registered. Each returned pair has A == id
// and B set to the other cluster. The cluster stays registered.
func (ix *PairwiseDistanceIndex) RemovePairsOf(id ClusterID) ([]ClusterPair, error) {
	s, ok := ix.slotOf[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCluster, id)
	}
	return ix.removePairs(s), nil
}

// RemoveCluster removes every pair that references id, unregisters the
// cluster, and returns the removed pairs (A == id, as for RemovePairsOf).
func (ix *PairwiseDistanceIndex) RemoveCluster(id ClusterID) ([]ClusterPair, error) {
	s, ok := ix.slotOf[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCluster, id)
	}
	removed := ix.removePairs(s)
	ix.live[s] = false
	delete(ix.slotOf, id)
	ix.clusters--
	return removed, nil
}

func (ix *PairwiseDistanceIndex) removePairs(s int) []ClusterPair {
	var removed []ClusterPair
	for q := range ix.ids {
		if q == s || !ix.live[q] {
			continue
		}
		c := cell(s, q)
		d := ix.store.get(c)
		if isAbsent(d) {
			continue
		}
		removed = append(removed, ClusterPair{A: ix.ids[s], B: ix.ids[q], Distance: d})
		ix.store.clear(c)
		ix.pairs--
	}

	ix.nearest[s] = -1
	ix.nearestDist[s] = absent32
	for q, n := range ix.nearest {
		if n == s && q != s {
			ix.refresh(q)
		}
	}
	return removed
}

// All returns every pair held by the index, ordered by slot. Each pair has A < B.
func (ix *PairwiseDistanceIndex) All() iter.Seq[ClusterPair] {
	return func(yield func(ClusterPair) bool) {
		for j := range ix.ids {
			if !ix.live[j] {
				continue
			}
			for i := 0; i < j; i++ {
				if !ix.live[i] {
					continue
				}
				d := ix.store.get(cell(i, j))
				if isAbsent(d) {
					continue
				}
				p := ClusterPair{A: ix.ids[i], B: ix.ids[j], Distance: d}.ordered()
				if !yield(p) {
					return
				}
			}
		}
	}
}

func isAbsent(d float32) bool {
	return math.IsNaN(float64(d))
}
