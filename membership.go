package spectra

import (
	"errors"
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring"
)

// ErrDuplicateAtom is returned when the same atom id is seeded twice.
var ErrDuplicateAtom = errors.New("duplicate atom id")

// AtomID identifies one measured particle (one spectrum).
type AtomID uint32

// ClusterMembership maps each live cluster to the atoms it contains.
//
// Member sets are roaring bitmaps, so absorbing a cluster is a single
// bitmap union regardless of how many atoms it holds, and large clusters of
// database-assigned ids (which tend to be dense runs) stay compact.
//
// A cluster keeps the id it was created with for its whole life: merging B
// into A grows A and deletes B.
type ClusterMembership struct {
	clusters map[ClusterID]*roaring.Bitmap
	seen     *roaring.Bitmap
}

// NewClusterMembership creates an empty membership.
func NewClusterMembership() *ClusterMembership {
	return &ClusterMembership{
		clusters: make(map[ClusterID]*roaring.Bitmap),
		seen:     roaring.New(),
	}
}

// AddSingleton creates a cluster containing only atom. The cluster id is the
// atom id. Returns ErrDuplicateAtom if the atom was already seeded, even if
// its singleton has since been absorbed.
func (cm *ClusterMembership) AddSingleton(atom AtomID) (ClusterID, error) {
	if !cm.seen.CheckedAdd(uint32(atom)) {
		return 0, fmt.Errorf("%w: %d", ErrDuplicateAtom, atom)
	}
	members := roaring.New()
	members.Add(uint32(atom))
	id := ClusterID(atom)
	cm.clusters[id] = members
	return id, nil
}

// Merge moves every atom of from into into and deletes from.
func (cm *ClusterMembership) Merge(into, from ClusterID) error {
	if into == from {
		return fmt.Errorf("%w: %d", ErrSelfPair, into)
	}
	dst, ok := cm.clusters[into]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCluster, into)
	}
	src, ok := cm.clusters[from]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCluster, from)
	}
	dst.Or(src)
	delete(cm.clusters, from)
	return nil
}

// Len returns the number of live clusters.
func (cm *ClusterMembership) Len() int {
	return len(cm.clusters)
}

// Contains reports whether id is a live cluster.
func (cm *ClusterMembership) Contains(id ClusterID) bool {
	_, ok := cm.clusters[id]
	return ok
}

// Size returns the number of atoms in cluster id, 0 if it is not live.
func (cm *ClusterMembership) Size(id ClusterID) int {
	members, ok := cm.clusters[id]
	if !ok {
		return 0
	}
	return int(members.GetCardinality())
}

// Members returns the atoms of cluster id in ascending order, nil if the
// cluster is not live.
func (cm *ClusterMembership) Members(id ClusterID) []AtomID {
	members, ok := cm.clusters[id]
	if !ok {
		return nil
	}
	return toAtomIDs(members)
}

// IDs returns the live cluster ids in ascending order.
func (cm *ClusterMembership) IDs() []ClusterID {
	ids := make([]ClusterID, 0, len(cm.clusters))
	for id := range cm.clusters {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Atoms returns the union of every live cluster's atoms. For a consistent
// membership this equals the set of atoms ever seeded.
func (cm *ClusterMembership) Atoms() *roaring.Bitmap {
	sets := make([]*roaring.Bitmap, 0, len(cm.clusters))
	for _, members := range cm.clusters {
		sets = append(sets, members)
	}
	return roaring.FastOr(sets...)
}

// Seeded returns a copy of the set of atoms ever added.
func (cm *ClusterMembership) Seeded() *roaring.Bitmap {
	return cm.seen.Clone()
}

// Conserved reports whether every seeded atom belongs to exactly one live
// cluster.
func (cm *ClusterMembership) Conserved() bool {
	var total uint64
	for _, members := range cm.clusters {
		total += members.GetCardinality()
	}
	if total != cm.seen.GetCardinality() {
		return false
	}
	return cm.Atoms().Equals(cm.seen)
}

// Partition snapshots the live clusters.
func (cm *ClusterMembership) Partition() Partition {
	p := make(Partition, len(cm.clusters))
	for id, members := range cm.clusters {
		p[id] = toAtomIDs(members)
	}
	return p
}

func toAtomIDs(b *roaring.Bitmap) []AtomID {
	raw := b.ToArray()
	ids := make([]AtomID, len(raw))
	for i, v := range raw {
		ids[i] = AtomID(v)
	}
	return ids
}
