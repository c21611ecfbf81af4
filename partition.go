package spectra

import "slices"

// Partition maps each surviving cluster to its member atoms (ascending).
// Every input atom appears in exactly one cluster.
type Partition map[ClusterID][]AtomID

// IDs returns the cluster ids in ascending order.
func (p Partition) IDs() []ClusterID {
	ids := make([]ClusterID, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of clusters.
func (p Partition) Len() int {
	return len(p)
}

// AtomCount returns the total number of atoms across all clusters.
func (p Partition) AtomCount() int {
	n := 0
	for _, atoms := range p {
		n += len(atoms)
	}
	return n
}

// ClusterOf returns the cluster containing atom.
func (p Partition) ClusterOf(atom AtomID) (ClusterID, bool) {
	for id, atoms := range p {
		if _, found := slices.BinarySearch(atoms, atom); found {
			return id, true
		}
	}
	return 0, false
}

// Labels returns, for each atom, the cluster it belongs to.
func (p Partition) Labels() map[AtomID]ClusterID {
	labels := make(map[AtomID]ClusterID, p.AtomCount())
	for id, atoms := range p {
		for _, a := range atoms {
			labels[a] = id
		}
	}
	return labels
}
