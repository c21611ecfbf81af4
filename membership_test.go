package spectra

import (
	"errors"
	"slices"
	"testing"
)

func TestClusterMembershipAddSingleton(t *testing.T) {
	cm := NewClusterMembership()
	id, err := cm.AddSingleton(42)
	if err != nil {
		t.Fatalf("AddSingleton() unexpected error: %v", err)
	}
	if id != 42 {
		t.Errorf("AddSingleton(42) = %d, want cluster 42", id)
	}
	if _, err := cm.AddSingleton(42); !errors.Is(err, ErrDuplicateAtom) {
		t.Errorf("AddSingleton(duplicate) error = %v, want ErrDuplicateAtom", err)
	}
	if got := cm.Size(42); got != 1 {
		t.Errorf("Size(42) = %d, want 1", got)
	}
	if got := cm.Size(7); got != 0 {
		t.Errorf("Size(7) = %d, want 0 for an unknown cluster", got)
	}
}

func TestClusterMembershipMerge(t *testing.T) {
	cm := NewClusterMembership()
	for _, a := range []AtomID{1, 2, 3, 4} {
		if _, err := cm.AddSingleton(a); err != nil {
			t.Fatal(err)
		}
	}

	if err := cm.Merge(1, 3); err != nil {
		t.Fatalf("Merge(1, 3) unexpected error: %v", err)
	}
	if err := cm.Merge(1, 4); err != nil {
		t.Fatalf("Merge(1, 4) unexpected error: %v", err)
	}

	if got := cm.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
	if cm.Contains(3) || cm.Contains(4) {
		t.Error("absorbed clusters should no longer be live")
	}
	if got, want := cm.Members(1), []AtomID{1, 3, 4}; !slices.Equal(got, want) {
		t.Errorf("Members(1) = %v, want %v", got, want)
	}
	if got := cm.Members(3); got != nil {
		t.Errorf("Members(3) = %v, want nil", got)
	}
	if got, want := cm.IDs(), []ClusterID{1, 2}; !slices.Equal(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
	if !cm.Conserved() {
		t.Error("Conserved() = false after merges")
	}
	if !cm.Atoms().Equals(cm.Seeded()) {
		t.Error("Atoms() differs from Seeded()")
	}

	// An absorbed atom cannot be seeded again.
	if _, err := cm.AddSingleton(3); !errors.Is(err, ErrDuplicateAtom) {
		t.Errorf("AddSingleton(absorbed atom) error = %v, want ErrDuplicateAtom", err)
	}
}

func TestClusterMembershipMergeErrors(t *testing.T) {
	cm := NewClusterMembership()
	if _, err := cm.AddSingleton(1); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		into     ClusterID
		from     ClusterID
		expected error
	}{
		{"self", 1, 1, ErrSelfPair},
		{"unknown into", 9, 1, ErrUnknownCluster},
		{"unknown from", 1, 9, ErrUnknownCluster},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := cm.Merge(tt.into, tt.from); !errors.Is(err, tt.expected) {
				t.Errorf("Merge(%d, %d) error = %v, want %v", tt.into, tt.from, err, tt.expected)
			}
		})
	}
	if cm.Len() != 1 {
		t.Errorf("Len() = %d after failed merges, want 1", cm.Len())
	}
}

func TestClusterMembershipPartition(t *testing.T) {
	cm := NewClusterMembership()
	for _, a := range []AtomID{10, 20, 30} {
		if _, err := cm.AddSingleton(a); err != nil {
			t.Fatal(err)
		}
	}
	if err := cm.Merge(10, 30); err != nil {
		t.Fatal(err)
	}

	p := cm.Partition()
	if p.Len() != 2 {
		t.Fatalf("Partition().Len() = %d, want 2", p.Len())
	}
	if got, want := p[10], []AtomID{10, 30}; !slices.Equal(got, want) {
		t.Errorf("p[10] = %v, want %v", got, want)
	}

	// The snapshot is detached from later merges.
	if err := cm.Merge(10, 20); err != nil {
		t.Fatal(err)
	}
	if p.Len() != 2 {
		t.Errorf("snapshot changed after merge: %v", p)
	}
}
