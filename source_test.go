package spectra

import (
	"errors"
	"slices"
	"testing"
)

func atomsFor(ids ...AtomID) []Atom {
	atoms := make([]Atom, len(ids))
	for i, id := range ids {
		v := NewSparseVector()
		v.Add(float32(id), 1)
		atoms[i] = Atom{ID: id, Vector: v}
	}
	return atoms
}

func drain(src AtomSource) []AtomID {
	var ids []AtomID
	for src.Next() {
		ids = append(ids, src.Atom().ID)
	}
	return ids
}

func TestSliceSource(t *testing.T) {
	src := NewSliceSource(atomsFor(3, 1, 2)...)
	if src.Len() != 3 {
		t.Errorf("Len() = %d, want 3", src.Len())
	}
	if got, want := drain(src), []AtomID{3, 1, 2}; !slices.Equal(got, want) {
		t.Errorf("atoms = %v, want %v", got, want)
	}
	if src.Next() {
		t.Error("Next() after exhaustion should return false")
	}
	if src.Err() != nil {
		t.Errorf("Err() = %v, want nil", src.Err())
	}

	src.Reset()
	if got := drain(src); len(got) != 3 {
		t.Errorf("after Reset got %d atoms, want 3", len(got))
	}

	if NewSliceSource().Next() {
		t.Error("empty source Next() should return false")
	}
}

func TestNonZeroSource(t *testing.T) {
	atoms := atomsFor(1, 2, 3)
	atoms = append(atoms,
		Atom{ID: 4, Vector: NewSparseVector()},
		Atom{ID: 5},
	)
	atoms[0], atoms[3] = atoms[3], atoms[0]

	src := NewNonZeroSource(NewSliceSource(atoms...))

	if !src.Next() {
		t.Fatal("Next() = false, want an atom")
	}
	if got := src.Atom().ID; got != 2 {
		t.Errorf("first atom = %d, want 2", got)
	}
	if _, err := src.ZeroCount(); !errors.Is(err, ErrCountIncomplete) {
		t.Errorf("ZeroCount() before exhaustion error = %v, want ErrCountIncomplete", err)
	}

	rest := drain(src)
	if want := []AtomID{3, 1}; !slices.Equal(rest, want) {
		t.Errorf("remaining atoms = %v, want %v", rest, want)
	}

	n, err := src.ZeroCount()
	if err != nil {
		t.Fatalf("ZeroCount() unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("ZeroCount() = %d, want 2", n)
	}
	if got, want := src.Skipped(), []AtomID{4, 5}; !slices.Equal(got, want) {
		t.Errorf("Skipped() = %v, want %v", got, want)
	}
}
