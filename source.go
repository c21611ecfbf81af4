package spectra

import (
	"errors"

	"github.com/RoaringBitmap/roaring"
)

var (
	// ErrNilVector is returned when a source yields an atom without a vector.
	ErrNilVector = errors.New("atom has no vector")

	// ErrCountIncomplete is returned by NonZeroSource.ZeroCount before the
	// wrapped source has been exhausted.
	ErrCountIncomplete = errors.New("zero count is not available until the source is exhausted")
)

// Atom is one spectrum to cluster.
type Atom struct {
	ID     AtomID
	Vector *SparseVector
}

// AtomSource is an ordered, finite, single-pass cursor over atoms.
//
// Usage:
//
//	for src.Next() {
//	    atom := src.Atom()
//	    ...
//	}
//	if err := src.Err(); err != nil {
//	    ...
//	}
type AtomSource interface {
	// Next advances to the next atom and reports whether there is one.
	Next() bool

	// Atom returns the current atom. Only valid after Next returned true.
	Atom() Atom

	// Err returns the error that stopped iteration, if any.
	Err() error
}

// SliceSource serves atoms from memory.
type SliceSource struct {
	atoms []Atom
	pos   int
}

// Compile-time checks to ensure the sources implement AtomSource
var (
	_ AtomSource = (*SliceSource)(nil)
	_ AtomSource = (*NonZeroSource)(nil)
	_ AtomSource = (*FilteredSource)(nil)
)

// NewSliceSource creates a source over atoms, served in the given order.
func NewSliceSource(atoms ...Atom) *SliceSource {
	return &SliceSource{atoms: atoms, pos: -1}
}

func (s *SliceSource) Next() bool {
	if s.pos+1 >= len(s.atoms) {
		s.pos = len(s.atoms)
		return false
	}
	s.pos++
	return true
}

func (s *SliceSource) Atom() Atom {
	return s.atoms[s.pos]
}

func (s *SliceSource) Err() error {
	return nil
}

// Reset rewinds the source to the first atom.
func (s *SliceSource) Reset() {
	s.pos = -1
}

// Len returns the number of atoms in the source.
func (s *SliceSource) Len() int {
	return len(s.atoms)
}

// NonZeroSource wraps another source and skips atoms whose vector is nil or
// empty, keeping track of how many were skipped.
//
// The clusterer itself never filters: an empty vector seeds a singleton like
// any other. Wrap the source when empty spectra should be left out.
type NonZeroSource struct {
	src       AtomSource
	current   Atom
	skipped   *roaring.Bitmap
	exhausted bool
}

// NewNonZeroSource wraps src.
func NewNonZeroSource(src AtomSource) *NonZeroSource {
	return &NonZeroSource{src: src, skipped: roaring.New()}
}

func (s *NonZeroSource) Next() bool {
	for s.src.Next() {
		atom := s.src.Atom()
		if atom.Vector == nil || atom.Vector.Len() == 0 {
			s.skipped.Add(uint32(atom.ID))
			continue
		}
		s.current = atom
		return true
	}
	s.exhausted = true
	return false
}

func (s *NonZeroSource) Atom() Atom {
	return s.current
}

func (s *NonZeroSource) Err() error {
	return s.src.Err()
}

// ZeroCount returns how many atoms were skipped. It is only known once the
// wrapped source is exhausted; before that it returns ErrCountIncomplete.
func (s *NonZeroSource) ZeroCount() (int, error) {
	if !s.exhausted {
		return 0, ErrCountIncomplete
	}
	return int(s.skipped.GetCardinality()), nil
}

// Skipped returns a copy of the ids skipped so far.
func (s *NonZeroSource) Skipped() []AtomID {
	return toAtomIDs(s.skipped)
}
