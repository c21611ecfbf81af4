package spectra

import (
	"github.com/RoaringBitmap/roaring"
)

// AtomFilter is the set of atom ids a run is restricted to. A nil filter
// admits every atom.
type AtomFilter struct {
	ids *roaring.Bitmap
}

// NewAtomFilter returns a filter admitting ids, or nil when ids is empty.
func NewAtomFilter(ids []AtomID) *AtomFilter {
	if len(ids) == 0 {
		return nil
	}
	f := &AtomFilter{ids: roaring.New()}
	for _, id := range ids {
		f.ids.Add(uint32(id))
	}
	return f
}

// Admits reports whether id passes the filter.
func (f *AtomFilter) Admits(id AtomID) bool {
	return f == nil || f.ids.Contains(uint32(id))
}

// FilteredSource yields only the atoms of src admitted by filter.
type FilteredSource struct {
	src    AtomSource
	filter *AtomFilter
}

// NewFilteredSource wraps src with filter. A nil filter passes every atom.
func NewFilteredSource(src AtomSource, filter *AtomFilter) *FilteredSource {
	return &FilteredSource{src: src, filter: filter}
}

func (s *FilteredSource) Next() bool {
	for s.src.Next() {
		if s.filter.Admits(s.src.Atom().ID) {
			return true
		}
	}
	return false
}

func (s *FilteredSource) Atom() Atom {
	return s.src.Atom()
}

func (s *FilteredSource) Err() error {
	return s.src.Err()
}
