package spectra

import (
	"iter"
	"math"
	"slices"
)

// Peak is a single (bin, magnitude) entry of a SparseVector.
// Peaks are values: modifying a Peak obtained from a vector never changes the vector.
type Peak struct {
	Location  int
	Magnitude float32
}

// SparseVector is a binned spectrum: an ordered sparse map from integer bin
// location to magnitude.
//
// Locations are kept in ascending order in parallel slices, which is what the
// merge-sweep distance relies on. Locations may be negative (negative ion
// spectra are stored below zero) and there is no upper bound on a location.
//
// Absent bins have magnitude 0. A bin that is present with magnitude 0 is
// still counted by Len.
//
// Normalization and distance rounding are delegated to the vector's
// Normalizer, so alternative policies can be substituted without touching
// the vector itself.
//
// A SparseVector is not safe for concurrent mutation. Concurrent reads
// (Distance, Magnitude, Peaks) are safe.
type SparseVector struct {
	locs       []int
	mags       []float32
	normalizer Normalizer
}

// NewSparseVector creates an empty vector using DefaultNormalizer.
func NewSparseVector() *SparseVector {
	return &SparseVector{normalizer: DefaultNormalizer{}}
}

// NewSparseVectorWithNormalizer creates an empty vector that delegates
// normalization and distance rounding to n. A nil n selects DefaultNormalizer.
func NewSparseVectorWithNormalizer(n Normalizer) *SparseVector {
	if n == nil {
		n = DefaultNormalizer{}
	}
	return &SparseVector{normalizer: n}
}

// NewSparseVectorFromPeaks builds a vector by adding every peak with Add
// semantics (collisions accumulate).
func NewSparseVectorFromPeaks(peaks ...Peak) *SparseVector {
	v := NewSparseVector()
	for _, p := range peaks {
		v.AddPeak(p)
	}
	return v
}

// Normalizer returns the vector's normalization policy.
func (v *SparseVector) Normalizer() Normalizer {
	return v.normalizer
}

// SetNormalizer replaces the vector's normalization policy.
// A nil n selects DefaultNormalizer.
func (v *SparseVector) SetNormalizer(n Normalizer) {
	if n == nil {
		n = DefaultNormalizer{}
	}
	v.normalizer = n
}

// RoundLocation rounds a continuous location to its bin: to the nearest
// integer with ties rounded away from zero (0.5 is added for non-negative
// locations and subtracted otherwise before truncation).
//
// Example:
//
//	RoundLocation(1.5)   // 2
//	RoundLocation(-1.5)  // -2
//	RoundLocation(2.49)  // 2
func RoundLocation(location float32) int {
	if location >= 0 {
		return int(float64(location) + 0.5)
	}
	return int(float64(location) - 0.5)
}

// Add rounds location to its bin and accumulates magnitude there.
//
// Two peaks that land in the same bin (1.9999 and 2.0001) are considered the
// same element, so their signal is summed.
func (v *SparseVector) Add(location, magnitude float32) {
	v.accumulate(RoundLocation(location), magnitude)
}

// AddPeak adds an already binned peak with the same accumulation as Add.
func (v *SparseVector) AddPeak(p Peak) {
	v.accumulate(p.Location, p.Magnitude)
}

// AddNoChecks stores magnitude at location, overwriting any existing entry.
//
// This is meant for copying from another vector whose locations are already
// unique. The caller guarantees there is no collision; if there is one the
// previous magnitude is silently lost.
func (v *SparseVector) AddNoChecks(location int, magnitude float32) {
	n := len(v.locs)
	if n == 0 || location > v.locs[n-1] {
		v.locs = append(v.locs, location)
		v.mags = append(v.mags, magnitude)
		return
	}
	i, found := slices.BinarySearch(v.locs, location)
	if found {
		v.mags[i] = magnitude
		return
	}
	v.locs = slices.Insert(v.locs, i, location)
	v.mags = slices.Insert(v.mags, i, magnitude)
}

func (v *SparseVector) accumulate(location int, magnitude float32) {
	i, found := slices.BinarySearch(v.locs, location)
	if found {
		v.mags[i] += magnitude
		return
	}
	v.locs = slices.Insert(v.locs, i, location)
	v.mags = slices.Insert(v.mags, i, magnitude)
}

// MagnitudeAt returns the magnitude at location, or 0 if the bin is absent.
func (v *SparseVector) MagnitudeAt(location int) float32 {
	i, found := slices.BinarySearch(v.locs, location)
	if !found {
		return 0
	}
	return v.mags[i]
}

// Len returns the number of populated bins.
func (v *SparseVector) Len() int {
	return len(v.locs)
}

// FirstLocation returns the lowest populated bin. ok is false for an empty vector.
func (v *SparseVector) FirstLocation() (location int, ok bool) {
	if len(v.locs) == 0 {
		return 0, false
	}
	return v.locs[0], true
}

// LastLocation returns the highest populated bin. ok is false for an empty vector.
func (v *SparseVector) LastLocation() (location int, ok bool) {
	if len(v.locs) == 0 {
		return 0, false
	}
	return v.locs[len(v.locs)-1], true
}

// LargestMagnitude returns the maximum stored magnitude. ok is false for an
// empty vector.
func (v *SparseVector) LargestMagnitude() (magnitude float32, ok bool) {
	if len(v.mags) == 0 {
		return 0, false
	}
	return slices.Max(v.mags), true
}

// Peaks returns the entries in ascending location order.
//
// The sequence is lazy and can be ranged over any number of times. Each
// yielded Peak is a copy; mutating the vector while ranging is not supported.
//
// Example:
//
//	for p := range v.Peaks() {
//	    fmt.Println(p.Location, p.Magnitude)
//	}
func (v *SparseVector) Peaks() iter.Seq[Peak] {
	return func(yield func(Peak) bool) {
		for i, loc := range v.locs {
			if !yield(Peak{Location: loc, Magnitude: v.mags[i]}) {
				return
			}
		}
	}
}

// PosNegPeaks returns only the entries at negative locations (negative=true)
// or only those at non-negative locations (negative=false), in ascending order.
func (v *SparseVector) PosNegPeaks(negative bool) iter.Seq[Peak] {
	lo, hi := v.sideBounds(negative)
	return func(yield func(Peak) bool) {
		for i := lo; i < hi; i++ {
			if !yield(Peak{Location: v.locs[i], Magnitude: v.mags[i]}) {
				return
			}
		}
	}
}

// sideBounds returns the index range [lo, hi) holding one sign of locations.
func (v *SparseVector) sideBounds(negative bool) (lo, hi int) {
	zero, _ := slices.BinarySearch(v.locs, 0)
	if negative {
		return 0, zero
	}
	return zero, len(v.locs)
}

// Magnitude returns the aggregate norm of the vector under m: the sum of
// magnitudes for CityBlock, the Euclidean norm for EuclideanSquared and
// DotProduct.
func (v *SparseVector) Magnitude(m Metric) (float32, error) {
	rule, err := ruleFor(m)
	if err != nil {
		return 0, err
	}
	return float32(rule.norm(v.mags)), nil
}

// PosNegMagnitude returns the norm of one side of the spectrum only.
func (v *SparseVector) PosNegMagnitude(m Metric, negative bool) (float32, error) {
	rule, err := ruleFor(m)
	if err != nil {
		return 0, err
	}
	lo, hi := v.sideBounds(negative)
	return float32(rule.norm(v.mags[lo:hi])), nil
}

// Normalize scales the vector to unit magnitude under m using the vector's
// Normalizer. With DefaultNormalizer a zero vector is left unchanged.
func (v *SparseVector) Normalize(m Metric) error {
	return v.normalizer.Normalize(v, m)
}

// PosNegNormalize normalizes the negative and the non-negative halves of the
// spectrum independently, then normalizes the whole vector, so both ion
// polarities weigh the same regardless of their raw intensity.
// A side with zero magnitude is left as is.
func (v *SparseVector) PosNegNormalize(m Metric) error {
	rule, err := ruleFor(m)
	if err != nil {
		return err
	}
	for _, negative := range []bool{true, false} {
		lo, hi := v.sideBounds(negative)
		side := rule.norm(v.mags[lo:hi])
		if side == 0 {
			continue
		}
		for i := lo; i < hi; i++ {
			v.mags[i] = float32(float64(v.mags[i]) / side)
		}
	}
	return v.Normalize(m)
}

// ReducePeaksByPower raises every magnitude to exponent using the vector's
// Normalizer. Typical exponents are below 1 (e.g. 0.5) to damp large peaks
// before clustering.
func (v *SparseVector) ReducePeaksByPower(exponent float64) {
	v.normalizer.ReducePeaksByPower(v, exponent)
}

// MapMagnitudes replaces every magnitude with fn(location, magnitude).
// Locations are not changed. This is the mutation hook used by Normalizer
// implementations.
func (v *SparseVector) MapMagnitudes(fn func(location int, magnitude float32) float32) {
	for i, loc := range v.locs {
		v.mags[i] = fn(loc, v.mags[i])
	}
}

// DivideBy divides every magnitude by divisor. Dividing by zero is a no-op.
func (v *SparseVector) DivideBy(divisor float32) {
	if divisor == 0 {
		return
	}
	for i := range v.mags {
		v.mags[i] /= divisor
	}
}

// Multiply scales every magnitude by factor.
func (v *SparseVector) Multiply(factor float32) {
	for i := range v.mags {
		v.mags[i] *= factor
	}
}

// AddVector accumulates every entry of other into v.
func (v *SparseVector) AddVector(other *SparseVector) {
	v.AddWeighted(other, 1)
}

// AddWeighted accumulates weight * other into v. This is the building block
// for running cluster sums: add each member with its weight, then divide by
// the total weight to obtain the centroid.
func (v *SparseVector) AddWeighted(other *SparseVector, weight float32) {
	if len(v.locs) == 0 {
		v.locs = slices.Clone(other.locs)
		v.mags = make([]float32, len(other.mags))
		for i, m := range other.mags {
			v.mags[i] = m * weight
		}
		return
	}
	for i, loc := range other.locs {
		v.accumulate(loc, other.mags[i]*weight)
	}
}

// Copy returns a deep copy sharing the same Normalizer.
func (v *SparseVector) Copy() *SparseVector {
	return &SparseVector{
		locs:       slices.Clone(v.locs),
		mags:       slices.Clone(v.mags),
		normalizer: v.normalizer,
	}
}

// Distance computes the distance between v and other under m, then passes the
// raw value through v's Normalizer.RoundDistance.
//
// Both vectors are walked in lock-step like the merge phase of merge sort:
// shared bins contribute combine(a, b), a bin present on one side only
// contributes combine(a, 0). For DotProduct the accumulated similarity is
// turned into 1 - similarity.
//
// Time complexity: O(|v| + |other|)
func (v *SparseVector) Distance(other *SparseVector, m Metric) (float32, error) {
	return distanceWith(v, other, m, v.normalizer)
}

// distanceWith is Distance with an explicit rounding policy.
func distanceWith(a, b *SparseVector, m Metric, n Normalizer) (float32, error) {
	rule, err := ruleFor(m)
	if err != nil {
		return 0, err
	}
	raw := float32(rule.finish(sweep(a, b, rule)))
	return n.RoundDistance(a, b, m, raw), nil
}

// sweep accumulates rule.combine over the union of both vectors' bins.
// Bins are visited in ascending order on both call orders, so the sum is
// bit-for-bit symmetric.
func sweep(a, b *SparseVector, rule metricRule) float64 {
	var acc float64
	i, j := 0, 0
	for i < len(a.locs) && j < len(b.locs) {
		switch {
		case a.locs[i] == b.locs[j]:
			acc += rule.combine(float64(a.mags[i]), float64(b.mags[j]))
			i++
			j++
		case a.locs[i] < b.locs[j]:
			acc += rule.combine(float64(a.mags[i]), 0)
			i++
		default:
			acc += rule.combine(0, float64(b.mags[j]))
			j++
		}
	}
	for ; i < len(a.locs); i++ {
		acc += rule.combine(float64(a.mags[i]), 0)
	}
	for ; j < len(b.locs); j++ {
		acc += rule.combine(0, float64(b.mags[j]))
	}
	return acc
}

// powSigned raises |x| to exponent and keeps the sign of x, so fractional
// exponents never produce NaN.
func powSigned(x float32, exponent float64) float32 {
	if x < 0 {
		return -float32(math.Pow(float64(-x), exponent))
	}
	return float32(math.Pow(float64(x), exponent))
}
