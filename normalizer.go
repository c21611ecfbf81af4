package spectra

import (
	"errors"
	"fmt"
)

// ErrZeroVector is returned by StrictNormalizer when asked to normalize a
// vector whose magnitude is zero.
var ErrZeroVector = errors.New("cannot normalize a zero-magnitude vector")

const (
	// MaxDistance is the largest distance between two normalized vectors.
	// Rounding policies clamp raw distances above it.
	MaxDistance = 2.0

	// distanceSlack is how far past MaxDistance a raw distance may drift from
	// floating point error before it is treated as out of range.
	distanceSlack = 0.01
)

// Normalizer is the policy a SparseVector delegates to for normalization,
// peak reduction and post-processing of computed distances.
//
// Implementations must be stateless or safe for concurrent use: one policy
// value is typically shared by every vector of a clustering run.
type Normalizer interface {
	// Normalize scales v to unit magnitude under m.
	Normalize(v *SparseVector, m Metric) error

	// ReducePeaksByPower replaces every magnitude with magnitude^exponent.
	ReducePeaksByPower(v *SparseVector, exponent float64)

	// RoundDistance post-processes a raw distance between a and b.
	RoundDistance(a, b *SparseVector, m Metric, raw float32) float32
}

// Compile-time checks to ensure the policies implement Normalizer
var (
	_ Normalizer = DefaultNormalizer{}
	_ Normalizer = StrictNormalizer{}
	_ Normalizer = NopNormalizer{}
)

// OutOfRange reports whether a raw distance is past the bound expected for
// normalized inputs, beyond what floating point error explains.
func OutOfRange(raw float32) bool {
	return raw >= MaxDistance+distanceSlack
}

// DefaultNormalizer is the reference policy.
//
//   - Normalize divides every magnitude by the vector's own magnitude and
//     leaves a zero-magnitude vector unchanged.
//   - ReducePeaksByPower raises magnitudes to the exponent (sign preserved).
//   - RoundDistance clamps values above MaxDistance down to MaxDistance.
//     Negative values (possible for DotProduct on unnormalized input) pass
//     through unchanged.
type DefaultNormalizer struct{}

func (DefaultNormalizer) Normalize(v *SparseVector, m Metric) error {
	_, err := divideByMagnitude(v, m)
	return err
}

func (DefaultNormalizer) ReducePeaksByPower(v *SparseVector, exponent float64) {
	reduceByPower(v, exponent)
}

func (DefaultNormalizer) RoundDistance(a, b *SparseVector, m Metric, raw float32) float32 {
	checkDistance(a, b, m, raw)
	if raw > MaxDistance {
		return MaxDistance
	}
	return raw
}

// StrictNormalizer refuses to normalize zero vectors and clamps distances to
// [0, MaxDistance], which makes every distance it rounds satisfy the bounded
// output property even for unnormalized DotProduct input.
type StrictNormalizer struct{}

func (StrictNormalizer) Normalize(v *SparseVector, m Metric) error {
	ok, err := divideByMagnitude(v, m)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: metric %s", ErrZeroVector, m)
	}
	return nil
}

func (StrictNormalizer) ReducePeaksByPower(v *SparseVector, exponent float64) {
	reduceByPower(v, exponent)
}

func (StrictNormalizer) RoundDistance(a, b *SparseVector, m Metric, raw float32) float32 {
	checkDistance(a, b, m, raw)
	switch {
	case raw > MaxDistance:
		return MaxDistance
	case raw < 0:
		return 0
	default:
		return raw
	}
}

// NopNormalizer leaves vectors and distances untouched. Useful in tests that
// need raw sweep results.
type NopNormalizer struct{}

func (NopNormalizer) Normalize(*SparseVector, Metric) error { return nil }

func (NopNormalizer) ReducePeaksByPower(*SparseVector, float64) {}

func (NopNormalizer) RoundDistance(_, _ *SparseVector, _ Metric, raw float32) float32 {
	return raw
}

// divideByMagnitude divides v by its magnitude under m. ok is false when the
// magnitude is zero, in which case v is not modified.
func divideByMagnitude(v *SparseVector, m Metric) (ok bool, err error) {
	mag, err := v.Magnitude(m)
	if err != nil {
		return false, err
	}
	if mag == 0 {
		return false, nil
	}
	v.DivideBy(mag)
	return true, nil
}

func reduceByPower(v *SparseVector, exponent float64) {
	v.MapMagnitudes(func(_ int, magnitude float32) float32 {
		return powSigned(magnitude, exponent)
	})
}
