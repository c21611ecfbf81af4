package spectra

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidMetric is returned when a metric outside the supported set reaches
// a magnitude, combination or distance computation.
var ErrInvalidMetric = errors.New("invalid distance metric")

// Metric selects how two spectra are compared.
//
// Every metric is defined by two rules: how the magnitudes at a shared bin are
// combined, and how a magnitude with no partner in the other vector is combined
// against an implicit zero. The second rule is the first with one argument set
// to 0, which is what lets the distance sweep skip absent bins entirely.
//
//   - CityBlock: |a - b|, magnitude is the plain sum of magnitudes
//   - EuclideanSquared: (a - b)^2, magnitude is the Euclidean norm
//   - DotProduct: a * b, magnitude is the Euclidean norm; the accumulated value
//     is a similarity, so the distance is 1 - similarity
type Metric string

const (
	// CityBlock (L1) distance: sum(|a[i] - b[i]|)
	CityBlock Metric = "city_block"

	// EuclideanSquared distance: sum((a[i] - b[i])^2)
	// No square root is taken; vectors are expected to be Euclidean-normalized.
	EuclideanSquared Metric = "euclidean_squared"

	// DotProduct distance: 1 - sum(a[i] * b[i])
	// For normalized inputs the similarity lies in [0, 1].
	DotProduct Metric = "dot_product"
)

// Metrics lists the supported metrics in a stable order.
var Metrics = []Metric{CityBlock, EuclideanSquared, DotProduct}

// Singleton instances of the combination rules.
// These are stateless and can be safely reused across goroutines.
var (
	cityBlockRuleImpl        = cityBlockRule{}
	euclideanSquaredRuleImpl = euclideanSquaredRule{}
	dotProductRuleImpl       = dotProductRule{}
)

// metricRule is the per-metric combination logic used by the distance sweep.
type metricRule interface {
	// combine folds one bin into the running distance. Either side may be 0
	// when the bin is present in only one vector.
	combine(a, b float64) float64

	// finish turns the accumulated value into a distance.
	finish(acc float64) float64

	// norm computes the aggregate magnitude from the vector's magnitudes.
	norm(mags []float32) float64
}

// ruleFor returns the singleton rule for m.
func ruleFor(m Metric) (metricRule, error) {
	switch m {
	case CityBlock:
		return cityBlockRuleImpl, nil
	case EuclideanSquared:
		return euclideanSquaredRuleImpl, nil
	case DotProduct:
		return dotProductRuleImpl, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMetric, string(m))
	}
}

// Validate returns ErrInvalidMetric if m is not one of the supported metrics.
func (m Metric) Validate() error {
	_, err := ruleFor(m)
	return err
}

// String returns the human-readable name, e.g. "City Block".
func (m Metric) String() string {
	switch m {
	case CityBlock:
		return "City Block"
	case EuclideanSquared:
		return "Euclidean Squared"
	case DotProduct:
		return "Dot Product"
	default:
		return string(m)
	}
}

// Combine applies the metric's combination rule to a single pair of
// magnitudes. Pass 0 for b to combine an unmatched magnitude.
//
// Example:
//
//	d, _ := Combine(3, 1, CityBlock)        // 2
//	d, _ = Combine(3, 1, EuclideanSquared)  // 4
//	d, _ = Combine(3, 1, DotProduct)        // 3
func Combine(a, b float32, m Metric) (float32, error) {
	rule, err := ruleFor(m)
	if err != nil {
		return 0, err
	}
	return float32(rule.combine(float64(a), float64(b))), nil
}

// cityBlockRule implements the L1 rule.
type cityBlockRule struct{}

func (cityBlockRule) combine(a, b float64) float64 {
	return math.Abs(a - b)
}

func (cityBlockRule) finish(acc float64) float64 {
	return acc
}

// norm for city block is the sum of magnitudes, not the sum of their
// absolute values: spectra magnitudes are peak areas and expected to be positive.
func (cityBlockRule) norm(mags []float32) float64 {
	var sum float64
	for _, m := range mags {
		sum += float64(m)
	}
	return sum
}

// euclideanSquaredRule implements the squared L2 rule.
type euclideanSquaredRule struct{}

func (euclideanSquaredRule) combine(a, b float64) float64 {
	diff := a - b
	return diff * diff
}

func (euclideanSquaredRule) finish(acc float64) float64 {
	return acc
}

func (euclideanSquaredRule) norm(mags []float32) float64 {
	return euclideanNorm(mags)
}

// dotProductRule accumulates a similarity and inverts it at the end.
type dotProductRule struct{}

func (dotProductRule) combine(a, b float64) float64 {
	return a * b
}

// finish maps similarity to distance so that smaller is closer, like the
// other metrics.
func (dotProductRule) finish(acc float64) float64 {
	return 1 - acc
}

func (dotProductRule) norm(mags []float32) float64 {
	return euclideanNorm(mags)
}

func euclideanNorm(mags []float32) float64 {
	var sum float64
	for _, m := range mags {
		sum += float64(m) * float64(m)
	}
	return math.Sqrt(sum)
}

// ============================================================================
// Metric name parsing
// ============================================================================

// ParseMetric resolves a metric from a user-supplied name.
//
// Accepted spellings include the identifiers ("city_block"), the display
// names ("City Block") and upper-case or dashed variants ("EUCLIDEAN-SQUARED").
// Names are NFKC-normalized, lower-cased and split into words with UAX#29
// segmentation, so full-width or oddly spaced input resolves as well.
//
// Returns ErrInvalidMetric if the name does not match any metric.
func ParseMetric(name string) (Metric, error) {
	key := metricKey(name)
	for _, m := range Metrics {
		if key == string(m) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMetric, name)
}

// metricKey folds a metric name into its identifier form.
func metricKey(name string) string {
	s := strings.ToLower(norm.NFKC.String(name))

	// UAX#29 keeps "city_block" together as one word (underscore joins
	// letters), so separators are turned into spaces before segmenting.
	s = strings.Map(func(r rune) rune {
		if r == '_' || r == '-' || r == '.' {
			return ' '
		}
		return r
	}, s)

	var parts []string
	toks := words.FromString(s)
	for toks.Next() {
		tok := toks.Value()
		if strings.IndexFunc(tok, unicode.IsLetter) < 0 {
			continue
		}
		parts = append(parts, tok)
	}
	return strings.Join(parts, "_")
}
