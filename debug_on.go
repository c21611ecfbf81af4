//go:build spectradebug

package spectra

import "fmt"

// checkDistance panics when a raw distance is out of range. Only built with
// -tags spectradebug.
func checkDistance(a, b *SparseVector, m Metric, raw float32) {
	if !OutOfRange(raw) {
		return
	}
	magA, _ := a.Magnitude(m)
	magB, _ := b.Magnitude(m)
	panic(fmt.Sprintf("spectra: distance should be <= %.1f, actually is %g (magnitudes: %g, %g)",
		MaxDistance, raw, magA, magB))
}
