//go:build !spectradebug

package spectra

// checkDistance is compiled out of release builds. Build with
// -tags spectradebug to panic on out-of-range raw distances.
func checkDistance(_, _ *SparseVector, _ Metric, _ float32) {}
