/*
Package spectra groups mass spectra by similarity with agglomerative
(bottom-up) hierarchical clustering.

A spectrum is a SparseVector: a sparse map from integer bin to peak
magnitude. Spectra are compared with one of three metrics (CityBlock,
EuclideanSquared, DotProduct) after normalization, and clustered by
repeatedly merging the closest pair of clusters until a target number of
clusters remains.

# Quick Start

	package main

	import (
	    "fmt"
	    "log"

	    "github.com/wizenheimer/spectra"
	)

	func main() {
	    var atoms []spectra.Atom
	    for id, peaks := range loadSpectra() {
	        v := spectra.NewSparseVector()
	        for _, p := range peaks {
	            v.Add(p.MZ, p.Area) // rounded to the nearest bin
	        }
	        if err := v.PosNegNormalize(spectra.EuclideanSquared); err != nil {
	            log.Fatal(err)
	        }
	        atoms = append(atoms, spectra.Atom{ID: spectra.AtomID(id), Vector: v})
	    }

	    hc, err := spectra.NewHierarchicalClusterer(10, spectra.EuclideanSquared)
	    if err != nil {
	        log.Fatal(err)
	    }
	    result, err := hc.Cluster(spectra.NewSliceSource(atoms...))
	    if err != nil {
	        log.Fatal(err)
	    }
	    for _, id := range result.Partition.IDs() {
	        fmt.Println(id, result.Partition[id])
	    }
	}

# Sparse Vectors

Locations are integers; Add rounds a continuous location half away from
zero and sums magnitudes that land in the same bin. Negative locations hold
negative ion peaks, and PosNegNormalize weighs both polarities equally.

Distances are computed with a linear merge sweep over both vectors' bins.
Each vector delegates normalization and distance rounding to a Normalizer:

	DefaultNormalizer  zero vectors untouched, distances clamped to <= 2
	StrictNormalizer   zero vectors rejected, distances clamped to [0, 2]
	NopNormalizer      no normalization or rounding

# Hierarchical Clustering

Seeding stores the distance between every pair of atoms in a
PairwiseDistanceIndex (O(n^2) memory). Each merge then takes the globally
closest pair and derives the new cluster's distances with the
Lance-Williams formula, never touching the vectors again.

Seeding can be spread over goroutines with WithWorkers, and the matrix can
be stored at half precision with WithPrecision(HalfPrecision).

Merges are deterministic: equal distances are broken by cluster id, and a
merged cluster keeps the lower id.

# K-Means

KMeans offers a flat alternative that does not need the pairwise matrix.

# Debug Builds

Building with -tags spectradebug makes distance rounding panic when a raw
distance exceeds MaxDistance by more than floating point error, which
points at vectors that were not normalized.
*/
package spectra
