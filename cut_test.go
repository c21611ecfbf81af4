package spectra

import (
	"reflect"
	"testing"
)

func TestAutocut(t *testing.T) {
	tests := []struct {
		name     string
		values   []float32
		cutoff   int
		expected int
	}{
		{
			name:     "empty slice",
			values:   []float32{},
			cutoff:   1,
			expected: 0,
		},
		{
			name:     "single element",
			values:   []float32{1.0},
			cutoff:   1,
			expected: 1,
		},
		{
			name:     "two elements",
			values:   []float32{1.0, 2.0},
			cutoff:   1,
			expected: 2,
		},
		{
			name:     "clear gap after first few merges",
			values:   []float32{0.1, 0.15, 0.2, 0.5, 0.6, 0.7, 0.8},
			cutoff:   1,
			expected: 3,
		},
		{
			name:     "tight merges then outliers",
			values:   []float32{0.1, 0.12, 0.13, 0.14, 0.15, 0.8, 0.9, 1.0},
			cutoff:   1,
			expected: 5,
		},
		{
			name:     "cutoff 2 - find second extremum",
			values:   []float32{0.1, 0.2, 0.4, 0.45, 0.7, 0.75, 0.9, 1.0},
			cutoff:   2,
			expected: 4,
		},
		{
			name:     "cutoff higher than extrema count",
			values:   []float32{0.1, 0.2, 0.5, 0.6},
			cutoff:   5,
			expected: 4,
		},
		{
			name:     "all same values",
			values:   []float32{0.5, 0.5, 0.5, 0.5, 0.5},
			cutoff:   1,
			expected: 5,
		},
		{
			name:     "final jump",
			values:   []float32{0.1, 0.11, 0.12, 0.9},
			cutoff:   1,
			expected: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Autocut(tt.values, tt.cutoff)
			if got != tt.expected {
				t.Errorf("Autocut() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestHierarchicalResultCut(t *testing.T) {
	hc, err := NewHierarchicalClusterer(1, EuclideanSquared)
	if err != nil {
		t.Fatal(err)
	}
	result, err := hc.Cluster(NewSliceSource(fourSpectra()...))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		merges int
		want   Partition
	}{
		{"no merges", 0, Partition{1: {1}, 2: {2}, 3: {3}, 4: {4}}},
		{"negative clamps", -3, Partition{1: {1}, 2: {2}, 3: {3}, 4: {4}}},
		{"one merge", 1, Partition{1: {1, 2}, 3: {3}, 4: {4}}},
		{"two merges", 2, Partition{1: {1, 2, 3}, 4: {4}}},
		{"all merges", 3, result.Partition},
		{"beyond clamps", 10, result.Partition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := result.Cut(tt.merges); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Cut(%d) = %v, want %v", tt.merges, got, tt.want)
			}
		})
	}
}

func TestHierarchicalResultAutoCut(t *testing.T) {
	result := &HierarchicalResult{
		Partition:       Partition{1: {1, 2, 3, 4, 5}},
		InitialClusters: 5,
		Merges: []MergeStep{
			{Kept: 1, Absorbed: 2, Distance: 0.1},
			{Kept: 1, Absorbed: 3, Distance: 0.11},
			{Kept: 4, Absorbed: 5, Distance: 0.12},
			{Kept: 1, Absorbed: 4, Distance: 0.9},
		},
	}

	got := result.AutoCut(1)
	want := Partition{1: {1, 2, 3}, 4: {4, 5}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AutoCut(1) = %v, want %v", got, want)
	}
}
