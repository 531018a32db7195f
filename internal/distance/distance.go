// Package distance derives the consecutive-pair cosine distance profile of an
// embedded unit sequence and selects the shift indices where the distance
// exceeds a percentile threshold.
package distance

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/dshills/semchunk/pkg/types"
)

// DefaultPercentileThreshold is the percentile used when none is configured
const DefaultPercentileThreshold = 80.0

var (
	ErrMissingEmbedding  = errors.New("unit has no embedding")
	ErrDimensionMismatch = errors.New("embedding dimensions differ")
	ErrInvalidPercentile = errors.New("percentile must be between 0 and 100")
)

// Result is the output of Profile
type Result struct {
	// Units is a copy of the input with DistanceToNext set on all but the last unit
	Units []types.TextUnit

	// Distances[i] is the distance between unit i and unit i+1
	Distances []float64

	Threshold float64

	// ShiftIndices lists, ascending, every i with Distances[i] > Threshold.
	// A shift at i is a boundary after unit i.
	ShiftIndices []int
}

// CosineSimilarity computes dot(a,b) / (|a| * |b|). A zero-norm vector has
// similarity 0 with everything.
func CosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, v := range a {
		normA += float64(v) * float64(v)
	}
	for _, v := range b {
		normB += float64(v) * float64(v)
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CosineDistance is 1 - CosineSimilarity(a, b)
func CosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}

// Percentile returns the p-th percentile (0-100) of values using linear
// interpolation between closest ranks (R type 7). values is not modified.
func Percentile(values []float64, p float64) (float64, error) {
	if len(values) == 0 {
		return 0, types.ErrComputation
	}
	if p < 0 || p > 100 || math.IsNaN(p) {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidPercentile, p)
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	h := float64(len(sorted)-1) * (p / 100)
	lo := math.Floor(h)
	hi := math.Ceil(h)

	xlo := sorted[int(lo)]
	xhi := sorted[int(hi)]
	return xlo + (h-lo)*(xhi-xlo), nil
}

// Distances computes the consecutive-pair cosine distances of units.
// Every unit must carry an embedding and neighbours must share a dimension.
func Distances(units []types.TextUnit) ([]float64, error) {
	if len(units) < 2 {
		return []float64{}, nil
	}

	out := make([]float64, len(units)-1)
	for i := 0; i < len(units)-1; i++ {
		a, b := units[i], units[i+1]
		if !a.HasEmbedding() {
			return nil, fmt.Errorf("%w: unit %d", ErrMissingEmbedding, a.Index)
		}
		if !b.HasEmbedding() {
			return nil, fmt.Errorf("%w: unit %d", ErrMissingEmbedding, b.Index)
		}
		if len(a.Embedding) != len(b.Embedding) {
			return nil, fmt.Errorf("%w: unit %d has %d, unit %d has %d", ErrDimensionMismatch,
				a.Index, len(a.Embedding), b.Index, len(b.Embedding))
		}
		out[i] = CosineDistance(a.Embedding, b.Embedding)
	}
	return out, nil
}

// ShiftIndices returns every index whose distance is strictly greater than
// threshold. Ties are not boundaries.
func ShiftIndices(distances []float64, threshold float64) []int {
	shifts := make([]int, 0)
	for i, d := range distances {
		if d > threshold {
			shifts = append(shifts, i)
		}
	}
	return shifts
}

// Profile computes distances, the percentile threshold and the shift indices
// for an embedded unit sequence. The input slice is left untouched.
//
// Fewer than two units yields types.ErrComputation.
func Profile(units []types.TextUnit, percentile float64) (*Result, error) {
	distances, err := Distances(units)
	if err != nil {
		return nil, err
	}

	threshold, err := Percentile(distances, percentile)
	if err != nil {
		return nil, err
	}

	enriched := types.CloneUnits(units)
	for i, d := range distances {
		enriched[i].DistanceToNext = &d
	}
	enriched[len(enriched)-1].DistanceToNext = nil

	return &Result{
		Units:        enriched,
		Distances:    distances,
		Threshold:    threshold,
		ShiftIndices: ShiftIndices(distances, threshold),
	}, nil
}
