package chunker

import (
	"errors"
	"fmt"
	"math"

	"github.com/dshills/semchunk/internal/assembler"
	"github.com/dshills/semchunk/internal/distance"
	"github.com/dshills/semchunk/internal/window"
)

// ErrInvalidOptions is returned when Options fail validation
var ErrInvalidOptions = errors.New("invalid chunking options")

// Options tunes one chunking call
type Options struct {
	// BufferSize is the number of neighbours on each side of a unit that
	// contribute to its context window
	BufferSize int `json:"buffer_size"`

	// PercentileThreshold selects the breakpoint threshold from the
	// distance distribution, in [0, 100]
	PercentileThreshold float64 `json:"percentile_threshold"`

	// MinChunkSentences is the minimum number of units a chunk should hold
	// after merging
	MinChunkSentences int `json:"min_chunk_sentences"`
}

// DefaultOptions returns buffer 1, the 80th percentile and a two-unit minimum
func DefaultOptions() Options {
	return Options{
		BufferSize:          window.DefaultBufferSize,
		PercentileThreshold: distance.DefaultPercentileThreshold,
		MinChunkSentences:   assembler.DefaultMinSentences,
	}
}

// Validate checks option ranges
func (o Options) Validate() error {
	if o.BufferSize < 0 {
		return fmt.Errorf("%w: buffer size %d is negative", ErrInvalidOptions, o.BufferSize)
	}
	if math.IsNaN(o.PercentileThreshold) || o.PercentileThreshold < 0 || o.PercentileThreshold > 100 {
		return fmt.Errorf("%w: percentile threshold %v outside [0, 100]", ErrInvalidOptions, o.PercentileThreshold)
	}
	if o.MinChunkSentences < 1 {
		return fmt.Errorf("%w: minimum chunk sentences %d must be at least 1", ErrInvalidOptions, o.MinChunkSentences)
	}
	return nil
}
