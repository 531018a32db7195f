package chunker

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/semchunk/internal/assembler"
	"github.com/dshills/semchunk/internal/distance"
	"github.com/dshills/semchunk/internal/embedder"
	"github.com/dshills/semchunk/internal/logging"
	"github.com/dshills/semchunk/internal/segmenter"
	"github.com/dshills/semchunk/internal/window"
	"github.com/dshills/semchunk/pkg/types"
)

// ErrEmbeddingMismatch is returned when the provider answers a batch with a
// different number of embeddings than texts sent
var ErrEmbeddingMismatch = errors.New("embedding count does not match context window count")

// Chunker runs the boundary detection pipeline: context windows, one
// embedding batch, distance profile, grouping and short-chunk merge.
// A Chunker holds no per-call state and is safe for concurrent use.
type Chunker struct {
	embedder  embedder.Embedder
	segmenter segmenter.Segmenter
	logger    logging.Logger
}

// New creates a Chunker. seg is used by ChunkText and may be nil, in which
// case subtitle text is detected and everything else is split into
// sentences. A nil logger discards output.
func New(emb embedder.Embedder, seg segmenter.Segmenter, logger logging.Logger) *Chunker {
	if seg == nil {
		seg = segmenter.NewAutoSegmenter(segmenter.NewSentenceSegmenter())
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Chunker{embedder: emb, segmenter: seg, logger: logger}
}

// Segmenter returns the segmenter used by ChunkText
func (c *Chunker) Segmenter() segmenter.Segmenter {
	return c.segmenter
}

// WithSegmenter returns a Chunker sharing this one's embedder and logger
// but segmenting ChunkText input with seg
func (c *Chunker) WithSegmenter(seg segmenter.Segmenter) *Chunker {
	return New(c.embedder, seg, c.logger)
}

// Result is the output of one pipeline run
type Result struct {
	Chunks       []types.Chunk
	Units        []types.TextUnit // enriched copies with windows, embeddings and distances
	Threshold    float64
	ShiftIndices []int
}

// ChunkUnits partitions units into semantically coherent chunks.
//
// Empty input yields no chunks. A single unit has no distances to rank and
// yields types.ErrComputation. Embedding errors are returned unchanged.
func (c *Chunker) ChunkUnits(ctx context.Context, units []types.TextUnit, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return &Result{Chunks: []types.Chunk{}, Units: []types.TextUnit{}, ShiftIndices: []int{}}, nil
	}
	if len(units) < 2 {
		return nil, fmt.Errorf("%w: got %d unit", types.ErrComputation, len(units))
	}

	windowed, err := window.Build(units, opts.BufferSize)
	if err != nil {
		return nil, err
	}

	embedded, err := c.embed(ctx, windowed)
	if err != nil {
		return nil, err
	}

	profile, err := distance.Profile(embedded, opts.PercentileThreshold)
	if err != nil {
		return nil, err
	}

	chunks := assembler.Assemble(profile.Units, profile.ShiftIndices, opts.MinChunkSentences)

	c.logger.Debug("chunked units",
		"units", len(units),
		"threshold", profile.Threshold,
		"shifts", len(profile.ShiftIndices),
		"chunks", len(chunks))

	return &Result{
		Chunks:       chunks,
		Units:        profile.Units,
		Threshold:    profile.Threshold,
		ShiftIndices: profile.ShiftIndices,
	}, nil
}

// ChunkText segments text with the configured segmenter and chunks the
// resulting units
func (c *Chunker) ChunkText(ctx context.Context, text string, opts Options) (*Result, error) {
	units, err := c.segmenter.Segment(text)
	if err != nil {
		return nil, fmt.Errorf("segment text: %w", err)
	}
	return c.ChunkUnits(ctx, units, opts)
}

// embed sends every context window in a single batch and attaches the
// returned vectors to copies of the units.
func (c *Chunker) embed(ctx context.Context, units []types.TextUnit) ([]types.TextUnit, error) {
	texts, positions := window.Texts(units)
	out := types.CloneUnits(units)
	if len(texts) == 0 {
		return out, nil
	}

	resp, err := c.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("%w: sent %d, got %d", ErrEmbeddingMismatch, len(texts), got)
	}

	for i, pos := range positions {
		emb := resp.Embeddings[i]
		if emb == nil {
			return nil, fmt.Errorf("%w: missing embedding at %d", ErrEmbeddingMismatch, i)
		}
		out[pos].Embedding = append([]float32(nil), emb.Vector...)
	}
	return out, nil
}
