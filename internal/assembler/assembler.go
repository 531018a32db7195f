// Package assembler groups units between shift indices into chunks and
// merges undersized chunks into their neighbours.
package assembler

import (
	"strings"

	"github.com/dshills/semchunk/pkg/types"
)

// DefaultMinSentences is the smallest sentence count a chunk may have before
// it is merged into a neighbour
const DefaultMinSentences = 2

// Group splits units into chunks at every shift index. A shift at i closes
// the chunk after unit i; the last unit always closes the final chunk.
// Shift indices must be ascending and below len(units)-1.
func Group(units []types.TextUnit, shiftIndices []int) []types.Chunk {
	if len(units) == 0 {
		return []types.Chunk{}
	}

	breakpoints := make([]int, 0, len(shiftIndices)+1)
	breakpoints = append(breakpoints, shiftIndices...)
	breakpoints = append(breakpoints, len(units)-1)

	chunks := make([]types.Chunk, 0, len(breakpoints))
	start := 0
	for _, b := range breakpoints {
		if b < start || b >= len(units) {
			continue
		}
		chunks = append(chunks, newChunk(units[start:b+1]))
		start = b + 1
	}
	return chunks
}

// newChunk builds a chunk from a non-empty run of units
func newChunk(group []types.TextUnit) types.Chunk {
	contents := make([]string, len(group))
	for i, u := range group {
		contents[i] = u.Content
	}

	first, last := group[0], group[len(group)-1]
	meta := types.ChunkMetadata{
		SentenceCount:      len(group),
		StartSentenceIndex: first.Index,
		EndSentenceIndex:   last.Index,
	}

	if first.Source != nil {
		idx := first.Source.SubtitleIndex
		start := first.Source.StartTime
		meta.SubtitleIndex = &idx
		meta.StartTime = &start
	}
	if last.Source != nil {
		end := last.Source.EndTime
		meta.EndTime = &end
	}
	meta.RefreshTimestamp()

	return types.Chunk{
		Content:  strings.Join(contents, " "),
		Metadata: meta,
	}
}

// Merge joins two adjacent chunks, earlier first. Subtitle index and start
// time come from the earlier chunk, end time from the later one.
func Merge(earlier, later types.Chunk) types.Chunk {
	meta := types.ChunkMetadata{
		SentenceCount:      earlier.Metadata.SentenceCount + later.Metadata.SentenceCount,
		StartSentenceIndex: earlier.Metadata.StartSentenceIndex,
		EndSentenceIndex:   later.Metadata.EndSentenceIndex,
		SubtitleIndex:      copyPtr(earlier.Metadata.SubtitleIndex),
		StartTime:          copyPtr(earlier.Metadata.StartTime),
		EndTime:            copyPtr(later.Metadata.EndTime),
	}
	meta.RefreshTimestamp()

	return types.Chunk{
		Content:  earlier.Content + " " + later.Content,
		Metadata: meta,
	}
}

// MergeShort makes one left-to-right pass that folds every chunk with fewer
// than minSentences sentences into a neighbour. A short chunk goes into the
// previous output chunk when there is one; otherwise it absorbs the next raw
// chunk. A lone chunk is kept whatever its size.
//
// The pass is not repeated: a chunk produced by merging a short chunk forward
// is not re-examined.
func MergeShort(chunks []types.Chunk, minSentences int) []types.Chunk {
	out := make([]types.Chunk, 0, len(chunks))

	for i := 0; i < len(chunks); i++ {
		current := chunks[i]
		if current.Metadata.SentenceCount >= minSentences {
			out = append(out, current)
			continue
		}

		hasPrev := len(out) > 0
		hasNext := i+1 < len(chunks)

		switch {
		case hasPrev:
			out[len(out)-1] = Merge(out[len(out)-1], current)
		case hasNext:
			out = append(out, Merge(current, chunks[i+1]))
			i++
		default:
			out = append(out, current)
		}
	}

	return out
}

// Assemble groups units at the shift indices and merges short chunks
func Assemble(units []types.TextUnit, shiftIndices []int, minSentences int) []types.Chunk {
	return MergeShort(Group(units, shiftIndices), minSentences)
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
