// Package types provides the data types shared by every stage of the semantic
// chunking pipeline.
//
// # Text Units
//
// A TextUnit is one sentence or subtitle line. Segmenters create units with
// Content, Index and (for subtitles) Source set; later stages enrich copies:
//
//	units := types.NewUnits([]string{"First sentence.", "Second one."})
//	windowed, _ := window.Build(units, 1)   // ContextWindow set
//	// embeddings attached by the chunker
//	result, _ := distance.Profile(embedded, 80) // DistanceToNext set
//
// No stage mutates the slice it was given; each returns a new sequence.
//
// # Chunks
//
// A Chunk is the terminal artifact: concatenated unit content plus metadata
// describing the covered unit range and, for subtitle input, the time span:
//
//	chunk.Metadata.SentenceCount      // units in the chunk (>= 1)
//	chunk.Metadata.StartSentenceIndex // first unit index
//	chunk.Metadata.EndSentenceIndex   // last unit index
//	chunk.Metadata.Timestamp          // "00:00:01,000 --> 00:00:04,000"
//
// The ordered chunk ranges of one document always partition [0, n-1].
package types
