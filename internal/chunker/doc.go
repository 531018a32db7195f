// Package chunker partitions ordered text units into semantically coherent
// chunks.
//
// The pipeline for one call is:
//
//  1. build a context window around every unit (window.Build)
//  2. embed all windows in one batch request
//  3. compute cosine distances between neighbours and the percentile
//     breakpoint threshold (distance.Profile)
//  4. split wherever a distance is strictly above the threshold, then fold
//     chunks shorter than the minimum into a neighbour (assembler.Assemble)
//
// Every stage returns new values; the caller's units are never modified.
//
//	c := chunker.New(emb, nil, logger)
//	res, err := c.ChunkText(ctx, text, chunker.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	for _, ch := range res.Chunks {
//	    fmt.Println(ch.Metadata.StartSentenceIndex, ch.Content)
//	}
package chunker
