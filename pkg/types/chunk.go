package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ChunkMetadata describes the unit range a chunk covers and, for subtitle
// input, its time span.
type ChunkMetadata struct {
	SentenceCount      int `json:"sentence_count"`
	StartSentenceIndex int `json:"start_sentence_index"`
	EndSentenceIndex   int `json:"end_sentence_index"`

	SubtitleIndex *int    `json:"subtitle_index,omitempty"`
	StartTime     *string `json:"start_time,omitempty"`
	EndTime       *string `json:"end_time,omitempty"`
	Timestamp     *string `json:"timestamp,omitempty"`
}

// Chunk is a run of consecutive units grouped between two semantic breakpoints
type Chunk struct {
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// FormatTimestamp renders a subtitle time span the way SRT files write it.
func FormatTimestamp(start, end string) string {
	return start + " --> " + end
}

// RefreshTimestamp sets Timestamp when both StartTime and EndTime are present
// and clears it otherwise.
func (m *ChunkMetadata) RefreshTimestamp() {
	if m.StartTime != nil && m.EndTime != nil {
		ts := FormatTimestamp(*m.StartTime, *m.EndTime)
		m.Timestamp = &ts
		return
	}
	m.Timestamp = nil
}

// Validate checks the chunk's structural invariants
func (c *Chunk) Validate() error {
	if c.Metadata.SentenceCount < 1 {
		return errors.New("sentence count must be at least 1")
	}
	if c.Metadata.StartSentenceIndex < 0 {
		return errors.New("start sentence index must be non-negative")
	}
	if c.Metadata.StartSentenceIndex > c.Metadata.EndSentenceIndex {
		return errors.New("start sentence index must be before or equal to end sentence index")
	}
	return nil
}

// ContentHash returns the hex SHA-256 of the chunk content
func (c *Chunk) ContentHash() string {
	h := sha256.Sum256([]byte(c.Content))
	return hex.EncodeToString(h[:])
}
