package types

// SourceMetadata carries subtitle provenance for a unit produced by the
// subtitle segmenter. Plain sentence units have no SourceMetadata.
type SourceMetadata struct {
	SubtitleIndex int
	StartTime     string // HH:MM:SS,mmm
	EndTime       string // HH:MM:SS,mmm
	Timestamp     string // "start --> end"
}

// TextUnit is one segmented unit of text flowing through the chunking pipeline.
//
// Optional fields use pointers (or a nil slice for Embedding) so that "absent"
// is distinguishable from the zero value.
type TextUnit struct {
	Content string
	Index   int // position in the original sequence, never reassigned

	ContextWindow  *string
	Embedding      []float32
	DistanceToNext *float64

	Source *SourceMetadata
}

// HasContextWindow reports whether a context window has been built for the unit.
func (u TextUnit) HasContextWindow() bool {
	return u.ContextWindow != nil
}

// HasEmbedding reports whether an embedding has been attached to the unit.
func (u TextUnit) HasEmbedding() bool {
	return u.Embedding != nil
}

// Clone returns a deep copy of the unit. Pipeline stages clone before they
// enrich so that caller-held slices stay untouched.
func (u TextUnit) Clone() TextUnit {
	out := TextUnit{
		Content: u.Content,
		Index:   u.Index,
	}
	if u.ContextWindow != nil {
		w := *u.ContextWindow
		out.ContextWindow = &w
	}
	if u.Embedding != nil {
		out.Embedding = make([]float32, len(u.Embedding))
		copy(out.Embedding, u.Embedding)
	}
	if u.DistanceToNext != nil {
		d := *u.DistanceToNext
		out.DistanceToNext = &d
	}
	if u.Source != nil {
		src := *u.Source
		out.Source = &src
	}
	return out
}

// CloneUnits deep-copies a unit sequence.
func CloneUnits(units []TextUnit) []TextUnit {
	out := make([]TextUnit, len(units))
	for i := range units {
		out[i] = units[i].Clone()
	}
	return out
}

// NewUnits builds an indexed unit sequence from plain strings.
func NewUnits(contents []string) []TextUnit {
	units := make([]TextUnit, len(contents))
	for i, c := range contents {
		units[i] = TextUnit{Content: c, Index: i}
	}
	return units
}
