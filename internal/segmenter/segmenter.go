// Package segmenter turns raw text into the ordered unit sequence consumed by
// the chunker. Subtitle text is split into timed entries, prose into
// sentences or fixed word windows.
package segmenter

import (
	"fmt"
	"strings"

	"github.com/dshills/semchunk/pkg/types"
)

// Segmenter names accepted by ByName
const (
	NameAuto     = "auto"
	NameSentence = "sentence"
	NameSubtitle = "subtitle"
	NameFixed    = "fixed"
)

// Segmenter splits text into indexed units
type Segmenter interface {
	// Segment returns units with Index set to their 0-based position
	Segment(text string) ([]types.TextUnit, error)

	// Name returns the segmenter name for logging and persistence
	Name() string
}

// Detect returns a SubtitleSegmenter when text contains an SRT timestamp
// line, and fallback otherwise.
func Detect(text string, fallback Segmenter) Segmenter {
	if IsSubtitle(text) {
		return NewSubtitleSegmenter()
	}
	return fallback
}

// ByName returns the segmenter registered under name. "auto" yields an
// AutoSegmenter that detects subtitles and otherwise splits sentences.
// fixedWords configures the fixed window size and is ignored by the others.
func ByName(name string, fixedWords int) (Segmenter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameAuto:
		return NewAutoSegmenter(NewSentenceSegmenter()), nil
	case NameSentence, "nlp":
		return NewSentenceSegmenter(), nil
	case NameSubtitle, "srt":
		return NewSubtitleSegmenter(), nil
	case NameFixed, "window":
		return NewFixedWindowSegmenter(fixedWords), nil
	default:
		return nil, fmt.Errorf("unknown segmenter: %s", name)
	}
}

// AutoSegmenter picks the subtitle segmenter for SRT input and its fallback
// for anything else
type AutoSegmenter struct {
	fallback Segmenter
}

// NewAutoSegmenter creates an AutoSegmenter
func NewAutoSegmenter(fallback Segmenter) *AutoSegmenter {
	return &AutoSegmenter{fallback: fallback}
}

func (a *AutoSegmenter) Segment(text string) ([]types.TextUnit, error) {
	return Detect(text, a.fallback).Segment(text)
}

func (a *AutoSegmenter) Name() string {
	return NameAuto
}

// Resolve returns the concrete segmenter that would handle text
func (a *AutoSegmenter) Resolve(text string) Segmenter {
	return Detect(text, a.fallback)
}
