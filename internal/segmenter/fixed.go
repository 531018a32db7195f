package segmenter

import (
	"strings"

	"github.com/dshills/semchunk/pkg/types"
)

// DefaultWindowWords is the FixedWindowSegmenter unit size in words
const DefaultWindowWords = 40

// FixedWindowSegmenter cuts text into consecutive runs of a fixed number of
// words. It is the fallback for text without usable sentence punctuation,
// such as transcripts.
type FixedWindowSegmenter struct {
	words int
}

// NewFixedWindowSegmenter creates a segmenter emitting units of words words.
// Non-positive sizes use DefaultWindowWords.
func NewFixedWindowSegmenter(words int) *FixedWindowSegmenter {
	if words <= 0 {
		words = DefaultWindowWords
	}
	return &FixedWindowSegmenter{words: words}
}

func (f *FixedWindowSegmenter) Name() string {
	return NameFixed
}

func (f *FixedWindowSegmenter) Segment(text string) ([]types.TextUnit, error) {
	fields := strings.Fields(text)
	contents := make([]string, 0, len(fields)/f.words+1)
	for start := 0; start < len(fields); start += f.words {
		end := min(start+f.words, len(fields))
		contents = append(contents, strings.Join(fields[start:end], " "))
	}
	return types.NewUnits(contents), nil
}

// WindowWords returns the configured window size
func (f *FixedWindowSegmenter) WindowWords() int {
	return f.words
}
