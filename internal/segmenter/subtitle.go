package segmenter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dshills/semchunk/pkg/types"
)

var (
	timestampPattern = regexp.MustCompile(`\d{2}:\d{2}:\d{2},\d{3}\s*-->\s*\d{2}:\d{2}:\d{2},\d{3}`)
	timingLine       = regexp.MustCompile(`^\s*(\d{2}:\d{2}:\d{2},\d{3})\s*-->\s*(\d{2}:\d{2}:\d{2},\d{3})`)
	blankLines       = regexp.MustCompile(`\n\s*\n`)
)

// IsSubtitle reports whether text contains an SRT timestamp anywhere
func IsSubtitle(text string) bool {
	return timestampPattern.MatchString(text)
}

// SubtitleEntry is one parsed SRT block
type SubtitleEntry struct {
	Index     int
	StartTime string
	EndTime   string
	Content   string
}

// ParseSubtitles parses SRT text. Blocks are separated by blank lines; the
// first line is the numeric index, the second the timing line, the rest the
// content joined by single spaces. Blocks with a non-numeric index, a bad
// timing line or no content are dropped.
func ParseSubtitles(text string) []SubtitleEntry {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimPrefix(text, "\ufeff")

	entries := make([]SubtitleEntry, 0)
	for _, block := range blankLines.Split(strings.TrimSpace(text), -1) {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 {
			continue
		}

		idx, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			continue
		}

		m := timingLine.FindStringSubmatch(lines[1])
		if m == nil {
			continue
		}

		parts := make([]string, 0, len(lines)-2)
		for _, l := range lines[2:] {
			if l = strings.TrimSpace(l); l != "" {
				parts = append(parts, l)
			}
		}
		content := strings.Join(parts, " ")
		if content == "" {
			continue
		}

		entries = append(entries, SubtitleEntry{
			Index:     idx,
			StartTime: m[1],
			EndTime:   m[2],
			Content:   content,
		})
	}
	return entries
}

// SubtitleSegmenter yields one unit per SRT entry with SourceMetadata set
type SubtitleSegmenter struct{}

// NewSubtitleSegmenter creates a SubtitleSegmenter
func NewSubtitleSegmenter() *SubtitleSegmenter {
	return &SubtitleSegmenter{}
}

func (s *SubtitleSegmenter) Segment(text string) ([]types.TextUnit, error) {
	entries := ParseSubtitles(text)
	units := make([]types.TextUnit, len(entries))
	for i, e := range entries {
		units[i] = types.TextUnit{
			Content: e.Content,
			Index:   i,
			Source: &types.SourceMetadata{
				SubtitleIndex: e.Index,
				StartTime:     e.StartTime,
				EndTime:       e.EndTime,
				Timestamp:     types.FormatTimestamp(e.StartTime, e.EndTime),
			},
		}
	}
	return units, nil
}

func (s *SubtitleSegmenter) Name() string {
	return NameSubtitle
}
