package segmenter

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/semchunk/pkg/types"
)

// SentenceSegmenter is a rule-based sentence splitter. It breaks on . ! ?
// followed by whitespace and an upper-case letter, and on paragraph breaks,
// while keeping abbreviations, decimals and ellipses inside the sentence.
type SentenceSegmenter struct {
	abbreviations map[string]bool
	calendar      map[string]bool
}

// NewSentenceSegmenter creates a SentenceSegmenter with the built-in
// abbreviation list
func NewSentenceSegmenter() *SentenceSegmenter {
	return &SentenceSegmenter{
		abbreviations: commonAbbreviations(),
		calendar:      calendarAbbreviations(),
	}
}

func (s *SentenceSegmenter) Name() string {
	return NameSentence
}

func (s *SentenceSegmenter) Segment(text string) ([]types.TextUnit, error) {
	return types.NewUnits(s.Split(text)), nil
}

// Split returns the trimmed, non-empty sentences of text in order
func (s *SentenceSegmenter) Split(text string) []string {
	sentences := make([]string, 0)
	if strings.TrimSpace(text) == "" {
		return sentences
	}

	var current strings.Builder
	flush := func() {
		sentence := normalizeSpace(current.String())
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	runes := []rune(strings.ReplaceAll(text, "\r\n", "\n"))
	for i := 0; i < len(runes); i++ {
		if runes[i] == '\n' && i+1 < len(runes) && runes[i+1] == '\n' {
			flush()
			for i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}
			continue
		}

		current.WriteRune(runes[i])

		if s.isSentenceEnd(runes, i) {
			// keep closing quotes and brackets with the sentence they end
			for i+1 < len(runes) && isCloser(runes[i+1]) {
				i++
				current.WriteRune(runes[i])
			}
			flush()
		}
	}
	flush()

	return sentences
}

func (s *SentenceSegmenter) isSentenceEnd(runes []rune, pos int) bool {
	r := runes[pos]
	if r != '.' && r != '!' && r != '?' {
		return false
	}

	if r == '.' {
		wordStart := pos
		for wordStart > 0 && !unicode.IsSpace(runes[wordStart-1]) {
			wordStart--
		}
		if s.isAbbreviation(runes, wordStart, pos) {
			return false
		}

		// 3.14
		if pos > 0 && unicode.IsDigit(runes[pos-1]) &&
			pos+1 < len(runes) && unicode.IsDigit(runes[pos+1]) {
			return false
		}

		// inside an ellipsis
		if pos+1 < len(runes) && runes[pos+1] == '.' {
			return false
		}
	}

	next := pos + 1
	for next < len(runes) && isCloser(runes[next]) {
		next++
	}
	if next >= len(runes) {
		return true
	}
	if !unicode.IsSpace(runes[next]) {
		return false
	}
	for next < len(runes) && unicode.IsSpace(runes[next]) {
		next++
	}
	if next >= len(runes) {
		return true
	}

	return unicode.IsUpper(runes[next]) || unicode.IsDigit(runes[next]) || isOpener(runes[next])
}

// isAbbreviation reports whether the word in runes[wordStart:pos] ends
// with an abbreviation period rather than a full stop
func (s *SentenceSegmenter) isAbbreviation(runes []rune, wordStart, pos int) bool {
	raw := strings.TrimLeft(string(runes[wordStart:pos]), `"'([{`)
	word := strings.ToLower(raw)
	if s.abbreviations[word] {
		return true
	}

	// Month and weekday forms collide with words like "sat" and "sun", so
	// they only count when capitalised
	if s.calendar[word] {
		first, _ := utf8.DecodeRuneInString(raw)
		return unicode.IsUpper(first)
	}

	// et al.
	return word == "al" && strings.EqualFold(previousWord(runes, wordStart), "et")
}

// previousWord returns the whitespace-delimited word before wordStart
func previousWord(runes []rune, wordStart int) string {
	end := wordStart
	for end > 0 && unicode.IsSpace(runes[end-1]) {
		end--
	}
	start := end
	for start > 0 && !unicode.IsSpace(runes[start-1]) {
		start--
	}
	return string(runes[start:end])
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’', '»':
		return true
	}
	return false
}

func isOpener(r rune) bool {
	switch r {
	case '"', '\'', '(', '[', '“', '‘', '«':
		return true
	}
	return false
}

// normalizeSpace collapses internal whitespace runs to one space and trims
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func commonAbbreviations() map[string]bool {
	return wordSet(
		// titles
		"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st", "rev", "gen", "col", "lt", "sgt",
		"ph.d", "m.d", "b.a", "m.a", "b.s", "m.s",
		// common
		"inc", "corp", "ltd", "llc", "vs", "etc", "i.e", "e.g", "cf", "approx", "fig",
		// places
		"ave", "blvd", "rd", "mt", "u.s", "u.k", "u.s.a", "u.n",
	)
}

func calendarAbbreviations() map[string]bool {
	return wordSet(
		"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
		"mon", "tue", "wed", "thu", "fri", "sat", "sun",
	)
}

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
