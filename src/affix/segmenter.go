package affix

import (
	"strings"

	"relic-keeper/src/textnorm"
)

// leadingNoise are runes the recognizer hallucinates at the start of a
// continuation line when an affix wraps onto a second visual line.
var leadingNoise = map[rune]struct{}{
	'万': {}, '了': {}, '可': {},
	'"': {}, '“': {}, '”': {}, '‘': {}, '’': {},
	' ': {}, '　': {},
}

// Segmenter splits an OCR text block into discrete affix entries,
// using the corrector as the oracle for its merge-or-keep decisions.
type Segmenter struct {
	corrector *Corrector
}

func NewSegmenter(c *Corrector) *Segmenter {
	return &Segmenter{corrector: c}
}

// SplitEntries normalizes a block and splits it into raw candidate
// lines: field-separator first, then line breaks, trimmed, empties
// dropped, reading order preserved.
func SplitEntries(block string) []string {
	// Normalize the whole block at once: the delimiter-repair rule
	// needs cross-line context.
	block = textnorm.Normalize(block)

	var candidates []string
	for _, field := range strings.Split(block, "|") {
		for _, line := range strings.Split(field, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				candidates = append(candidates, line)
			}
		}
	}
	return candidates
}

// Segment turns a raw OCR block into the authoritative affix-line
// sequence for one captured item. Candidates the corrector cannot
// place are given one chance to merge with their successor: an affix
// wraps across at most two visual lines, so a one-step lookahead is
// sufficient and keeps the pass linear.
func (s *Segmenter) Segment(block string) []Correction {
	return s.CorrectEntries(SplitEntries(block))
}

// CorrectEntries runs the correction and dynamic-merge pass over
// pre-split candidate lines.
func (s *Segmenter) CorrectEntries(entries []string) []Correction {
	var out []Correction
	for i := 0; i < len(entries); i++ {
		cur := s.corrector.Correct(entries[i])

		if !cur.Corrected && i+1 < len(entries) {
			next := stripLeadingNoise(entries[i+1])
			if next != "" {
				merged := s.corrector.Correct(entries[i] + next)
				// Merge only when it strictly improves the match;
				// equal scores keep the lines separate.
				if merged.Similarity > cur.Similarity {
					out = append(out, merged)
					i++ // consume the continuation line
					continue
				}
			}
		}
		out = append(out, cur)
	}
	return out
}

func stripLeadingNoise(s string) string {
	runes := []rune(s)
	i := 0
	for i < len(runes) {
		if _, ok := leadingNoise[runes[i]]; !ok {
			break
		}
		i++
	}
	return string(runes[i:])
}
