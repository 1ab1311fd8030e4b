// Package affix turns noisy recognized text into canonical affix
// entries: fuzzy correction against the vocabulary index and
// segmentation of OCR blocks into discrete affix lines.
package affix

import (
	"unicode/utf8"

	"relic-keeper/src/vocab"
)

// Correction is the outcome of correcting one raw OCR line. When
// Corrected is false, Text holds the raw input unchanged.
type Correction struct {
	Text       string
	Similarity float64
	Corrected  bool
}

// Corrector fuzzy-matches raw lines against a vocabulary index. Safe
// for concurrent use; it holds no mutable state.
type Corrector struct {
	index     *vocab.Index
	threshold float64
}

// NewCorrector builds a corrector. A line is considered corrected when
// its best similarity is at or above threshold (inclusive).
func NewCorrector(index *vocab.Index, threshold float64) *Corrector {
	return &Corrector{index: index, threshold: threshold}
}

// Correct finds the nearest vocabulary entry to raw. Lines shorter
// than 2 runes carry too little signal and are rejected outright.
func (c *Corrector) Correct(raw string) Correction {
	if utf8.RuneCountInString(raw) < 2 {
		return Correction{Text: raw, Similarity: 0, Corrected: false}
	}
	if c.index.ContainsExact(raw) {
		return Correction{Text: raw, Similarity: 1.0, Corrected: true}
	}

	best := ""
	bestSim := 0.0
	for _, entry := range c.index.Entries() {
		sim := Similarity(raw, entry)
		if sim > bestSim {
			bestSim = sim
			best = entry
		}
	}

	if bestSim >= c.threshold {
		return Correction{Text: best, Similarity: bestSim, Corrected: true}
	}
	return Correction{Text: raw, Similarity: bestSim, Corrected: false}
}

// BestMatch returns the nearest entry of an arbitrary candidate list
// and its similarity, without applying the corrected threshold. Used
// for the blacklist veto and the special-relic guard, which carry
// their own thresholds.
func BestMatch(raw string, candidates []string) (string, float64) {
	if utf8.RuneCountInString(raw) < 2 {
		return "", 0
	}
	best := ""
	bestSim := 0.0
	for _, cand := range candidates {
		sim := Similarity(raw, cand)
		if sim > bestSim {
			bestSim = sim
			best = cand
		}
	}
	return best, bestSim
}

// Similarity is an order-independent rune-overlap ratio in [0,1]
// (Sørensen–Dice over rune multisets). Identical strings score 1.0;
// disjoint strings score 0. Order independence matters because the
// recognizer occasionally transposes adjacent glyphs.
func Similarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1.0
	}
	ca := runeCounts(a)
	cb := runeCounts(b)
	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0
	}

	common := 0
	for r, n := range ca {
		if m, ok := cb[r]; ok {
			if m < n {
				common += m
			} else {
				common += n
			}
		}
	}
	return 2 * float64(common) / float64(la+lb)
}

func runeCounts(s string) map[rune]int {
	counts := make(map[rune]int, len(s))
	for _, r := range s {
		counts[r]++
	}
	return counts
}
