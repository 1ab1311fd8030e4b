// Package textnorm canonicalizes raw OCR output before vocabulary
// matching. The game renders affix text in a stylized font that the
// recognizer misreads in consistent ways; every rule here exists
// because a specific misread was observed.
package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// substitutions is the known-misrecognition table, applied in order.
// Extend by adding pairs; no code change needed elsewhere.
var substitutions = [][2]string{
	// Roman numeral one renders almost identically to the digit.
	{"Ⅰ", "1"},
	{"ⅰ", "1"},
	// The plus sign in "+N" bonuses is misread as these glyphs.
	{"十", "+"},
	{"土", "+"},
	{"＋", "+"},
	{"⁺", "+"},
	// CJK confusion pairs seen in recognized affix text.
	{"陷人", "陷入"},
	{"碱", "减"},
}

var bracketPairs = [][2]string{
	{"[", "【"}, {"]", "】"},
	{"(", "【"}, {")", "】"},
	{"{", "【"}, {"}", "】"},
	{"□", "【"}, {"■", "【"},
}

var punctPairs = [][2]string{
	{",", "，"},
	{":", "："},
	{";", "；"},
}

var quoteRunes = []string{"\"", "“", "”", "‘", "’"}

// delimiterRepair matches a "+N" bonus followed by a stray 1 where the
// field separator glyph was intended, e.g. "+3幸运" recognized as
// "+31幸运".
var delimiterRepair = regexp.MustCompile(`(\+\d+)\s*1\s*([\x{4e00}-\x{9fa5}])`)

// noiseMarkers identify lines that are never affixes (footnotes and the
// weapon-class restriction blurb).
var noiseMarkers = []string{"※", "仅限能使用的", "武器类别"}

// Normalize canonicalizes a block of raw OCR text. It is pure and
// idempotent; the empty string is a valid result.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	s := width.Fold.String(raw)

	for _, sub := range substitutions {
		s = strings.ReplaceAll(s, sub[0], sub[1])
	}
	for _, b := range bracketPairs {
		s = strings.ReplaceAll(s, b[0], b[1])
	}
	for _, q := range quoteRunes {
		s = strings.ReplaceAll(s, q, "")
	}

	// Whitespace inside a line carries no signal in CJK affix text.
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "　", "")
	s = strings.ReplaceAll(s, "\t", "")
	s = strings.ReplaceAll(s, "\r", "")

	for _, p := range punctPairs {
		s = strings.ReplaceAll(s, p[0], p[1])
	}

	s = delimiterRepair.ReplaceAllString(s, "$1|$2")

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isNoiseLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isNoiseLine(line string) bool {
	for _, m := range noiseMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}
