// Package vocab loads and indexes the canonical affix vocabulary. The
// index is the ground truth OCR output is corrected against; it is
// built once per session and never mutated afterward.
package vocab

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"relic-keeper/src/textnorm"
)

// Mode selects which word lists make up the index.
type Mode string

const (
	ModeNormal    Mode = "normal"
	ModeDeepnight Mode = "deepnight"
)

// Word-list file names under the data directory. Lines are either a
// bare affix or "N→affix" with an ignorable index prefix.
const (
	fileNormal        = "normal.txt"
	fileNormalSpecial = "normal_special.txt"
	fileDeepnightPos  = "deepnight_pos.txt"
	fileDeepnightNeg  = "deepnight_neg.txt"
)

// Index is an immutable ordered set of canonical affix strings.
type Index struct {
	mode    Mode
	entries []string
	set     map[string]struct{}

	// Deepnight polarity sub-sets; empty for ModeNormal.
	positive map[string]struct{}
	negative map[string]struct{}
}

// Load builds the index for a mode from the word lists in dir. Missing
// files are skipped; an index may legitimately be built from a subset
// during early setup.
func Load(dir string, mode Mode) (*Index, error) {
	var files []string
	switch mode {
	case ModeNormal:
		files = []string{fileNormal, fileNormalSpecial}
	case ModeDeepnight:
		files = []string{fileDeepnightPos, fileDeepnightNeg}
	default:
		return nil, fmt.Errorf("unknown vocabulary mode %q", mode)
	}

	idx := &Index{
		mode:     mode,
		set:      make(map[string]struct{}),
		positive: make(map[string]struct{}),
		negative: make(map[string]struct{}),
	}

	for _, name := range files {
		entries, err := readList(filepath.Join(dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("load vocabulary %s: %w", name, err)
		}
		for _, e := range entries {
			idx.set[e] = struct{}{}
			if mode == ModeDeepnight {
				if name == fileDeepnightPos {
					idx.positive[e] = struct{}{}
				} else {
					idx.negative[e] = struct{}{}
				}
			}
		}
	}

	idx.entries = make([]string, 0, len(idx.set))
	for e := range idx.set {
		idx.entries = append(idx.entries, e)
	}
	// Sorted for deterministic iteration; order has no semantic weight.
	sort.Strings(idx.entries)
	return idx, nil
}

// Build constructs an index directly from entries, normalizing and
// deduplicating them. Used by tests and by preset editing, where the
// vocabulary is already in memory.
func Build(mode Mode, entries []string) *Index {
	idx := &Index{
		mode:     mode,
		set:      make(map[string]struct{}),
		positive: make(map[string]struct{}),
		negative: make(map[string]struct{}),
	}
	for _, e := range entries {
		if clean := textnorm.Normalize(e); clean != "" {
			idx.set[clean] = struct{}{}
		}
	}
	idx.entries = make([]string, 0, len(idx.set))
	for e := range idx.set {
		idx.entries = append(idx.entries, e)
	}
	sort.Strings(idx.entries)
	return idx
}

// Entries returns the ordered affix sequence. Callers must not modify
// the returned slice.
func (i *Index) Entries() []string { return i.entries }

func (i *Index) Len() int { return len(i.entries) }

func (i *Index) Mode() Mode { return i.mode }

// ContainsExact reports whether s is a canonical entry.
func (i *Index) ContainsExact(s string) bool {
	_, ok := i.set[s]
	return ok
}

// IsPositive reports the polarity of a canonical entry. In normal mode
// every affix is positive. In deepnight mode an entry found in the
// negative list is negative; anything else defaults to positive.
func (i *Index) IsPositive(s string) bool {
	if i.mode != ModeDeepnight {
		return true
	}
	if _, ok := i.negative[s]; ok {
		return false
	}
	return true
}

func readList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		// "N→affix" keeps list files reviewable; the prefix is noise.
		if idx := strings.Index(line, "→"); idx >= 0 {
			line = strings.TrimSpace(line[idx+len("→"):])
		}
		if clean := textnorm.Normalize(line); clean != "" {
			entries = append(entries, clean)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
