// Package rules decides keep/sell/favorite outcomes for a corrected
// affix list evaluated against the user's presets.
package rules

import (
	"fmt"

	"relic-keeper/src/affix"
	"relic-keeper/src/preset"
)

// Verdict is the outcome of one evaluation. Reason is human-readable
// and logged verbatim.
type Verdict struct {
	Qualified     bool
	Reason        string
	MatchedPreset string
	PositiveHits  int
}

// Config carries the evaluation thresholds. Thresholds are
// configuration; the algorithm is never forked per call site.
type Config struct {
	// BlacklistThreshold is the fuzzy-similarity bar for the negative
	// veto. High on purpose: a veto discards the item outright.
	BlacklistThreshold float64
}

func DefaultConfig() Config {
	return Config{BlacklistThreshold: 0.90}
}

// Engine evaluates affix lists against preset sets. Stateless; safe
// for concurrent use.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Inputs groups the preset material for one evaluation. Dedicated
// presets are assumed pre-filtered to active ones.
type Inputs struct {
	General   *preset.Preset
	Dedicated []*preset.Preset
	Blacklist *preset.Preset
}

// Evaluate runs the decision sequence, in priority order:
//
//  1. A single positive affix never qualifies regardless of content;
//     only two- and three-affix combinations are worth keeping.
//  2. Blacklist veto: one fatal negative ruins the item no matter how
//     many positives match, so it is checked before any whitelist.
//  3. Whitelist scan: general ∪ each dedicated preset, counting exact
//     matches of corrected positives; threshold 2 (double) or 3.
//  4. General preset alone when no dedicated preset exists.
func (e *Engine) Evaluate(positive, negative []string, in Inputs, requireDouble bool) Verdict {
	if len(positive) == 1 {
		return Verdict{Qualified: false, Reason: "single positive affix (insufficient signal)"}
	}

	if in.Blacklist != nil {
		for _, neg := range negative {
			entry, sim := affix.BestMatch(neg, in.Blacklist.Affixes)
			if sim > e.cfg.BlacklistThreshold {
				return Verdict{
					Qualified:     false,
					Reason:        fmt.Sprintf("blacklist match: %s", entry),
					MatchedPreset: in.Blacklist.Name,
				}
			}
		}
	}

	required := 3
	if requireDouble {
		required = 2
	}

	best := Verdict{}
	if in.General != nil {
		generalSet := toSet(in.General.Affixes)

		if len(in.Dedicated) > 0 {
			for _, p := range in.Dedicated {
				combined := union(generalSet, p.Affixes)
				hits := countHits(positive, combined)
				if hits > best.PositiveHits {
					best = Verdict{
						PositiveHits:  hits,
						MatchedPreset: in.General.Name + "+" + p.Name,
					}
				}
			}
		} else {
			best = Verdict{
				PositiveHits:  countHits(positive, generalSet),
				MatchedPreset: in.General.Name,
			}
		}
	}

	if best.PositiveHits >= required {
		best.Qualified = true
		best.Reason = fmt.Sprintf("%s matched %d affixes", best.MatchedPreset, best.PositiveHits)
		return best
	}
	return Verdict{
		Qualified:    false,
		Reason:       "no preset matched",
		PositiveHits: best.PositiveHits,
	}
}

// countHits counts positives exactly equal to a set member. Fuzzy
// correction happened exactly once upstream, against the global
// vocabulary; preset matching is intentionally exact.
func countHits(positive []string, set map[string]struct{}) int {
	hits := 0
	for _, p := range positive {
		if _, ok := set[p]; ok {
			hits++
		}
	}
	return hits
}

func toSet(entries []string) map[string]struct{} {
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		set[e] = struct{}{}
	}
	return set
}

func union(base map[string]struct{}, extra []string) map[string]struct{} {
	out := make(map[string]struct{}, len(base)+len(extra))
	for e := range base {
		out[e] = struct{}{}
	}
	for _, e := range extra {
		out[e] = struct{}{}
	}
	return out
}
