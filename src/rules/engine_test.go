package rules

import (
	"strings"
	"testing"

	"relic-keeper/src/preset"
)

func wl(name string, affixes ...string) *preset.Preset {
	return &preset.Preset{
		ID: name, Name: name, Kind: preset.KindWhitelist,
		Affixes: affixes, IsActive: true,
	}
}

func bl(affixes ...string) *preset.Preset {
	return &preset.Preset{
		ID: "blacklist", Name: "黑名单", Kind: preset.KindBlacklist,
		Affixes: affixes, IsActive: true,
	}
}

func newTestEngine() *Engine {
	return NewEngine(DefaultConfig())
}

func TestSinglePositiveNeverQualifies(t *testing.T) {
	e := newTestEngine()
	in := Inputs{General: wl("通用", "攻击力提升")}

	v := e.Evaluate([]string{"攻击力提升"}, nil, in, true)
	if v.Qualified {
		t.Errorf("single positive affix qualified: %+v", v)
	}
	if !strings.Contains(v.Reason, "single positive") {
		t.Errorf("Reason = %q", v.Reason)
	}
}

func TestBlacklistVetoPrecedence(t *testing.T) {
	e := newTestEngine()
	in := Inputs{
		General:   wl("通用", "攻击力提升", "防御力提升", "幸运提升"),
		Blacklist: bl("受到伤害增加"),
	}

	// Three whitelist hits, but one near-identical fatal negative.
	v := e.Evaluate(
		[]string{"攻击力提升", "防御力提升", "幸运提升"},
		[]string{"受到伤害增加了"},
		in, true)
	if v.Qualified {
		t.Errorf("blacklisted item qualified: %+v", v)
	}
	if !strings.Contains(v.Reason, "blacklist") {
		t.Errorf("Reason = %q, want blacklist mention", v.Reason)
	}
	if !strings.Contains(v.Reason, "受到伤害增加") {
		t.Errorf("Reason = %q, want matched entry named", v.Reason)
	}
}

func TestBlacklistRequiresHighSimilarity(t *testing.T) {
	e := newTestEngine()
	in := Inputs{
		General:   wl("通用", "攻击力提升", "防御力提升"),
		Blacklist: bl("受到伤害增加"),
	}
	// Negative affix far from any blacklist entry; no veto.
	v := e.Evaluate(
		[]string{"攻击力提升", "防御力提升"},
		[]string{"完全无关的负面"},
		in, true)
	if !v.Qualified {
		t.Errorf("distant negative vetoed the item: %+v", v)
	}
}

func TestDoubleVsTripleThreshold(t *testing.T) {
	e := newTestEngine()
	in := Inputs{
		General:   wl("通用", "攻击力提升"),
		Dedicated: []*preset.Preset{wl("专用", "幸运提升")},
	}
	positive := []string{"攻击力提升", "幸运提升"}

	if v := e.Evaluate(positive, nil, in, true); !v.Qualified {
		t.Errorf("double mode with 2 hits should qualify: %+v", v)
	}
	if v := e.Evaluate(positive, nil, in, false); v.Qualified {
		t.Errorf("triple mode with 2 hits should not qualify: %+v", v)
	}
}

func TestPresetUnionNotGlobalVocabulary(t *testing.T) {
	e := newTestEngine()
	in := Inputs{
		General:   wl("通用", "攻击甲"),
		Dedicated: []*preset.Preset{wl("专用", "攻击乙")},
	}

	// 攻击丙 is a perfectly valid vocabulary affix, but matching is
	// against the preset union only.
	v := e.Evaluate([]string{"攻击甲", "攻击乙", "攻击丙"}, nil, in, true)
	if !v.Qualified {
		t.Fatalf("want qualified: %+v", v)
	}
	if v.PositiveHits != 2 {
		t.Errorf("PositiveHits = %d, want 2", v.PositiveHits)
	}
	if v.MatchedPreset != "通用+专用" {
		t.Errorf("MatchedPreset = %q", v.MatchedPreset)
	}
}

func TestBestDedicatedCombinationWins(t *testing.T) {
	e := newTestEngine()
	in := Inputs{
		General: wl("通用"),
		Dedicated: []*preset.Preset{
			wl("弱套装", "攻击甲"),
			wl("强套装", "攻击甲", "攻击乙", "攻击丙"),
		},
	}
	v := e.Evaluate([]string{"攻击甲", "攻击乙", "攻击丙"}, nil, in, false)
	if !v.Qualified || v.PositiveHits != 3 {
		t.Fatalf("want triple qualify via 强套装: %+v", v)
	}
	if !strings.Contains(v.MatchedPreset, "强套装") {
		t.Errorf("MatchedPreset = %q", v.MatchedPreset)
	}
}

func TestGeneralAloneFallback(t *testing.T) {
	e := newTestEngine()
	in := Inputs{General: wl("通用", "攻击甲", "攻击乙")}

	v := e.Evaluate([]string{"攻击甲", "攻击乙"}, nil, in, true)
	if !v.Qualified {
		t.Errorf("general-only evaluation failed: %+v", v)
	}
	if v.MatchedPreset != "通用" {
		t.Errorf("MatchedPreset = %q", v.MatchedPreset)
	}
}

func TestNothingMatches(t *testing.T) {
	e := newTestEngine()
	in := Inputs{General: wl("通用", "攻击甲")}

	v := e.Evaluate([]string{"别的词条", "另一词条"}, nil, in, true)
	if v.Qualified {
		t.Errorf("unrelated affixes qualified: %+v", v)
	}
	if v.Reason != "no preset matched" {
		t.Errorf("Reason = %q", v.Reason)
	}
}

func TestZeroPositivesDoNotQualify(t *testing.T) {
	e := newTestEngine()
	in := Inputs{General: wl("通用", "攻击甲", "攻击乙")}
	if v := e.Evaluate(nil, nil, in, true); v.Qualified {
		t.Errorf("empty positive list qualified: %+v", v)
	}
}
