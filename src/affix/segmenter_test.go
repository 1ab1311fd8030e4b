package affix

import (
	"testing"

	"relic-keeper/src/vocab"
)

func newTestSegmenter(threshold float64, entries ...string) *Segmenter {
	return NewSegmenter(NewCorrector(vocab.Build(vocab.ModeNormal, entries), threshold))
}

func TestSplitEntries(t *testing.T) {
	got := SplitEntries("攻击力+3|幸运+2\n防御力+1")
	want := []string{"攻击力+3", "幸运+2", "防御力+1"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitEntriesEmpty(t *testing.T) {
	if got := SplitEntries(""); len(got) != 0 {
		t.Errorf("empty block should yield no entries, got %v", got)
	}
	if got := SplitEntries("|\n|"); len(got) != 0 {
		t.Errorf("separator-only block should yield no entries, got %v", got)
	}
}

func TestSegmentCleanRoundTrip(t *testing.T) {
	entries := []string{"攻击力提升", "幸运提升", "防御力提升"}
	s := newTestSegmenter(0.7, entries...)

	got := s.Segment("攻击力提升|幸运提升|防御力提升")
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3: %+v", len(got), got)
	}
	for i, c := range got {
		if c.Text != entries[i] {
			t.Errorf("entry %d = %q, want %q", i, c.Text, entries[i])
		}
		if !c.Corrected || c.Similarity != 1.0 {
			t.Errorf("entry %d not a perfect correction: %+v", i, c)
		}
	}
}

func TestSegmentMergesBrokenLine(t *testing.T) {
	// "受到损伤时会累积中毒量表" wrapped across two lines, the second
	// with a hallucinated leading 万.
	s := newTestSegmenter(0.7, "受到损伤时会累积中毒量表", "攻击力提升")

	got := s.Segment("受到损伤时会\n万累积中毒量表\n攻击力提升")
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2 (merge consumed continuation): %+v", len(got), got)
	}
	if got[0].Text != "受到损伤时会累积中毒量表" || !got[0].Corrected {
		t.Errorf("merged entry = %+v, want corrected full affix", got[0])
	}
	if got[1].Text != "攻击力提升" {
		t.Errorf("trailing entry = %+v", got[1])
	}
}

func TestSegmentNoMergeWhenNotBetter(t *testing.T) {
	// The standalone line already scores higher against the vocabulary
	// than any concatenation; both lines must survive separately.
	s := newTestSegmenter(0.9, "甲乙丙丁戊")

	got := s.CorrectEntries([]string{"甲乙丙丁", "完全无关内容"})
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2 (no merge): %+v", len(got), got)
	}
	if got[0].Corrected {
		t.Errorf("first entry should stay uncorrected at 0.9 threshold: %+v", got[0])
	}
	if got[0].Text != "甲乙丙丁" || got[1].Text != "完全无关内容" {
		t.Errorf("entries altered: %+v", got)
	}
}

func TestSegmentMergeSkipsNoiseOnlyContinuation(t *testing.T) {
	s := newTestSegmenter(0.9, "甲乙丙丁戊")
	// Continuation strips to empty; no merge candidate exists.
	got := s.CorrectEntries([]string{"甲乙", "万了"})
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(got), got)
	}
}

func TestStripLeadingNoise(t *testing.T) {
	if got := stripLeadingNoise("万了可正文"); got != "正文" {
		t.Errorf("stripLeadingNoise = %q, want 正文", got)
	}
	if got := stripLeadingNoise("正文万"); got != "正文万" {
		t.Errorf("interior noise runes must be kept: %q", got)
	}
}
