package session

import (
	"errors"
	"image"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"relic-keeper/src/affix"
	"relic-keeper/src/ocr"
	"relic-keeper/src/preset"
	"relic-keeper/src/rules"
	"relic-keeper/src/stats"
	"relic-keeper/src/vision"
	"relic-keeper/src/vocab"
)

type fakeDriver struct {
	presses []string
	onPress func(key string)
}

func (d *fakeDriver) Press(key string, hold, settle time.Duration) error {
	d.presses = append(d.presses, key)
	if d.onPress != nil {
		d.onPress(key)
	}
	return nil
}
func (d *fakeDriver) MoveMouse(x, y int)               {}
func (d *fakeDriver) Click(x, y int, btn string) error { return nil }

type fakeWindow struct{ focused bool }

func (w *fakeWindow) IsGameFocused() bool { return w.focused }
func (w *fakeWindow) GameRect() (image.Rectangle, bool) {
	return image.Rect(0, 0, 1920, 1080), true
}

type fakeCapture struct{}

func (fakeCapture) Frame() (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, 1920, 1080)), nil
}

type fakeVision struct{ state vision.SelectionState }

func (v *fakeVision) Detect(frame *image.RGBA) (vision.SelectionState, error) {
	return v.state, nil
}

type scriptedReader struct {
	reads [][]ocr.Line
	calls int
}

func (r *scriptedReader) Read(img *image.RGBA) ([]ocr.Line, error) {
	i := r.calls
	r.calls++
	if len(r.reads) == 0 {
		return nil, nil
	}
	if i >= len(r.reads) {
		i = len(r.reads) - 1
	}
	return r.reads[i], nil
}

func pos(texts ...string) []ocr.Line {
	var out []ocr.Line
	for _, t := range texts {
		out = append(out, ocr.Line{Text: t, Polarity: ocr.Positive})
	}
	return out
}

func darkCursor() vision.SelectionState {
	return vision.SelectionState{Cursor: &vision.Box{X: 900, Y: 300, W: 100, H: 100}, Dark: true}
}

var testEntries = []string{"攻击力提升", "幸运提升", "集中力提升", "强韧度提升"}

func newTestDeps(t *testing.T, driver *fakeDriver, reader TextReader, vis Classifier) Deps {
	t.Helper()

	index := vocab.Build(vocab.ModeNormal, testEntries)
	corrector := affix.NewCorrector(index, 0.70)

	store, err := preset.Open(filepath.Join(t.TempDir(), "presets.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateGeneral(vocab.ModeNormal, []string{"攻击力提升", "幸运提升"}); err != nil {
		t.Fatal(err)
	}

	return Deps{
		Capture:   fakeCapture{},
		Window:    &fakeWindow{focused: true},
		Control:   NewController(driver),
		Vision:    vis,
		Reader:    reader,
		Segmenter: affix.NewSegmenter(corrector),
		Engine:    rules.NewEngine(rules.DefaultConfig()),
		Presets:   store,
	}
}

func fastOptions(mode Mode, maxRelics int) Options {
	return Options{
		Mode:                 mode,
		VocabMode:            vocab.ModeNormal,
		RequireDouble:        true,
		MaxRelics:            maxRelics,
		SettleDelay:          time.Millisecond,
		TickDelay:            time.Millisecond,
		OCRRetries:           1,
		MaxConsecutiveMisses: 2,
		FocusLossBound:       2,
	}
}

func countPresses(presses []string, key string) int {
	n := 0
	for _, p := range presses {
		if p == key {
			n++
		}
	}
	return n
}

func TestCleanupQualifiedGetsFavorited(t *testing.T) {
	driver := &fakeDriver{}
	reader := &scriptedReader{reads: [][]ocr.Line{pos("攻击力提升", "幸运提升")}}
	deps := newTestDeps(t, driver, reader, &fakeVision{state: darkCursor()})

	loop := New(deps, fastOptions(ModeCleanup, 1))
	if err := loop.Run(); err != nil {
		t.Fatal(err)
	}

	if got := countPresses(driver.presses, "2"); got != 1 {
		t.Errorf("favorite pressed %d times, want 1 (presses: %v)", got, driver.presses)
	}
	if got := countPresses(driver.presses, "f"); got != 0 {
		t.Errorf("sell mark pressed %d times for a keeper", got)
	}
	q := loop.Qualified()
	if len(q) != 1 || len(q[0].Affixes) != 2 {
		t.Errorf("qualified records = %+v", q)
	}
	if loop.State() != StateStopped {
		t.Errorf("final state %v", loop.State())
	}
}

func TestCleanupUnqualifiedSoldAndBatchConfirmed(t *testing.T) {
	driver := &fakeDriver{}
	reader := &scriptedReader{reads: [][]ocr.Line{
		pos("集中力提升", "强韧度提升"),
		pos("攻击力提升", "集中力提升"), // 1 hit only
	}}
	deps := newTestDeps(t, driver, reader, &fakeVision{state: darkCursor()})

	loop := New(deps, fastOptions(ModeCleanup, 2))
	if err := loop.Run(); err != nil {
		t.Fatal(err)
	}

	// two sell marks, then batch confirm: sell menu "3" and confirm "f"
	if got := countPresses(driver.presses, "3"); got != 1 {
		t.Errorf("sell menu pressed %d times, want 1 (presses: %v)", got, driver.presses)
	}
	if got := countPresses(driver.presses, "f"); got != 3 {
		t.Errorf("interact pressed %d times, want 3 (two marks + confirm)", got)
	}

	s := snapshotOf(loop)
	if s.Sold != 2 || s.Unqualified != 2 {
		t.Errorf("sold=%d unqualified=%d, want 2/2", s.Sold, s.Unqualified)
	}
}

func snapshotOf(l *Loop) stats.Snapshot { return l.counters.Snapshot() }

func TestStopLeavesBatchPendingWithInstructions(t *testing.T) {
	driver := &fakeDriver{}
	reader := &scriptedReader{reads: [][]ocr.Line{
		pos("集中力提升", "强韧度提升"),
		pos("攻击力提升", "集中力提升"),
	}}
	deps := newTestDeps(t, driver, reader, &fakeVision{state: darkCursor()})

	loop := New(deps, fastOptions(ModeCleanup, 50))
	driver.onPress = func(key string) {
		if key == "f" {
			loop.Stop()
		}
	}

	if err := loop.Run(); err != nil {
		t.Fatal(err)
	}

	if got := countPresses(driver.presses, "3"); got != 0 {
		t.Error("batch confirmed despite user stop")
	}
	if deps.Control.PendingSell() != 1 {
		t.Errorf("pending = %d, want 1", deps.Control.PendingSell())
	}
	if s := snapshotOf(loop); s.Sold != 0 {
		t.Errorf("sold = %d after mid-run stop", s.Sold)
	}
}

func TestSkipRulesNoOCRForEquipped(t *testing.T) {
	driver := &fakeDriver{}
	reader := &scriptedReader{}
	state := darkCursor()
	state.Equipped = true
	deps := newTestDeps(t, driver, reader, &fakeVision{state: state})

	loop := New(deps, fastOptions(ModeCleanup, 1))
	if err := loop.Run(); err != nil {
		t.Fatal(err)
	}

	if reader.calls != 0 {
		t.Errorf("reader called %d times for an equipped relic", reader.calls)
	}
	if s := snapshotOf(loop); s.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", s.Skipped)
	}
	if got := countPresses(driver.presses, "right"); got != 1 {
		t.Errorf("advance pressed %d times, want 1", got)
	}
}

func TestLightRelicSkippedInCleanup(t *testing.T) {
	driver := &fakeDriver{}
	state := darkCursor()
	state.Dark = false
	deps := newTestDeps(t, driver, &scriptedReader{}, &fakeVision{state: state})

	loop := New(deps, fastOptions(ModeCleanup, 1))
	if err := loop.Run(); err != nil {
		t.Fatal(err)
	}
	if s := snapshotOf(loop); s.Skipped != 1 {
		t.Errorf("light relic not skipped: %+v", s)
	}
}

func TestRepeatedEmptyReadsAreFatal(t *testing.T) {
	driver := &fakeDriver{}
	deps := newTestDeps(t, driver, &scriptedReader{}, &fakeVision{state: darkCursor()})

	loop := New(deps, fastOptions(ModeCleanup, 50))
	err := loop.Run()
	if !errors.Is(err, ErrPerceptionLost) {
		t.Fatalf("err = %v, want ErrPerceptionLost", err)
	}
	if loop.State() != StateStopped {
		t.Errorf("state = %v after fatal", loop.State())
	}
}

func TestShopValidationRequiresKeywords(t *testing.T) {
	driver := &fakeDriver{}
	reader := &scriptedReader{reads: [][]ocr.Line{pos("不是商店")}}
	deps := newTestDeps(t, driver, reader, &fakeVision{state: darkCursor()})

	loop := New(deps, fastOptions(ModeShop, 5))
	err := loop.Run()
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("err = %v, want ErrValidationFailed", err)
	}
	if len(driver.presses) != 0 {
		t.Errorf("keys pressed despite failed validation: %v", driver.presses)
	}
}

func TestShopFocusLossIsFatal(t *testing.T) {
	driver := &fakeDriver{}
	reader := &scriptedReader{reads: [][]ocr.Line{
		pos("commodity 原石"),
		pos("攻击力提升", "幸运提升"),
	}}
	deps := newTestDeps(t, driver, reader, &fakeVision{state: darkCursor()})
	deps.Window = &fakeWindow{focused: false}

	loop := New(deps, fastOptions(ModeShop, 5))
	err := loop.Run()
	if !errors.Is(err, ErrFocusLost) {
		t.Fatalf("err = %v, want ErrFocusLost", err)
	}
}

type refocusWindow struct {
	fakeWindow
	focusCalls int
}

func (w *refocusWindow) Focus() bool {
	w.focusCalls++
	w.focused = true
	return true
}

func TestFocusLossTriggersRefocus(t *testing.T) {
	driver := &fakeDriver{}
	reader := &scriptedReader{reads: [][]ocr.Line{pos("攻击力提升", "幸运提升")}}
	deps := newTestDeps(t, driver, reader, &fakeVision{state: darkCursor()})
	win := &refocusWindow{}
	deps.Window = win

	loop := New(deps, fastOptions(ModeCleanup, 1))
	if err := loop.Run(); err != nil {
		t.Fatal(err)
	}

	if win.focusCalls != 1 {
		t.Errorf("focus calls = %d, want 1", win.focusCalls)
	}
	if s := snapshotOf(loop); s.Scanned != 1 {
		t.Errorf("scanned = %d, want 1 after refocus", s.Scanned)
	}
}

func TestDuplicateSellProbe(t *testing.T) {
	driver := &fakeDriver{}
	// same unqualified relic forever: mark, retry once, then official skip
	reader := &scriptedReader{reads: [][]ocr.Line{pos("集中力提升", "强韧度提升")}}
	deps := newTestDeps(t, driver, reader, &fakeVision{state: darkCursor()})

	loop := New(deps, fastOptions(ModeCleanup, 2))
	if err := loop.Run(); err != nil {
		t.Fatal(err)
	}

	// iteration 1: mark; 2: duplicate retry mark; 3: official rollback;
	// iteration 4: the relic is seen fresh again and marked; bound ends
	// the run with exactly that one pending mark confirmed.
	if s := snapshotOf(loop); s.Sold != 1 {
		t.Errorf("sold = %d, want 1 after rollback of the probe marks", s.Sold)
	}
	if deps.Control.PendingSell() != 0 {
		t.Errorf("pending = %d after confirm", deps.Control.PendingSell())
	}
}

func TestSpecialRelicGuard(t *testing.T) {
	driver := &fakeDriver{}
	reader := &scriptedReader{reads: [][]ocr.Line{pos("头冠的徽章")}}
	deps := newTestDeps(t, driver, reader, &fakeVision{state: darkCursor()})

	opts := fastOptions(ModeCleanup, 1)
	opts.SpecialRelicNames = []string{"头冠的徽章"}
	loop := New(deps, opts)
	if err := loop.Run(); err != nil {
		t.Fatal(err)
	}

	if got := countPresses(driver.presses, "f"); got != 0 {
		t.Errorf("special relic marked for sale (presses: %v)", driver.presses)
	}
	if s := snapshotOf(loop); s.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", s.Skipped)
	}
}

func TestWatchModeNeverActs(t *testing.T) {
	driver := &fakeDriver{}
	reader := &scriptedReader{reads: [][]ocr.Line{pos("攻击力提升", "幸运提升")}}
	deps := newTestDeps(t, driver, reader, &fakeVision{state: darkCursor()})

	loop := New(deps, fastOptions(ModeWatch, 0))
	go func() {
		time.Sleep(50 * time.Millisecond)
		loop.Stop()
	}()
	if err := loop.Run(); err != nil {
		t.Fatal(err)
	}

	if len(driver.presses) != 0 {
		t.Errorf("watch mode pressed keys: %v", driver.presses)
	}
	if s := snapshotOf(loop); s.Scanned == 0 {
		t.Error("watch mode scanned nothing")
	}
}

func TestSummaryListsKeepers(t *testing.T) {
	driver := &fakeDriver{}
	reader := &scriptedReader{reads: [][]ocr.Line{pos("攻击力提升", "幸运提升")}}
	deps := newTestDeps(t, driver, reader, &fakeVision{state: darkCursor()})

	var clip string
	deps.WriteClipboard = func(s string) error { clip = s; return nil }

	loop := New(deps, fastOptions(ModeCleanup, 1))
	if err := loop.Run(); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(clip, "攻击力提升") {
		t.Errorf("clipboard summary missing keeper affixes: %q", clip)
	}
	if !strings.Contains(clip, "本次整理结果") {
		t.Errorf("clipboard summary missing stats header: %q", clip)
	}
}
