// Package session runs the automation state machine: validation,
// the capture/classify/read/evaluate/act loop, and shutdown
// bookkeeping. One loop instance per run; all game interaction is
// strictly serialized on the loop goroutine.
package session

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"sync/atomic"
	"time"

	"relic-keeper/src/affix"
	"relic-keeper/src/capture"
	"relic-keeper/src/logutil"
	"relic-keeper/src/ocr"
	"relic-keeper/src/preset"
	"relic-keeper/src/rules"
	"relic-keeper/src/stats"
	"relic-keeper/src/vision"
	"relic-keeper/src/vocab"
	"relic-keeper/src/window"
)

// Mode selects the session behavior.
type Mode string

const (
	ModeShop    Mode = "shop"
	ModeCleanup Mode = "cleanup"
	ModeWatch   Mode = "watch"
)

// State is the loop's lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateValidating
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateValidating:
		return "Validating"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	}
	return "Unknown"
}

var (
	ErrValidationFailed = errors.New("validation failed")
	ErrFocusLost        = errors.New("game focus lost")
	ErrPerceptionLost   = errors.New("repeated empty recognition")
)

// Classifier is the vision boundary.
type Classifier interface {
	Detect(frame *image.RGBA) (vision.SelectionState, error)
}

// TextReader is the OCR boundary.
type TextReader interface {
	Read(img *image.RGBA) ([]ocr.Line, error)
}

// Deps are the injected collaborators. All are required except
// FilterCheck, StatsSink and WriteClipboard.
type Deps struct {
	Capture   capture.Source
	Window    window.Oracle
	Control   *Controller
	Vision    Classifier
	Reader    TextReader
	Segmenter *affix.Segmenter
	Engine    *rules.Engine
	Presets   *preset.Store

	// FilterCheck verifies the repository filter is applied before a
	// cleanup run. Nil means no check.
	FilterCheck func() (bool, error)

	// StatsSink receives a snapshot after every iteration.
	StatsSink func(stats.Snapshot)

	// WriteClipboard exports the session summary.
	WriteClipboard func(string) error
}

// Options tune one run.
type Options struct {
	Mode      Mode
	VocabMode vocab.Mode

	// RequireDouble lowers the whitelist hit threshold from 3 to 2.
	RequireDouble bool
	// AllowUnfavorite lets cleanup un-favorite and sell favorited
	// relics that no longer qualify.
	AllowUnfavorite bool

	// MaxRelics bounds a cleanup walk; 0 means auto-detect with a
	// fallback of 100.
	MaxRelics int

	SettleDelay          time.Duration
	TickDelay            time.Duration
	OCRRetries           int
	MaxConsecutiveMisses int
	FocusLossBound       int

	// Special relic names force a skip in cleanup; these relics are
	// unsellable quest items and the sell mark would land elsewhere.
	SpecialRelicNames     []string
	SpecialGuardThreshold float64
}

func (o *Options) applyDefaults() {
	if o.SettleDelay == 0 {
		o.SettleDelay = 3 * time.Second
	}
	if o.TickDelay == 0 {
		o.TickDelay = 250 * time.Millisecond
	}
	if o.OCRRetries == 0 {
		o.OCRRetries = 3
	}
	if o.MaxConsecutiveMisses == 0 {
		o.MaxConsecutiveMisses = 5
	}
	if o.FocusLossBound == 0 {
		o.FocusLossBound = 10
	}
	if o.SpecialGuardThreshold == 0 {
		o.SpecialGuardThreshold = 0.65
	}
	if o.MaxRelics == 0 && o.Mode == ModeCleanup {
		o.MaxRelics = 100
	}
}

// QualifiedRelic records one keeper for the session report.
type QualifiedRelic struct {
	Index   int
	Affixes []string
	Preset  string
}

// Loop is the session state machine.
type Loop struct {
	deps Deps
	opts Options

	stopFlag atomic.Bool
	state    atomic.Int32

	counters  stats.Counters
	qualified []QualifiedRelic

	// duplicate-sell probe state (cleanup)
	prevSignature string
	prevWasSell   bool
	dupRetried    bool

	consecutiveMisses int
}

func New(deps Deps, opts Options) *Loop {
	opts.applyDefaults()
	return &Loop{deps: deps, opts: opts}
}

// Stop requests a cooperative stop. Takes effect at the next iteration
// boundary, never mid-action.
func (l *Loop) Stop() { l.stopFlag.Store(true) }

func (l *Loop) State() State { return State(l.state.Load()) }

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
	logutil.Debugf("session state: %s", s)
}

// Qualified returns the keeper records accumulated so far.
func (l *Loop) Qualified() []QualifiedRelic {
	out := make([]QualifiedRelic, len(l.qualified))
	copy(out, l.qualified)
	return out
}

// Run executes the state machine to completion. The returned error is
// nil for a normal or user-stopped finish and a fatal reason otherwise.
func (l *Loop) Run() error {
	l.counters.Start()
	l.setState(StateValidating)

	if err := l.validate(); err != nil {
		l.setState(StateStopped)
		logutil.Errorf("validation: %v", err)
		return err
	}
	if l.stopFlag.Load() {
		l.setState(StateStopped)
		logutil.Infof("stopped before start, nothing done")
		return nil
	}

	l.setState(StateRunning)
	runErr := l.runLoop()

	l.finish(runErr)
	l.setState(StateStopped)
	return runErr
}

// validate waits out the settle delay, then performs the per-mode
// sanity check. It mutates nothing on failure.
func (l *Loop) validate() error {
	if !l.sleepStopAware(l.opts.SettleDelay) {
		return nil
	}

	switch l.opts.Mode {
	case ModeShop:
		frame, err := l.deps.Capture.Frame()
		if err != nil || frame == nil {
			return fmt.Errorf("%w: game window not capturable", ErrValidationFailed)
		}
		lines, err := l.deps.Reader.Read(frame)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
		if !containsShopKeywords(lines) {
			return fmt.Errorf("%w: shop screen not detected (原石/暗淡 not visible)", ErrValidationFailed)
		}
	case ModeCleanup:
		if l.deps.FilterCheck != nil {
			ok, err := l.deps.FilterCheck()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrValidationFailed, err)
			}
			if !ok {
				return fmt.Errorf("%w: repository filter not applied", ErrValidationFailed)
			}
		}
	case ModeWatch:
		// observation only, nothing to verify
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrValidationFailed, l.opts.Mode)
	}
	return nil
}

func containsShopKeywords(lines []ocr.Line) bool {
	for _, ln := range lines {
		if strings.Contains(ln.Text, "原石") || strings.Contains(ln.Text, "暗淡") {
			return true
		}
	}
	return false
}

func (l *Loop) runLoop() error {
	presets := l.presetInputs()
	focusMisses := 0

	for index := 0; ; {
		if l.stopFlag.Load() {
			logutil.Infof("stop requested, halting at iteration boundary")
			return nil
		}
		if l.opts.MaxRelics > 0 && index >= l.opts.MaxRelics {
			logutil.Infof("relic bound reached (%d), finishing", l.opts.MaxRelics)
			return nil
		}

		if !l.deps.Window.IsGameFocused() {
			focusMisses++
			if l.opts.Mode == ModeShop && focusMisses > l.opts.FocusLossBound {
				return fmt.Errorf("%w: unfocused for %d ticks during shop run", ErrFocusLost, focusMisses)
			}
			// One recovery attempt per unfocused streak.
			if focusMisses == 1 {
				if f, ok := l.deps.Window.(window.Focuser); ok && f.Focus() {
					logutil.Infof("game window brought back to foreground")
					continue
				}
			}
			logutil.Debugf("game not focused, idling")
			l.sleepStopAware(l.opts.TickDelay)
			continue
		}
		focusMisses = 0

		frame, err := l.deps.Capture.Frame()
		if err != nil {
			return fmt.Errorf("capture: %w", err)
		}
		if frame == nil {
			l.sleepStopAware(l.opts.TickDelay)
			continue
		}

		sel, err := l.deps.Vision.Detect(frame)
		if err != nil {
			logutil.Warningf("detect: %v", err)
			l.sleepStopAware(l.opts.TickDelay)
			continue
		}
		if sel.Cursor == nil {
			logutil.Debugf("cursor not found, skipping tick")
			l.sleepStopAware(l.opts.TickDelay)
			continue
		}

		if l.opts.Mode == ModeWatch {
			l.watchTick(frame, sel, presets)
			l.sleepStopAware(l.opts.TickDelay)
			continue
		}

		if reason, skip := l.skipByState(sel); skip {
			l.counters.AddScanned()
			l.counters.AddSkipped()
			logutil.Debugf("relic %d skipped: %s", index, reason)
			l.emitStats()
			if err := l.deps.Control.Advance(); err != nil {
				return fmt.Errorf("advance: %w", err)
			}
			index++
			continue
		}

		positive, negative, err := l.readAffixes(frame)
		if err != nil {
			return err
		}
		if positive == nil && negative == nil {
			// empty read after retries; counted toward the miss bound
			l.counters.AddScanned()
			l.counters.AddSkipped()
			l.emitStats()
			if err := l.deps.Control.Advance(); err != nil {
				return fmt.Errorf("advance: %w", err)
			}
			index++
			continue
		}

		if l.opts.Mode == ModeCleanup && l.isSpecialRelic(positive) {
			l.counters.AddScanned()
			l.counters.AddSkipped()
			logutil.Infof("special relic detected, left untouched")
			l.emitStats()
			if err := l.deps.Control.Advance(); err != nil {
				return fmt.Errorf("advance: %w", err)
			}
			index++
			continue
		}

		signature := strings.Join(positive, "|")
		if handled, err := l.duplicateProbe(signature); err != nil {
			return err
		} else if handled {
			continue
		}

		l.counters.AddScanned()
		verdict := l.deps.Engine.Evaluate(positive, negative, presets, l.opts.RequireDouble)
		autoAdvance, err := l.act(index, sel, verdict, positive)
		if err != nil {
			return err
		}

		l.prevSignature = signature
		l.prevWasSell = !verdict.Qualified && l.opts.Mode == ModeCleanup
		l.emitStats()

		if !autoAdvance {
			if err := l.deps.Control.Advance(); err != nil {
				return fmt.Errorf("advance: %w", err)
			}
		}
		index++
	}
}

// watchTick logs the would-be decision without touching the game.
func (l *Loop) watchTick(frame *image.RGBA, sel vision.SelectionState, presets rules.Inputs) {
	l.counters.AddScanned()
	positive, negative, err := l.readAffixes(frame)
	if err != nil || (positive == nil && negative == nil) {
		logutil.Infof("state=%s affixes=<none>", sel.State())
		l.emitStats()
		return
	}
	verdict := l.deps.Engine.Evaluate(positive, negative, presets, l.opts.RequireDouble)
	logutil.Infof("state=%s affixes=%s verdict=%v (%s)",
		sel.State(), strings.Join(positive, "|"), verdict.Qualified, verdict.Reason)
	l.emitStats()
}

// skipByState applies the per-mode visual skip rules before any OCR.
func (l *Loop) skipByState(sel vision.SelectionState) (string, bool) {
	switch l.opts.Mode {
	case ModeCleanup:
		if sel.Equipped {
			return "equipped", true
		}
		if !sel.Dark {
			return "official relic", true
		}
		if sel.Favorited && !l.opts.AllowUnfavorite {
			return "favorited", true
		}
	case ModeShop:
		if sel.Equipped {
			return "equipped", true
		}
	}
	return "", false
}

// refDetailRect is the relic detail panel in the 1920x1080 reference
// layout.
var refDetailRect = image.Rect(1133, 250, 1820, 640)

// readAffixes crops the detail panel and reads polarity-split affix
// text, retrying empty results in-call and escalating to a fatal error
// past the consecutive-miss bound.
func (l *Loop) readAffixes(frame *image.RGBA) (positive, negative []string, err error) {
	region := capture.Crop(frame, window.ScaleRect(refDetailRect, frame.Bounds()))
	if region == nil {
		return nil, nil, nil
	}

	var lines []ocr.Line
	for attempt := 0; attempt < l.opts.OCRRetries; attempt++ {
		lines, err = l.deps.Reader.Read(region)
		if err != nil {
			return nil, nil, fmt.Errorf("ocr: %w", err)
		}
		if len(lines) > 0 {
			break
		}
		if !l.sleepStopAware(100 * time.Millisecond) {
			return nil, nil, nil
		}
	}
	if len(lines) == 0 {
		l.consecutiveMisses++
		logutil.Warningf("empty recognition (%d consecutive)", l.consecutiveMisses)
		if l.consecutiveMisses >= l.opts.MaxConsecutiveMisses {
			return nil, nil, fmt.Errorf("%w: %d consecutive empty reads", ErrPerceptionLost, l.consecutiveMisses)
		}
		return nil, nil, nil
	}
	l.consecutiveMisses = 0

	var posRaw, negRaw []string
	for _, ln := range lines {
		if ln.Polarity == ocr.Negative {
			negRaw = append(negRaw, ln.Text)
		} else {
			posRaw = append(posRaw, ln.Text)
		}
	}

	positive = l.correctAll(posRaw)
	negative = l.correctAll(negRaw)

	if len(posRaw) > 0 && len(positive) == 0 {
		return nil, nil, fmt.Errorf("%w: all affix lines filtered as noise", ErrPerceptionLost)
	}
	return positive, negative, nil
}

// correctAll runs segmentation plus one fuzzy correction pass over raw
// lines joined as a block.
func (l *Loop) correctAll(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	corrections := l.deps.Segmenter.Segment(strings.Join(raw, "\n"))
	out := make([]string, 0, len(corrections))
	for _, c := range corrections {
		out = append(out, c.Text)
	}
	return out
}

// isSpecialRelic reports whether any corrected line fuzzy-matches a
// known special relic name.
func (l *Loop) isSpecialRelic(lines []string) bool {
	if len(l.opts.SpecialRelicNames) == 0 {
		return false
	}
	for _, line := range lines {
		if _, sim := affix.BestMatch(line, l.opts.SpecialRelicNames); sim > l.opts.SpecialGuardThreshold {
			return true
		}
	}
	return false
}

// duplicateProbe handles the cleanup case where the same relic is seen
// twice in a row after a sell mark: the first recurrence retries the
// mark once; a second recurrence means the relic cannot be sold
// (official), so both provisional marks are rolled back and the relic
// skipped without counting.
func (l *Loop) duplicateProbe(signature string) (handled bool, err error) {
	if l.opts.Mode != ModeCleanup || !l.prevWasSell || signature == "" || signature != l.prevSignature {
		l.dupRetried = false
		return false, nil
	}

	if !l.dupRetried {
		l.dupRetried = true
		logutil.Warningf("relic unchanged after sell mark, retrying once")
		if err := l.deps.Control.MarkSell(); err != nil {
			return false, fmt.Errorf("sell retry: %w", err)
		}
		if err := l.deps.Control.Advance(); err != nil {
			return false, fmt.Errorf("advance: %w", err)
		}
		return true, nil
	}

	logutil.Warningf("relic still unchanged, treating as official and skipping")
	l.deps.Control.UnmarkSell()
	l.deps.Control.UnmarkSell()
	l.dupRetried = false
	l.prevWasSell = false
	l.prevSignature = ""
	if err := l.deps.Control.Advance(); err != nil {
		return false, fmt.Errorf("advance: %w", err)
	}
	return true, nil
}

// act issues the key sequence for one verdict. Returns whether the
// action itself advances the selection.
func (l *Loop) act(index int, sel vision.SelectionState, verdict rules.Verdict, positive []string) (autoAdvance bool, err error) {
	switch l.opts.Mode {
	case ModeCleanup:
		if verdict.Qualified {
			l.counters.AddQualified()
			l.qualified = append(l.qualified, QualifiedRelic{Index: index, Affixes: positive, Preset: verdict.MatchedPreset})
			logutil.Successf("relic %d kept: %s", index, verdict.Reason)
			if !sel.Favorited {
				if err := l.deps.Control.ToggleFavorite(); err != nil {
					return false, fmt.Errorf("favorite: %w", err)
				}
				l.counters.AddFavorited()
			}
			return false, nil
		}

		l.counters.AddUnqualified()
		logutil.Infof("relic %d marked for sale: %s", index, verdict.Reason)
		if sel.Favorited && l.opts.AllowUnfavorite {
			if err := l.deps.Control.ToggleFavorite(); err != nil {
				return false, fmt.Errorf("unfavorite: %w", err)
			}
			l.counters.AddUnfavorited()
		}
		if err := l.deps.Control.MarkSell(); err != nil {
			return false, fmt.Errorf("sell mark: %w", err)
		}
		return false, nil

	case ModeShop:
		if verdict.Qualified {
			l.counters.AddQualified()
			l.qualified = append(l.qualified, QualifiedRelic{Index: index, Affixes: positive, Preset: verdict.MatchedPreset})
			logutil.Successf("purchase %d kept: %s", index, verdict.Reason)
			return false, nil
		}
		l.counters.AddUnqualified()
		logutil.Infof("purchase %d sold back: %s", index, verdict.Reason)
		if err := l.deps.Control.MarkSell(); err != nil {
			return false, fmt.Errorf("sell: %w", err)
		}
		// selling in the shop removes the item and the next one slides
		// into the selection
		return true, nil
	}
	return false, nil
}

// finish confirms or reports the pending batch, logs the summary, and
// exports it to the clipboard.
func (l *Loop) finish(runErr error) {
	pending := l.deps.Control.PendingSell()
	userStopped := l.stopFlag.Load()

	if pending > 0 {
		if runErr == nil && !userStopped {
			if sold, err := l.deps.Control.ConfirmBatch(); err != nil {
				logutil.Errorf("batch confirm: %v", err)
			} else {
				l.counters.AddSold(int64(sold))
			}
		} else {
			logutil.Warningf("stopped with %d relics marked but unsold: press %s, then %s to finish manually",
				pending, l.deps.Control.SellMenuKey, l.deps.Control.InteractKey)
		}
	}

	summary := l.summary()
	logutil.Successf("%s", summary)
	if l.deps.WriteClipboard != nil {
		if err := l.deps.WriteClipboard(summary); err != nil {
			logutil.Warningf("clipboard export: %v", err)
		}
	}
	l.emitStats()
}

func (l *Loop) summary() string {
	var b strings.Builder
	b.WriteString(l.counters.Snapshot().Report())
	if len(l.qualified) > 0 {
		b.WriteString("\n保留的圣遗物:")
		for _, q := range l.qualified {
			fmt.Fprintf(&b, "\n  #%d [%s] %s", q.Index, q.Preset, strings.Join(q.Affixes, "、"))
		}
	}
	return b.String()
}

func (l *Loop) presetInputs() rules.Inputs {
	in := rules.Inputs{
		General:   l.deps.Presets.General(l.opts.VocabMode),
		Dedicated: l.deps.Presets.ActiveDedicated(l.opts.VocabMode),
	}
	if l.opts.VocabMode == vocab.ModeDeepnight {
		in.Blacklist = l.deps.Presets.Blacklist()
	}
	return in
}

func (l *Loop) emitStats() {
	if l.deps.StatsSink != nil {
		l.deps.StatsSink(l.counters.Snapshot())
	}
}

// sleepStopAware sleeps in 100ms increments, returning false as soon
// as a stop lands.
func (l *Loop) sleepStopAware(d time.Duration) bool {
	const step = 100 * time.Millisecond
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		if l.stopFlag.Load() {
			return false
		}
		chunk := step
		if remaining := d - elapsed; remaining < step {
			chunk = remaining
		}
		time.Sleep(chunk)
	}
	return !l.stopFlag.Load()
}
