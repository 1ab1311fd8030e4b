package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"relic-keeper/src/affix"
	"relic-keeper/src/capture"
	"relic-keeper/src/clipboard"
	"relic-keeper/src/config"
	"relic-keeper/src/hotkey"
	"relic-keeper/src/input"
	"relic-keeper/src/logutil"
	"relic-keeper/src/ocr"
	"relic-keeper/src/preset"
	"relic-keeper/src/rules"
	"relic-keeper/src/session"
	"relic-keeper/src/stats"
	"relic-keeper/src/vision"
	"relic-keeper/src/vocab"
	"relic-keeper/src/window"
)

func main() {
	window.EnableDPIAwareness()
	// All synthetic input must come from one OS thread.
	runtime.LockOSThread()

	mode := flag.String("mode", "cleanup", "session mode: shop, cleanup, watch")
	deepnight := flag.Bool("deepnight", false, "use the deepnight vocabulary and blacklist")
	double := flag.Bool("double", false, "qualify on 2 matching affixes instead of 3")
	unfavorite := flag.Bool("unfavorite", false, "allow un-favoriting relics that no longer qualify")
	maxRelics := flag.Int("max", 0, "relic bound for cleanup (0 = auto, fallback 100)")
	ocrCmd := flag.String("ocr-cmd", "", "external recognizer command (receives a PNG path)")
	specials := flag.String("specials", "", "comma-separated special relic names to protect")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logutil.Setup(cfg.EnableFileLogging, cfg.Debug)

	if err := run(cfg, *mode, *deepnight, *double, *unfavorite, *maxRelics, *ocrCmd, *specials); err != nil {
		logutil.Errorf("session failed: %v", err)
		fmt.Fprintf(os.Stderr, "relic-keeper: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, mode string, deepnight, double, unfavorite bool, maxRelics int, ocrCmd, specials string) error {
	sessionMode := session.Mode(mode)
	switch sessionMode {
	case session.ModeShop, session.ModeCleanup, session.ModeWatch:
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	if ocrCmd == "" {
		return fmt.Errorf("an external recognizer is required: pass -ocr-cmd")
	}

	vocabMode := vocab.ModeNormal
	if deepnight {
		vocabMode = vocab.ModeDeepnight
	}

	index, err := vocab.Load(cfg.VocabDir, vocabMode)
	if err != nil {
		return fmt.Errorf("vocabulary: %w", err)
	}
	logutil.Infof("vocabulary loaded: %d entries (%s)", index.Len(), vocabMode)

	corrector := affix.NewCorrector(index, cfg.CorrectionThreshold)
	segmenter := affix.NewSegmenter(corrector)

	store, err := preset.Open(cfg.PresetPath)
	if err != nil {
		return fmt.Errorf("presets: %w", err)
	}

	visionCfg := vision.DefaultConfig()
	visionCfg.BrightnessThreshold = cfg.BrightnessThreshold
	visionCfg.TemplateMatchThreshold = float32(cfg.TemplateMatchThreshold)
	visionCfg.TemporalFrames = cfg.TemporalFrames
	visionCfg.EquipTemplatePath = cfg.EquipTemplatePath
	visionCfg.FavoriteTemplatePath = cfg.FavTemplatePath
	detector, err := vision.NewDetector(visionCfg)
	if err != nil {
		return fmt.Errorf("vision: %w", err)
	}
	defer detector.Close()

	reader := ocr.NewReader(ocr.NewExecEngine(ocrCmd))
	if err := reader.Open(); err != nil {
		return fmt.Errorf("ocr: %w", err)
	}
	defer reader.Close()

	if err := clipboard.Init(); err != nil {
		logutil.Warningf("clipboard unavailable: %v", err)
	}

	oracle := window.NewOracle(cfg.GameWindowTitle)
	driver := input.NewRobotDriver()

	control := session.NewController(driver)
	control.InteractKey = cfg.InteractKey
	control.FavoriteKey = cfg.FavoriteKey
	control.SellMenuKey = cfg.SellMenuKey
	control.AdvanceKey = cfg.AdvanceKey
	control.KeyDelay = time.Duration(cfg.KeyDelayMS) * time.Millisecond
	control.MoveSettle = time.Duration(cfg.MoveSettleMS) * time.Millisecond

	loop := session.New(session.Deps{
		Capture:        capture.NewWindowSource(oracle),
		Window:         oracle,
		Control:        control,
		Vision:         detector,
		Reader:         reader,
		Segmenter:      segmenter,
		Engine:         rules.NewEngine(rules.Config{BlacklistThreshold: cfg.BlacklistThreshold}),
		Presets:        store,
		WriteClipboard: clipboard.Write,
		StatsSink: func(s stats.Snapshot) {
			logutil.Debugf("scanned=%d qualified=%d sold=%d skipped=%d",
				s.Scanned, s.Qualified, s.Sold, s.Skipped)
		},
	}, session.Options{
		Mode:                  sessionMode,
		VocabMode:             vocabMode,
		RequireDouble:         double,
		AllowUnfavorite:       unfavorite,
		MaxRelics:             maxRelics,
		OCRRetries:            cfg.OCRRetries,
		MaxConsecutiveMisses:  cfg.MaxConsecutiveMisses,
		SpecialRelicNames:     splitSpecials(specials),
		SpecialGuardThreshold: cfg.SpecialGuardThreshold,
	})

	hotkey.ListenStop(cfg.StopHotkey, loop.Stop)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logutil.Infof("interrupt received, stopping")
		loop.Stop()
	}()

	logutil.Infof("starting %s session (stop: %s)", sessionMode, cfg.StopHotkey)
	return loop.Run()
}

func splitSpecials(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
