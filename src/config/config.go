package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultGameWindowTitle = "ELDEN RING NIGHTREIGN"
	DefaultStopHotkey      = "F8"
	EnvPathVar             = "RELIC_KEEPER_ENV"
)

// Config holds every tunable threshold and path. Values come from a
// .env file next to the executable, overridable by real environment
// variables.
type Config struct {
	// Matching thresholds.
	CorrectionThreshold   float64
	BlacklistThreshold    float64
	SpecialGuardThreshold float64

	// Vision thresholds.
	BrightnessThreshold    float64
	TemplateMatchThreshold float64
	TemporalFrames         int

	// Game interaction.
	GameWindowTitle string
	InteractKey     string
	FavoriteKey     string
	SellMenuKey     string
	AdvanceKey      string
	StopHotkey      string

	// Pacing, in milliseconds.
	KeyDelayMS   int
	MoveSettleMS int

	// Failure policy.
	OCRRetries           int
	MaxConsecutiveMisses int

	// Paths.
	VocabDir          string
	PresetPath        string
	EquipTemplatePath string
	FavTemplatePath   string

	EnableFileLogging bool
	Debug             bool
}

func Load() (*Config, error) {
	envPath := resolveEnvPath()
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	cfg := &Config{
		CorrectionThreshold:   getEnvFloat("CORRECTION_THRESHOLD", 0.70),
		BlacklistThreshold:    getEnvFloat("BLACKLIST_THRESHOLD", 0.90),
		SpecialGuardThreshold: getEnvFloat("SPECIAL_GUARD_THRESHOLD", 0.65),

		BrightnessThreshold:    getEnvFloat("BRIGHTNESS_THRESHOLD", 50),
		TemplateMatchThreshold: getEnvFloat("TEMPLATE_MATCH_THRESHOLD", 0.60),
		TemporalFrames:         getEnvInt("TEMPORAL_FRAMES", 5),

		GameWindowTitle: getEnvWithDefault("GAME_WINDOW_TITLE", DefaultGameWindowTitle),
		InteractKey:     getEnvWithDefault("INTERACT_KEY", "f"),
		FavoriteKey:     getEnvWithDefault("FAVORITE_KEY", "2"),
		SellMenuKey:     getEnvWithDefault("SELL_MENU_KEY", "3"),
		AdvanceKey:      getEnvWithDefault("ADVANCE_KEY", "right"),
		StopHotkey:      getEnvWithDefault("STOP_HOTKEY", DefaultStopHotkey),

		KeyDelayMS:   getEnvInt("KEY_DELAY_MS", 50),
		MoveSettleMS: getEnvInt("MOVE_SETTLE_MS", 180),

		OCRRetries:           getEnvInt("OCR_RETRIES", 3),
		MaxConsecutiveMisses: getEnvInt("MAX_CONSECUTIVE_MISSES", 5),

		VocabDir:          getEnvWithDefault("VOCAB_DIR", "data/vocab"),
		PresetPath:        getEnvWithDefault("PRESET_PATH", "data/presets.json"),
		EquipTemplatePath: getEnvWithDefault("EQUIP_TEMPLATE", "data/icon_cup.png"),
		FavTemplatePath:   getEnvWithDefault("FAV_TEMPLATE", "data/icon_bookmark.png"),

		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		Debug:             strings.ToLower(os.Getenv("DEBUG")) == "true",
	}

	return cfg, nil
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}

	exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}

	if alt := os.Getenv(EnvPathVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func getEnvWithDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
