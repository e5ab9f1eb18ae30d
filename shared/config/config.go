package config

import (
	"os"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server   Server   `yaml:"server"`
	Profiles Profiles `yaml:"profiles"`
	Composer Composer `yaml:"composer"`
	Log      Log      `yaml:"log"`
}

type Server struct {
	Addr      string `yaml:"addr" validate:"required"`
	MediaPath string `yaml:"media_path" validate:"required"` // URL prefix attachments are served under
}

// Profile bounds one transcode pass. Quality is the 0..1 encoder quality,
// Format is the re-encode target ("jpeg" or "png").
type Profile struct {
	MaxWidth  int     `yaml:"max_width" validate:"gt=0"`
	MaxHeight int     `yaml:"max_height" validate:"gt=0"`
	Quality   float64 `yaml:"quality" validate:"gt=0,lte=1"`
	Format    string  `yaml:"format" validate:"oneof=jpeg png"`
}

// Profiles holds the distinct transcode profiles: small square avatars,
// larger listing photos, and conversation attachments.
type Profiles struct {
	Avatar  Profile `yaml:"avatar"`
	Listing Profile `yaml:"listing"`
	Message Profile `yaml:"message"`
}

// Composer collects the timer windows and layout constants of the
// conversation composer. Durations are in milliseconds in the yaml file.
type Composer struct {
	ResizeDebounceMs   int `yaml:"resize_debounce_ms" validate:"gt=0"`
	LayoutSettleMs     int `yaml:"layout_settle_ms" validate:"gte=0"`
	TypingIdleMs       int `yaml:"typing_idle_ms" validate:"gt=0"`
	MinMessageAreaPx   int `yaml:"min_message_area_px" validate:"gt=0"`
	MaxContentHeightPx int `yaml:"max_content_height_px" validate:"gt=0"`
	FooterMarginPx     int `yaml:"footer_margin_px" validate:"gte=0"`
	ShakeMs            int `yaml:"shake_ms" validate:"gt=0"`
	ErrorFlashMs       int `yaml:"error_flash_ms" validate:"gt=0"`
	SuccessPulseMs     int `yaml:"success_pulse_ms" validate:"gt=0"`
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

func (c Composer) ResizeDebounce() time.Duration { return msToDuration(c.ResizeDebounceMs) }
func (c Composer) LayoutSettle() time.Duration   { return msToDuration(c.LayoutSettleMs) }
func (c Composer) TypingIdle() time.Duration     { return msToDuration(c.TypingIdleMs) }
func (c Composer) Shake() time.Duration          { return msToDuration(c.ShakeMs) }
func (c Composer) ErrorFlash() time.Duration     { return msToDuration(c.ErrorFlashMs) }
func (c Composer) SuccessPulse() time.Duration   { return msToDuration(c.SuccessPulseMs) }

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Default returns the configuration matching the production composer: 250 ms
// resize debounce, 10 ms layout settle, 1 s typing idle, 300 px message area
// floor, 120 px content input cap.
func Default() *Config {
	return &Config{
		Server: Server{Addr: ":8080", MediaPath: "/media"},
		Profiles: Profiles{
			Avatar:  Profile{MaxWidth: 300, MaxHeight: 300, Quality: 0.8, Format: "jpeg"},
			Listing: Profile{MaxWidth: 1200, MaxHeight: 800, Quality: 0.85, Format: "jpeg"},
			Message: Profile{MaxWidth: 1200, MaxHeight: 800, Quality: 0.85, Format: "jpeg"},
		},
		Composer: Composer{
			ResizeDebounceMs:   250,
			LayoutSettleMs:     10,
			TypingIdleMs:       1000,
			MinMessageAreaPx:   300,
			MaxContentHeightPx: 120,
			FooterMarginPx:     20,
			ShakeMs:            500,
			ErrorFlashMs:       2000,
			SuccessPulseMs:     200,
		},
		Log: Log{Level: "info"},
	}
}

func mustLoadPath(configPath string, output interface{}) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		panic("can't read config file")
	}
	if err := yaml.Unmarshal(configFile, output); err != nil {
		panic("can't unmarshal config file")
	}
}

// MustLoad reads composer.yaml from the folder and panics on any missing
// file, parse error or invalid value. Startup config problems should be loud.
func MustLoad(configFolder string) *Config {
	cfg := Default()
	mustLoadPath(path.Join(configFolder, "composer.yaml"), cfg)

	if err := validator.New().Struct(cfg); err != nil {
		panic("invalid config: " + err.Error())
	}
	return cfg
}
