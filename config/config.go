package config

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for capture, recognition and app
// behavior. Fields may be loaded from a JSON or YAML file and overridden by
// command-line flags.
type Config struct {
	Debug    bool   `json:"debug" yaml:"debug"`
	LogLevel string `json:"log_level" yaml:"log_level"`

	// Capture
	Source string `json:"source" yaml:"source"` // camera | screen
	Facing string `json:"facing" yaml:"facing"` // rear | front
	Width  int    `json:"width" yaml:"width"`
	Height int    `json:"height" yaml:"height"`

	// Recognition
	Formats          []string `json:"formats" yaml:"formats"`
	DetectIntervalMS int      `json:"detect_interval_ms" yaml:"detect_interval_ms"`
	AcquireTimeoutMS int      `json:"acquire_timeout_ms" yaml:"acquire_timeout_ms"`
	TryHarder        bool     `json:"try_harder" yaml:"try_harder"`
	MaxDimension     int      `json:"max_dimension" yaml:"max_dimension"`
	// ScanWindow limits live decoding to the centered fraction of a frame.
	ScanWindow float64 `json:"scan_window" yaml:"scan_window"`

	// Screen source
	ScreenFPS  float64 `json:"screen_fps" yaml:"screen_fps"`
	SelectionX int     `json:"selection_x" yaml:"selection_x"`
	SelectionY int     `json:"selection_y" yaml:"selection_y"`
	SelectionW int     `json:"selection_w" yaml:"selection_w"`
	SelectionH int     `json:"selection_h" yaml:"selection_h"`

	// MetricsAddr serves /metrics and /healthz when non-empty.
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`
}

const (
	SourceCamera = "camera"
	SourceScreen = "screen"
)

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:            false,
		LogLevel:         "info",
		Source:           SourceCamera,
		Facing:           "rear",
		Width:            1280,
		Height:           720,
		Formats:          []string{"EAN_13", "EAN_8", "UPC_A", "UPC_E", "CODE_128", "CODE_39", "QR_CODE", "ITF"},
		DetectIntervalMS: 16,
		AcquireTimeoutMS: 0,
		TryHarder:        false,
		MaxDimension:     1600,
		ScreenFPS:        10,
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}
	switch strings.ToLower(c.Source) {
	case SourceScreen:
		c.Source = SourceScreen
	default:
		c.Source = SourceCamera
	}
	if strings.ToLower(c.Facing) != "front" {
		c.Facing = "rear"
	} else {
		c.Facing = "front"
	}
	if c.Width <= 0 || c.Width > 7680 {
		c.Width = 1280
	}
	if c.Height <= 0 || c.Height > 4320 {
		c.Height = 720
	}
	if c.DetectIntervalMS <= 0 {
		c.DetectIntervalMS = 16
	}
	if c.DetectIntervalMS > 1000 {
		c.DetectIntervalMS = 1000
	}
	if c.AcquireTimeoutMS < 0 {
		c.AcquireTimeoutMS = 0
	}
	if c.MaxDimension < 0 {
		c.MaxDimension = 0
	}
	if c.ScanWindow < 0 || c.ScanWindow >= 1 {
		c.ScanWindow = 0
	}
	if c.ScreenFPS <= 0 || c.ScreenFPS > 60 {
		c.ScreenFPS = 10
	}
	if c.SelectionW < 0 || c.SelectionH < 0 {
		c.SelectionW, c.SelectionH = 0, 0
	}
	return nil
}

// DetectInterval is DetectIntervalMS as a duration.
func (c *Config) DetectInterval() time.Duration {
	return time.Duration(c.DetectIntervalMS) * time.Millisecond
}

// AcquireTimeout is AcquireTimeoutMS as a duration; zero disables it.
func (c *Config) AcquireTimeout() time.Duration {
	return time.Duration(c.AcquireTimeoutMS) * time.Millisecond
}

// Selection returns the screen capture rectangle, empty when unset.
func (c *Config) Selection() image.Rectangle {
	if c.SelectionW <= 0 || c.SelectionH <= 0 {
		return image.Rectangle{}
	}
	return image.Rect(c.SelectionX, c.SelectionY, c.SelectionX+c.SelectionW, c.SelectionY+c.SelectionH)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load attempts to read configuration from the given path, as YAML when
// the extension is .yaml/.yml and JSON otherwise. If the file does not
// exist it returns DefaultConfig(). On decode error it returns defaults with
// the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	loaded := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, loaded)
	} else {
		err = json.Unmarshal(data, loaded)
	}
	if err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	_ = loaded.Validate()
	return loaded, nil
}

// Save writes the configuration to the given path, in YAML or JSON by
// extension.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
