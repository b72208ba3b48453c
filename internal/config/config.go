package config

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds how much of a config file Load will read.
const MaxConfigFileBytes = 64 << 10

// CameraConfig describes which video device to open and how.
// Type selects a concrete implementation ("v4l2" or "synthetic").
type CameraConfig struct {
	Type           string `yaml:"type"`             // "v4l2" or "synthetic"
	Device         string `yaml:"device"`           // e.g. /dev/video0
	Width          int    `yaml:"width"`            // requested frame width (px)
	Height         int    `yaml:"height"`           // requested frame height (px)
	Format         string `yaml:"format"`           // "yuyv" or "mjpeg"
	ReadyTimeoutMs int    `yaml:"ready_timeout_ms"` // max wait for the first frame
}

// SessionConfig drives the countdown/capture sequence.
type SessionConfig struct {
	Slots         int `yaml:"slots"`          // number of photo slots (N)
	CountdownFrom int `yaml:"countdown_from"` // first countdown value shown
	TickMs        int `yaml:"tick_ms"`        // duration of one countdown tick
	FlashMs       int `yaml:"flash_ms"`       // flash pulse duration
}

// StripConfig describes the exported photostrip layout.
type StripConfig struct {
	SlotWidth  int    `yaml:"slot_width"`  // px
	SlotHeight int    `yaml:"slot_height"` // px
	Margin     int    `yaml:"margin"`      // px around and between slots
	Background string `yaml:"background"`  // "#rrggbb"
	Caption    string `yaml:"caption"`     // text drawn under the last slot
}

// GPIOConfig wires the physical shutter button and flash LED.
// A pin value of 0 means "not connected".
type GPIOConfig struct {
	Mock      bool `yaml:"mock"`       // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	ButtonPin int  `yaml:"button_pin"` // BCM pin, active LOW with pull-up
	FlashPin  int  `yaml:"flash_pin"`  // BCM pin, HIGH = lit
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
}

// Config aggregates all application configuration.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Session  SessionConfig  `yaml:"session"`
	Strip    StripConfig    `yaml:"strip"`
	GPIO     GPIOConfig     `yaml:"gpio"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath checks that path names a .yaml file inside a configs/ directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	clean := filepath.Clean(path)
	if strings.HasPrefix(clean, "..") {
		return fmt.Errorf("config path %q escapes the working directory", path)
	}
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	switch c.Camera.Type {
	case "":
		return fmt.Errorf("camera.type is required")
	case "v4l2", "synthetic":
	default:
		return fmt.Errorf("unsupported camera.type %q", c.Camera.Type)
	}
	if c.Camera.Device == "" {
		c.Camera.Device = "/dev/video0"
	}
	if c.Camera.Width <= 0 {
		c.Camera.Width = 640
	}
	if c.Camera.Height <= 0 {
		c.Camera.Height = 480
	}
	switch c.Camera.Format {
	case "":
		c.Camera.Format = "yuyv"
	case "yuyv", "mjpeg":
	default:
		return fmt.Errorf("camera.format must be yuyv or mjpeg, got %q", c.Camera.Format)
	}
	if c.Camera.Format == "yuyv" && c.Camera.Width%2 != 0 {
		return fmt.Errorf("camera.width must be even for yuyv, got %d", c.Camera.Width)
	}
	if c.Camera.ReadyTimeoutMs <= 0 {
		c.Camera.ReadyTimeoutMs = 3000
	}

	if c.Session.Slots < 0 || c.Session.Slots > 12 {
		return fmt.Errorf("session.slots must be between 1 and 12, got %d", c.Session.Slots)
	}
	if c.Session.Slots == 0 {
		c.Session.Slots = 3
	}
	if c.Session.CountdownFrom < 0 {
		return fmt.Errorf("session.countdown_from must be >= 1, got %d", c.Session.CountdownFrom)
	}
	if c.Session.CountdownFrom == 0 {
		c.Session.CountdownFrom = 3
	}
	if c.Session.TickMs <= 0 {
		c.Session.TickMs = 1000
	}
	if c.Session.FlashMs <= 0 {
		c.Session.FlashMs = 150
	}

	if c.Strip.SlotWidth <= 0 {
		c.Strip.SlotWidth = 320
	}
	if c.Strip.SlotHeight <= 0 {
		c.Strip.SlotHeight = 240
	}
	if c.Strip.Margin < 0 {
		return fmt.Errorf("strip.margin must be >= 0, got %d", c.Strip.Margin)
	}
	if c.Strip.Margin == 0 {
		c.Strip.Margin = 16
	}
	if c.Strip.Background == "" {
		c.Strip.Background = "#2b1d3a"
	}
	if _, err := ParseHexColor(c.Strip.Background); err != nil {
		return fmt.Errorf("strip.background: %w", err)
	}

	if c.GPIO.ButtonPin < 0 || c.GPIO.FlashPin < 0 {
		return fmt.Errorf("gpio pins must be >= 0")
	}
	if c.GPIO.ButtonPin != 0 && c.GPIO.ButtonPin == c.GPIO.FlashPin {
		return fmt.Errorf("gpio.button_pin and gpio.flash_pin must differ, both are %d", c.GPIO.ButtonPin)
	}
	return nil
}

// ReadyTimeout returns how long camera acquisition waits for the first frame.
func (c *Config) ReadyTimeout() time.Duration {
	return time.Duration(c.Camera.ReadyTimeoutMs) * time.Millisecond
}

// Tick returns the duration of one countdown step.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.Session.TickMs) * time.Millisecond
}

// Flash returns the flash pulse duration.
func (c *Config) Flash() time.Duration {
	return time.Duration(c.Session.FlashMs) * time.Millisecond
}

// BackgroundColor returns the parsed strip background.
// Load has already validated it, so a parse failure yields opaque black.
func (c *Config) BackgroundColor() color.NRGBA {
	col, err := ParseHexColor(c.Strip.Background)
	if err != nil {
		return color.NRGBA{A: 0xff}
	}
	return col
}

// ParseHexColor parses "#rrggbb" or "#rrggbbaa".
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("color %q must be #rrggbb or #rrggbbaa", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	if len(hex) == 6 {
		v = v<<8 | 0xff
	}
	return color.NRGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}
