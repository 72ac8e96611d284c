package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/agalue/radioform/internal/registry"
	"github.com/agalue/radioform/internal/ring"
)

// PluginConfig holds the configuration for the radioform-plugin
// harness: which physical capture device stands in for the OS audio
// daemon's mixed output, and which virtual endpoint (uid/name) it
// drives.
type PluginConfig struct {
	// ControlDir matches the host's, so the plug-in and host agree on
	// where ring segment files live.
	ControlDir string `yaml:"control_dir"`

	// UID and Name identify the virtual endpoint this process presents
	// to the registry; UID must match the registry's RingPath derivation.
	UID  string `yaml:"uid"`
	Name string `yaml:"name"`

	// CaptureDevice selects a physical input device by (sub-string)
	// name match; empty means the platform default.
	CaptureDevice string `yaml:"capture_device"`

	SampleRate uint32 `yaml:"sample_rate"`
	Channels   uint32 `yaml:"channels"`
	PeriodMs   uint32 `yaml:"period_ms"`

	RingDurationMs uint32 `yaml:"ring_duration_ms"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ConfigFile string `yaml:"-"`
}

// DefaultPluginConfig returns a PluginConfig with sensible defaults.
func DefaultPluginConfig() *PluginConfig {
	return &PluginConfig{
		ControlDir:     defaultControlDir,
		SampleRate:     48000,
		Channels:       2,
		PeriodMs:       10,
		RingDurationMs: 100,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// ParsePluginFlags parses args into a PluginConfig, with the same
// YAML-overlay-then-reparse precedence as ParseHostFlags.
func ParsePluginFlags(args []string) (*PluginConfig, error) {
	cfg := DefaultPluginConfig()

	fs := pflag.NewFlagSet("radioform-plugin", pflag.ContinueOnError)
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "Path to a YAML config file")
	fs.StringVar(&cfg.ControlDir, "control-dir", cfg.ControlDir, "Directory holding the registry control file and ring segments")
	fs.StringVar(&cfg.UID, "uid", cfg.UID, "Virtual endpoint uid this process presents (required)")
	fs.StringVar(&cfg.Name, "name", cfg.Name, "Virtual endpoint display name (required)")
	fs.StringVar(&cfg.CaptureDevice, "capture-device", cfg.CaptureDevice, "Physical capture device name substring (empty = platform default)")
	fs.Uint32Var(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "Capture sample rate in Hz")
	fs.Uint32Var(&cfg.Channels, "channels", cfg.Channels, "Capture channel count")
	fs.Uint32Var(&cfg.PeriodMs, "period-ms", cfg.PeriodMs, "Capture device period in milliseconds")
	fs.Uint32Var(&cfg.RingDurationMs, "ring-duration-ms", cfg.RingDurationMs, "Ring segment capacity in milliseconds")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := loadYAMLOverlay(cfg.ConfigFile, cfg); err != nil {
		return nil, err
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RingPath returns the path this plug-in's ring segment file lives at,
// matching the registry's own derivation so both sides agree.
func (c *PluginConfig) RingPath() string {
	return registry.RingPath(c.ControlDir, c.UID)
}

// ControlFilePath returns the path to the registry's control file, for
// informational/debug use (the plug-in itself never writes it).
func (c *PluginConfig) ControlFilePath() string {
	return filepath.Join(c.ControlDir, "radioform.control")
}

// RingConfig returns the ring.Config this plug-in's segment must be
// created with.
func (c *PluginConfig) RingConfig() ring.Config {
	return ring.Config{
		SampleRate: c.SampleRate,
		Channels:   c.Channels,
		Format:     ring.FormatFloat32,
		DurationMs: c.RingDurationMs,
	}
}

func (c *PluginConfig) validate() error {
	if c.UID == "" {
		return fmt.Errorf("config: --uid is required")
	}
	if c.Name == "" {
		return fmt.Errorf("config: --name is required")
	}
	if c.ControlDir == "" {
		return fmt.Errorf("config: control-dir must not be empty")
	}
	if !ring.SampleRateSupported(c.SampleRate) {
		return fmt.Errorf("config: unsupported sample rate %d", c.SampleRate)
	}
	if !ring.ChannelsSupported(c.Channels) {
		return fmt.Errorf("config: unsupported channel count %d", c.Channels)
	}
	if !ring.DurationSupported(c.RingDurationMs) {
		return fmt.Errorf("config: unsupported ring duration %dms", c.RingDurationMs)
	}
	if c.PeriodMs == 0 {
		return fmt.Errorf("config: period-ms must be > 0")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("config: log-format must be 'text' or 'json', got %q", c.LogFormat)
	}
	return nil
}
