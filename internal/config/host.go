package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/agalue/radioform/internal/ring"
)

// HostConfig holds the configuration for the radioform-host process:
// registry reconciliation, the DSP engine's starting preset, and the
// routing brain's auto-switch behaviour.
type HostConfig struct {
	// ControlDir is the directory holding the registry's control file
	// and every ring segment file it reconciles against.
	ControlDir string `yaml:"control_dir"`

	// SampleRate and Channels describe the ring format the host
	// expects every virtual endpoint to present.
	SampleRate uint32 `yaml:"sample_rate"`
	Channels   uint32 `yaml:"channels"`

	// RingDurationMs sizes each ring segment's capacity.
	RingDurationMs uint32 `yaml:"ring_duration_ms"`

	// PresetPath is a preset.Preset JSON file applied at startup; empty
	// means the flat (unity) preset.
	PresetPath string `yaml:"preset_path"`

	// AutoSwitch enables the routing brain's default-output redirect
	// (spec.md §4.9); disabled by default since it requires an OS
	// default-output-changed notification the host may not have.
	AutoSwitch bool `yaml:"auto_switch"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// ConfigFile is not itself serialized; it names the YAML file this
	// Config was (optionally) loaded from.
	ConfigFile string `yaml:"-"`
}

// DefaultHostConfig returns a HostConfig with sensible defaults.
func DefaultHostConfig() *HostConfig {
	return &HostConfig{
		ControlDir:     defaultControlDir,
		SampleRate:     48000,
		Channels:       2,
		RingDurationMs: 100,
		AutoSwitch:     false,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// ParseHostFlags parses args (with its own pflag.FlagSet) into a
// HostConfig, applying a YAML overlay named by --config before
// re-applying any flags explicitly passed on the command line.
func ParseHostFlags(args []string) (*HostConfig, error) {
	cfg := DefaultHostConfig()

	fs := pflag.NewFlagSet("radioform-host", pflag.ContinueOnError)
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "Path to a YAML config file")
	fs.StringVar(&cfg.ControlDir, "control-dir", cfg.ControlDir, "Directory holding the registry control file and ring segments")
	fs.Uint32Var(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "Ring sample rate in Hz")
	fs.Uint32Var(&cfg.Channels, "channels", cfg.Channels, "Ring channel count")
	fs.Uint32Var(&cfg.RingDurationMs, "ring-duration-ms", cfg.RingDurationMs, "Ring segment capacity in milliseconds")
	fs.StringVar(&cfg.PresetPath, "preset", cfg.PresetPath, "Path to a preset JSON file applied at startup")
	fs.BoolVar(&cfg.AutoSwitch, "auto-switch", cfg.AutoSwitch, "Let the routing brain redirect the OS default output back to the virtual endpoint")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := loadYAMLOverlay(cfg.ConfigFile, cfg); err != nil {
		return nil, err
	}
	// Re-parse so any flag explicitly given on the command line wins
	// over the YAML overlay just applied, matching the teacher's
	// flag-default-then-override idiom.
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ControlFilePath returns the path to the registry's control file
// inside ControlDir.
func (c *HostConfig) ControlFilePath() string {
	return filepath.Join(c.ControlDir, "radioform.control")
}

// RingConfig returns the ring.Config every virtual endpoint's segment
// must be created with.
func (c *HostConfig) RingConfig() ring.Config {
	return ring.Config{
		SampleRate: c.SampleRate,
		Channels:   c.Channels,
		Format:     ring.FormatFloat32,
		DurationMs: c.RingDurationMs,
	}
}

func (c *HostConfig) validate() error {
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
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("config: log-format must be 'text' or 'json', got %q", c.LogFormat)
	}
	return nil
}
