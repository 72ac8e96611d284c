// Package config provides CLI flag and YAML file configuration for the
// radioform-host and radioform-plugin binaries, following the teacher's
// DefaultConfig/ParseFlags/validate shape but built on
// github.com/spf13/pflag (replacing stdlib flag) with an optional YAML
// overlay, grounded on doismellburning-samoyed's CLI use of pflag and
// its own direct gopkg.in/yaml.v3 dependency.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultControlDir is where the registry's control file and every
// ring segment file live by default.
const defaultControlDir = "/var/run/radioform"

// LogLevel mirrors the teacher's small enum-with-String()-method idiom
// (see config.InterruptMode in the original assistant) applied to log
// verbosity instead of interrupt handling.
type LogLevel int

const (
	LogLevelInfo LogLevel = iota
	LogLevelDebug
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "debug"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	default:
		return "info"
	}
}

// ParseLogLevel converts a string to a LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	switch s {
	case "", "info":
		return LogLevelInfo, nil
	case "debug":
		return LogLevelDebug, nil
	case "warn":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", s)
	}
}

// loadYAMLOverlay reads path (if non-empty) and unmarshals it into dst.
// Flags parsed before this call win over file values left at their
// zero value, matching the teacher's flag-default-then-override idiom;
// callers apply the overlay before flag values are copied back in, so
// an explicit flag always has the final say.
func loadYAMLOverlay(path string, dst any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}
