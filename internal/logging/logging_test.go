package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/agalue/radioform/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(level config.LogLevel, format string) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := New(level, format, "test")
	l.out = buf
	l.now = func() time.Time { return time.Unix(0, 0) }
	return l, buf
}

func TestInfoLevelSuppressesDebug(t *testing.T) {
	l, buf := newTestLogger(config.LogLevelInfo, "text")
	l.Debug("hidden %d", 1)
	assert.Empty(t, buf.String(), "Debug lines disappear entirely at Info level before Info is logged")
	l.Info("shown %d", 2)
	l.Info("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestWarnAndErrorAlwaysEmitted(t *testing.T) {
	l, buf := newTestLogger(config.LogLevelError, "text")
	l.Debug("debug msg")
	l.Info("info msg")
	l.Warn("warn msg")
	l.Error("error msg")
	out := buf.String()
	assert.NotContains(t, out, "debug msg")
	assert.NotContains(t, out, "info msg")
	assert.Contains(t, out, "warn msg")
	assert.Contains(t, out, "error msg")
}

func TestJSONFormatProducesOneRecordPerLine(t *testing.T) {
	l, buf := newTestLogger(config.LogLevelDebug, "json")
	l.Info("hello %s", "world")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]string
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "hello world", rec["message"])
	assert.Equal(t, "info", rec["level"])
	assert.Equal(t, "test", rec["component"])
}

func TestWithRetagsComponent(t *testing.T) {
	l, buf := newTestLogger(config.LogLevelInfo, "text")
	sub := l.With("ring")
	sub.Info("opened")
	assert.Contains(t, buf.String(), "ring")
}
