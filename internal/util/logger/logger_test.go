package logger

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerCached(t *testing.T) {
	a := Logger("test-cached")
	b := Logger("test-cached")
	assert.Same(t, a, b, "同一子系统应返回相同实例")
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	log := Logger("test-setlevel")
	SetLevel("test-setlevel", slog.LevelWarn)

	log.Info("should be filtered")
	assert.NotContains(t, buf.String(), "should be filtered")

	log.Warn("should appear")
	assert.Contains(t, buf.String(), "should appear")
	assert.Contains(t, buf.String(), "test-setlevel")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel(" WARN "))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
