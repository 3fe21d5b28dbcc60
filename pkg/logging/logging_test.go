package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.level.String())
	}
}

func TestInitAndLog(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)

	Debug("Test", "debug message %d", 1)
	Info("Test", "info message")
	Warn("Test", "warn message")
	Error("Test", errors.New("boom"), "error message")

	out := buf.String()
	assert.Contains(t, out, "debug message 1")
	assert.Contains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
	assert.Contains(t, out, "subsystem=Test")
	assert.Contains(t, out, "error=boom")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelWarn, &buf)

	Debug("Test", "should be suppressed")
	Info("Test", "should also be suppressed")
	Warn("Test", "should appear")

	out := buf.String()
	assert.NotContains(t, out, "suppressed")
	assert.Contains(t, out, "should appear")
}
