package internal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelError, ParseLogLevel("error"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel("WARNING"))
	assert.Equal(t, LogLevelTrace, ParseLogLevel(" trace "))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("verbose"))
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
}

func TestLoggerFiltersAndPrefixes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(LogLevelInfo, &buf).WithComponent("Batch")

	logger.Debug("hidden %d", 1)
	logger.Info("planned %d tasks", 3)
	logger.Warn("task failed")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] [Batch] planned 3 tasks")
	assert.Contains(t, out, "[WARN] [Batch] task failed")
	assert.Equal(t, LogLevelInfo, logger.GetLevel())
}
