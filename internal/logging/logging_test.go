package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewHonoursDebugFlag(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "error", true).Debug("visible")
	assert.Contains(t, buf.String(), `"msg":"visible"`)

	buf.Reset()
	New(&buf, "warn", false).Info("hidden")
	assert.Empty(t, buf.String())
}
