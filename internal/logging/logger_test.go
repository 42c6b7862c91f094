package logging

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestConsoleLoggerRespectsLevel(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := initialize(Config{Level: "warn", Format: "console", ServiceName: "friendlink"}, zapcore.AddSync(buf))

	logger.Info("hidden")
	logger.Warn("shown")
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "friendlink")
	assert.Same(t, logger, Get())
}

func TestJSONLoggerAndStdlibRedirect(t *testing.T) {
	buf := new(bytes.Buffer)
	initialize(Config{Level: "debug", Format: "json"}, zapcore.AddSync(buf))

	log.Print("from the standard library")
	Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	assert.Equal(t, "from the standard library", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := initialize(Config{Level: "loud"}, zapcore.AddSync(buf))
	logger.Debug("debug line")
	logger.Info("info line")
	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.Contains(t, out, "info line")
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "friendlink.log")
	logger := initialize(Config{Level: "info", LogFile: path, MaxSize: 1}, zapcore.AddSync(new(bytes.Buffer)))
	logger.Info("persisted")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"persisted"`)
}
