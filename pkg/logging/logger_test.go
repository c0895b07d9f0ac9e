/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: logger_test.go
Description: Tests for logger creation, formats, file output, the custom formatter
and log retention.
*/

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, format LogFormat, level LogLevel) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := NewLogger(&LoggerConfig{
		Level:   level,
		Format:  format,
		Console: &buf,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })
	return logger, &buf
}

func TestLoggerConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := []*LoggerConfig{
		{Level: LogLevelInfo, Format: "xml"},
		{Level: "loud", Format: LogFormatText},
		{Level: LogLevelInfo, Format: LogFormatText, MaxFiles: -1},
	}
	for _, config := range bad {
		assert.Error(t, config.Validate())
		_, err := NewLogger(config)
		assert.Error(t, err)
	}
}

func TestLoggerLevels(t *testing.T) {
	logger, buf := newTestLogger(t, LogFormatText, LogLevelWarning)

	logger.Debug("debug message", nil)
	logger.Info("info message", nil)
	logger.Warning("warning message", logrus.Fields{"key": "value"})
	logger.Error("error message", nil)

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warning message")
	assert.Contains(t, out, "key=value")
	assert.Contains(t, out, "error message")
}

func TestLoggerJSONFormat(t *testing.T) {
	logger, buf := newTestLogger(t, LogFormatJSON, LogLevelDebug)

	logger.LogTrial(3, "passed", 2*time.Millisecond, logrus.Fields{"args": 2})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Trial executed", entry["msg"])
	assert.Equal(t, "passed", entry["outcome"])
	assert.EqualValues(t, 3, entry["trial"])
	assert.EqualValues(t, 2, entry["args"])
}

func TestLoggerFuzzerHelpers(t *testing.T) {
	logger, buf := newTestLogger(t, LogFormatCustom, LogLevelDebug)

	logger.LogFailure(1, "Program terminated with exit code 1", logrus.Fields{"exit_code": 1})
	logger.LogArtifact("0123456789ab", "input-0123456789ab", "args-0123456789ab", nil)
	logger.LogSummary("Could not produce a failing state", 10, time.Second, nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "[FAIL]")
	assert.Contains(t, lines[0], "exit_code=1")
	assert.Contains(t, lines[1], "[ARTIFACT]")
	assert.Contains(t, lines[1], "suffix=0123456789ab")
	assert.Contains(t, lines[2], "[SESSION]")
	assert.Contains(t, lines[2], "trials=10")
}

func TestLoggerFileOutput(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	logger, err := NewLogger(&LoggerConfig{
		Level:     LogLevelInfo,
		Format:    LogFormatText,
		OutputDir: dir,
		Console:   &console,
	})
	require.NoError(t, err)

	logger.Info("to both sinks", nil)
	path := logger.FilePath()
	require.NoError(t, logger.Close())

	require.NotEmpty(t, path)
	assert.Equal(t, dir, filepath.Dir(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both sinks")
	assert.Contains(t, console.String(), "to both sinks")
}

func TestCustomFormatter(t *testing.T) {
	formatter := &CustomFormatter{}
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   logrus.InfoLevel,
		Message: "Session started",
		Data: logrus.Fields{
			"zeta":       "last",
			"alpha":      "first",
			"session_id": "0f8fad5b-d9cb-469f-a165-70867728950e",
			"payload":    []byte{0xde, 0xad},
			"err":        errors.New("boom"),
			"program":    "my prog",
		},
	}

	out, err := formatter.Format(entry)
	require.NoError(t, err)
	line := string(out)

	assert.True(t, strings.HasPrefix(line, "INFO  [SESSION] Session started"), line)
	assert.Less(t, strings.Index(line, "alpha="), strings.Index(line, "zeta="))
	assert.Contains(t, line, "session_id=0f8fad5b ")
	assert.Contains(t, line, "payload=dead")
	assert.Contains(t, line, `err="boom"`)
	assert.Contains(t, line, `program="my prog"`)
	assert.NotContains(t, line, "\033[")

	formatter.Colors = true
	formatter.Timestamp = true
	out, err = formatter.Format(entry)
	require.NoError(t, err)
	assert.Contains(t, string(out), "\033[36m2026-01-02 03:04:05.000\033[0m")
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"argv-fuzzer_2026-01-01_00-00-00.log",
		"argv-fuzzer_2026-01-02_00-00-00.log",
		"argv-fuzzer_2026-01-03_00-00-00.log",
		"unrelated.log",
	}
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	removed, err := CleanupOldLogs(dir, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, names[0])}, removed)

	remaining, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, remaining, 3)

	removed, err = CleanupOldLogs(dir, 0)
	require.NoError(t, err)
	assert.Empty(t, removed)
}
