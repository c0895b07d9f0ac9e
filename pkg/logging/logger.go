/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: logger.go
Description: Logging system for the argv fuzzer. Wraps logrus with text, JSON
and custom formats, writes to stderr and optionally to a timestamped log file, and
provides fuzzer-specific helpers for trials, failures, artifacts and run summaries.
*/

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warn"
	LogLevelError   LogLevel = "error"
)

// LogFormat represents the logging format
type LogFormat string

const (
	LogFormatJSON   LogFormat = "json"
	LogFormatText   LogFormat = "text"
	LogFormatCustom LogFormat = "custom"
)

const logFilePattern = "argv-fuzzer_%s.log"

// LoggerConfig holds the configuration for the logger
type LoggerConfig struct {
	Level     LogLevel  `json:"level" yaml:"level"`
	Format    LogFormat `json:"format" yaml:"format"`
	OutputDir string    `json:"output_dir" yaml:"output_dir"` // Empty disables the log file
	MaxFiles  int       `json:"max_files" yaml:"max_files"`   // Session logs kept in OutputDir, 0 keeps all
	Timestamp bool      `json:"timestamp" yaml:"timestamp"`
	Caller    bool      `json:"caller" yaml:"caller"`
	Colors    bool      `json:"colors" yaml:"colors"`

	// Console receives log output in addition to the file. Defaults to stderr.
	Console io.Writer `json:"-" yaml:"-"`
}

// DefaultConfig returns console-only logging at info level. Colors are on
// only when stderr is a terminal.
func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:     LogLevelInfo,
		Format:    LogFormatCustom,
		Timestamp: true,
		Colors:    term.IsTerminal(int(os.Stderr.Fd())),
	}
}

// Validate checks the LoggerConfig for invalid values.
func (c *LoggerConfig) Validate() error {
	if c.MaxFiles < 0 {
		return fmt.Errorf("max_files must not be negative")
	}
	switch c.Format {
	case LogFormatJSON, LogFormatText, LogFormatCustom:
		// ok
	default:
		return fmt.Errorf("unsupported log format: %s", c.Format)
	}
	switch c.Level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		// ok
	default:
		return fmt.Errorf("unsupported log level: %s", c.Level)
	}
	return nil
}

// Logger provides fuzzer logging on top of logrus
type Logger struct {
	config     *LoggerConfig
	logger     *logrus.Logger
	fileHandle *os.File
	filePath   string
	startTime  time.Time
}

// NewLogger creates a new logger instance. A nil config uses DefaultConfig.
func NewLogger(config *LoggerConfig) (*Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	l := &Logger{
		config:    config,
		logger:    logrus.New(),
		startTime: time.Now(),
	}

	if err := l.setup(); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	return l, nil
}

// setup configures the logger with the given configuration
func (l *Logger) setup() error {
	level, err := logrus.ParseLevel(string(l.config.Level))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	l.logger.SetLevel(level)
	l.logger.SetReportCaller(l.config.Caller)

	if err := l.setFormatter(); err != nil {
		return err
	}

	console := l.config.Console
	if console == nil {
		console = os.Stderr
	}
	l.logger.SetOutput(console)

	return l.setupFileOutput(console)
}

// setFormatter configures the log formatter
func (l *Logger) setFormatter() error {
	callerPrettyfier := func(f *runtime.Frame) (string, string) {
		return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
	}

	switch l.config.Format {
	case LogFormatJSON:
		l.logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:  time.RFC3339,
			DisableTimestamp: !l.config.Timestamp,
			CallerPrettyfier: callerPrettyfier,
		})

	case LogFormatText:
		l.logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    l.config.Timestamp,
			DisableTimestamp: !l.config.Timestamp,
			TimestampFormat:  time.RFC3339,
			ForceColors:      l.config.Colors,
			DisableColors:    !l.config.Colors,
			CallerPrettyfier: callerPrettyfier,
		})

	case LogFormatCustom:
		l.logger.SetFormatter(&CustomFormatter{
			Timestamp: l.config.Timestamp,
			Caller:    l.config.Caller,
			Colors:    l.config.Colors,
		})

	default:
		return fmt.Errorf("unsupported log format: %s", l.config.Format)
	}

	return nil
}

// setupFileOutput tees log output into a timestamped file in OutputDir
func (l *Logger) setupFileOutput(console io.Writer) error {
	if l.config.OutputDir == "" {
		return nil
	}

	if err := os.MkdirAll(l.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	path := filepath.Join(l.config.OutputDir, fmt.Sprintf(logFilePattern, timestamp))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.fileHandle = file
	l.filePath = path
	l.logger.SetOutput(io.MultiWriter(console, file))

	l.logger.WithFields(logrus.Fields{
		"log_file": path,
		"level":    l.config.Level,
		"format":   l.config.Format,
	}).Debug("Logging to file")

	return nil
}

// Fuzzer-specific logging methods

// LogTrial logs one completed trial
func (l *Logger) LogTrial(trial int, outcome string, duration time.Duration, fields logrus.Fields) {
	l.with(fields, logrus.Fields{
		"trial":    trial,
		"outcome":  outcome,
		"duration": duration,
	}).Debug("Trial executed")
}

// LogFailure logs a trial whose termination is not allow-listed
func (l *Logger) LogFailure(trial int, message string, fields logrus.Fields) {
	l.with(fields, logrus.Fields{"trial": trial}).Warn(message)
}

// LogArtifact logs a persisted failing case
func (l *Logger) LogArtifact(suffix, inputPath, argsPath string, fields logrus.Fields) {
	l.with(fields, logrus.Fields{
		"suffix":     suffix,
		"input_file": inputPath,
		"args_file":  argsPath,
	}).Info("Failing case recorded")
}

// LogSummary logs the end of a fuzzing session
func (l *Logger) LogSummary(message string, trials int, duration time.Duration, fields logrus.Fields) {
	l.with(fields, logrus.Fields{
		"trials":   trials,
		"duration": duration,
		"uptime":   time.Since(l.startTime),
	}).Info(message)
}

func (l *Logger) with(extra logrus.Fields, fields logrus.Fields) *logrus.Entry {
	for k, v := range extra {
		fields[k] = v
	}
	return l.logger.WithFields(fields)
}

// FilePath returns the log file in use, if any.
func (l *Logger) FilePath() string { return l.filePath }

// GetLogger returns the underlying logrus logger
func (l *Logger) GetLogger() *logrus.Logger {
	return l.logger
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields logrus.Fields) {
	l.logger.WithFields(fields).Debug(msg)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields logrus.Fields) {
	l.logger.WithFields(fields).Info(msg)
}

// Warning logs a warning message
func (l *Logger) Warning(msg string, fields logrus.Fields) {
	l.logger.WithFields(fields).Warn(msg)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields logrus.Fields) {
	l.logger.WithFields(fields).Error(msg)
}

// Close closes the log file, if one was opened, and prunes old session logs
func (l *Logger) Close() error {
	if l.fileHandle == nil {
		return nil
	}
	l.logger.SetOutput(l.consoleWriter())
	err := l.fileHandle.Close()
	l.fileHandle = nil
	if err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}

	if _, err := CleanupOldLogs(l.config.OutputDir, l.config.MaxFiles); err != nil {
		return fmt.Errorf("failed to cleanup log files: %w", err)
	}
	return nil
}

func (l *Logger) consoleWriter() io.Writer {
	if l.config.Console != nil {
		return l.config.Console
	}
	return os.Stderr
}
