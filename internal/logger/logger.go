package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"platecam/internal/config"
)

// Logger provides leveled logging (info/warning/error) to per-level files and the console.
type Logger struct {
	zl     zerolog.Logger
	logDir string
}

// levelFiles routes each event to the file of its level.
type levelFiles struct {
	info    io.Writer
	warning io.Writer
	error   io.Writer
}

func (w levelFiles) Write(p []byte) (int, error) {
	return w.info.Write(p)
}

func (w levelFiles) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	switch {
	case level >= zerolog.ErrorLevel:
		return w.error.Write(p)
	case level == zerolog.WarnLevel:
		return w.warning.Write(p)
	default:
		return w.info.Write(p)
	}
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(cfg *config.Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	files := levelFiles{}
	var err error
	if files.info, err = openLogFile(filepath.Join(cfg.LogDirectory, "info.log")); err != nil {
		return nil, err
	}
	if files.warning, err = openLogFile(filepath.Join(cfg.LogDirectory, "warning.log")); err != nil {
		return nil, err
	}
	if files.error, err = openLogFile(filepath.Join(cfg.LogDirectory, "error.log")); err != nil {
		return nil, err
	}

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	l := newLogger(zerolog.MultiLevelWriter(console, files))
	l.logDir = cfg.LogDirectory
	return l, nil
}

// NewWriter creates a Logger that writes JSON events to w only.
func NewWriter(w io.Writer) *Logger {
	return newLogger(w)
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func newLogger(w io.Writer) *Logger {
	zl := zerolog.New(w).With().Timestamp().CallerWithSkipFrameCount(3).Logger()
	return &Logger{zl: zl}
}

func openLogFile(filename string) (*os.File, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filename, err)
	}
	return file, nil
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.zl.Info().Msgf(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.zl.Warn().Msgf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
}

// With returns a child logger carrying the given field on every entry.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger(), logDir: l.logDir}
}

// Dir returns the directory holding the log files, empty for writer-backed loggers.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return fmt.Errorf("logger has no log directory")
	}
	filePath := filepath.Join(l.logDir, filepath.Base(fileName))
	if err := os.Truncate(filePath, 0); err != nil {
		l.Error("Error clearing %s: %v", fileName, err)
		return fmt.Errorf("failed to truncate %s: %w", fileName, err)
	}
	l.Info("File %s has been cleared.", fileName)
	return nil
}
