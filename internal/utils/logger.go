package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// Logger provides leveled logging with verbose mode support.
type Logger struct {
	verbose bool
	out     io.Writer
	mu      sync.RWMutex
}

var (
	loggerInstance *Logger
	once           sync.Once
)

// GetLogger returns the singleton logger instance.
func GetLogger() *Logger {
	once.Do(func() {
		loggerInstance = &Logger{
			verbose: false,
			out:     os.Stderr,
		}
	})
	return loggerInstance
}

// SetVerboseMode sets the verbose mode globally.
func SetVerboseMode(verbose bool) {
	GetLogger().SetVerbose(verbose)
}

// SetOutput redirects the global logger. The TUI points it at a background
// log file so that log lines do not tear the rendered screen.
func SetOutput(w io.Writer) {
	GetLogger().SetOutput(w)
}

// SetVerbose sets the verbose mode for this logger instance.
func (l *Logger) SetVerbose(verbose bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verbose = verbose
}

// SetOutput sets the destination for this logger instance. A nil writer
// restores stderr.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	l.out = w
}

// IsVerbose returns whether verbose mode is enabled.
func (l *Logger) IsVerbose() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.verbose
}

func (l *Logger) writer() io.Writer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.out
}

// formatMessage formats a message with optional printf-style arguments.
func formatMessage(msgOrFormat string, args ...interface{}) string {
	if len(args) > 0 {
		return fmt.Sprintf(msgOrFormat, args...)
	}
	return msgOrFormat
}

// Debug logs a debug message (only shown when verbose=true).
// Can be used with a simple message or printf-style format string with args.
func (l *Logger) Debug(msgOrFormat string, args ...interface{}) {
	if !l.IsVerbose() {
		return
	}
	_, _ = fmt.Fprintf(l.writer(), "%s [DEBUG] %s\n", time.Now().Format("15:04:05"), formatMessage(msgOrFormat, args...))
}

// Info logs an info message (always shown).
func (l *Logger) Info(msgOrFormat string, args ...interface{}) {
	_, _ = fmt.Fprintf(l.writer(), "[INFO] %s\n", formatMessage(msgOrFormat, args...))
}

// Warn logs a warning message (always shown).
func (l *Logger) Warn(msgOrFormat string, args ...interface{}) {
	_, _ = fmt.Fprintf(l.writer(), "[WARN] %s\n", formatMessage(msgOrFormat, args...))
}

// Error logs an error message (always shown).
func (l *Logger) Error(msgOrFormat string, args ...interface{}) {
	_, _ = fmt.Fprintf(l.writer(), "[ERROR] %s\n", formatMessage(msgOrFormat, args...))
}

// Debugf is a convenience function that logs a debug message using the global logger.
func Debugf(format string, args ...interface{}) {
	GetLogger().Debug(format, args...)
}

// Infof is a convenience function that logs an info message using the global logger.
func Infof(format string, args ...interface{}) {
	GetLogger().Info(format, args...)
}

// Warnf is a convenience function that logs a warning message using the global logger.
func Warnf(format string, args ...interface{}) {
	GetLogger().Warn(format, args...)
}

// Errorf is a convenience function that logs an error message using the global logger.
func Errorf(format string, args ...interface{}) {
	GetLogger().Error(format, args...)
}

// BackgroundLogger writes log lines to a PID-specific file. The TUI uses it
// while the terminal is owned by the renderer.
type BackgroundLogger struct {
	logger  *log.Logger
	logFile *os.File
	enabled bool
}

// NewBackgroundLoggerWithEnabled creates a background logger with explicit enabled control.
// Pass config.IsBackgroundLoggingEnabled() to honor the logging.background_enabled config.
func NewBackgroundLoggerWithEnabled(enabled bool) (*BackgroundLogger, error) {
	if !enabled {
		return &BackgroundLogger{
			logger:  log.New(io.Discard, "", log.LstdFlags),
			enabled: false,
		}, nil
	}

	logPath := fmt.Sprintf("%s/taskpad-%d.log", os.TempDir(), os.Getpid())
	return NewBackgroundLoggerWithPath(logPath)
}

// NewBackgroundLoggerWithPath creates a background logger with a custom path.
func NewBackgroundLoggerWithPath(path string) (*BackgroundLogger, error) {
	bl := &BackgroundLogger{}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		// Gracefully degrade to io.Discard
		bl.logger = log.New(io.Discard, "", log.LstdFlags)
		bl.enabled = false
		return bl, err
	}

	bl.logFile = file
	bl.logger = log.New(file, "", log.LstdFlags)
	bl.enabled = true
	return bl, nil
}

// Write lets a BackgroundLogger stand in as the global logger's output.
func (bl *BackgroundLogger) Write(p []byte) (int, error) {
	if bl.logger == nil {
		return len(p), nil
	}
	bl.logger.Print(string(p))
	return len(p), nil
}

// Close closes the log file.
func (bl *BackgroundLogger) Close() {
	if bl.logFile != nil {
		_ = bl.logFile.Close()
		bl.logFile = nil
	}
	// After close, switch to io.Discard for graceful degradation
	bl.logger = log.New(io.Discard, "", log.LstdFlags)
	bl.enabled = false
}

// IsEnabled returns whether background logging is enabled.
func (bl *BackgroundLogger) IsEnabled() bool {
	return bl.enabled
}
