// Package logger provides leveled console logging for the migration CLI.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Logger writes one human-readable line per event, prefixed by severity.
// It is safe for concurrent use by the goroutines of a build stage.
type Logger struct {
	infoLog    *log.Logger
	successLog *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	debugLog   *log.Logger
	debug      bool
	logFile    *os.File
}

// New creates a Logger writing to stderr.
func New(debug bool) *Logger {
	return NewWithWriter(os.Stderr, debug)
}

// NewWithWriter creates a Logger writing to w.
func NewWithWriter(w io.Writer, debug bool) *Logger {
	flags := log.Ldate | log.Ltime
	return &Logger{
		infoLog:    log.New(w, "[INFO] ", flags),
		successLog: log.New(w, "[DONE] ", flags),
		warningLog: log.New(w, "[WARNING] ", flags),
		errorLog:   log.New(w, "[ERROR] ", flags),
		debugLog:   log.New(w, "[DEBUG] ", flags),
		debug:      debug,
	}
}

// NewWithFile creates a Logger that writes to both stderr and the given file.
func NewWithFile(debug bool, logFilePath string) (*Logger, error) {
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	l := NewWithWriter(io.MultiWriter(os.Stderr, logFile), debug)
	l.logFile = logFile
	return l, nil
}

// Close closes the log file if one is open.
func (l *Logger) Close() error {
	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}

// Info logs an informational message.
func (l *Logger) Info(msg string) {
	l.infoLog.Println(msg)
}

// Infof logs a formatted informational message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.infoLog.Printf(format, args...)
}

// Success logs a state-changing success.
func (l *Logger) Success(msg string) {
	l.successLog.Println(msg)
}

// Successf logs a formatted state-changing success.
func (l *Logger) Successf(format string, args ...interface{}) {
	l.successLog.Printf(format, args...)
}

// Warning logs a warning message.
func (l *Logger) Warning(msg string) {
	l.warningLog.Println(msg)
}

// Warningf logs a formatted warning message.
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.warningLog.Printf(format, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string) {
	l.errorLog.Println(msg)
}

// Errorf logs a formatted error message.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.errorLog.Printf(format, args...)
}

// Debug logs a debug message (only if debug mode is enabled).
func (l *Logger) Debug(msg string) {
	if l.debug {
		l.debugLog.Println(msg)
	}
}

// Debugf logs a formatted debug message (only if debug mode is enabled).
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.debug {
		l.debugLog.Printf(format, args...)
	}
}

// Step logs a banner for a numbered build stage.
func (l *Logger) Step(stepNum int, description string) {
	l.Info("-----------------------------------------")
	l.Infof("Stage %d: %s", stepNum, description)
	l.Info("-----------------------------------------")
}

// GetTimestamp returns a timestamp string in the format YYYYMMDD-HHMMSS.
func GetTimestamp() string {
	return time.Now().Format("20060102-150405")
}
