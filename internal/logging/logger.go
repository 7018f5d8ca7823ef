package logging

// Structured logging for udsinfo

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// TimestampFormat matches the UTC timestamps downstream log tailers expect.
const TimestampFormat = "2006-01-02T15:04:05.000000Z"

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelVerbose
	LogLevelDebug
)

// ParseLevel maps a level name to a LogLevel.
func ParseLevel(name string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "silent":
		return LogLevelSilent, nil
	case "error":
		return LogLevelError, nil
	case "", "info":
		return LogLevelInfo, nil
	case "verbose":
		return LogLevelVerbose, nil
	case "debug":
		return LogLevelDebug, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", name)
}

// Logger provides leveled logging. Console output always goes to stderr so
// stdout stays reserved for the result record. A nil *Logger discards
// everything.
type Logger struct {
	mu      sync.Mutex
	level   LogLevel
	file    *os.File
	console io.Writer
	now     func() time.Time
}

// NewLogger creates a new logger
func NewLogger(level LogLevel, logFile string) (*Logger, error) {
	l := &Logger{
		level:   level,
		console: os.Stderr,
		now:     time.Now,
	}

	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.file = file
	}

	return l, nil
}

// NewWriterLogger creates a logger that writes console output to w.
func NewWriterLogger(level LogLevel, w io.Writer) *Logger {
	return &Logger{level: level, console: w, now: time.Now}
}

// Close closes the logger and flushes all data
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.log(LogLevelError, "error", format, v...)
}

// Warn logs a warning. Warnings share the error threshold.
func (l *Logger) Warn(format string, v ...interface{}) {
	l.log(LogLevelError, "warning", format, v...)
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.log(LogLevelInfo, "info", format, v...)
}

// Verbose logs a verbose message
func (l *Logger) Verbose(format string, v ...interface{}) {
	l.log(LogLevelVerbose, "verbose", format, v...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log(LogLevelDebug, "debug", format, v...)
}

func (l *Logger) log(threshold LogLevel, name, format string, v ...interface{}) {
	if l == nil || l.GetLevel() < threshold {
		return
	}
	l.write(name, fmt.Sprintf(format, v...))
}

func (l *Logger) write(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		fmt.Fprintf(l.file, "%s %s %s\n", l.now().UTC().Format(TimestampFormat), strings.ToUpper(level), msg)
	}
	if l.console != nil {
		fmt.Fprintf(l.console, "%s: %s\n", strings.ToUpper(level), msg)
	}
}

// SetConsole redirects console output. A nil writer keeps only the log file.
func (l *Logger) SetConsole(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.console = w
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() LogLevel {
	if l == nil {
		return LogLevelSilent
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// LogStartup logs startup information
func (l *Logger) LogStartup(ip string, port int, logicalAddress uint16, maxAttempts int, delay time.Duration) {
	l.Info("Connecting to ECU at %s, LA 0x%04X", ip, logicalAddress)
	l.Verbose("  Target: %s:%d", ip, port)
	l.Verbose("  Retry: %d attempts, %s apart", maxAttempts, delay)
}

// LogHex logs hex data (for debug level)
func (l *Logger) LogHex(label string, data []byte) {
	if l.GetLevel() < LogLevelDebug {
		return
	}
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	l.Debug("%s: %s", label, strings.Join(parts, " "))
}
