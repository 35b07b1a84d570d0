// Package logger is the console logger behind the CLI and the live
// database collaborators. Lines go to stderr so generated SQL on stdout
// stays clean; subscribers receive every entry for file sinks.
package logger

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Level labels an entry's severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
	LevelFatal Level = "FATAL"
)

// componentWidth keeps the component column aligned across lines.
const componentWidth = 12

const (
	colorReset  = "\033[0m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorGray   = "\033[90m"
	colorYellow = "\033[93m"
	colorRed    = "\033[91m"
)

// LogEntry is one emitted line as subscribers receive it.
type LogEntry struct {
	Time    time.Time
	Level   Level
	Message string
}

// Logger writes leveled, colored lines to stderr and streams every
// entry to subscribers.
type Logger struct {
	component string
	version   string

	mu    sync.RWMutex
	quiet bool
	color bool
	subs  []chan LogEntry
}

// New returns a logger tagged with the component name shown in the
// console column.
func New(component, version string) *Logger {
	return &Logger{
		component: component,
		version:   version,
		color:     stderrIsTerminal(),
	}
}

func stderrIsTerminal() bool {
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// Subscribe registers a new entry stream. Entries are dropped instead
// of blocking when the subscriber falls behind.
func (l *Logger) Subscribe() <-chan LogEntry {
	ch := make(chan LogEntry, 100)
	l.mu.Lock()
	l.subs = append(l.subs, ch)
	l.mu.Unlock()
	return ch
}

// DisableConsoleOutput silences stderr, leaving subscribers as the only
// sinks.
func (l *Logger) DisableConsoleOutput() {
	l.mu.Lock()
	l.quiet = true
	l.mu.Unlock()
}

func (l *Logger) Debugf(format string, args ...any) { l.emit(LevelDebug, format, args...) }

func (l *Logger) Infof(format string, args ...any) { l.emit(LevelInfo, format, args...) }

func (l *Logger) Warnf(format string, args ...any) { l.emit(LevelWarn, format, args...) }

func (l *Logger) Errorf(format string, args ...any) { l.emit(LevelError, format, args...) }

// Fatalf logs the message and exits.
func (l *Logger) Fatalf(format string, args ...any) {
	l.emit(LevelFatal, format, args...)
	os.Exit(1)
}

func (l *Logger) emit(level Level, format string, args ...any) {
	entry := LogEntry{Time: time.Now(), Level: level, Message: fmt.Sprintf(format, args...)}

	l.mu.RLock()
	quiet := l.quiet
	subs := l.subs
	l.mu.RUnlock()

	if !quiet {
		fmt.Fprintln(os.Stderr, l.consoleLine(entry))
	}
	for _, ch := range subs {
		select {
		case ch <- entry:
		default:
			// Slow subscribers lose entries rather than stall logging.
		}
	}
}

func (l *Logger) consoleLine(e LogEntry) string {
	component := l.component
	if len(component) > componentWidth {
		component = component[:componentWidth-1] + "…"
	}
	level := fmt.Sprintf("%-9s", levelIcon(e.Level)+" "+string(e.Level))
	timestamp := e.Time.Format("2006-01-02 15:04:05.000")

	if !l.color {
		return fmt.Sprintf("[%s] [%-*s] [%s] %s",
			timestamp, componentWidth, component, level, e.Message)
	}
	return fmt.Sprintf("%s[%s]%s [%-*s] [%s%s%s] %s",
		colorCyan, timestamp, colorReset,
		componentWidth, component,
		levelColor(e.Level), level, colorReset, e.Message)
}

func levelColor(level Level) string {
	switch level {
	case LevelDebug:
		return colorGray
	case LevelInfo:
		return colorGreen
	case LevelWarn:
		return colorYellow
	default:
		return colorRed
	}
}

func levelIcon(level Level) string {
	switch level {
	case LevelDebug:
		return "◦"
	case LevelWarn:
		return "⚠"
	case LevelError, LevelFatal:
		return "✗"
	default:
		return "ℹ"
	}
}
