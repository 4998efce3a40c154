// internal/logger/logger.go

package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

type Mode int

const (
	MINIMAL Mode = iota
	NORMAL
	FULL
)

const resetColor = "\033[0m"

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

var levelColors = [...]string{"\033[36m", "\033[32m", "\033[33m", "\033[31m", "\033[35m"}

func (l Level) String() string {
	if l < DEBUG || l > FATAL {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// sink is shared by a root logger and every Named child.
type sink struct {
	mu        sync.Mutex
	level     Level
	mode      Mode
	console   io.Writer
	file      *os.File
	useColors bool
	exit      func(int)
}

type Logger struct {
	sink      *sink
	component string
}

type Config struct {
	Level       Level
	Mode        Mode
	LogFilePath string
	UseColors   bool
	// Output replaces stdout when set.
	Output io.Writer
}

func New(cfg Config) (*Logger, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	s := &sink{
		level:     cfg.Level,
		mode:      cfg.Mode,
		console:   out,
		useColors: cfg.UseColors,
		exit:      os.Exit,
	}

	if cfg.LogFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		s.file = f
	}

	return &Logger{sink: s}, nil
}

// NewNop returns a logger that drops everything. Used by tests.
func NewNop() *Logger {
	l, _ := New(Config{Level: FATAL + 1, Output: io.Discard})
	return l
}

// Named returns a child logger that prefixes every line with the component name.
func (l *Logger) Named(component string) *Logger {
	name := component
	if l.component != "" {
		name = l.component + "." + component
	}
	return &Logger{sink: l.sink, component: name}
}

func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.file != nil {
		err := l.sink.file.Close()
		l.sink.file = nil
		return err
	}
	return nil
}

func (l *Logger) write(level Level, format string, args ...interface{}) {
	s := l.sink

	s.mu.Lock()
	defer s.mu.Unlock()

	if level < s.level {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if l.component != "" {
		msg = "[" + l.component + "] " + msg
	}
	ts := time.Now().Format("2006-01-02 15:04:05")

	var location string
	if s.mode == FULL {
		location = caller()
	}

	if s.console != nil {
		fmt.Fprintln(s.console, s.consoleLine(level, ts, location, msg))
	}
	if s.file != nil {
		fmt.Fprintln(s.file, fileLine(level, ts, location, msg))
	}

	if level == FATAL {
		s.exit(1)
	}
}

func (s *sink) consoleLine(level Level, ts, location, msg string) string {
	tag := "[" + level.String() + "]"
	if s.useColors {
		tag = levelColors[level] + tag + resetColor
	}

	switch s.mode {
	case MINIMAL:
		return tag + " " + msg
	case FULL:
		return fmt.Sprintf("%s %s | %s | %s", tag, ts, location, msg)
	default:
		return fmt.Sprintf("%s %s | %s", tag, ts, msg)
	}
}

func fileLine(level Level, ts, location, msg string) string {
	if location != "" {
		return fmt.Sprintf("%s [%s] %s | %s", ts, level, location, msg)
	}
	return fmt.Sprintf("%s [%s] %s", ts, level, msg)
}

// caller skips itself, write and the level method.
func caller() string {
	_, file, line, ok := runtime.Caller(3)
	if !ok {
		return "unknown:0"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

func (l *Logger) Debug(format string, args ...interface{}) { l.write(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.write(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.write(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.write(ERROR, format, args...) }
func (l *Logger) Fatal(format string, args ...interface{}) { l.write(FATAL, format, args...) }

func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

func (l *Logger) SetMode(mode Mode) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.mode = mode
}

func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

func ParseMode(s string) Mode {
	switch strings.ToLower(s) {
	case "minimal":
		return MINIMAL
	case "full":
		return FULL
	default:
		return NORMAL
	}
}
