package logging

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Level represents the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	timeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
)

// Logger appends timestamped lines to the run log so every transition,
// retry and failure survives the process. Lines are mirrored to a console
// writer unless it is detached.
type Logger struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	console io.Writer
	now     func() time.Time
}

// Option customizes a Logger during construction.
type Option func(*Logger)

// WithConsole mirrors every entry to w; nil disables the mirror.
func WithConsole(w io.Writer) Option {
	return func(l *Logger) {
		l.console = w
	}
}

// WithClock overrides the timestamp source (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(l *Logger) {
		if clock != nil {
			l.now = clock
		}
	}
}

// New creates (or reuses) the append-only log file at path.
func New(path string, opts ...Option) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	l := &Logger{path: path, file: f, console: os.Stderr, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Discard returns a logger that writes nowhere.
func Discard() *Logger {
	return nil
}

// Path returns the file backing this logger.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// SetConsole swaps the console mirror; nil detaches it so another component
// (the progress view) can own the terminal.
func (l *Logger) SetConsole(w io.Writer) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.console = w
}

// Close releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.file.Close()
	l.file = nil
	return err
}

// Append writes a single entry.
func (l *Logger) Append(level Level, message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	stamp := l.now().UTC().Format(time.RFC3339)
	message = strings.TrimRight(strings.TrimSpace(message), "\n")
	if l.file != nil {
		fmt.Fprintf(l.file, "%s %-5s %s\n", stamp, string(level), message)
	}
	if l.console != nil {
		fmt.Fprintf(l.console, "%s %s %s\n", timeStyle.Render(stamp), styleFor(level).Render(fmt.Sprintf("%-5s", level)), message)
	}
}

// Info appends an informational entry.
func (l *Logger) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (l *Logger) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logger) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}

// Tail returns up to maxLines of the most recent entries.
func (l *Logger) Tail(maxLines int) []string {
	if l == nil || maxLines <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines
}

func styleFor(level Level) lipgloss.Style {
	switch level {
	case LevelWarn:
		return warnStyle
	case LevelError:
		return errorStyle
	default:
		return infoStyle
	}
}
