// Package logging provides the prefixed line logger used across cardsync.
//
// A Logger writes through a standard *log.Logger and fans every line out to
// registered Sinks, such as the per-run Transcript or the progress stream.
// All methods are safe on a nil *Logger, which discards output.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Sink receives every logged line without prefix or timestamp.
type Sink interface {
	WriteLine(line string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(line string)

// WriteLine calls f(line).
func (f SinkFunc) WriteLine(line string) { f(line) }

// Logger is a prefixed logger with line sinks.
type Logger struct {
	std *log.Logger

	mu     sync.RWMutex
	sinks  map[int]Sink
	nextID int
}

// New creates a Logger writing to w with the given prefix, e.g. "[update] ".
// A nil w discards output but still feeds sinks.
func New(w io.Writer, prefix string) *Logger {
	if w == nil {
		w = io.Discard
	}
	return &Logger{
		std:   log.New(w, prefix, log.LstdFlags),
		sinks: make(map[int]Sink),
	}
}

// Default logs to stderr.
func Default(prefix string) *Logger {
	return New(os.Stderr, prefix)
}

// Discard returns a Logger with no output.
func Discard() *Logger {
	return New(io.Discard, "")
}

// Printf logs a formatted line.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil {
		return
	}
	l.emit(fmt.Sprintf(format, args...))
}

// Println logs its operands separated by spaces.
func (l *Logger) Println(args ...any) {
	if l == nil {
		return
	}
	l.emit(strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

func (l *Logger) emit(line string) {
	l.std.Output(3, line)

	l.mu.RLock()
	ids := make([]int, 0, len(l.sinks))
	for id := range l.sinks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	sinks := make([]Sink, 0, len(ids))
	for _, id := range ids {
		sinks = append(sinks, l.sinks[id])
	}
	l.mu.RUnlock()

	for _, s := range sinks {
		s.WriteLine(line)
	}
}

// AddSink registers s and returns a function that removes it again.
func (l *Logger) AddSink(s Sink) (remove func()) {
	if l == nil || s == nil {
		return func() {}
	}
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.sinks[id] = s
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.sinks, id)
		l.mu.Unlock()
	}
}

// Std exposes the underlying *log.Logger for libraries that want one.
func (l *Logger) Std() *log.Logger {
	if l == nil {
		return log.New(io.Discard, "", 0)
	}
	return l.std
}

// WithPrefix returns a Logger sharing this one's writer and sinks under a
// different prefix.
func (l *Logger) WithPrefix(prefix string) *Logger {
	if l == nil {
		return nil
	}
	child := &Logger{
		std:   log.New(l.std.Writer(), prefix, l.std.Flags()),
		sinks: make(map[int]Sink),
	}
	child.AddSink(SinkFunc(func(line string) {
		l.mu.RLock()
		sinks := make([]Sink, 0, len(l.sinks))
		for _, s := range l.sinks {
			sinks = append(sinks, s)
		}
		l.mu.RUnlock()
		for _, s := range sinks {
			s.WriteLine(line)
		}
	}))
	return child
}

// FileConfig configures the rotating log file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

// Default rotation limits for the log file.
const (
	DefaultMaxSizeMB  = 5
	DefaultMaxBackups = 10
)

// NewFileWriter returns a size-rotated writer for cfg.Path.
func NewFileWriter(cfg FileConfig) io.WriteCloser {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = DefaultMaxSizeMB
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = DefaultMaxBackups
	}
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
}

// Transcript collects timestamped lines of a single run.
type Transcript struct {
	mu    sync.Mutex
	lines []string
	now   func() time.Time
}

// NewTranscript returns an empty Transcript.
func NewTranscript() *Transcript {
	return &Transcript{now: time.Now}
}

// WriteLine implements Sink.
func (t *Transcript) WriteLine(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, fmt.Sprintf("[%s] %s", t.now().Format("15:04:05"), line))
}

// Lines returns a copy of the collected lines.
func (t *Transcript) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}

// String joins the lines with newlines.
func (t *Transcript) String() string {
	return strings.Join(t.Lines(), "\n")
}
