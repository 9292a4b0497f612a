// Package logger implements the per-node leveled logger: emission requires
// the level to pass both the logger's own ceiling and the process-wide
// one, output is line-oriented zerolog, and a process-wide lock serializes
// writes so concurrent nodes never interleave.
package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Level orders emission verbosity: None < Error < Warning < Info.
type Level int

const (
	LevelNone Level = iota
	LevelError
	LevelWarning
	LevelInfo
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelInfo:
		return "info"
	default:
		return "none"
	}
}

// ParseLevel maps the shell's `-l` argument spelling onto a Level.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "none":
		return LevelNone, true
	case "error":
		return LevelError, true
	case "warning":
		return LevelWarning, true
	case "info":
		return LevelInfo, true
	default:
		return 0, false
	}
}

var (
	writeMu     sync.Mutex // serializes all loggers' writes
	globalLevel = struct {
		mu sync.RWMutex
		v  Level
	}{v: LevelInfo}
)

// SetGlobalLevel sets the process-wide ceiling. Every Logger's emission is
// additionally gated by this, regardless of its own local level.
func SetGlobalLevel(l Level) {
	globalLevel.mu.Lock()
	globalLevel.v = l
	globalLevel.mu.Unlock()
}

// GlobalLevel returns the current process-wide ceiling.
func GlobalLevel() Level {
	globalLevel.mu.RLock()
	defer globalLevel.mu.RUnlock()
	return globalLevel.v
}

// Format selects the zerolog writer shape: JSON for log aggregation,
// pretty console output for local dev.
type Format int

const (
	FormatJSON Format = iota
	FormatPretty
)

// Logger is a per-node leveled output. Construct with New, normally via
// node.MakeLogger so every call site of a node shares the one instance
// registered under the node's name.
type Logger struct {
	name  string
	mu    sync.RWMutex
	local Level

	zl        zerolog.Logger
	throttles map[string]*rate.Limiter
	tmu       sync.Mutex
}

// New constructs a Logger named name (normally the owning node's name),
// initially at local level LevelInfo.
func New(name string, format Format) *Logger {
	var out io.Writer = os.Stdout
	if format == FormatPretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(out).With().Timestamp().Str("node", name).Logger()
	return &Logger{
		name:      name,
		local:     LevelInfo,
		zl:        zl,
		throttles: make(map[string]*rate.Limiter),
	}
}

// Name returns the node name this Logger was created for.
func (l *Logger) Name() string { return l.name }

// SetLocalLevel sets this Logger's own ceiling (the shell's `logger
// <glob> -l <level>` command, per-match).
func (l *Logger) SetLocalLevel(level Level) {
	l.mu.Lock()
	l.local = level
	l.mu.Unlock()
}

// LocalLevel returns this Logger's own ceiling.
func (l *Logger) LocalLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.local
}

func (l *Logger) enabled(level Level) bool {
	return level <= l.LocalLevel() && level <= GlobalLevel()
}

func (l *Logger) emit(level Level, msg string) {
	if !l.enabled(level) {
		return
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	switch level {
	case LevelError:
		l.zl.Error().Msg(msg)
	case LevelWarning:
		l.zl.Warn().Msg(msg)
	default:
		l.zl.Info().Msg(msg)
	}
}

// Info emits at LevelInfo.
func (l *Logger) Info(msg string) { l.emit(LevelInfo, msg) }

// Warning emits at LevelWarning.
func (l *Logger) Warning(msg string) { l.emit(LevelWarning, msg) }

// Error emits at LevelError.
func (l *Logger) Error(msg string) { l.emit(LevelError, msg) }

// Throttled emits at most once per second per tag, for hot loops that
// would otherwise flood the output with identical lines.
func (l *Logger) Throttled(tag string, level Level, msg string) {
	l.tmu.Lock()
	lim, ok := l.throttles[tag]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(1), 1) // at most once per second per tag
		l.throttles[tag] = lim
	}
	l.tmu.Unlock()

	if lim.Allow() {
		l.emit(level, msg)
	}
}
