// Package logging wraps the standard library logger with the level gating
// LOG_LEVEL requires, and a little structured context (room, agent, op).
package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Logger is a leveled wrapper around *log.Logger.
type Logger struct {
	min   Level
	inner *log.Logger
}

// New creates a Logger writing to stderr at the given minimum level.
func New(min Level) *Logger {
	return &Logger{min: min, inner: log.New(os.Stderr, "", log.LstdFlags)}
}

func (l *Logger) log(level Level, ctx string, format string, args ...any) {
	if level < l.min {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if ctx != "" {
		l.inner.Printf("[%s] %s %s", level, ctx, msg)
		return
	}
	l.inner.Printf("[%s] %s", level, msg)
}

func (l *Logger) Debugf(ctx, format string, args ...any) { l.log(LevelDebug, ctx, format, args...) }
func (l *Logger) Infof(ctx, format string, args ...any)  { l.log(LevelInfo, ctx, format, args...) }
func (l *Logger) Warnf(ctx, format string, args ...any)  { l.log(LevelWarn, ctx, format, args...) }
func (l *Logger) Errorf(ctx, format string, args ...any) { l.log(LevelError, ctx, format, args...) }

// Op formats the (room, agent, op) triple every logged mutation carries so
// log lines can be grepped by room or agent without parsing free text.
func Op(room, agent, op string) string {
	return fmt.Sprintf("room=%s agent=%s op=%s", orDash(room), orDash(agent), op)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
