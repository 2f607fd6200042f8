package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

var (
	defaultHandler = NewOutputHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}, logFormatDate|logFormatTime)
	defaultLogger  = slog.New(defaultHandler)
	level          atomic.Int64
)

func init() {
	level.Store(int64(slog.LevelInfo))
}

// SetLevel adjusts the process-wide verbosity threshold, wired from the
// CLI's --log-level flag.
func SetLevel(l slog.Level) {
	level.Store(int64(l))
	defaultHandler.opts = &slog.HandlerOptions{Level: slog.Level(level.Load())}
}

// Handler returns the process-wide handler so a front-end can call
// AddOutput/SetOutput on it directly.
func Handler() *OutputHandler { return defaultHandler }

// described renders a "described object": nil is omitted, objects
// implementing String() are named by it, and anything else is formatted
// with %v.
func described(o any) string {
	if o == nil {
		return ""
	}
	if s, ok := o.(interface{ String() string }); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", o)
}

func logAttr(o any) []any {
	if s := described(o); s != "" {
		return []any{"object", s}
	}
	return nil
}

// Debugf logs at debug level about the described object o (nil for none).
func Debugf(o any, format string, args ...any) {
	defaultLogger.Log(context.Background(), slog.LevelDebug, fmt.Sprintf(format, args...), logAttr(o)...)
}

// Infof logs at info level.
func Infof(o any, format string, args ...any) {
	defaultLogger.Log(context.Background(), slog.LevelInfo, fmt.Sprintf(format, args...), logAttr(o)...)
}

// Noticef logs at the notice level, above info but below warning.
func Noticef(o any, format string, args ...any) {
	defaultLogger.Log(context.Background(), SlogLevelNotice, fmt.Sprintf(format, args...), logAttr(o)...)
}

// Logf is an alias for Infof, the catch-all helper name callers reach for
// when they don't care about the exact level.
func Logf(o any, format string, args ...any) {
	Infof(o, format, args...)
}

// Errorf logs at error level.
func Errorf(o any, format string, args ...any) {
	defaultLogger.Log(context.Background(), slog.LevelError, fmt.Sprintf(format, args...), logAttr(o)...)
}

// Criticalf logs at the critical level, for errors that threaten process
// stability but do not warrant an immediate crash.
func Criticalf(o any, format string, args ...any) {
	defaultLogger.Log(context.Background(), SlogLevelCritical, fmt.Sprintf(format, args...), logAttr(o)...)
}
