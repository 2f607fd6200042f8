package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
)

// logLevel is a pflag.Value wrapping slog.Level so --log-level gets
// validated parsing and shows its accepted values in --help.
type logLevel slog.Level

var _ pflag.Value = (*logLevel)(nil)

func (l *logLevel) String() string {
	switch slog.Level(*l) {
	case slog.LevelDebug:
		return "debug"
	case slog.LevelInfo:
		return "info"
	case slog.LevelWarn:
		return "warn"
	case slog.LevelError:
		return "error"
	default:
		return slog.Level(*l).String()
	}
}

func (l *logLevel) Set(s string) error {
	switch strings.ToLower(s) {
	case "debug":
		*l = logLevel(slog.LevelDebug)
	case "info":
		*l = logLevel(slog.LevelInfo)
	case "warn", "warning":
		*l = logLevel(slog.LevelWarn)
	case "error":
		*l = logLevel(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level %q, want one of debug, info, warn, error", s)
	}
	return nil
}

func (l *logLevel) Type() string { return "logLevel" }
