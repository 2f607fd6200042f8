// Package logging is layerfs's process-wide structured logger, built on
// log/slog: a custom slog.Handler adds the extra severity levels and format
// flags a long-running daemon needs (syslog-style
// NOTICE/CRITICAL/ALERT/EMERGENCY) that slog's four built-in levels don't
// cover.
package logging

import "log/slog"

// Extra severities above slog's built-in Debug/Info/Warn/Error, spaced to
// leave room between the standard levels for future insertions.
const (
	SlogLevelNotice    = slog.LevelInfo + 2
	SlogLevelCritical  = slog.LevelError + 2
	SlogLevelAlert     = slog.LevelError + 4
	SlogLevelEmergency = slog.LevelError + 6
)

// slogLevelToString renders a level the way syslog-flavored log lines do:
// upper-case names for the mapped levels, slog's default %v rendering for
// anything else.
func slogLevelToString(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelInfo:
		return "INFO"
	case SlogLevelNotice:
		return "NOTICE"
	case slog.LevelWarn:
		return "WARNING"
	case slog.LevelError:
		return "ERROR"
	case SlogLevelCritical:
		return "CRITICAL"
	case SlogLevelAlert:
		return "ALERT"
	case SlogLevelEmergency:
		return "EMERGENCY"
	default:
		return level.String()
	}
}

// mapLogLevelNames is a slog.HandlerOptions.ReplaceAttr hook that lowercases
// the rendered level name for JSON output (slog's default is upper-case;
// the JSON sink here matches syslog's lower-case convention instead).
func mapLogLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok {
		a.Value = slog.StringValue(levelToLowerString(lvl))
	}
	return a
}

func levelToLowerString(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "debug"
	case slog.LevelInfo:
		return "info"
	case SlogLevelNotice:
		return "notice"
	case slog.LevelWarn:
		return "warning"
	case slog.LevelError:
		return "error"
	case SlogLevelCritical:
		return "critical"
	case SlogLevelAlert:
		return "alert"
	case SlogLevelEmergency:
		return "emergency"
	default:
		return level.String()
	}
}
