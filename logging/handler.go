package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// logFormat is a bitmask of the header fields an OutputHandler renders.
type logFormat int

const (
	logFormatDate logFormat = 1 << iota
	logFormatTime
	logFormatMicroseconds
	logFormatUTC
	logFormatLongFile
	logFormatShortFile
	logFormatPid
	logFormatJSON
)

// outputFunc receives a fully rendered log line for an additional sink,
// alongside the level that produced it.
type outputFunc func(level slog.Level, text string)

// OutputHandler is a slog.Handler that renders to a primary io.Writer (or an
// override sink installed with SetOutput) and fans out to any number of
// extra sinks registered with AddOutput, each rendered in its own
// text-or-JSON format independent of the primary sink's format.
type OutputHandler struct {
	mu     sync.Mutex
	out    io.Writer
	opts   *slog.HandlerOptions
	format logFormat

	override outputFunc
	extra    []extraOutput
}

type extraOutput struct {
	json bool
	fn   outputFunc
}

// NewOutputHandler builds a handler writing to w in the given format. opts
// may be nil, in which case the default level threshold is slog.LevelInfo.
func NewOutputHandler(w io.Writer, opts *slog.HandlerOptions, format logFormat) *OutputHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{Level: slog.LevelInfo}
	}
	return &OutputHandler{out: w, opts: opts, format: format}
}

func (h *OutputHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts != nil && h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

func (h *OutputHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *OutputHandler) WithGroup(name string) slog.Handler {
	return h
}

// SetOutput redirects every rendered line to fn instead of the handler's
// io.Writer, and suppresses the configured extra sinks while active.
func (h *OutputHandler) SetOutput(fn func(level slog.Level, text string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.override = fn
}

// ResetOutput restores writing to the handler's original io.Writer.
func (h *OutputHandler) ResetOutput() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.override = nil
}

// AddOutput registers an additional sink that receives every log line
// rendered in its own format (JSON when asJSON is true, text otherwise),
// independent of the primary sink's format.
func (h *OutputHandler) AddOutput(asJSON bool, fn func(level slog.Level, text string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.extra = append(h.extra, extraOutput{json: asJSON, fn: fn})
}

func (h *OutputHandler) clearFormatFlags(f logFormat) { h.format &^= f }
func (h *OutputHandler) setFormatFlags(f logFormat)   { h.format |= f }

func (h *OutputHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	override := h.override
	extras := append([]extraOutput(nil), h.extra...)
	format := h.format
	out := h.out
	h.mu.Unlock()

	render := func(asJSON bool) (string, error) {
		buf := &bytes.Buffer{}
		var err error
		if asJSON {
			err = h.jsonLog(ctx, buf, r)
		} else {
			err = h.textLog(ctx, buf, r)
		}
		return buf.String(), err
	}

	if override != nil {
		text, err := render(format&logFormatJSON != 0)
		if err != nil {
			return err
		}
		override(r.Level, text)
		return nil
	}

	text, err := render(format&logFormatJSON != 0)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(out, text); err != nil {
		return err
	}

	for _, e := range extras {
		t, err := render(e.json)
		if err != nil {
			return err
		}
		e.fn(r.Level, t)
	}
	return nil
}

// formatStdLogHeader renders the date/time/pid/file-location portion of a
// line. When no flag is set there is nothing else to anchor the line to, so
// it falls back to a fixed-width level label (and the object, if any) —
// textLog adds its own level/object segment only when this fallback did not
// already supply one.
func (h *OutputHandler) formatStdLogHeader(buf *bytes.Buffer, level slog.Level, t time.Time, object string, lineInfo string) {
	if h.format&(logFormatShortFile|logFormatLongFile) != 0 && lineInfo != "" {
		buf.WriteString(lineInfo)
		buf.WriteString(": ")
		return
	}
	if h.format == 0 {
		fmt.Fprintf(buf, "%-6s: ", slogLevelToString(level))
		if object != "" {
			buf.WriteString(object)
			buf.WriteString(": ")
		}
		return
	}
	if h.format&logFormatPid != 0 {
		fmt.Fprintf(buf, "[%d] ", os.Getpid())
	}
	if h.format&(logFormatDate|logFormatTime|logFormatMicroseconds) != 0 {
		tt := t
		if h.format&logFormatUTC != 0 {
			tt = tt.UTC()
		}
		if h.format&logFormatDate != 0 {
			buf.WriteString(tt.Format("2006/01/02 "))
		}
		if h.format&(logFormatTime|logFormatMicroseconds) != 0 {
			if h.format&logFormatMicroseconds != 0 {
				buf.WriteString(tt.Format("15:04:05.000000 "))
			} else {
				buf.WriteString(tt.Format("15:04:05 "))
			}
		}
	}
}

func recordObject(r slog.Record) string {
	var object string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "object" {
			object = a.Value.String()
		}
		return true
	})
	return object
}

func (h *OutputHandler) lineInfo() string {
	if h.format&(logFormatShortFile|logFormatLongFile) == 0 {
		return ""
	}
	info := getCaller(4)
	if h.format&logFormatShortFile != 0 {
		if idx := lastSep(info); idx >= 0 {
			info = info[idx+1:]
		}
	}
	return info
}

func lastSep(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

func (h *OutputHandler) textLog(_ context.Context, w io.Writer, r slog.Record) error {
	object := recordObject(r)
	buf := &bytes.Buffer{}
	h.formatStdLogHeader(buf, r.Level, r.Time, object, h.lineInfo())
	if h.format != 0 {
		fmt.Fprintf(buf, "%-6s: ", slogLevelToString(r.Level))
		if object != "" {
			buf.WriteString(object)
			buf.WriteString(": ")
		}
	}
	buf.WriteString(r.Message)
	buf.WriteString("\n")
	_, err := w.Write(buf.Bytes())
	return err
}

func (h *OutputHandler) jsonLog(_ context.Context, w io.Writer, r slog.Record) error {
	source := getCaller(4)
	timeB, err := json.Marshal(r.Time.Format("2006-01-02T15:04:05.000000Z07:00"))
	if err != nil {
		return err
	}
	levelB, err := json.Marshal(levelToLowerString(r.Level))
	if err != nil {
		return err
	}
	msgB, err := json.Marshal(r.Message)
	if err != nil {
		return err
	}
	sourceB, err := json.Marshal(source)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "{\"time\":%s,\"level\":%s,\"msg\":%s,\"source\":%s}\n", timeB, levelB, msgB, sourceB)
	return err
}

// getCaller walks up skip frames and returns "file:line", skipping any
// frame inside this package so the reported location is the caller's.
func getCaller(skip int) string {
	for i := skip; i < skip+10; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			return ""
		}
		if filepath.Base(filepath.Dir(file)) == "logging" {
			continue
		}
		return file + ":" + strconv.Itoa(line)
	}
	return ""
}
