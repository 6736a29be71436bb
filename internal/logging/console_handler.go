package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const consoleTimeLayout = "15:04:05.000"

// consoleHandler writes one human-readable line per record:
//
//	14:02:11.532 WARN  [scan] hash failed path=/photos/a.jpg error="permission denied"
//
// Attributes added through WithAttrs are rendered once and reused.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     *slog.LevelVar
	source    bool
	color     bool
	component string
	groups    string
	fields    []byte
}

func newConsoleHandler(w io.Writer, level *slog.LevelVar, source, color bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, source: source, color: color}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	component := h.component
	var attrs []byte
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == FieldComponent && h.groups == "" {
			component = a.Value.String()
			return true
		}
		attrs = appendAttr(attrs, h.groups, a)
		return true
	})

	line := make([]byte, 0, 96+len(h.fields)+len(attrs))
	line = ts.Local().AppendFormat(line, consoleTimeLayout)
	line = append(line, ' ')
	line = h.appendLevel(line, r.Level)
	if component != "" {
		line = append(line, '[')
		line = append(line, component...)
		line = append(line, "] "...)
	}
	line = append(line, strings.TrimSpace(r.Message)...)
	if h.source && r.PC != 0 {
		if src := r.Source(); src != nil {
			line = append(line, " ("...)
			line = append(line, filepath.Base(src.File)...)
			line = append(line, ':')
			line = strconv.AppendInt(line, int64(src.Line), 10)
			line = append(line, ')')
		}
	}
	line = append(line, h.fields...)
	line = append(line, attrs...)
	line = append(line, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(line)
	return err
}

func (h *consoleHandler) appendLevel(dst []byte, level slog.Level) []byte {
	var label, color string
	switch {
	case level >= slog.LevelError:
		label, color = "ERROR", "\x1b[31m"
	case level >= slog.LevelWarn:
		label, color = "WARN ", "\x1b[33m"
	case level >= slog.LevelInfo:
		label, color = "INFO ", "\x1b[32m"
	default:
		label, color = "DEBUG", "\x1b[90m"
	}
	if h.color {
		dst = append(dst, color...)
		dst = append(dst, label...)
		dst = append(dst, "\x1b[0m"...)
	} else {
		dst = append(dst, label...)
	}
	return append(dst, ' ')
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.fields = append([]byte(nil), h.fields...)
	for _, a := range attrs {
		if a.Key == FieldComponent && h.groups == "" {
			clone.component = a.Value.String()
			continue
		}
		clone.fields = appendAttr(clone.fields, h.groups, a)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = h.groups + name + "."
	return &clone
}

// appendAttr renders a as " key=value", flattening groups into dotted keys.
func appendAttr(dst []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, member := range a.Value.Group() {
			dst = appendAttr(dst, prefix, member)
		}
		return dst
	}
	dst = append(dst, ' ')
	dst = append(dst, prefix...)
	dst = append(dst, a.Key...)
	dst = append(dst, '=')
	return appendValue(dst, a.Value)
}

func appendValue(dst []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindInt64:
		return strconv.AppendInt(dst, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(dst, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(dst, v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		return strconv.AppendBool(dst, v.Bool())
	case slog.KindDuration:
		return append(dst, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().UTC().AppendFormat(dst, time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return appendText(dst, err.Error())
		}
		return appendText(dst, fmt.Sprint(v.Any()))
	default:
		return appendText(dst, v.String())
	}
}

// appendText quotes s when it would be ambiguous in key=value output.
func appendText(dst []byte, s string) []byte {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.AppendQuote(dst, s)
	}
	return append(dst, s...)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
