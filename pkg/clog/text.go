package clog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"
)

type TextHandlerConfig struct {
	Color bool
	Level *slog.Level
	// Columns are printed first, in order, before the message.
	Columns []string
}

type TextHandlerOption func(*TextHandlerConfig)

func WithColor(c bool) TextHandlerOption {
	return func(cfg *TextHandlerConfig) {
		cfg.Color = c
	}
}

func WithLevel(level slog.Level) TextHandlerOption {
	return func(cfg *TextHandlerConfig) {
		cfg.Level = &level
	}
}

func WithColumns(keys ...string) TextHandlerOption {
	return func(cfg *TextHandlerConfig) {
		cfg.Columns = keys
	}
}

// TextHandler is a human oriented handler for local development: one colored
// summary line followed by the remaining attributes, one per line.
type TextHandler struct {
	cfg   TextHandlerConfig
	attrs []slog.Attr
	mu    *sync.Mutex
	w     io.Writer
}

func NewTextHandler(w io.Writer, opts ...TextHandlerOption) *TextHandler {
	cfg := TextHandlerConfig{
		Color:   true,
		Columns: []string{"proto", "method", "path", "status"},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &TextHandler{cfg: cfg, mu: &sync.Mutex{}, w: w}
}

func (h *TextHandler) Enabled(_ context.Context, l slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.cfg.Level != nil {
		minLevel = *h.cfg.Level
	}
	return l >= minLevel
}

func (h *TextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &nh
}

// WithGroup is accepted but flattened; the text layout has no nesting.
func (h *TextHandler) WithGroup(string) slog.Handler {
	return h
}

func levelColor(l slog.Level) *color.Color {
	switch {
	case l >= slog.LevelError:
		return color.New(color.FgRed)
	case l >= slog.LevelWarn:
		return color.New(color.FgYellow)
	case l >= slog.LevelInfo:
		return color.New(color.FgBlue)
	default:
		return color.New(color.FgCyan)
	}
}

func (h *TextHandler) Handle(_ context.Context, record slog.Record) error {
	buf := bytes.NewBuffer(make([]byte, 0, 1024))
	paint := func(c *color.Color, format string, args ...any) {
		if h.cfg.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		_, _ = c.Fprintf(buf, format, args...)
	}

	paint(color.New(), "%s ", record.Time.Format(time.RFC3339))
	paint(levelColor(record.Level), "%s ", record.Level)

	kv := map[string]slog.Value{}
	for _, attr := range h.attrs {
		kv[attr.Key] = attr.Value
	}
	record.Attrs(func(attr slog.Attr) bool {
		kv[attr.Key] = attr.Value
		return true
	})
	for _, key := range h.cfg.Columns {
		if v, ok := kv[key]; ok {
			paint(color.New(), "%s ", v)
			delete(kv, key)
		}
	}

	paint(color.New(color.FgGreen), "%s", record.Message)
	if e, ok := kv[ErrorAttributeKey]; ok {
		delete(kv, ErrorAttributeKey)
		paint(color.New(color.FgRed), " %q", e.String())
	}
	buf.WriteByte('\n')

	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "    %s=%s\n", k, kv[k])
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}
