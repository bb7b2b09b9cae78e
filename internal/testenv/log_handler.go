// Package testenv holds helpers shared by the tests of this module.
package testenv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LogHandler is a slog.Handler that prints message index (starting from 0)
// level, and message content, without the timestamp.
// This allows test log output to be deterministic.
type LogHandler struct {
	out    *output
	attrs  []slog.Attr
	groups []string // current group path

	ignoreDebug bool
}

// output is shared by a handler and the handlers derived from it.
type output struct {
	mu    sync.Mutex
	w     io.Writer
	index int
}

// LogHandlerOption is a function that configures a LogHandler
type LogHandlerOption func(*LogHandler)

// WithWriter sends output to w instead of stdout.
func WithWriter(w io.Writer) LogHandlerOption {
	return func(h *LogHandler) {
		h.out.w = w
	}
}

// WithIgnoreDebug configures the handler to ignore DEBUG level messages
func WithIgnoreDebug() LogHandlerOption {
	return func(h *LogHandler) {
		h.ignoreDebug = true
	}
}

func NewLogHandler(opts ...LogHandlerOption) *LogHandler {
	h := &LogHandler{out: &output{w: os.Stdout}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

//nolint:gocritic
func (h *LogHandler) Handle(_ context.Context, r slog.Record) error {
	if r.Level == slog.LevelDebug && h.ignoreDebug {
		return nil
	}

	h.out.mu.Lock()
	defer h.out.mu.Unlock()

	attrs := h.attrsToString(&r)
	if attrs != "" {
		fmt.Fprintf(h.out.w, "[%d] %s: %s %s\n", h.out.index, r.Level, r.Message, attrs)
	} else {
		fmt.Fprintf(h.out.w, "[%d] %s: %s\n", h.out.index, r.Level, r.Message)
	}
	h.out.index++
	return nil
}

func (h *LogHandler) attrsToString(r *slog.Record) string {
	var sb strings.Builder

	for i, attr := range h.attrs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(formatAttr(attr, ""))
	}

	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	r.Attrs(func(a slog.Attr) bool {
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(formatAttr(a, prefix))
		return true
	})
	return sb.String()
}

func formatAttr(a slog.Attr, prefix string) string {
	if a.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix + a.Key + "."
		parts := make([]string, 0, len(a.Value.Group()))
		for _, ga := range a.Value.Group() {
			parts = append(parts, formatAttr(ga, groupPrefix))
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprintf("%s%s=%v", prefix, a.Key, a.Value)
}

func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level != slog.LevelDebug || !h.ignoreDebug
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}

	newAttrs := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		attr.Key = prefix + attr.Key
		newAttrs = append(newAttrs, attr)
	}

	c := *h
	c.attrs = append(h.attrs[:len(h.attrs):len(h.attrs)], newAttrs...)
	return &c
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	// If the name is empty, return the receiver as per slog documentation
	if name == "" {
		return h
	}
	c := *h
	c.groups = append(h.groups[:len(h.groups):len(h.groups)], name)
	return &c
}

// LogBuffer collects the output of a LogHandler for assertions.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
