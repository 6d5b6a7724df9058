package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// HomeMarker replaces the home directory prefix in logged values.
const HomeMarker = "~"

// PathHandler wraps an slog.Handler and rewrites the user's home directory
// to "~" in string and error attribute values before passing records on.
type PathHandler struct {
	handler slog.Handler
	home    string
}

// NewPathHandler creates a PathHandler wrapping handler. An empty home
// disables rewriting. If handler is nil, slog.Default().Handler() is used.
func NewPathHandler(handler slog.Handler, home string) *PathHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	home = strings.TrimRight(home, string(filepath.Separator))
	return &PathHandler{handler: handler, home: home}
}

// Enabled reports whether the underlying handler handles records at level.
func (h *PathHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle rewrites the record's attributes and passes it on.
func (h *PathHandler) Handle(ctx context.Context, r slog.Record) error {
	rewritten := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		rewritten.AddAttrs(h.rewriteAttr(a))
		return true
	})
	return h.handler.Handle(ctx, rewritten)
}

// WithAttrs returns a new handler with the given attributes rewritten and added.
func (h *PathHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	rewritten := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		rewritten[i] = h.rewriteAttr(a)
	}
	return &PathHandler{handler: h.handler.WithAttrs(rewritten), home: h.home}
}

// WithGroup returns a new handler with the given group name.
func (h *PathHandler) WithGroup(name string) slog.Handler {
	return &PathHandler{handler: h.handler.WithGroup(name), home: h.home}
}

func (h *PathHandler) rewriteAttr(a slog.Attr) slog.Attr {
	if h.home == "" {
		return a
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		attrs := v.Group()
		rewritten := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			rewritten[i] = h.rewriteAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(rewritten...)}
	case slog.KindString:
		return slog.String(a.Key, h.shorten(v.String()))
	case slog.KindAny:
		// File system errors carry the full path in their text.
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, h.shorten(err.Error()))
		}
	}
	return a
}

// shorten replaces every occurrence of the home directory that is followed
// by a separator or the end of a path.
func (h *PathHandler) shorten(s string) string {
	if !strings.Contains(s, h.home) {
		return s
	}

	var sb strings.Builder
	for {
		i := strings.Index(s, h.home)
		if i < 0 {
			sb.WriteString(s)
			return sb.String()
		}
		end := i + len(h.home)
		sb.WriteString(s[:i])
		if end == len(s) || isBoundary(s[end]) {
			sb.WriteString(HomeMarker)
		} else {
			sb.WriteString(h.home)
		}
		s = s[end:]
	}
}

func isBoundary(c byte) bool {
	switch c {
	case '/', '\\', ' ', ':', '"', '\'', ')', ',':
		return true
	}
	return false
}

// NewLogger creates a text logger writing to w.
// verbose selects slog.LevelDebug; otherwise only warnings and errors are
// written.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewPathHandler(slog.NewTextHandler(w, handlerOptions(verbose)), userHome()))
}

// NewJSONLogger creates a logger writing JSON lines to w.
func NewJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewPathHandler(slog.NewJSONHandler(w, handlerOptions(verbose)), userHome()))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}

func userHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

