package log

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

const testHome = "/home/alice"

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	h := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewPathHandler(h, testHome+"/"))
}

func TestPathHandler_RewritesHome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
		want  string
		avoid string
	}{
		{
			name:  "path under home",
			value: "/home/alice/app/build/A.class",
			want:  "~/app/build/A.class",
			avoid: testHome,
		},
		{
			name:  "home itself",
			value: "/home/alice",
			want:  "path=~",
			avoid: testHome,
		},
		{
			name:  "error text",
			value: fmt.Errorf("open /home/alice/lib.jar: %w", errors.New("permission denied")),
			want:  "~/lib.jar",
			avoid: testHome,
		},
		{
			name:  "similar prefix is kept",
			value: "/home/alicebob/A.class",
			want:  "/home/alicebob/A.class",
		},
		{
			name:  "unrelated path",
			value: "/opt/classes/A.class",
			want:  "/opt/classes/A.class",
		},
		{
			name:  "non-string values untouched",
			value: 42,
			want:  "path=42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			newTestLogger(&buf).Warn("skipping class file", "path", tt.value)

			output := buf.String()
			if !strings.Contains(output, tt.want) {
				t.Errorf("expected %q in output: %s", tt.want, output)
			}
			if tt.avoid != "" && strings.Contains(output, tt.avoid) {
				t.Errorf("expected %q to be rewritten: %s", tt.avoid, output)
			}
		})
	}
}

func TestPathHandler_WithAttrsAndGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newTestLogger(&buf).
		With("root", "/home/alice/classes").
		WithGroup("scan")
	logger.Info("done", slog.Group("file", "path", "/home/alice/classes/A.class"))

	output := buf.String()
	if strings.Contains(output, testHome) {
		t.Errorf("expected home to be rewritten everywhere: %s", output)
	}
	if !strings.Contains(output, "root=~/classes") {
		t.Errorf("expected rewritten With attribute: %s", output)
	}
	if !strings.Contains(output, "scan.file.path=~/classes/A.class") {
		t.Errorf("expected rewritten group attribute: %s", output)
	}
}

func TestPathHandler_EmptyHome(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewPathHandler(slog.NewTextHandler(&buf, nil), ""))
	logger.Info("x", "path", "/home/alice/A.class")

	if !strings.Contains(buf.String(), "/home/alice/A.class") {
		t.Errorf("expected path unchanged: %s", buf.String())
	}
}

func TestNewPathHandler_NilHandler(t *testing.T) {
	t.Parallel()

	if h := NewPathHandler(nil, testHome); h.handler == nil {
		t.Error("expected default handler")
	}
}

func TestNewLogger_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		verbose bool
		level   slog.Level
		shown   bool
	}{
		{name: "debug hidden by default", verbose: false, level: slog.LevelDebug, shown: false},
		{name: "info hidden by default", verbose: false, level: slog.LevelInfo, shown: false},
		{name: "warn shown by default", verbose: false, level: slog.LevelWarn, shown: true},
		{name: "debug shown when verbose", verbose: true, level: slog.LevelDebug, shown: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewLogger(&buf, tt.verbose)
			logger.Log(t.Context(), tt.level, "marker message")

			if got := strings.Contains(buf.String(), "marker message"); got != tt.shown {
				t.Errorf("expected shown=%v, got output %q", tt.shown, buf.String())
			}
		})
	}
}

func TestNewJSONLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewJSONLogger(&buf, false).Warn("skipping", "kind", "malformed")

	output := buf.String()
	if !strings.HasPrefix(output, "{") || !strings.Contains(output, `"kind":"malformed"`) {
		t.Errorf("expected JSON output, got %s", output)
	}
}
