package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestFassHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "op-123",
			level:   slog.LevelInfo,
			message: "file backed up",
			want:    "2024-06-15T14:30:45Z\tINFO\top-123\tfile backed up\n",
		},
		{
			name:    "debug level",
			opID:    "op-456",
			level:   slog.LevelDebug,
			message: "unchanged",
			want:    "2024-06-15T14:30:45Z\tDEBUG\top-456\tunchanged\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelWarn,
			message: "copy failed",
			attrs:   []slog.Attr{slog.String("path", "/docs/file.txt"), slog.Int("attempt", 2)},
			want:    "2024-06-15T14:30:45Z\tWARN\top-789\tcopy failed\tpath=/docs/file.txt\tattempt=2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := newFassHandler(&buf, tt.opID, slog.LevelDebug)

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestFassHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := newFassHandler(&buf, "op-1", slog.LevelDebug)

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "scheduler")}).(*fassHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "sweep", 0)
	r.AddAttrs(slog.String("key", "abc"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=scheduler") {
		t.Errorf("expected pre-set attr component=scheduler, got: %q", got)
	}
	if !strings.Contains(got, "key=abc") {
		t.Errorf("expected record attr key=abc, got: %q", got)
	}
	if len(h.attrs) != 0 {
		t.Errorf("original handler attrs modified: got %d, want 0", len(h.attrs))
	}
}

func TestFassHandler_Enabled(t *testing.T) {
	h := newFassHandler(&bytes.Buffer{}, "", slog.LevelWarn)
	tests := map[slog.Level]bool{
		slog.LevelDebug: false,
		slog.LevelInfo:  false,
		slog.LevelWarn:  true,
		slog.LevelError: true,
	}
	for level, want := range tests {
		if got := h.Enabled(context.Background(), level); got != want {
			t.Errorf("Enabled(%v) = %v, want %v", level, got, want)
		}
	}
}

func TestNewDaemonLogger(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := newDaemonLogger(&stdout, &stderr, "op-d")

	logger.Info("daemon started", "pid", 42)
	logger.Warn("original file missing", "path", "/src/a.txt")

	out := stdout.String()
	if !strings.Contains(out, "daemon started\tpid=42") || !strings.Contains(out, "original file missing") {
		t.Errorf("stdout missing records: %q", out)
	}
	errOut := stderr.String()
	if strings.Contains(errOut, "daemon started") {
		t.Errorf("info record leaked to stderr: %q", errOut)
	}
	if !strings.Contains(errOut, "\tWARN\top-d\toriginal file missing\tpath=/src/a.txt") {
		t.Errorf("stderr missing warning: %q", errOut)
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	logger, f, err := newLogger(dir, "test-op")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Info("hello")

	data, err := os.ReadFile(filepath.Join(dir, "fass.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "\ttest-op\thello") {
		t.Errorf("log file = %q", data)
	}
}

func TestNewOpID(t *testing.T) {
	a, b := newOpID(), newOpID()
	if a == b {
		t.Error("newOpID() returned the same id twice")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("newOpID() = %q is not a UUID: %v", a, err)
	}
}
