package verifier

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestTextFormatter(t *testing.T) {
	f := newTextFormatter(DefaultLogTimeFormat)
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	got := string(f.format(ts, LevelWarn, "merge", map[string]any{
		"method":  "demo/Main.pick(I)I",
		"session": 3,
		"block":   "join",
		"stack":   "[int, float]",
		"depth":   2,
	}))
	want := `[WARN] 2024-01-02T03:04:05Z demo/Main.pick(I)I#3 join: merge depth=2 stack="[int, float]"` + "\n"
	if got != want {
		t.Errorf("format() = %q, want %q", got, want)
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LevelInfo, &buf, "").With(map[string]any{"session": "m1"})
	log.Debugf("hidden %d", 1)
	log.Infof("shown %d", 2)
	log.With(map[string]any{"block": "L1"}).Errorf("failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if lines[0] != "[INFO] #m1: shown 2" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "[ERROR] #m1 L1: failed" {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelWarn,
	} {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
	if _, ok := LookupLogLevel("loud"); ok {
		t.Error("LookupLogLevel(loud) should fail")
	}
}

func TestFormatterWithoutLocation(t *testing.T) {
	f := newTextFormatter("")
	got := string(f.format(time.Time{}, LevelDebug, "idle", map[string]any{"queue": 0}))
	if got != "[DEBUG] idle queue=0\n" {
		t.Errorf("format() = %q", got)
	}
}
