package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestInitRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	l := Init(&buf, slog.LevelInfo)
	l.Info("hello", "site", "abc")
	l.Debug("hidden")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	for _, k := range []string{"timestamp", "level", "message", "site"} {
		if _, ok := line[k]; !ok {
			t.Errorf("missing key %q in %v", k, line)
		}
	}
	if line["message"] != "hello" {
		t.Errorf("message = %v", line["message"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
