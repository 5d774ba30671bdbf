package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jkaninda/hundreds/internal/config"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "info"}, &buf)
	logger.Debug("hidden")
	logger.Info("dataset loaded", "players", 20)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "dataset loaded" || entry["players"] != float64(20) {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewWithWriter_TextDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)
	logger.Debug("turn handled", "kind", "stat")
	if !strings.Contains(buf.String(), "level=DEBUG") || !strings.Contains(buf.String(), "kind=stat") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
