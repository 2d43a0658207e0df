package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewWithWriterLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", "text")

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn record should be written")
	}
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "json")
	log.Info("hello", "cpu_ghz", 1.7)

	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestTee(t *testing.T) {
	var console, raw bytes.Buffer
	base := NewWithWriter(&console, "info", "json")
	log := Tee(base, &raw, "debug").With("app", "hplai")

	log.Debug("only raw")
	log.Info("both")

	if strings.Contains(console.String(), "only raw") {
		t.Error("debug record should not reach the info console")
	}
	if !strings.Contains(raw.String(), "only raw") || !strings.Contains(raw.String(), "both") {
		t.Errorf("raw log missing records: %q", raw.String())
	}
	if !strings.Contains(raw.String(), "app=hplai") {
		t.Errorf("raw log missing attrs: %q", raw.String())
	}
}

func TestParseLevelDefault(t *testing.T) {
	if parseLevel("verbose").String() != "INFO" {
		t.Error("unknown level should fall back to info")
	}
}
