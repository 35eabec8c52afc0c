package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestLogger_BasicLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "text", Output: &buf})

	log.Debug("dbg", String("k", "v"))
	log.Info("info", Int("n", 42))
	log.Warn("warn", Bool("ok", true))
	log.Error("err", Error(nil))

	out := buf.String()
	for _, s := range []string{"DEBUG dbg k=v", "INFO info n=42", "WARN warn ok=true", "ERROR err error=nil"} {
		if !strings.Contains(out, s) {
			t.Fatalf("expected output to contain %q, got: %s", s, out)
		}
	}
}

func TestLogger_WithComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "info", Output: &buf})
	comp := base.WithComponent("reflectorclient")

	comp.Info("connected", String("hostport", "m17-relay.example:17000"))

	out := buf.String()
	if !strings.Contains(out, "[reflectorclient]") {
		t.Fatalf("expected component tag in output, got: %s", out)
	}
	if !strings.Contains(out, "INFO connected") || !strings.Contains(out, "hostport=m17-relay.example:17000") {
		t.Fatalf("expected message and field in output, got: %s", out)
	}
}

func TestLogger_BelowConfiguredLevelIsSuppressed(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Debug("should not appear")
	log.Info("should not appear either")
	log.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("expected debug/info to be suppressed at warn level, got: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("expected warn message to be emitted, got: %s", out)
	}
}

func TestLogger_JSONFormat_EmitsParsableLines(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf}).WithComponent("tnc")

	log.Info("stream opened", String("source", "N0CALL"), Int("can", 3))

	line := strings.TrimSpace(buf.String())
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("expected valid JSON line, got %q: %v", line, err)
	}
	if entry["msg"] != "stream opened" {
		t.Fatalf("msg = %v, want %q", entry["msg"], "stream opened")
	}
	if entry["component"] != "tnc" {
		t.Fatalf("component = %v, want %q", entry["component"], "tnc")
	}
	if entry["source"] != "N0CALL" {
		t.Fatalf("source = %v, want %q", entry["source"], "N0CALL")
	}
	if entry["level"] != "INFO" {
		t.Fatalf("level = %v, want %q", entry["level"], "INFO")
	}
}

func TestDuration_ReportsMilliseconds(t *testing.T) {
	f := Duration("tx_delay", 30*time.Millisecond)
	if f.Value != int64(30) {
		t.Fatalf("Duration value = %v, want 30", f.Value)
	}
}
