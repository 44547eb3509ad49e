package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(String("run_id", "r1")).Info(context.Background(), "engagement",
		Int("hostile_id", 4),
		Float64("distance", 2.5),
		Duration("elapsed", 1500*time.Millisecond),
		Err(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec["msg"] != "engagement" || rec["run_id"] != "r1" || rec["error"] != "boom" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["hostile_id"].(float64) != 4 || rec["distance"].(float64) != 2.5 {
		t.Fatalf("numeric fields wrong: %v", rec)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "quiet")
	log.Warn(context.Background(), "loud")

	out := buf.String()
	if strings.Contains(out, "quiet") || !strings.Contains(out, "loud") {
		t.Fatalf("level filtering failed: %q", out)
	}
}

func TestRequestAndRunIDs(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	if id == "" || RequestIDFromContext(ctx) != id {
		t.Fatalf("request id not stored: %q", id)
	}
	if _, again := EnsureRequestID(ctx); again != id {
		t.Fatalf("EnsureRequestID replaced existing id %q with %q", id, again)
	}

	ctx = ContextWithRunID(ctx, "run-7")
	if RunIDFromContext(ctx) != "run-7" {
		t.Fatalf("run id not stored")
	}
	if NewID() == NewID() {
		t.Fatalf("NewID returned duplicate ids")
	}
}

func TestRunIDFromContextStampsRecords(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: "json", Output: &buf})

	log.Info(ContextWithRunID(context.Background(), "run-9"), "tick")
	log.Info(context.Background(), "untagged")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2: %q", len(lines), buf.String())
	}
	var tagged, plain map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &tagged); err != nil {
		t.Fatalf("decode %q: %v", lines[0], err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &plain); err != nil {
		t.Fatalf("decode %q: %v", lines[1], err)
	}
	if tagged["run_id"] != "run-9" {
		t.Fatalf("run_id = %v, want run-9", tagged["run_id"])
	}
	if _, ok := plain["run_id"]; ok {
		t.Fatalf("record without a run carried run_id: %v", plain)
	}
}

func TestLoggerFromContextFallback(t *testing.T) {
	fallback := Noop()
	if got := LoggerFromContext(context.Background(), fallback); got != fallback {
		t.Fatalf("expected fallback logger")
	}
	stored := New(Config{Output: &bytes.Buffer{}})
	ctx := ContextWithLogger(context.Background(), stored)
	if got := LoggerFromContext(ctx, fallback); got != stored {
		t.Fatalf("expected stored logger")
	}
}
