package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"normalizer/internal/config"
	"normalizer/internal/logging"
	"normalizer/internal/services"
)

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "analyze")
	logger.Info("measured loudness", logging.String("file", "a b.flac"), logging.Float64("lufs", -18.2))
	logger.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "INFO  analyze: measured loudness") {
		t.Fatalf("expected level, component and message, got %q", out)
	}
	if !strings.Contains(out, `file="a b.flac"`) || !strings.Contains(out, "lufs=-18.2") {
		t.Fatalf("expected formatted fields, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked at info level: %q", out)
	}
	if strings.Contains(out, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", out)
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("slow", logging.Error(errors.New("boom")))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json: %v (%q)", err, buf.String())
	}
	if record["level"] != "warn" || record["msg"] != "slow" || record["error"] != "boom" {
		t.Fatalf("unexpected record: %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigMirrorsToLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Dir = t.TempDir()
	var console bytes.Buffer

	logger, err := logging.NewFromConfig(&cfg, &console, false, true)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Debug("debug enabled by flag")

	data, err := os.ReadFile(filepath.Join(cfg.Logging.Dir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "debug enabled by flag") {
		t.Fatalf("expected record in log file, got %q", data)
	}
	if !strings.Contains(console.String(), "debug enabled by flag") {
		t.Fatalf("expected record on console, got %q", console.String())
	}
}

func TestWithContextAddsBatchFields(t *testing.T) {
	var buf bytes.Buffer
	base, err := logging.New(logging.Options{Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithBatchID(context.Background(), "b-1")
	ctx = services.WithJob(ctx, 2)
	ctx = services.WithStage(ctx, "transform")

	logging.WithContext(ctx, base).Info("hello")
	out := buf.String()
	for _, want := range []string{"batch_id=b-1", "job=2", "stage=transform"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestWarnWithContextFillsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "cleanup failed", "cleanup_failed", logging.String(logging.FieldImpact, "partial file left behind"))
	out := buf.String()
	if !strings.Contains(out, "event_type=cleanup_failed") || !strings.Contains(out, "error_hint=") {
		t.Fatalf("expected injected fields, got %q", out)
	}
	if !strings.Contains(out, `impact="partial file left behind"`) {
		t.Fatalf("expected caller impact to win, got %q", out)
	}
}

func TestNopLoggerIsSilent(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 12) {
		t.Fatal("nop logger should not be enabled")
	}
}

func TestArgsKeepsAttrOrder(t *testing.T) {
	out := logging.Args(logging.String("a", "1"), logging.Int("b", 2))
	if len(out) != 2 {
		t.Fatalf("expected 2 args, got %d", len(out))
	}
	first, ok := out[0].(slog.Attr)
	if !ok || first.Key != "a" {
		t.Fatalf("unexpected first arg %#v", out[0])
	}
	if len(logging.Args()) != 0 {
		t.Fatal("expected no args for no attrs")
	}
}
