package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestInit_RespectsConfiguredLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	l := Init(Config{Level: "warn", Format: "json", Output: path, AppName: "test"})

	l.Debug().Msg("should be suppressed")
	l.Error().Msg("should appear")

	contents := readFile(t, path)
	if strings.Contains(contents, "should be suppressed") {
		t.Error("expected debug message to be suppressed at warn level")
	}
	if !strings.Contains(contents, "should appear") {
		t.Error("expected error message to be written at warn level")
	}
}

func TestInit_FallsBackToStdoutOnUnopenableFile(t *testing.T) {
	l := Init(Config{Level: "info", Format: "json", Output: "/nonexistent-dir/cant-write.log", AppName: "test"})
	if l == nil {
		t.Fatal("expected Init to return a logger even when the output path is unopenable")
	}
}

func TestDefault_InitializesOnce(t *testing.T) {
	defaultLogger = nil
	first := Default()
	second := Default()
	if first != second {
		t.Error("expected Default() to return the same cached instance across calls")
	}
}

func TestWithContext_AddsRequestIDField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	l := Init(Config{Level: "debug", Format: "json", Output: path, AppName: "test"})

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-123")
	l.WithContext(ctx).Info().Msg("handled request")

	contents := readFile(t, path)
	if !strings.Contains(contents, "req-123") {
		t.Errorf("expected request_id to be present in log output, got: %s", contents)
	}
}

func TestWithContext_IgnoresEmptyValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	l := Init(Config{Level: "debug", Format: "json", Output: path, AppName: "test"})

	ctx := context.WithValue(context.Background(), UserIDKey, "")
	l.WithContext(ctx).Info().Msg("no user id")

	contents := readFile(t, path)
	if strings.Contains(contents, "user_id") {
		t.Error("expected an empty context value not to be added as a field")
	}
}

func TestLogContext_ChainsFieldsOntoLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	l := Init(Config{Level: "debug", Format: "json", Output: path, AppName: "test"})

	enriched := l.With().Str("account_id", "acct-1").Int("attempt", 2).Logger()
	enriched.Info().Msg("cycle started")

	contents := readFile(t, path)
	if !strings.Contains(contents, "acct-1") || !strings.Contains(contents, `"attempt":2`) {
		t.Errorf("expected chained fields in log output, got: %s", contents)
	}
}
