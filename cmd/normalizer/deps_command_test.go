package main

import (
	"errors"
	"path/filepath"
	"testing"

	"normalizer/internal/services"
	"normalizer/internal/testsupport"
)

func TestDepsReportsAvailableTools(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FakeFFmpegOptions{})

	out, _, err := runCLI(t, []string{"deps", "--itunes", "--mp3"}, env.configPath)
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	requireContains(t, out, "FFmpeg libraries")
	requireContains(t, out, "pass")
	requireContains(t, out, "All required tools are available")
}

func TestDepsFailsOnMissingRequiredTool(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FakeFFmpegOptions{})
	t.Setenv("NORMALIZER_QAAC", filepath.Join(env.baseDir, "missing", "qaac"))

	out, _, err := runCLI(t, []string{"deps", "--aac", "--no-probe"}, env.configPath)
	if !errors.Is(err, services.ErrBinaryNotFound) {
		t.Fatalf("expected binary not found, got %v", err)
	}
	requireContains(t, out, "Required")

	if _, _, err := runCLI(t, []string{"deps", "--mp3", "--no-probe"}, env.configPath); err != nil {
		t.Fatalf("qaac is optional for mp3 output: %v", err)
	}
}
