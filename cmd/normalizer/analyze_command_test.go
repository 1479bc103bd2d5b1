package main

import (
	"path/filepath"
	"strings"
	"testing"

	"normalizer/internal/testsupport"
)

func TestAnalyzeReportsMeasurementsThenCache(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FakeFFmpegOptions{IntegratedLUFS: "-23.04"})

	out, _, err := runCLI(t, []string{"analyze", env.inputDir, "--volume", "-19"}, env.configPath)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	requireContains(t, out, "-23.0")
	requireContains(t, out, "-1.0")
	requireContains(t, out, "+4.0")
	requireContains(t, out, "Analysis")
	requireContains(t, out, "Target: -19.0 LUFS")

	out, _, err = runCLI(t, []string{"analyze", env.inputDir, "--volume", "-19"}, env.configPath)
	if err != nil {
		t.Fatalf("second analyze: %v", err)
	}
	if strings.Contains(out, "Analysis") {
		t.Fatalf("expected cached gains on second run, got %q", out)
	}
	requireContains(t, out, "Cache")
	if got := ffmpegCalls(t, env, "ebur128"); got != 2 {
		t.Fatalf("expected two analyses in total, got %d", got)
	}
}

func TestAnalyzeNoDBAlwaysMeasures(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FakeFFmpegOptions{})
	input := filepath.Join(env.inputDir, "one.flac")

	for range 2 {
		if _, _, err := runCLI(t, []string{"analyze", input, "--no-db"}, env.configPath); err != nil {
			t.Fatalf("analyze: %v", err)
		}
	}
	if got := ffmpegCalls(t, env, "ebur128"); got != 2 {
		t.Fatalf("expected every run to analyze, got %d", got)
	}
}
