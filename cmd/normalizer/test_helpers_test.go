package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"normalizer/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	toolDir    string
	configPath string
	inputDir   string
}

// setupCLITestEnv writes stub tools and a config file pointing at them.
func setupCLITestEnv(t *testing.T, opts testsupport.FakeFFmpegOptions) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	for _, env := range []string{"NORMALIZER_FFMPEG", "NORMALIZER_QAAC", "NORMALIZER_LAME"} {
		t.Setenv(env, "")
	}

	toolDir := filepath.Join(base, "bin")
	ffmpeg := testsupport.FakeFFmpeg(t, toolDir, opts)
	qaac := testsupport.FakeEncoder(t, toolDir, "qaac")
	lame := testsupport.FakeEncoder(t, toolDir, "lame")

	configPath := filepath.Join(base, "normalizer.toml")
	content := fmt.Sprintf(`[tools]
ffmpeg = %q
qaac = %q
lame = %q

[process]
grace_period_seconds = 1
poll_interval_ms = 10

[logging]
level = "warn"
`, ffmpeg, qaac, lame)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	inputDir := filepath.Join(base, "album")
	testsupport.WriteFile(t, filepath.Join(inputDir, "one.flac"), 2048, 'a')
	testsupport.WriteFile(t, filepath.Join(inputDir, "two.flac"), 4096, 'k')

	return &cliTestEnv{
		baseDir:    base,
		toolDir:    toolDir,
		configPath: configPath,
		inputDir:   inputDir,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// ffmpegCalls counts recorded ffmpeg invocations whose arguments contain substr.
func ffmpegCalls(t *testing.T, env *cliTestEnv, substr string) int {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(env.toolDir, "ffmpeg.calls"))
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("read ffmpeg calls: %v", err)
	}
	count := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.Contains(line, substr) {
			count++
		}
	}
	return count
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected %s: %v", path, err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected %s to be non-empty", path)
	}
}
