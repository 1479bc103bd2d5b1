package main

import (
	"path/filepath"
	"strings"
	"testing"

	"normalizer/internal/testsupport"
)

func TestCacheCommands(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FakeFFmpegOptions{})
	one := filepath.Join(env.inputDir, "one.flac")
	two := filepath.Join(env.inputDir, "two.flac")

	if _, _, err := runCLI(t, []string{"cache", "list", env.inputDir}, env.configPath); err == nil {
		t.Fatal("expected list to fail before a cache exists")
	}

	out, _, err := runCLI(t, []string{"cache", "lookup", one}, env.configPath)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	requireContains(t, out, "not cached")

	if _, _, err := runCLI(t, []string{"analyze", one}, env.configPath); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	out, _, err = runCLI(t, []string{"cache", "hash", one, two}, env.configPath)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected one line per file, got %q", out)
	}
	key := strings.Fields(lines[0])[0]
	if len(key) != 64 {
		t.Fatalf("expected a 64 character blake3 key, got %q", key)
	}

	out, _, err = runCLI(t, []string{"cache", "list", env.inputDir}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, key)
	requireContains(t, out, "+4.0")

	out, _, err = runCLI(t, []string{"cache", "lookup", one}, env.configPath)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	requireContains(t, out, "one.flac: +4.0 dB")
}
