package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"normalizer/internal/config"
	"normalizer/internal/services"
	"normalizer/internal/testsupport"
	"normalizer/internal/tools"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestRequirementsFollowFormats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	optional := func(reqs []string) map[string]bool {
		out := map[string]bool{}
		for _, r := range Requirements(cfg, reqs) {
			out[r.Name] = r.Optional
		}
		return out
	}

	got := optional([]string{config.FormatAAC, config.FormatALAC})
	if got[NameFFmpeg] || got[NameQaac] || !got[NameLame] {
		t.Fatalf("itunes formats: unexpected optional map %v", got)
	}
	got = optional([]string{config.FormatMP3})
	if got[NameLame] || !got[NameQaac] {
		t.Fatalf("mp3 via lame: unexpected optional map %v", got)
	}
	cfg.Normalize.MP3Encoder = config.MP3EncoderFFmpeg
	got = optional([]string{config.FormatMP3, config.FormatFLAC})
	if !got[NameLame] || !got[NameQaac] {
		t.Fatalf("mp3 via ffmpeg: unexpected optional map %v", got)
	}
}

func TestBinariesReportsMissingRequired(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithStubbedBinaries("ffmpeg", "qaac"),
		testsupport.WithTools("", "", filepath.Join(t.TempDir(), "lame")),
	)
	bins, err := Binaries(CheckSystemDeps(cfg, []string{config.FormatAAC}))
	if err != nil {
		t.Fatalf("expected binaries, got %v", err)
	}
	if bins.FFmpeg == "" || bins.Qaac == "" || bins.Lame != "" {
		t.Fatalf("unexpected binaries %+v", bins)
	}

	_, err = Binaries(CheckSystemDeps(cfg, []string{config.FormatMP3}))
	if !errors.Is(err, services.ErrBinaryNotFound) {
		t.Fatalf("expected lame to be reported missing, got %v", err)
	}
}

func TestRunAllAndFailed(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := testsupport.WriteScript(t, dir, "ffmpeg", `printf '  configuration: --enable-libmp3lame --enable-libsoxr\n' >&2
printf "Use -h to get full help or, even better, run 'man ffmpeg'\n" >&2
exit 1
`)
	qaac := testsupport.WriteScript(t, dir, "qaac", "exit 3\n")
	cfg := testsupport.NewConfig(t, testsupport.WithInputCache())

	results := RunAll(context.Background(), cfg, tools.Binaries{FFmpeg: ffmpeg, Qaac: qaac}, filepath.Dir(cfg.CachePath(dir)), nil)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %+v", results)
	}
	passed := map[string]bool{}
	for _, r := range results {
		passed[r.Name] = r.Passed
	}
	if !passed[NameFFmpeg] || !passed["FFmpeg libraries"] || passed[NameQaac] || !passed["Cache directory"] {
		t.Fatalf("unexpected results %+v", results)
	}
	if err := Failed(results); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if err := Failed(results[:1]); err != nil {
		t.Fatalf("expected no error for passing results, got %v", err)
	}
}
